package agent

import (
	"regexp"
	"strings"
)

var artifactRe = regexp.MustCompile(`(?s)<artifact>(.*?)</artifact>`)

// ExtractArtifact splits a model response into the conversational text and
// the embedded artifact block. When no block is present the response is
// returned untouched and found is false, so callers keep the prior artifact.
func ExtractArtifact(response string) (clean, artifact string, found bool) {
	m := artifactRe.FindStringSubmatch(response)
	if m == nil {
		return response, "", false
	}
	clean = strings.TrimSpace(artifactRe.ReplaceAllString(response, ""))
	return clean, strings.TrimSpace(m[1]), true
}
