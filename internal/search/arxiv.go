package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	perrors "github.com/reslab/research-agent/internal/errors"
)

const defaultArxivBaseURL = "http://export.arxiv.org/api/query"

// Arxiv queries the arXiv Atom API.
type Arxiv struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

func NewArxiv(baseURL string, timeout time.Duration, logger zerolog.Logger) *Arxiv {
	if baseURL == "" {
		baseURL = defaultArxivBaseURL
	}
	return &Arxiv{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "arxiv").Logger(),
	}
}

func (a *Arxiv) Name() string { return "arxiv" }

// ---- Atom wire types ----

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Links []struct {
		Href  string `xml:"href,attr"`
		Title string `xml:"title,attr"`
		Type  string `xml:"type,attr"`
	} `xml:"link"`
}

func buildArxivQuery(query string) string {
	terms := strings.Fields(query)
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		parts = append(parts, "all:"+t)
	}
	return strings.Join(parts, " AND ")
}

func (a *Arxiv) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	params := url.Values{
		"search_query": {buildArxivQuery(query)},
		"start":        {"0"},
		"max_results":  {strconv.Itoa(limit)},
		"sortBy":       {"relevance"},
		"sortOrder":    {"descending"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, perrors.WrapAPI("arxiv", 0, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, perrors.NewAPIError("arxiv", resp.StatusCode, "search rejected")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, perrors.WrapAPI("arxiv", resp.StatusCode, "malformed feed", err)
	}

	results := make([]Result, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		r := Result{
			Title:    collapseWhitespace(e.Title),
			Abstract: collapseWhitespace(e.Summary),
			URL:      e.ID,
			ArxivID:  arxivIDFromURL(e.ID),
			Source:   "arxiv",
		}
		for _, au := range e.Authors {
			r.Authors = append(r.Authors, au.Name)
		}
		for _, l := range e.Links {
			if l.Title == "pdf" || l.Type == "application/pdf" {
				r.PDFURL = l.Href
			}
		}
		if len(e.Published) >= 4 {
			if y, err := strconv.Atoi(e.Published[:4]); err == nil {
				r.Year = y
			}
		}
		results = append(results, r)
	}

	a.logger.Debug().Str("query", query).Int("results", len(results)).Msg("arxiv search complete")
	return results, nil
}

// arxivIDFromURL extracts "2301.00001" from "http://arxiv.org/abs/2301.00001v2".
func arxivIDFromURL(u string) string {
	i := strings.LastIndex(u, "/abs/")
	if i < 0 {
		return ""
	}
	id := u[i+len("/abs/"):]
	if j := strings.LastIndex(id, "v"); j > 0 {
		if _, err := strconv.Atoi(id[j+1:]); err == nil {
			id = id[:j]
		}
	}
	return id
}

// collapseWhitespace flattens the newline-wrapped text arXiv feeds carry.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
