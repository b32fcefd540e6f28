package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	perrors "github.com/reslab/research-agent/internal/errors"
	"github.com/reslab/research-agent/internal/retry"
)

const defaultSemanticScholarBaseURL = "https://api.semanticscholar.org/graph/v1"

var semanticScholarFields = "paperId,title,abstract,authors,year,venue,citationCount,openAccessPdf,externalIds,url"

// SemanticScholar queries the Semantic Scholar Graph API. The public tier is
// aggressively rate limited, so transient failures are retried with backoff.
type SemanticScholar struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  zerolog.Logger
}

func NewSemanticScholar(baseURL, apiKey string, timeout time.Duration, logger zerolog.Logger) *SemanticScholar {
	if baseURL == "" {
		baseURL = defaultSemanticScholarBaseURL
	}
	return &SemanticScholar{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "semantic-scholar").Logger(),
	}
}

func (s *SemanticScholar) Name() string { return "semantic_scholar" }

type s2Response struct {
	Total int `json:"total"`
	Data  []struct {
		PaperID  string `json:"paperId"`
		Title    string `json:"title"`
		Abstract string `json:"abstract"`
		Year     int    `json:"year"`
		Venue    string `json:"venue"`
		Citations int   `json:"citationCount"`
		URL      string `json:"url"`
		Authors  []struct {
			Name string `json:"name"`
		} `json:"authors"`
		OpenAccessPdf *struct {
			URL string `json:"url"`
		} `json:"openAccessPdf"`
		ExternalIDs map[string]json.RawMessage `json:"externalIds"`
	} `json:"data"`
}

func (s *SemanticScholar) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit > 100 {
		limit = 100
	}
	params := url.Values{
		"query":  {query},
		"limit":  {strconv.Itoa(limit)},
		"fields": {semanticScholarFields},
	}

	var results []Result
	err := retry.Search().Do(ctx, func(ctx context.Context) error {
		var searchErr error
		results, searchErr = s.searchOnce(ctx, params)
		return searchErr
	})
	return results, err
}

func (s *SemanticScholar) searchOnce(ctx context.Context, params url.Values) ([]Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.baseURL+"/paper/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if s.apiKey != "" {
		req.Header.Set("x-api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, perrors.WrapAPI("semantic_scholar", 0, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, perrors.NewAPIError("semantic_scholar", resp.StatusCode, "search rejected")
	}

	var body s2Response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, perrors.WrapAPI("semantic_scholar", resp.StatusCode, "malformed response", err)
	}

	results := make([]Result, 0, len(body.Data))
	for _, item := range body.Data {
		r := Result{
			Title:     item.Title,
			Abstract:  item.Abstract,
			Year:      item.Year,
			Venue:     item.Venue,
			Citations: item.Citations,
			URL:       item.URL,
			Source:    "semantic_scholar",
		}
		for _, a := range item.Authors {
			r.Authors = append(r.Authors, a.Name)
		}
		if item.OpenAccessPdf != nil {
			r.PDFURL = item.OpenAccessPdf.URL
		}
		if raw, ok := item.ExternalIDs["DOI"]; ok {
			_ = json.Unmarshal(raw, &r.DOI)
		}
		if raw, ok := item.ExternalIDs["ArXiv"]; ok {
			_ = json.Unmarshal(raw, &r.ArxivID)
		}
		results = append(results, r)
	}

	s.logger.Debug().Int("results", len(results)).Int("total", body.Total).Msg("semantic scholar search complete")
	return results, nil
}
