// Package search queries the external paper indexes and merges their
// results into one deduplicated, ranked list.
package search

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Result is one paper hit in the unified shape shared by all sources.
type Result struct {
	Title     string   `json:"title"`
	Authors   []string `json:"authors"`
	Abstract  string   `json:"abstract,omitempty"`
	Year      int      `json:"year,omitempty"`
	Venue     string   `json:"venue,omitempty"`
	Citations int      `json:"citations"`
	URL       string   `json:"url,omitempty"`
	PDFURL    string   `json:"pdf_url,omitempty"`
	DOI       string   `json:"doi,omitempty"`
	ArxivID   string   `json:"arxiv_id,omitempty"`
	Source    string   `json:"source"`
}

// Source is one external paper index.
type Source interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// Service fans a query out to every source. A failing source is skipped so
// one collaborator outage never empties the whole search.
type Service struct {
	sources []Source
	limit   int
	logger  zerolog.Logger
}

func NewService(limit int, logger zerolog.Logger, sources ...Source) *Service {
	return &Service{
		sources: sources,
		limit:   limit,
		logger:  logger.With().Str("component", "search").Logger(),
	}
}

// Search queries all sources concurrently and returns the merged ranking.
func (s *Service) Search(ctx context.Context, query string) ([]Result, error) {
	type outcome struct {
		name    string
		results []Result
		err     error
	}

	ch := make(chan outcome, len(s.sources))
	for _, src := range s.sources {
		go func(src Source) {
			results, err := src.Search(ctx, query, s.limit)
			ch <- outcome{name: src.Name(), results: results, err: err}
		}(src)
	}

	var all [][]Result
	for range s.sources {
		out := <-ch
		if out.err != nil {
			s.logger.Warn().Err(out.err).Str("source", out.name).Msg("search source failed, skipping")
			continue
		}
		all = append(all, out.results)
	}

	merged := Merge(all...)
	if len(merged) > s.limit {
		merged = merged[:s.limit]
	}
	return merged, nil
}

// Merge deduplicates results across sources by normalized title and ranks
// them by citation count, then by year, both descending. The first source to
// report a title wins; later duplicates only contribute a citation count if
// theirs is higher.
func Merge(lists ...[]Result) []Result {
	var merged []Result
	index := make(map[string]int)

	for _, list := range lists {
		for _, r := range list {
			key := normalizeTitle(r.Title)
			if key == "" {
				continue
			}
			if i, ok := index[key]; ok {
				if r.Citations > merged[i].Citations {
					merged[i].Citations = r.Citations
				}
				continue
			}
			index[key] = len(merged)
			merged = append(merged, r)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Citations != merged[j].Citations {
			return merged[i].Citations > merged[j].Citations
		}
		return merged[i].Year > merged[j].Year
	})
	return merged
}

// normalizeTitle builds the dedup key: lowercase, punctuation that varies
// between indexes stripped, capped so trailing subtitle noise cannot split
// an otherwise identical title.
func normalizeTitle(title string) string {
	t := strings.ToLower(strings.TrimSpace(title))
	t = strings.NewReplacer(":", "", "-", "", "  ", " ").Replace(t)
	if len(t) > 100 {
		t = t[:100]
	}
	return t
}
