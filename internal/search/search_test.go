package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_DedupByNormalizedTitle(t *testing.T) {
	a := []Result{
		{Title: "Attention Is All You Need", Citations: 90000, Source: "semantic_scholar"},
		{Title: "Unique A", Citations: 5, Source: "semantic_scholar"},
	}
	b := []Result{
		{Title: "attention is all you need", Citations: 100, Source: "arxiv"},
		{Title: "Unique B", Citations: 10, Source: "arxiv"},
	}

	merged := Merge(a, b)
	require.Len(t, merged, 3)
	// First source wins the entry; duplicate only bumps citations.
	assert.Equal(t, "Attention Is All You Need", merged[0].Title)
	assert.Equal(t, "semantic_scholar", merged[0].Source)
	assert.Equal(t, 90000, merged[0].Citations)
}

func TestMerge_NormalizationIgnoresPunctuation(t *testing.T) {
	merged := Merge(
		[]Result{{Title: "Deep Learning: A Survey", Citations: 10}},
		[]Result{{Title: "deep learning a survey", Citations: 3}},
		[]Result{{Title: "Deep-Learning a Survey", Citations: 7}},
	)
	require.Len(t, merged, 1)
	assert.Equal(t, 10, merged[0].Citations)
}

func TestMerge_SortsByCitationsThenYear(t *testing.T) {
	merged := Merge([]Result{
		{Title: "old low", Citations: 1, Year: 2010},
		{Title: "new low", Citations: 1, Year: 2024},
		{Title: "high", Citations: 500, Year: 2015},
	})
	require.Len(t, merged, 3)
	assert.Equal(t, "high", merged[0].Title)
	assert.Equal(t, "new low", merged[1].Title)
	assert.Equal(t, "old low", merged[2].Title)
}

func TestMerge_DuplicateKeepsHigherCitations(t *testing.T) {
	merged := Merge(
		[]Result{{Title: "Same Paper", Citations: 2, Source: "arxiv"}},
		[]Result{{Title: "Same Paper", Citations: 40, Source: "semantic_scholar"}},
	)
	require.Len(t, merged, 1)
	assert.Equal(t, "arxiv", merged[0].Source)
	assert.Equal(t, 40, merged[0].Citations)
}

// stubSource drives the service fan-out without real HTTP.
type stubSource struct {
	name    string
	results []Result
	err     error
}

func (s stubSource) Name() string { return s.name }
func (s stubSource) Search(context.Context, string, int) ([]Result, error) {
	return s.results, s.err
}

func TestService_SkipsFailingSource(t *testing.T) {
	svc := NewService(30, zerolog.Nop(),
		stubSource{name: "good", results: []Result{{Title: "kept", Citations: 1}}},
		stubSource{name: "bad", err: errors.New("down")},
	)

	results, err := svc.Search(context.Background(), "anything")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "kept", results[0].Title)
}

func TestService_AllSourcesFailYieldsEmpty(t *testing.T) {
	svc := NewService(30, zerolog.Nop(),
		stubSource{name: "a", err: errors.New("down")},
		stubSource{name: "b", err: errors.New("down")},
	)

	results, err := svc.Search(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestService_CapsResultCount(t *testing.T) {
	var many []Result
	for i := 0; i < 10; i++ {
		many = append(many, Result{Title: string(rune('a' + i)), Citations: i})
	}
	svc := NewService(3, zerolog.Nop(), stubSource{name: "src", results: many})

	results, err := svc.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Equal(t, 9, results[0].Citations)
}

const arxivFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2301.00001v2</id>
    <title>Sparse  Attention
 for Long Documents</title>
    <summary>We study sparse attention.</summary>
    <published>2023-01-01T00:00:00Z</published>
    <author><name>Ada Lovelace</name></author>
    <author><name>Alan Turing</name></author>
    <link href="http://arxiv.org/pdf/2301.00001v2" title="pdf" type="application/pdf"/>
  </entry>
</feed>`

func TestArxiv_SearchParsesFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("search_query"), "all:sparse")
		w.Write([]byte(arxivFeed))
	}))
	defer srv.Close()

	a := NewArxiv(srv.URL, 5*time.Second, zerolog.Nop())
	results, err := a.Search(context.Background(), "sparse attention", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "Sparse Attention for Long Documents", r.Title)
	assert.Equal(t, "2301.00001", r.ArxivID)
	assert.Equal(t, 2023, r.Year)
	assert.Equal(t, []string{"Ada Lovelace", "Alan Turing"}, r.Authors)
	assert.Equal(t, "http://arxiv.org/pdf/2301.00001v2", r.PDFURL)
	assert.Equal(t, "arxiv", r.Source)
}

func TestSemanticScholar_SearchParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "transformers", r.URL.Query().Get("query"))
		w.Write([]byte(`{"total":1,"data":[{
			"paperId":"abc",
			"title":"Transformers in Vision",
			"abstract":"A survey.",
			"year":2022,
			"venue":"CVPR",
			"citationCount":321,
			"url":"https://example.org/paper",
			"authors":[{"name":"Grace Hopper"}],
			"openAccessPdf":{"url":"https://example.org/paper.pdf"},
			"externalIds":{"DOI":"10.1/xyz","ArXiv":"2201.12345"}
		}]}`))
	}))
	defer srv.Close()

	s := NewSemanticScholar(srv.URL, "", 5*time.Second, zerolog.Nop())
	results, err := s.Search(context.Background(), "transformers", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "Transformers in Vision", r.Title)
	assert.Equal(t, 321, r.Citations)
	assert.Equal(t, "10.1/xyz", r.DOI)
	assert.Equal(t, "2201.12345", r.ArxivID)
	assert.Equal(t, "https://example.org/paper.pdf", r.PDFURL)
	assert.Equal(t, []string{"Grace Hopper"}, r.Authors)
}

func TestSemanticScholar_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewSemanticScholar(srv.URL, "", 5*time.Second, zerolog.Nop())
	_, err := s.Search(context.Background(), "q", 10)
	assert.Error(t, err)
}
