package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/reslab/research-agent/internal/errors"
)

func geminiOK(text string) string {
	return `{"candidates":[{"content":{"role":"model","parts":[{"text":` +
		mustJSON(text) + `}]},"finishReason":"STOP"}],` +
		`"usageMetadata":{"promptTokenCount":10,"candidatesTokenCount":5}}`
}

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestGenerate_ReturnsText(t *testing.T) {
	var captured geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(geminiOK("hello from the model")))
	}))
	defer srv.Close()

	p := NewGeminiProvider("key", WithBaseURL(srv.URL))
	out, err := p.Generate(context.Background(), "be helpful",
		[]Message{{Role: "user", Content: "earlier"}, {Role: "model", Content: "reply"}},
		"what now?")
	require.NoError(t, err)
	assert.Equal(t, "hello from the model", out)

	// System prompt travels separately from the conversation turns.
	require.NotNil(t, captured.SystemInstruction)
	assert.Equal(t, "be helpful", captured.SystemInstruction.Parts[0].Text)
	require.Len(t, captured.Contents, 3)
	assert.Equal(t, "user", captured.Contents[0].Role)
	assert.Equal(t, "model", captured.Contents[1].Role)
	assert.Equal(t, "what now?", captured.Contents[2].Parts[0].Text)
}

func TestGenerate_APIErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":400,"message":"bad key","status":"INVALID_ARGUMENT"}}`))
	}))
	defer srv.Close()

	p := NewGeminiProvider("key", WithBaseURL(srv.URL))
	_, err := p.Generate(context.Background(), "", nil, "hi")
	require.Error(t, err)

	var apiErr *perrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "gemini", apiErr.Service)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "INVALID_ARGUMENT")
}

func TestGenerate_RetriesTransientFailure(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`))
			return
		}
		w.Write([]byte(geminiOK("second try")))
	}))
	defer srv.Close()

	p := NewGeminiProvider("key", WithBaseURL(srv.URL))
	out, err := p.Generate(context.Background(), "", nil, "hi")
	require.NoError(t, err)
	assert.Equal(t, "second try", out)
	assert.Equal(t, 2, attempts)
}

func TestGenerate_NoRetryOnClientError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":400,"message":"nope","status":"INVALID_ARGUMENT"}}`))
	}))
	defer srv.Close()

	p := NewGeminiProvider("key", WithBaseURL(srv.URL))
	_, err := p.Generate(context.Background(), "", nil, "hi")
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestGenerate_EmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	p := NewGeminiProvider("key", WithBaseURL(srv.URL))
	_, err := p.Generate(context.Background(), "", nil, "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no candidates")
}
