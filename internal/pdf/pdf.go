// Package pdf downloads papers and extracts their plain text. Extraction
// failures are soft: callers fall back to metadata-only processing instead
// of failing the paper.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"

	perrors "github.com/reslab/research-agent/internal/errors"
)

// maxDownloadSize caps how much of a remote PDF is read.
const maxDownloadSize = 50 << 20

// Fetcher downloads PDFs and turns them into text.
type Fetcher struct {
	client *http.Client
	logger zerolog.Logger
}

func NewFetcher(timeout time.Duration, logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "pdf").Logger(),
	}
}

// Download fetches the PDF at url and writes it to destPath.
func (f *Fetcher) Download(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return perrors.WrapAPI("pdf-download", 0, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return perrors.NewAPIError("pdf-download", resp.StatusCode, "download rejected")
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadSize))
	if err != nil {
		return fmt.Errorf("read pdf body: %w", err)
	}
	if !looksLikePDF(data) {
		return perrors.NewAPIError("pdf-download", resp.StatusCode, "response is not a pdf")
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create pdf dir: %w", err)
	}
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}

	f.logger.Info().Str("url", url).Int("bytes", len(data)).Msg("pdf downloaded")
	return nil
}

// ExtractText reads the stored PDF and returns its plain text. An empty
// result with a nil error means the file held no extractable text.
func (f *Fetcher) ExtractText(path string) (string, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			f.logger.Warn().Err(err).Int("page", i).Str("path", path).Msg("skipping unreadable page")
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String()), nil
}

// DownloadAndExtract is the one-shot path used by the paper pipeline.
func (f *Fetcher) DownloadAndExtract(ctx context.Context, url, destPath string) (string, error) {
	if err := f.Download(ctx, url, destPath); err != nil {
		return "", err
	}
	return f.ExtractText(destPath)
}

func looksLikePDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}
