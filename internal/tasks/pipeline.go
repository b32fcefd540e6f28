package tasks

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	perrors "github.com/reslab/research-agent/internal/errors"
	"github.com/reslab/research-agent/internal/event"
	"github.com/reslab/research-agent/internal/llm"
	"github.com/reslab/research-agent/internal/metrics"
	"github.com/reslab/research-agent/internal/pdf"
	"github.com/reslab/research-agent/internal/registry"
	"github.com/reslab/research-agent/internal/state"
	"github.com/reslab/research-agent/internal/store"
)

const summarySystemPrompt = `You are a research librarian producing structured markdown summaries of academic papers for a literature review. Summarize faithfully; never invent findings that are not in the provided material.`

// Pipeline runs the paper lifecycle: download, text extraction, summary
// generation. Download failures degrade a paper to metadata-only processing;
// only the processing step itself can fail a paper.
type Pipeline struct {
	registry    *registry.Registry
	bus         *event.Bus
	fetcher     *pdf.Fetcher
	provider    llm.Provider // nil when no model is configured
	runner      *Runner
	maxFullText int
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

func NewPipeline(reg *registry.Registry, bus *event.Bus, fetcher *pdf.Fetcher, provider llm.Provider, runner *Runner, maxFullText int, m *metrics.Metrics, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		registry:    reg,
		bus:         bus,
		fetcher:     fetcher,
		provider:    provider,
		runner:      runner,
		maxFullText: maxFullText,
		metrics:     m,
		logger:      logger.With().Str("component", "paper-pipeline").Logger(),
	}
}

func (pl *Pipeline) publishPaperUpdate(projectID, paperID string, status state.PaperStatus, detail string) {
	data := map[string]any{"paper_id": paperID, "status": string(status)}
	if detail != "" {
		data["detail"] = detail
	}
	pl.bus.Publish(projectID, state.ProcessLiteratureOrganization, event.Event{
		Type: event.TypePaperUpdate,
		Data: data,
	})
}

func (pl *Pipeline) setPaperStatus(projectID, paperID string, status state.PaperStatus) error {
	_, err := pl.registry.Update(projectID, func(p *state.Project) error {
		paper := p.Processes.LiteratureOrganization.FindPaper(paperID)
		if paper == nil {
			return fmt.Errorf("%w: paper %s", perrors.ErrNotFound, paperID)
		}
		paper.Status = status
		return nil
	})
	if err != nil {
		return err
	}
	pl.publishPaperUpdate(projectID, paperID, status, "")
	return nil
}

// StartDownload schedules the PDF download for a paper. The paper always
// lands back in pending: a failed or impossible download only means the
// later processing step works from metadata.
func (pl *Pipeline) StartDownload(projectID, paperID string) (Unit, error) {
	if err := pl.setPaperStatus(projectID, paperID, state.PaperPendingDownload); err != nil {
		return Unit{}, err
	}

	unit := pl.runner.Go("paper_download", projectID, func(ctx context.Context) error {
		if err := pl.setPaperStatus(projectID, paperID, state.PaperDownloading); err != nil {
			return err
		}

		p, err := pl.registry.Get(projectID)
		if err != nil {
			return err
		}
		paper := p.Processes.LiteratureOrganization.FindPaper(paperID)
		if paper == nil {
			return fmt.Errorf("%w: paper %s", perrors.ErrNotFound, paperID)
		}

		if paper.PDFURL == "" {
			pl.logger.Info().Str("paper_id", paperID).Msg("no pdf url, metadata only")
		} else {
			dest := pl.registry.Store().PaperPDFPath(projectID, paperID)
			if err := pl.fetcher.Download(ctx, paper.PDFURL, dest); err != nil {
				pl.logger.Warn().Err(err).Str("paper_id", paperID).Msg("pdf download failed, degrading to metadata")
				if pl.metrics != nil {
					pl.metrics.RecordCollaboratorError("pdf-download")
				}
			}
		}

		// Terminal for the download stage is always pending.
		return pl.setPaperStatus(projectID, paperID, state.PaperPending)
	})
	return unit, nil
}

// StartProcessing schedules summary generation for a paper.
func (pl *Pipeline) StartProcessing(projectID, paperID string) (Unit, error) {
	if err := pl.setPaperStatus(projectID, paperID, state.PaperProcessing); err != nil {
		return Unit{}, err
	}

	unit := pl.runner.Go("paper_process", projectID, func(ctx context.Context) error {
		if err := pl.processOne(ctx, projectID, paperID); err != nil {
			pl.failPaper(projectID, paperID, err)
			return err
		}
		return nil
	})
	return unit, nil
}

func (pl *Pipeline) processOne(ctx context.Context, projectID, paperID string) error {
	p, err := pl.registry.Get(projectID)
	if err != nil {
		return err
	}
	paper := p.Processes.LiteratureOrganization.FindPaper(paperID)
	if paper == nil {
		return fmt.Errorf("%w: paper %s", perrors.ErrNotFound, paperID)
	}

	fullText := pl.extractFullText(projectID, paperID)
	if fullText == "" {
		// Direct-text uploads arrive with the full text already attached.
		fullText = paper.FullText
		if len(fullText) > pl.maxFullText {
			fullText = fullText[:pl.maxFullText]
		}
	}

	document, err := pl.buildDocument(ctx, paper, fullText)
	if err != nil {
		return err
	}

	st := pl.registry.Store()
	if err := st.SavePaperDocument(projectID, paperID, paper.Title, document); err != nil {
		return err
	}

	updated, err := pl.registry.Update(projectID, func(p *state.Project) error {
		paper := p.Processes.LiteratureOrganization.FindPaper(paperID)
		if paper == nil {
			return fmt.Errorf("%w: paper %s", perrors.ErrNotFound, paperID)
		}
		paper.FullText = fullText
		paper.MDContent = document
		paper.MDFile = store.PaperDocumentName(paperID, paper.Title)
		paper.Status = state.PaperCompleted
		return nil
	})
	if err != nil {
		return err
	}

	if err := st.SaveMasterList(projectID, updated.Processes.LiteratureOrganization.State.MasterMD,
		BuildMasterList(updated)); err != nil {
		pl.logger.Warn().Err(err).Str("project_id", projectID).Msg("master list write failed")
	}

	pl.publishPaperUpdate(projectID, paperID, state.PaperCompleted, "")
	return nil
}

// extractFullText pulls text out of the stored PDF when one exists, capped
// to keep records and prompts bounded. Extraction problems yield empty text.
func (pl *Pipeline) extractFullText(projectID, paperID string) string {
	path := pl.registry.Store().PaperPDFPath(projectID, paperID)
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	text, err := pl.fetcher.ExtractText(path)
	if err != nil {
		pl.logger.Warn().Err(err).Str("paper_id", paperID).Msg("text extraction failed, using metadata")
		return ""
	}
	if len(text) > pl.maxFullText {
		text = text[:pl.maxFullText]
	}
	return text
}

func (pl *Pipeline) buildDocument(ctx context.Context, paper *state.PaperEntry, fullText string) (string, error) {
	if pl.provider == nil {
		return metadataDocument(paper), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Summarize the following paper as a structured markdown document with sections for Overview, Key Contributions, Methodology, Findings, and Relevance Notes.\n\n")
	fmt.Fprintf(&sb, "Title: %s\n", paper.Title)
	if len(paper.Authors) > 0 {
		fmt.Fprintf(&sb, "Authors: %s\n", strings.Join(paper.Authors, ", "))
	}
	if paper.Year > 0 {
		fmt.Fprintf(&sb, "Year: %d\n", paper.Year)
	}
	if paper.Venue != "" {
		fmt.Fprintf(&sb, "Venue: %s\n", paper.Venue)
	}
	if paper.Abstract != "" {
		fmt.Fprintf(&sb, "\nAbstract:\n%s\n", paper.Abstract)
	}
	if fullText != "" {
		fmt.Fprintf(&sb, "\nFull text:\n%s\n", fullText)
	} else {
		sb.WriteString("\nNo full text is available; summarize from the metadata and abstract only.\n")
	}

	summary, err := pl.provider.Generate(ctx, summarySystemPrompt, nil, sb.String())
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("# %s\n\n%s", paper.Title, summary), nil
}

// metadataDocument is the no-model fallback summary.
func metadataDocument(paper *state.PaperEntry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", paper.Title)
	if len(paper.Authors) > 0 {
		fmt.Fprintf(&sb, "**Authors**: %s\n\n", strings.Join(paper.Authors, ", "))
	}
	if paper.Year > 0 {
		fmt.Fprintf(&sb, "**Year**: %d\n\n", paper.Year)
	}
	if paper.Venue != "" {
		fmt.Fprintf(&sb, "**Venue**: %s\n\n", paper.Venue)
	}
	if paper.URL != "" {
		fmt.Fprintf(&sb, "**URL**: %s\n\n", paper.URL)
	}
	if paper.Abstract != "" {
		fmt.Fprintf(&sb, "## Abstract\n\n%s\n", paper.Abstract)
	}
	return sb.String()
}

// failPaper records the terminal failure: status, an explicit error
// document, and an error event. Called only from the processing unit.
func (pl *Pipeline) failPaper(projectID, paperID string, cause error) {
	var title string
	_, err := pl.registry.Update(projectID, func(p *state.Project) error {
		paper := p.Processes.LiteratureOrganization.FindPaper(paperID)
		if paper == nil {
			return fmt.Errorf("%w: paper %s", perrors.ErrNotFound, paperID)
		}
		title = paper.Title
		errorDoc := fmt.Sprintf("# Processing Failed\n\n**Paper**: %s\n\n**Error**: %v\n\n**Time**: %s\n",
			paper.Title, cause, time.Now().UTC().Format(time.RFC3339))
		paper.Status = state.PaperFailed
		paper.MDContent = errorDoc
		paper.MDFile = store.PaperDocumentName(paperID, paper.Title)
		return nil
	})
	if err != nil {
		pl.logger.Error().Err(err).Str("paper_id", paperID).Msg("could not record paper failure")
		return
	}

	p, err := pl.registry.Get(projectID)
	if err == nil {
		if paper := p.Processes.LiteratureOrganization.FindPaper(paperID); paper != nil {
			if werr := pl.registry.Store().SavePaperDocument(projectID, paperID, title, paper.MDContent); werr != nil {
				pl.logger.Warn().Err(werr).Str("paper_id", paperID).Msg("error document write failed")
			}
		}
	}

	pl.bus.Publish(projectID, state.ProcessLiteratureOrganization, event.Event{
		Type: event.TypeError,
		Data: map[string]any{"paper_id": paperID, "error": cause.Error()},
	})
	pl.publishPaperUpdate(projectID, paperID, state.PaperFailed, cause.Error())
}

// OrganizeAll schedules download and processing for every paper still
// pending in the collection.
func (pl *Pipeline) OrganizeAll(projectID string) ([]Unit, error) {
	p, err := pl.registry.Get(projectID)
	if err != nil {
		return nil, err
	}

	var units []Unit
	for _, paper := range p.Processes.LiteratureOrganization.State.Papers {
		if paper.Status != state.PaperPending {
			continue
		}
		unit, err := pl.StartProcessing(projectID, paper.ID)
		if err != nil {
			pl.logger.Warn().Err(err).Str("paper_id", paper.ID).Msg("skipping paper")
			continue
		}
		units = append(units, unit)
	}
	return units, nil
}

// BuildMasterList renders the master markdown index. Only completed papers
// appear: pending and failed entries have no summary worth referencing.
func BuildMasterList(p *state.Project) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Literature Master List\n\n**Project**: %s\n\n", p.Topic)

	var count int
	for _, paper := range p.Processes.LiteratureOrganization.State.Papers {
		if paper.Status != state.PaperCompleted {
			continue
		}
		count++
		fmt.Fprintf(&sb, "- **%s**", paper.Title)
		if len(paper.Authors) > 0 {
			fmt.Fprintf(&sb, " (%s", strings.Join(paper.Authors, ", "))
			if paper.Year > 0 {
				fmt.Fprintf(&sb, ", %d", paper.Year)
			}
			sb.WriteString(")")
		} else if paper.Year > 0 {
			fmt.Fprintf(&sb, " (%d)", paper.Year)
		}
		if paper.MDFile != "" {
			fmt.Fprintf(&sb, " - [summary](Literature Review/%s)", paper.MDFile)
		}
		sb.WriteString("\n")
	}
	if count == 0 {
		sb.WriteString("No papers collected yet.\n")
	}
	return sb.String()
}
