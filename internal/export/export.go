package export

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/minawa/panelreel/internal/timeline"
)

// Suspender pauses background persistence while an export is in flight,
// so a transient upload-rewritten timeline is never autosaved.
type Suspender interface {
	Suspend()
	Resume()
}

// Exporter runs the full export pipeline: serialize, resolve inline
// assets, submit, and hand back the rendered artifact. Failures leave the
// timeline model untouched.
type Exporter struct {
	logger     zerolog.Logger
	serializer *Serializer
	client     *Client
	suspender  Suspender
}

// NewExporter wires the pipeline together. The suspender may be nil.
func NewExporter(logger zerolog.Logger, serializer *Serializer, client *Client, suspender Suspender) *Exporter {
	return &Exporter{
		logger:     logger.With().Str("component", "export").Logger(),
		serializer: serializer,
		client:     client,
		suspender:  suspender,
	}
}

// Export serializes the timeline and submits it for rendering.
func (e *Exporter) Export(ctx context.Context, projectID string, tl *timeline.Timeline, res Resolution) (RenderResult, error) {
	if e.suspender != nil {
		e.suspender.Suspend()
		defer e.suspender.Resume()
	}

	entries, err := e.serializer.Serialize(ctx, tl)
	if err != nil {
		e.logger.Error().Err(err).Msg("export aborted during serialization")
		return RenderResult{}, err
	}

	result, err := e.client.Render(ctx, projectID, entries, res)
	if err != nil {
		e.logger.Error().Err(err).Msg("export aborted during render")
		return RenderResult{}, err
	}
	return result, nil
}
