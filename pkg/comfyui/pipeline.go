package comfyui

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/comfyflow/pkg/otelhelper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/dukex/comfyflow/pkg/comfyui"

// Policy selects which outputs a pipeline run downloads.
type Policy string

const (
	// PolicyAll downloads every video, then every image.
	PolicyAll Policy = "all"
	// PolicyVideo requires a video output and downloads the first one.
	PolicyVideo Policy = "video"
)

// RunResult is the outcome of a successful pipeline run.
type RunResult struct {
	PromptID string
	Status   *Status
	Media    []*Media
}

// Pipeline runs the queue, poll, extract and download stages against one server.
type Pipeline struct {
	client     *Client
	poller     *Poller
	downloader *Downloader
	tracer     trace.Tracer
	logger     *slog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*pipelineConfig)

type pipelineConfig struct {
	pollerOpts     []PollerOption
	downloaderOpts []DownloaderOption
	tracer         trace.Tracer
	logger         *slog.Logger
}

// WithPollerOptions forwards options to the pipeline poller.
func WithPollerOptions(opts ...PollerOption) PipelineOption {
	return func(c *pipelineConfig) {
		c.pollerOpts = append(c.pollerOpts, opts...)
	}
}

// WithDownloaderOptions forwards options to the pipeline downloader.
func WithDownloaderOptions(opts ...DownloaderOption) PipelineOption {
	return func(c *pipelineConfig) {
		c.downloaderOpts = append(c.downloaderOpts, opts...)
	}
}

// WithTracer sets the tracer used for stage spans.
func WithTracer(tracer trace.Tracer) PipelineOption {
	return func(c *pipelineConfig) {
		c.tracer = tracer
	}
}

// WithPipelineLogger sets the logger shared by all stages.
func WithPipelineLogger(logger *slog.Logger) PipelineOption {
	return func(c *pipelineConfig) {
		c.logger = logger
	}
}

func NewPipeline(client *Client, opts ...PipelineOption) *Pipeline {
	cfg := pipelineConfig{
		tracer: otel.Tracer(tracerName),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	logger := cfg.logger.With("module", "comfyui_pipeline")

	pollerOpts := append([]PollerOption{WithPollerLogger(logger)}, cfg.pollerOpts...)
	downloaderOpts := append([]DownloaderOption{WithDownloaderLogger(logger)}, cfg.downloaderOpts...)

	return &Pipeline{
		client:     client,
		poller:     NewPoller(client, pollerOpts...),
		downloader: NewDownloader(client, downloaderOpts...),
		tracer:     cfg.tracer,
		logger:     logger,
	}
}

// Run queues wf, waits up to timeout for it to finish and downloads the
// outputs selected by policy. Nothing is returned unless every selected
// output was downloaded.
func (p *Pipeline) Run(ctx context.Context, wf Workflow, policy Policy, timeout time.Duration) (*RunResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, p.tracer, "comfyui.pipeline",
		attribute.String(otelhelper.PolicyKey, string(policy)))
	defer span.End()

	result, err := p.run(ctx, wf, policy, timeout)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	span.SetAttributes(
		attribute.String(otelhelper.PromptIDKey, result.PromptID),
		attribute.Int(otelhelper.MediaCountKey, len(result.Media)))

	return result, nil
}

func (p *Pipeline) run(ctx context.Context, wf Workflow, policy Policy, timeout time.Duration) (*RunResult, error) {
	promptID, err := p.client.QueuePrompt(ctx, wf)
	if err != nil {
		return nil, err
	}

	p.logger.InfoContext(ctx, "Generation queued", "prompt_id", promptID)

	entry, err := p.poll(ctx, promptID, timeout)
	if err != nil {
		return nil, err
	}

	outputs, err := ExtractOutputs(p.client.BaseURL(), entry)
	if err != nil {
		return nil, err
	}

	videos, images := Partition(outputs)

	p.logger.InfoContext(ctx, "Found media outputs",
		"prompt_id", promptID,
		"videos", len(videos),
		"images", len(images))

	var selected []MediaOutput

	switch policy {
	case PolicyVideo:
		if len(videos) == 0 {
			return nil, ErrNoVideoOutputs
		}

		selected = videos[:1]
	case PolicyAll, "":
		selected = append(append(selected, videos...), images...)
	default:
		return nil, fmt.Errorf("unknown output policy %q", policy)
	}

	media := make([]*Media, 0, len(selected))

	for _, out := range selected {
		m, err := p.download(ctx, out, entry.Status)
		if err != nil {
			return nil, err
		}

		media = append(media, m)
	}

	return &RunResult{
		PromptID: promptID,
		Status:   entry.Status,
		Media:    media,
	}, nil
}

func (p *Pipeline) poll(ctx context.Context, promptID string, timeout time.Duration) (*HistoryEntry, error) {
	ctx, span := otelhelper.StartSpan(ctx, p.tracer, "comfyui.poll",
		attribute.String(otelhelper.PromptIDKey, promptID))
	defer span.End()

	entry, err := p.poller.Wait(ctx, promptID, timeout)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	return entry, nil
}

func (p *Pipeline) download(ctx context.Context, out MediaOutput, status *Status) (*Media, error) {
	ctx, span := otelhelper.StartSpan(ctx, p.tracer, "comfyui.download",
		attribute.String(otelhelper.FilenameKey, out.Filename))
	defer span.End()

	m, err := p.downloader.Download(ctx, out, status)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	return m, nil
}
