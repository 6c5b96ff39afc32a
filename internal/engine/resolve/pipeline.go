package resolve

import (
	"context"
	"log/slog"
	"time"

	"resolvecore/internal/engine/tree"
	"resolvecore/internal/shared/observability"

	"go.opentelemetry.io/otel/trace"
)

// Transformer rewrites a file for one stage. Transformers may mutate the
// tree in place; the returned file is the one later transformers see.
type Transformer interface {
	Name() string
	Stage() tree.Stage
	Transform(ctx context.Context, f *tree.File) (*tree.File, error)
}

// Pipeline maps every stage to the transformers that bring a file to it.
type Pipeline struct {
	byStage map[tree.Stage][]Transformer
	logger  *slog.Logger
	guard   *stageGuard
}

// NewPipeline groups transformers by the stage they establish, keeping the
// given order within a stage.
func NewPipeline(logger *slog.Logger, transformers ...Transformer) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		byStage: make(map[tree.Stage][]Transformer),
		logger:  logger,
		guard:   newStageGuard(),
	}
	for _, t := range transformers {
		p.byStage[t.Stage()] = append(p.byStage[t.Stage()], t)
	}
	return p
}

// TransformersFor lists, in run order, every transformer needed to reach
// stage from RAW. An unknown stage yields an empty list.
func (p *Pipeline) TransformersFor(stage tree.Stage) []Transformer {
	out := []Transformer{}
	if !stage.Valid() {
		return out
	}
	for _, s := range tree.Stages() {
		if s > stage {
			break
		}
		out = append(out, p.byStage[s]...)
	}
	return out
}

// Run drives f up to target. Stages the file has already reached are
// skipped, so running twice is a no-op.
func (p *Pipeline) Run(ctx context.Context, f *tree.File, target tree.Stage) error {
	if !target.Valid() {
		return nil
	}
	for _, stage := range tree.Stages() {
		if stage > target {
			break
		}
		if f.Stage() >= stage {
			continue
		}
		if err := p.runStage(ctx, f, stage); err != nil {
			return err
		}
	}
	return nil
}

// InProgress reports whether f is currently being driven to stage.
func (p *Pipeline) InProgress(f *tree.File, stage tree.Stage) bool {
	return p.guard.inProgress(f, stage, phaseFile)
}

func (p *Pipeline) runStage(ctx context.Context, f *tree.File, stage tree.Stage) error {
	if err := p.guard.enter(f, stage, phaseFile); err != nil {
		return err
	}
	defer p.guard.exit(f, stage, phaseFile)

	current := f
	for _, t := range p.byStage[stage] {
		next, err := p.runOne(ctx, t, current)
		if err != nil {
			return err
		}
		current = next
	}
	if f.Advance(stage) {
		observability.DeclarationsStamped.WithLabelValues(stage.String()).Inc()
	}
	return nil
}

func (p *Pipeline) runOne(ctx context.Context, t Transformer, f *tree.File) (*tree.File, error) {
	ctx, span := observability.Tracer.Start(ctx, "transformer."+t.Name(), trace.WithAttributes(
		observability.AttrPath.String(f.Path),
		observability.AttrStage.String(t.Stage().String()),
	))
	defer span.End()

	start := time.Now()
	out, err := t.Transform(ctx, f)
	observability.TransformerDuration.WithLabelValues(t.Name(), t.Stage().String()).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		p.logger.Debug("transformer failed", "transformer", t.Name(), "path", f.Path, "error", err)
		return nil, err
	}
	if out == nil {
		out = f
	}
	return out, nil
}
