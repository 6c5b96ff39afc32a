// Package resolve drives declaration trees through the resolve stages,
// either a whole file at a time or along the designated path of a single
// declaration.
package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"resolvecore/internal/core/errors"
	"resolvecore/internal/engine/builtins"
	"resolvecore/internal/engine/index"
	"resolvecore/internal/engine/tree"
	"resolvecore/internal/shared/observability"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Options struct {
	// CacheCapacity bounds the class member scope cache of each module.
	CacheCapacity int
	// StubMode builds files without bodies until a stage needs them.
	StubMode bool
	// Dependencies are library modules visible to the session module.
	Dependencies []*index.Module
	Positions    PositionMapper
	Logger       *slog.Logger
	Arena        *tree.SymbolArena
}

// Session is the store of one compilation session. Every entry point takes
// the session lock, so a drive is never observed half-way.
type Session struct {
	mu        sync.Mutex
	id        uuid.UUID
	module    *index.Module
	langMod   *index.Module
	builtins  *builtins.Builtins
	arena     *tree.SymbolArena
	sources   SourceSet
	builder   Builder
	positions PositionMapper
	pipeline  *Pipeline
	guard     *stageGuard
	diags     *Diagnostics
	stubMode  bool
	logger    *slog.Logger
}

func NewSession(name string, sources SourceSet, builder Builder, opts Options) *Session {
	if opts.CacheCapacity <= 0 {
		opts.CacheCapacity = 256
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Positions == nil {
		opts.Positions = declPositions{}
	}
	if opts.Arena == nil {
		opts.Arena = tree.NewSymbolArena()
	}

	s := &Session{
		id:        uuid.New(),
		arena:     opts.Arena,
		sources:   sources,
		builder:   builder,
		positions: opts.Positions,
		guard:     newStageGuard(),
		diags:     &Diagnostics{},
		stubMode:  opts.StubMode,
	}
	s.logger = opts.Logger.With("session", s.id.String(), "module", name)

	s.builtins = builtins.New(s.arena)
	s.langMod = index.NewModule(builtins.Package, opts.CacheCapacity)
	s.langMod.Provider().RecordFile(s.builtins.File)

	s.module = index.NewModule(name, opts.CacheCapacity)
	s.module.AddDependency(opts.Dependencies...)
	s.module.AddDependency(s.langMod)

	s.pipeline = NewPipeline(s.logger,
		&importResolveTransformer{s: s},
		&supertypeResolveTransformer{s: s},
		&typeResolveTransformer{s: s},
		&statusResolveTransformer{s: s},
		&implicitTypeTransformer{s: s},
		&bodyResolveTransformer{s: s},
	)
	return s
}

func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) Module() *index.Module { return s.module }

func (s *Session) Builtins() *builtins.Builtins { return s.builtins }

func (s *Session) Pipeline() *Pipeline { return s.pipeline }

// Diagnostics returns a snapshot of the diagnostics reported so far.
func (s *Session) Diagnostics() *Diagnostics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &Diagnostics{items: s.diags.Items()}
}

// ResolveToStage brings the whole file at path to stage.
func (s *Session) ResolveToStage(ctx context.Context, path string, stage tree.Stage) (*tree.File, error) {
	ctx, span := observability.Tracer.Start(ctx, "Session.ResolveToStage", trace.WithAttributes(
		observability.AttrPath.String(path),
		observability.AttrStage.String(stage.String()),
	))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureIndexed()
	f, err := s.fileAt(ctx, path, stage)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	s.logger.Debug("resolved file", "path", path, "stage", stage.String())
	return f, nil
}

// ResolveDeclaration brings one declaration to stage along its designated
// path, leaving unrelated siblings and the file's aggregate stage alone. A
// declaration of a stub tree asked for bodies is returned from the rebuilt
// tree instead.
func (s *Session) ResolveDeclaration(ctx context.Context, d tree.Declaration, stage tree.Stage) (tree.Declaration, error) {
	ctx, span := observability.Tracer.Start(ctx, "Session.ResolveDeclaration", trace.WithAttributes(
		observability.AttrDecl.String(describe(d)),
		observability.AttrStage.String(stage.String()),
	))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureIndexed()
	resolved, err := s.resolveDesignated(ctx, d, stage)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return resolved, nil
}

// FindDeclaration drives the file at path to stage and returns the callable
// or class named by qualifiedName, given either relative to the file's
// package or fully qualified.
func (s *Session) FindDeclaration(ctx context.Context, path, qualifiedName string, stage tree.Stage) (tree.Declaration, error) {
	ctx, span := observability.Tracer.Start(ctx, "Session.FindDeclaration", trace.WithAttributes(
		observability.AttrPath.String(path),
		observability.AttrDecl.String(qualifiedName),
	))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureIndexed()
	f, err := s.fileAt(ctx, path, stage)
	if err != nil {
		return nil, err
	}
	d, err := s.findInPackage(f, qualifiedName)
	if err != nil {
		err = errors.AddContext(err, errors.CtxPath, path)
		err = errors.AddContext(err, errors.CtxStage, stage.String())
		span.RecordError(err)
		return nil, err
	}
	return s.resolveDesignated(ctx, d, stage)
}

// Invalidate evicts the files at paths together with every file that
// depends on them. They are rebuilt on the next request.
func (s *Session) Invalidate(paths ...string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []string
	for _, p := range paths {
		evicted = append(evicted, s.module.Provider().Invalidate(p)...)
	}
	s.diags.Drop(evicted...)
	if len(evicted) > 0 {
		s.logger.Info("invalidated files", "requested", len(paths), "evicted", len(evicted))
	}
	return evicted
}

// ensureIndexed builds every source not yet in the index. A failing file is
// logged and skipped so it does not block the others.
func (s *Session) ensureIndexed() {
	mode := tree.BuildNormal
	if s.stubMode {
		mode = tree.BuildStub
	}
	for _, path := range s.sources.Paths() {
		if _, ok := s.module.Provider().File(path); ok {
			continue
		}
		if _, err := s.build(path, mode); err != nil {
			s.logger.Warn("failed to build file", "path", path, "error", err)
		}
	}
}

func (s *Session) build(path string, mode tree.BuildMode) (*tree.File, error) {
	src, err := s.sources.Source(path)
	if err != nil {
		err = errors.Wrap(err, errors.CodeLookupFailure, "no backing source")
		return nil, errors.AddContext(err, errors.CtxPath, path)
	}
	f, err := s.builder.BuildFile(src, mode, s.arena)
	if err != nil {
		err = errors.Wrap(err, errors.CodeInternal, "build failed")
		return nil, errors.AddContext(err, errors.CtxPath, path)
	}
	f.Mode = mode
	tree.Link(f, nil)
	s.module.Provider().RecordFile(f)
	observability.IndexBuilds.WithLabelValues(mode.String()).Inc()
	s.logger.Debug("built file", "path", path, "mode", mode.String())
	return f, nil
}

// fileAt returns the file at path at or above minStage, building it when
// absent and rebuilding it when a stub tree is asked for bodies.
func (s *Session) fileAt(ctx context.Context, path string, minStage tree.Stage) (*tree.File, error) {
	f, ok := s.module.Provider().File(path)
	needsBodies := minStage >= tree.StageImplicitTypes
	switch {
	case !ok:
		mode := tree.BuildNormal
		if s.stubMode && !needsBodies {
			mode = tree.BuildStub
		}
		built, err := s.build(path, mode)
		if err != nil {
			return nil, err
		}
		f = built
	case f.Mode == tree.BuildStub && needsBodies:
		rebuilt, err := s.rebuild(path)
		if err != nil {
			return nil, err
		}
		f = rebuilt
	}
	if f.Stage() < minStage {
		if err := s.drive(ctx, f, minStage); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// rebuild replaces a file with a full build. Dependents are evicted with it
// and rebuilt so no live tree keeps symbols of the discarded one.
func (s *Session) rebuild(path string) (*tree.File, error) {
	evicted := s.module.Provider().Invalidate(path)
	s.diags.Drop(evicted...)
	f, err := s.build(path, tree.BuildNormal)
	if err != nil {
		return nil, err
	}
	s.ensureIndexed()
	s.logger.Debug("rebuilt file with bodies", "path", path, "evicted", len(evicted))
	return f, nil
}

func (s *Session) drive(ctx context.Context, f *tree.File, stage tree.Stage) error {
	if err := s.pipeline.Run(ctx, f, stage); err != nil {
		return errors.AddContext(err, errors.CtxPath, f.Path)
	}
	return nil
}

// owns reports whether f is the live tree of a session source file.
func (s *Session) owns(f *tree.File) bool {
	if f == nil {
		return false
	}
	got, ok := s.module.Provider().File(f.Path)
	return ok && got == f
}

func (s *Session) stamp(d tree.Declaration, stage tree.Stage) {
	if d.Advance(stage) {
		observability.DeclarationsStamped.WithLabelValues(stage.String()).Inc()
	}
}

// stampTree advances root and its non-local member declarations.
func (s *Session) stampTree(root tree.Declaration, stage tree.Stage) {
	s.stamp(root, stage)
	eachMember(root, func(d tree.Declaration) { s.stamp(d, stage) })
}

func (s *Session) report(site tree.Declaration, code errors.ErrorCode, format string, args ...interface{}) {
	diag := Diagnostic{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Symbol:  describe(site),
	}
	if f := tree.FileOf(site); f != nil {
		diag.Path = f.Path
	}
	if pos, ok := s.positions.Position(site); ok {
		diag.Pos = pos
	}
	s.diags.Add(diag)
	observability.Diagnostics.Inc()
	s.logger.Warn("diagnostic", "path", diag.Path, "symbol", diag.Symbol, "message", diag.Message)
}

func (s *Session) recordDependency(site, target tree.Declaration) {
	from, to := tree.FileOf(site), tree.FileOf(target)
	if from == nil || to == nil || from == to || !s.owns(from) || !s.owns(to) {
		return
	}
	s.module.Provider().RecordDependency(from.Path, to.Path)
}

func (s *Session) findInPackage(f *tree.File, qualifiedName string) (tree.Declaration, error) {
	rel := qualifiedName
	if f.Package != "" && strings.HasPrefix(rel, f.Package+".") {
		rel = strings.TrimPrefix(rel, f.Package+".")
	}
	parts := strings.Split(rel, ".")
	name := parts[len(parts)-1]

	var owner *tree.ClassID
	if len(parts) > 1 {
		id := tree.NewClassID(f.Package, parts[:len(parts)-1]...)
		owner = &id
	}
	d, err := s.module.LookupCallable(f.Package, owner, name)
	if err == nil {
		return d, nil
	}
	if reason, _ := errors.ContextValue(err, errors.CtxReason); reason == errors.ReasonAmbiguous {
		return nil, err
	}
	if c, classErr := s.module.Class(tree.NewClassID(f.Package, parts...)); classErr == nil {
		return c, nil
	}
	return nil, errors.AddContext(err, errors.CtxSymbol, qualifiedName)
}

// eachMember calls fn for every non-local declaration below root in
// pre-order.
func eachMember(root tree.Declaration, fn func(tree.Declaration)) {
	tree.Inspect(root, func(n tree.Node) bool {
		d, ok := n.(tree.Declaration)
		if !ok {
			return false
		}
		if d != root {
			fn(d)
		}
		return true
	})
}
