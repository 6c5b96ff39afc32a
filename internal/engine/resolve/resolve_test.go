package resolve

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"resolvecore/internal/core/errors"
	"resolvecore/internal/engine/tree"
	tt "resolvecore/internal/engine/tree/treetest"
	"resolvecore/internal/shared/observability"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T, p *tt.Project, stub bool) *Session {
	t.Helper()
	return NewSession("test", p, p, Options{
		StubMode: stub,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func findDecl(t *testing.T, s *Session, path, name string) tree.Declaration {
	t.Helper()
	d, err := s.FindDeclaration(context.Background(), path, name, tree.StageRaw)
	require.NoError(t, err)
	return d
}

func resolveFile(t *testing.T, s *Session, path string, stage tree.Stage) *tree.File {
	t.Helper()
	f, err := s.ResolveToStage(context.Background(), path, stage)
	require.NoError(t, err)
	return f
}

func typeOf(t *testing.T, ref tree.TypeRef) tree.Type {
	t.Helper()
	got := tree.TypeOf(ref)
	require.NotNil(t, got, "type reference %T is not resolved", ref)
	return got
}

func TestResolveToStage_ParameterAndImplicitReturn(t *testing.T) {
	p := tt.NewProject().Add("a.kt", func(f *tt.Factory) *tree.File {
		return f.File("a.kt", "demo", nil,
			f.Fun("f", f.Params(f.Param("x", tt.Type("Int"))), tt.Implicit(), tt.Ret(tt.Get("x"))),
		)
	})
	s := newTestSession(t, p, false)

	file := resolveFile(t, s, "a.kt", tree.StageDeclarations)
	fn := file.Decls[0].(*tree.Function)
	assert.Equal(t, tree.StageDeclarations, file.Stage())
	assert.Equal(t, tree.StageDeclarations, fn.Stage())
	assert.True(t, tree.SameType(s.Builtins().IntType(), typeOf(t, fn.Params[0].Type)))
	assert.IsType(t, &tree.ImplicitTypeRef{}, fn.ReturnType, "return type stays pending before IMPLICIT_TYPES")

	resolveFile(t, s, "a.kt", tree.StageImplicitTypes)
	assert.True(t, tree.SameType(s.Builtins().IntType(), typeOf(t, fn.ReturnType)))

	ret := fn.Body.Statements[0].(*tree.Return)
	get := ret.Value.(*tree.GetValue)
	assert.Same(t, fn.Params[0].Sym, get.Symbol)
	assert.Same(t, fn.Sym, ret.Target.Symbol)
	assert.Zero(t, s.Diagnostics().Len())
}

func TestResolveToStage_VarargBecomesArray(t *testing.T) {
	p := tt.NewProject().Add("a.kt", func(f *tt.Factory) *tree.File {
		return f.File("a.kt", "demo", nil,
			f.Fun("g", f.Params(f.VarargParam("xs", tt.Type("String"))), tt.Type("Unit")),
		)
	})
	s := newTestSession(t, p, false)

	file := resolveFile(t, s, "a.kt", tree.StageDeclarations)
	param := file.Decls[0].(*tree.Function).Params[0]

	arr := typeOf(t, param.Type)
	require.True(t, s.Builtins().IsArray(arr), "got %s", arr)
	assert.True(t, tree.SameType(s.Builtins().StringType(), arr.(*tree.ClassType).Args[0]))
	assert.True(t, tree.SameType(s.Builtins().StringType(), typeOf(t, param.ElementType)))
}

func TestResolveToStage_MostDerivedMemberWins(t *testing.T) {
	p := tt.NewProject().Add("a.kt", func(f *tt.Factory) *tree.File {
		return f.File("a.kt", "demo", nil,
			f.Class("B", nil,
				f.Fun("m", nil, tt.Type("Int"), tt.Ret(tt.Int(1))),
			),
			f.Class("A", tt.Types(tt.Type("B")),
				f.Fun("m", nil, tt.Type("String"), tt.Ret(tt.Str("a"))),
				f.Fun("g", nil, tt.Implicit(), tt.Ret(tt.Call("m"))),
			),
		)
	})
	s := newTestSession(t, p, false)

	file := resolveFile(t, s, "a.kt", tree.StageExpressions)
	a := file.Decls[1].(*tree.Class)
	am := a.Members[0].(*tree.Function)
	g := a.Members[1].(*tree.Function)

	call := g.Body.Statements[0].(*tree.Return).Value.(*tree.Call)
	assert.Same(t, am.Sym, call.Symbol)
	assert.True(t, tree.SameType(s.Builtins().StringType(), typeOf(t, g.ReturnType)))
	assert.Equal(t, tree.StageExpressions, a.Stage())
}

func TestResolveToStage_InheritedNestedClassifier(t *testing.T) {
	p := tt.NewProject().Add("a.kt", func(f *tt.Factory) *tree.File {
		return f.File("a.kt", "demo", nil,
			f.Class("A", tt.Types(tt.Type("B")),
				f.Fun("f", nil, tt.Type("N")),
			),
			f.Class("B", nil, f.Class("N", nil)),
		)
	})
	s := newTestSession(t, p, false)

	file := resolveFile(t, s, "a.kt", tree.StageDeclarations)
	fn := file.Decls[0].(*tree.Class).Members[0].(*tree.Function)

	got, ok := typeOf(t, fn.ReturnType).(*tree.ClassType)
	require.True(t, ok)
	assert.Equal(t, "demo/B.N", got.ID.String())
	assert.Zero(t, s.Diagnostics().Len())
}

func TestResolveToStage_TypeParametersDoNotLeak(t *testing.T) {
	p := tt.NewProject().Add("a.kt", func(f *tt.Factory) *tree.File {
		return f.File("a.kt", "demo", nil,
			tt.Generic(f.Fun("a", f.Params(f.Param("x", tt.Type("T"))), tt.Type("Unit")), f.TypeParam("T")),
			f.Fun("b", f.Params(f.Param("y", tt.Type("T"))), tt.Type("Unit")),
		)
	})
	s := newTestSession(t, p, false)

	file := resolveFile(t, s, "a.kt", tree.StageDeclarations)
	a := file.Decls[0].(*tree.Function)
	b := file.Decls[1].(*tree.Function)

	assert.IsType(t, &tree.TypeParameterType{}, typeOf(t, a.Params[0].Type))
	assert.IsType(t, &tree.ErrorTypeRef{}, b.Params[0].Type)
	require.Equal(t, 1, s.Diagnostics().Len())
	assert.Equal(t, errors.CodeLookupFailure, s.Diagnostics().Items()[0].Code)
}

func TestResolveToStage_Idempotent(t *testing.T) {
	p := tt.NewProject().Add("a.kt", func(f *tt.Factory) *tree.File {
		return f.File("a.kt", "demo", nil,
			f.Fun("f", nil, tt.Implicit(), tt.Ret(tt.Int(1))),
		)
	})
	s := newTestSession(t, p, false)

	first := resolveFile(t, s, "a.kt", tree.StageExpressions)
	fn := first.Decls[0].(*tree.Function)
	ret := fn.ReturnType

	second := resolveFile(t, s, "a.kt", tree.StageExpressions)
	assert.Same(t, first, second)
	assert.Same(t, ret, fn.ReturnType)
	assert.Equal(t, 1, p.BuildCount("a.kt"))

	// Asking for a lower stage never lowers anything.
	third := resolveFile(t, s, "a.kt", tree.StageSuperTypes)
	assert.Equal(t, tree.StageExpressions, third.Stage())
	assert.Equal(t, tree.StageExpressions, fn.Stage())
}

func TestResolveToStage_UnknownStageIsNoop(t *testing.T) {
	p := tt.NewProject().Add("a.kt", func(f *tt.Factory) *tree.File {
		return f.File("a.kt", "demo", nil, f.Fun("f", nil, tt.Type("Unit")))
	})
	s := newTestSession(t, p, false)

	file := resolveFile(t, s, "a.kt", tree.Stage(42))
	assert.Equal(t, tree.StageRaw, file.Stage())
}

func TestPipeline_TransformersFor(t *testing.T) {
	s := newTestSession(t, tt.NewProject(), false)

	names := func(stage tree.Stage) []string {
		var out []string
		for _, tr := range s.Pipeline().TransformersFor(stage) {
			out = append(out, tr.Name())
		}
		return out
	}

	tests := []struct {
		stage tree.Stage
		want  []string
	}{
		{tree.StageRaw, nil},
		{tree.StageSuperTypes, []string{"imports", "supertypes"}},
		{tree.StageDeclarations, []string{"imports", "supertypes", "types", "status"}},
		{tree.StageImplicitTypes, []string{"imports", "supertypes", "types", "status", "implicit-types"}},
		{tree.StageExpressions, []string{"imports", "supertypes", "types", "status", "implicit-types", "bodies"}},
		{tree.Stage(-1), nil},
	}
	for _, tc := range tests {
		t.Run(tc.stage.String(), func(t *testing.T) {
			assert.Equal(t, tc.want, names(tc.stage))
		})
	}

	got := s.Pipeline().TransformersFor(tree.Stage(99))
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestResolveDeclaration_DesignatedPathOnly(t *testing.T) {
	p := tt.NewProject().Add("c.kt", func(f *tt.Factory) *tree.File {
		return f.File("c.kt", "demo", nil,
			f.Class("C", nil,
				f.Fun("a", nil, tt.Implicit(), tt.Ret(tt.Int(1))),
				f.Fun("b", nil, tt.Implicit(), tt.Ret(tt.Str("b"))),
			),
		)
	})
	s := newTestSession(t, p, false)
	ctx := context.Background()

	a := findDecl(t, s, "c.kt", "C.a").(*tree.Function)
	b := findDecl(t, s, "c.kt", "demo.C.b").(*tree.Function)

	got, err := s.ResolveDeclaration(ctx, a, tree.StageExpressions)
	require.NoError(t, err)
	assert.Same(t, a, got)

	file := tree.FileOf(a)
	c := a.Parent().(*tree.Class)
	assert.Equal(t, tree.StageExpressions, a.Stage())
	assert.True(t, tree.SameType(s.Builtins().IntType(), typeOf(t, a.ReturnType)))
	assert.GreaterOrEqual(t, c.Stage(), tree.StageDeclarations, "enclosing class header is resolved first")
	assert.Less(t, c.Stage(), tree.StageExpressions)
	assert.Equal(t, tree.StageRaw, b.Stage())
	assert.IsType(t, &tree.ImplicitTypeRef{}, b.ReturnType)
	assert.Equal(t, tree.StageRaw, file.Stage())
}

func TestResolveDeclaration_ParameterResolvesItsFunction(t *testing.T) {
	p := tt.NewProject().Add("a.kt", func(f *tt.Factory) *tree.File {
		return f.File("a.kt", "demo", nil,
			f.Fun("f", f.Params(f.Param("x", tt.Type("Int"))), tt.Implicit(), tt.Ret(tt.Get("x"))),
		)
	})
	s := newTestSession(t, p, false)

	fn := findDecl(t, s, "a.kt", "f").(*tree.Function)
	_, err := s.ResolveDeclaration(context.Background(), fn.Params[0], tree.StageExpressions)
	require.NoError(t, err)
	assert.Equal(t, tree.StageExpressions, fn.Stage())
	assert.Equal(t, tree.StageExpressions, fn.Params[0].Stage())
}

func TestResolveDeclaration_StaleTree(t *testing.T) {
	p := tt.NewProject().Add("a.kt", func(f *tt.Factory) *tree.File {
		return f.File("a.kt", "demo", nil, f.Fun("f", nil, tt.Type("Unit")))
	})
	s := newTestSession(t, p, false)

	fn := findDecl(t, s, "a.kt", "f")
	s.Invalidate("a.kt")

	_, err := s.ResolveDeclaration(context.Background(), fn, tree.StageDeclarations)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeLookupFailure))
	reason, _ := errors.ContextValue(err, errors.CtxReason)
	assert.Equal(t, errors.ReasonStale, reason)
}

func TestFindDeclaration_NotFound(t *testing.T) {
	p := tt.NewProject().Add("a.kt", func(f *tt.Factory) *tree.File {
		return f.File("a.kt", "demo", nil, f.Fun("f", nil, tt.Type("Unit")))
	})
	s := newTestSession(t, p, false)

	_, err := s.FindDeclaration(context.Background(), "a.kt", "missing", tree.StageDeclarations)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeLookupFailure))
	path, ok := errors.ContextValue(err, errors.CtxPath)
	require.True(t, ok)
	assert.Equal(t, "a.kt", path)

	_, err = s.FindDeclaration(context.Background(), "nowhere.kt", "f", tree.StageDeclarations)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeLookupFailure))
}

func TestResolveToStage_CyclicSupertypes(t *testing.T) {
	p := tt.NewProject().Add("a.kt", func(f *tt.Factory) *tree.File {
		return f.File("a.kt", "demo", nil,
			f.Class("A", tt.Types(tt.Type("B"))),
			f.Class("B", tt.Types(tt.Type("A"))),
		)
	})
	s := newTestSession(t, p, false)

	file := resolveFile(t, s, "a.kt", tree.StageDeclarations)
	a := file.Decls[0].(*tree.Class)
	b := file.Decls[1].(*tree.Class)

	assert.Same(t, b.Sym, typeOf(t, a.SuperTypes[0]).(*tree.ClassType).Symbol)
	assert.IsType(t, &tree.ErrorTypeRef{}, b.SuperTypes[0])

	diags := s.Diagnostics().Items()
	require.Len(t, diags, 1)
	assert.Equal(t, errors.CodeStageViolation, diags[0].Code)
	assert.Equal(t, "a.kt", diags[0].Path)
}

func TestResolveToStage_RecursiveImplicitType(t *testing.T) {
	p := tt.NewProject().Add("a.kt", func(f *tt.Factory) *tree.File {
		return f.File("a.kt", "demo", nil,
			f.Fun("f", nil, tt.Implicit(), tt.Ret(tt.Call("f"))),
		)
	})
	s := newTestSession(t, p, false)

	file := resolveFile(t, s, "a.kt", tree.StageExpressions)
	fn := file.Decls[0].(*tree.Function)

	assert.IsType(t, &tree.ErrorType{}, typeOf(t, fn.ReturnType))
	diags := s.Diagnostics().Items()
	require.Len(t, diags, 1)
	assert.Equal(t, errors.CodeStageViolation, diags[0].Code)
}

func TestResolveToStage_UnsupportedExpression(t *testing.T) {
	p := tt.NewProject().Add("a.kt", func(f *tt.Factory) *tree.File {
		return f.File("a.kt", "demo", nil,
			f.Fun("f", nil, tt.Type("Unit"), &opaqueExpr{}),
		)
	})
	s := newTestSession(t, p, false)

	_, err := s.ResolveToStage(context.Background(), "a.kt", tree.StageExpressions)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeUnsupportedElement))
	path, _ := errors.ContextValue(err, errors.CtxPath)
	assert.Equal(t, "a.kt", path)
}

type opaqueExpr struct {
	tree.ExprBase
}

func TestResolveToStage_Imports(t *testing.T) {
	p := tt.NewProject().
		Add("lib/util.kt", func(f *tt.Factory) *tree.File {
			return f.File("lib/util.kt", "lib", nil,
				f.Class("Helper", nil),
				f.Fun("helper", nil, tt.Type("Int"), tt.Ret(tt.Int(0))),
			)
		}).
		Add("app/main.kt", func(f *tt.Factory) *tree.File {
			return f.File("app/main.kt", "app", []string{"lib.Helper", "lib.helper", "lib.*", "nowhere.Thing"},
				f.Fun("run", f.Params(f.Param("h", tt.Type("Helper"))), tt.Implicit(), tt.Ret(tt.Call("helper"))),
			)
		})
	s := newTestSession(t, p, false)

	file := resolveFile(t, s, "app/main.kt", tree.StageExpressions)
	kinds := make([]tree.ImportKind, len(file.Imports))
	for i, imp := range file.Imports {
		kinds[i] = imp.Kind
	}
	assert.Equal(t, []tree.ImportKind{tree.ImportClass, tree.ImportCallable, tree.ImportPackage, tree.ImportInvalid}, kinds)

	run := file.Decls[0].(*tree.Function)
	helperType := typeOf(t, run.Params[0].Type).(*tree.ClassType)
	assert.Equal(t, "lib/Helper", helperType.ID.String())
	assert.True(t, tree.SameType(s.Builtins().IntType(), typeOf(t, run.ReturnType)))

	diags := s.Diagnostics().ForPath("app/main.kt")
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Message, "nowhere.Thing")
}

func TestInvalidate_RebuildsDependents(t *testing.T) {
	p := tt.NewProject().
		Add("a.kt", func(f *tt.Factory) *tree.File {
			return f.File("a.kt", "demo", nil, f.Class("Base", nil))
		}).
		Add("b.kt", func(f *tt.Factory) *tree.File {
			return f.File("b.kt", "demo", nil, f.Class("Derived", tt.Types(tt.Type("Base"))))
		})
	s := newTestSession(t, p, false)

	before := resolveFile(t, s, "b.kt", tree.StageSuperTypes)
	evicted := s.Invalidate("a.kt")
	assert.ElementsMatch(t, []string{"a.kt", "b.kt"}, evicted)

	after := resolveFile(t, s, "b.kt", tree.StageSuperTypes)
	assert.NotSame(t, before, after)
	assert.Equal(t, 2, p.BuildCount("a.kt"))
	assert.Equal(t, 2, p.BuildCount("b.kt"))

	base := findDecl(t, s, "a.kt", "Base").(*tree.Class)
	derived := after.Decls[0].(*tree.Class)
	assert.Same(t, base.Sym, typeOf(t, derived.SuperTypes[0]).(*tree.ClassType).Symbol)
}

func TestStubMode_RebuildsForBodies(t *testing.T) {
	p := tt.NewProject().Add("a.kt", func(f *tt.Factory) *tree.File {
		return f.File("a.kt", "demo", nil,
			f.Fun("f", nil, tt.Implicit(), tt.Ret(tt.Str("s"))),
		)
	})
	s := newTestSession(t, p, true)

	stub := resolveFile(t, s, "a.kt", tree.StageDeclarations)
	assert.Equal(t, tree.BuildStub, stub.Mode)
	assert.Nil(t, stub.Decls[0].(*tree.Function).Body)

	full := resolveFile(t, s, "a.kt", tree.StageExpressions)
	assert.Equal(t, tree.BuildNormal, full.Mode)
	assert.Equal(t, []tree.BuildMode{tree.BuildStub, tree.BuildNormal}, p.Builds["a.kt"])

	fn := full.Decls[0].(*tree.Function)
	require.NotNil(t, fn.Body)
	assert.True(t, tree.SameType(s.Builtins().StringType(), typeOf(t, fn.ReturnType)))
}

func TestStubMode_DesignatedDeclarationIsRelocated(t *testing.T) {
	p := tt.NewProject().Add("a.kt", func(f *tt.Factory) *tree.File {
		return f.File("a.kt", "demo", nil,
			f.Class("C", nil, f.Fun("f", nil, tt.Implicit(), tt.Ret(tt.Int(2)))),
		)
	})
	s := newTestSession(t, p, true)

	stubFn := findDecl(t, s, "a.kt", "C.f")
	got, err := s.ResolveDeclaration(context.Background(), stubFn, tree.StageExpressions)
	require.NoError(t, err)

	fn := got.(*tree.Function)
	assert.NotSame(t, stubFn, got)
	assert.Equal(t, "f", fn.Name)
	assert.Equal(t, tree.BuildNormal, tree.FileOf(fn).Mode)
	assert.True(t, tree.SameType(s.Builtins().IntType(), typeOf(t, fn.ReturnType)))
}

func TestBodies_LoopsLocalsAndConstructors(t *testing.T) {
	var loop *tree.WhileLoop
	var brk *tree.Break
	p := tt.NewProject().Add("a.kt", func(f *tt.Factory) *tree.File {
		brk = tt.Break(nil)
		loop = tt.While(tt.Bool(true), brk)
		return f.File("a.kt", "demo", nil,
			f.Class("Point", nil, f.Ctor(f.Param("x", tt.Type("Int")))),
			f.Fun("f", nil, tt.Implicit(),
				tt.Decl(f.Local("p", nil, tt.Call("Point", tt.Int(1)))),
				loop,
				tt.Ret(tt.Get("p")),
			),
		)
	})
	s := newTestSession(t, p, false)

	file := resolveFile(t, s, "a.kt", tree.StageExpressions)
	point := file.Decls[0].(*tree.Class)
	fn := file.Decls[1].(*tree.Function)

	assert.Same(t, loop, brk.Loop)

	local := fn.Body.Statements[0].(*tree.DeclStmt).Decl.(*tree.Variable)
	ctorCall, ok := local.Initializer.(*tree.ConstructorCall)
	require.True(t, ok, "call of a class name becomes a constructor call, got %T", local.Initializer)
	assert.Same(t, point.Members[0].Symbol(), ctorCall.Symbol)
	assert.Same(t, point.Sym, typeOf(t, local.Type).(*tree.ClassType).Symbol)
	assert.Same(t, point.Sym, typeOf(t, fn.ReturnType).(*tree.ClassType).Symbol)
	assert.Zero(t, s.Diagnostics().Len())
}

func TestStatusResolution(t *testing.T) {
	p := tt.NewProject().Add("a.kt", func(f *tt.Factory) *tree.File {
		over := f.Fun("run", nil, tt.Type("Unit"), tt.Ret(nil))
		over.Annotations = []tree.Annotation{{Name: "override"}}
		return f.File("a.kt", "demo", nil,
			f.Interface("Task", nil,
				f.Fun("run", nil, tt.Type("Unit")),
				f.Fun("name", nil, tt.Type("String"), tt.Ret(tt.Str("task"))),
			),
			f.Class("Job", tt.Types(tt.Type("Task")), over),
		)
	})
	s := newTestSession(t, p, false)

	file := resolveFile(t, s, "a.kt", tree.StageDeclarations)
	task := file.Decls[0].(*tree.Class)
	job := file.Decls[1].(*tree.Class)

	assert.Equal(t, tree.ModalityAbstract, task.Modality)
	assert.Equal(t, tree.ModalityAbstract, task.Members[0].(*tree.Function).Modality)
	assert.Equal(t, tree.ModalityOpen, task.Members[1].(*tree.Function).Modality)
	assert.Equal(t, tree.ModalityFinal, job.Modality)

	run := job.Members[0].(*tree.Function)
	assert.Equal(t, tree.VisibilityPublic, run.Visibility)
	assert.True(t, run.Override)
}

func TestDiagnostics_Err(t *testing.T) {
	var d Diagnostics
	assert.NoError(t, d.Err())

	d.Add(Diagnostic{Path: "a.kt", Message: "first"})
	d.Add(Diagnostic{Path: "b.kt", Pos: tree.Position{Line: 3, Column: 1}, Message: "second", Symbol: "demo/C"})
	err := d.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first")
	assert.Contains(t, err.Error(), "second")

	d.Drop("a.kt")
	assert.Equal(t, 1, d.Len())
	assert.Len(t, d.ForPath("b.kt"), 1)
}

func TestStageGuard(t *testing.T) {
	g := newStageGuard()
	fn := &tree.Function{DeclBase: tree.DeclBase{Name: "f"}}

	require.NoError(t, g.enter(fn, tree.StageDeclarations, phaseHeader))
	err := g.enter(fn, tree.StageDeclarations, phaseHeader)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeStageViolation))

	assert.NoError(t, g.enter(fn, tree.StageDeclarations, phaseImplicit), "phases are independent")
	assert.Equal(t, 2, g.depth())

	g.exit(fn, tree.StageDeclarations, phaseHeader)
	assert.False(t, g.inProgress(fn, tree.StageDeclarations, phaseHeader))
	assert.NoError(t, g.enter(fn, tree.StageDeclarations, phaseHeader))
}

func TestNewSession_BuiltinsFileRecorded(t *testing.T) {
	s := newTestSession(t, tt.NewProject(), false)

	require.NotNil(t, s.Builtins().File)
	assert.Equal(t, tree.StageExpressions, s.Builtins().File.Stage())
	recorded, ok := s.langMod.Provider().File(s.Builtins().File.Path)
	require.True(t, ok)
	assert.Same(t, s.Builtins().File, recorded)
}

func TestResolveToStage_ImplicitReturnTypeFromReturns(t *testing.T) {
	tests := []struct {
		name  string
		value tree.Expr
		want  func(s *Session) tree.Type
	}{
		{"bare return", nil, func(s *Session) tree.Type { return s.Builtins().UnitType() }},
		{"string return", tt.Str("x"), func(s *Session) tree.Type { return s.Builtins().StringType() }},
		{"int return", tt.Int(3), func(s *Session) tree.Type { return s.Builtins().IntType() }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := tt.NewProject().Add("a.kt", func(f *tt.Factory) *tree.File {
				return f.File("a.kt", "demo", nil,
					f.Fun("f", nil, tt.Implicit(), tt.Ret(tc.value)),
				)
			})
			s := newTestSession(t, p, false)

			file := resolveFile(t, s, "a.kt", tree.StageExpressions)
			fn := file.Decls[0].(*tree.Function)
			assert.True(t, tree.SameType(tc.want(s), typeOf(t, fn.ReturnType)))
			assert.Zero(t, s.Diagnostics().Len())
		})
	}
}

func TestPipeline_StampsOnlyWhenStageAdvances(t *testing.T) {
	f := tt.NewFactory(tree.NewSymbolArena())
	file := f.File("a.kt", "demo", nil)
	p := NewPipeline(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	counter := func(stage tree.Stage) float64 {
		return testutil.ToFloat64(observability.DeclarationsStamped.WithLabelValues(stage.String()))
	}

	before := counter(tree.StageSuperTypes)
	require.NoError(t, p.runStage(ctx, file, tree.StageSuperTypes))
	assert.Equal(t, before+1, counter(tree.StageSuperTypes))

	require.True(t, file.Advance(tree.StageDeclarations))
	before = counter(tree.StageSuperTypes)
	require.NoError(t, p.runStage(ctx, file, tree.StageSuperTypes))
	assert.Equal(t, before, counter(tree.StageSuperTypes), "a file already past the stage is not stamped again")
	assert.Equal(t, tree.StageDeclarations, file.Stage())
}

func TestBodies_InitBlocksAndDelegatingCalls(t *testing.T) {
	var (
		superCall *tree.DelegatingConstructorCall
		thisCall  *tree.DelegatingConstructorCall
		classRef  *tree.ClassReference
	)
	p := tt.NewProject().Add("a.kt", func(f *tt.Factory) *tree.File {
		superCall = tt.Super(tt.Get("a"))
		thisCall = tt.This(tt.Int(1))
		classRef = tt.ClassRef("Derived")

		primary := f.Ctor(f.Param("a", tt.Type("Int")))
		primary.Body = tt.Block(superCall)
		secondary := f.Ctor()
		secondary.Primary = false
		secondary.Body = tt.Block(thisCall)

		return f.File("a.kt", "demo", nil,
			f.Class("Base", nil, f.Ctor(f.Param("x", tt.Type("Int")))),
			f.Class("Derived", tt.Types(tt.Type("Base")),
				f.Prop("nums", tt.Type("Array", tt.Type("Int")), nil),
				f.Init(
					tt.Decl(f.Local("all", nil, &tree.Vararg{Elements: []tree.Expr{tt.Spread(tt.Get("nums")), tt.Int(4)}})),
					tt.Decl(f.Local("k", nil, classRef)),
				),
				primary,
				secondary,
			),
		)
	})
	s := newTestSession(t, p, false)

	file := resolveFile(t, s, "a.kt", tree.StageExpressions)
	base := file.Decls[0].(*tree.Class)
	derived := file.Decls[1].(*tree.Class)
	initBlock := derived.Members[1].(*tree.AnonymousInitializer)

	assert.Equal(t, tree.StageExpressions, initBlock.Stage())
	all := initBlock.Body.Statements[0].(*tree.DeclStmt).Decl.(*tree.Variable)
	assert.True(t, tree.SameType(s.Builtins().ArrayOf(s.Builtins().IntType()), typeOf(t, all.Type)))
	assert.Same(t, derived.Sym, classRef.Symbol)

	assert.Same(t, base.Members[0].Symbol(), superCall.Symbol)
	assert.Same(t, derived.Members[2].Symbol(), thisCall.Symbol, "this(...) never binds its own constructor")
	assert.Zero(t, s.Diagnostics().Len())
}

func TestBodies_DelegatingCallWithoutMatchingConstructor(t *testing.T) {
	p := tt.NewProject().Add("a.kt", func(f *tt.Factory) *tree.File {
		ctor := f.Ctor()
		ctor.Body = tt.Block(tt.Super(tt.Int(1), tt.Int(2)))
		return f.File("a.kt", "demo", nil, f.Class("Lonely", nil, ctor))
	})
	s := newTestSession(t, p, false)

	file := resolveFile(t, s, "a.kt", tree.StageExpressions)
	ctor := file.Decls[0].(*tree.Class).Members[0].(*tree.Constructor)
	assert.IsType(t, &tree.ErrorExpr{}, ctor.Body.Statements[0])
	assert.Equal(t, 1, s.Diagnostics().Len())
}
