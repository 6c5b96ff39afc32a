package tree

import (
	"fmt"
	"strings"
)

// Stage is the resolution milestone a declaration or file has reached.
// Stages are totally ordered and a declaration's stage never decreases.
type Stage int

const (
	StageRaw Stage = iota
	StageSuperTypes
	StageDeclarations
	StageImplicitTypes
	StageExpressions
)

var stageNames = [...]string{
	StageRaw:           "RAW",
	StageSuperTypes:    "SUPER_TYPES",
	StageDeclarations:  "DECLARATIONS",
	StageImplicitTypes: "IMPLICIT_TYPES",
	StageExpressions:   "EXPRESSIONS",
}

func (s Stage) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

func (s Stage) Valid() bool {
	return s >= StageRaw && s <= StageExpressions
}

// Stages returns every stage in pipeline order.
func Stages() []Stage {
	return []Stage{StageRaw, StageSuperTypes, StageDeclarations, StageImplicitTypes, StageExpressions}
}

func ParseStage(name string) (Stage, error) {
	normalized := strings.ToUpper(strings.TrimSpace(name))
	for i, n := range stageNames {
		if n == normalized {
			return Stage(i), nil
		}
	}
	return StageRaw, fmt.Errorf("unknown resolve stage %q", name)
}

// BuildMode selects how much of a source file the builder materialises.
type BuildMode int

const (
	BuildNormal BuildMode = iota
	// BuildStub skips function bodies and initializers.
	BuildStub
)

func (m BuildMode) String() string {
	if m == BuildStub {
		return "stub"
	}
	return "normal"
}

// Source is the raw text handed to the tree builder.
type Source struct {
	Path string
	Text []byte
}

type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}
