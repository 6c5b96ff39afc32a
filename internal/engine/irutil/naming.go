package irutil

import (
	"path"
	"strings"

	"resolvecore/internal/engine/tree"

	"github.com/iancoleman/strcase"
)

// NamingPolicy chooses the name of every declaration copied by DeepCopy.
// Embed KeepNames to override only some kinds.
type NamingPolicy interface {
	ClassName(c *tree.Class) string
	FunctionName(fn *tree.Function) string
	FieldName(d tree.Declaration) string
	FileName(f *tree.File) string
	EnumEntryName(e *tree.EnumEntry) string
	VariableName(v *tree.Variable) string
	TypeParameterName(tp *tree.TypeParameter) string
	ValueParameterName(p *tree.ValueParameter) string
}

// KeepNames copies every name unchanged.
type KeepNames struct{}

func (KeepNames) ClassName(c *tree.Class) string { return c.Name }
func (KeepNames) FunctionName(fn *tree.Function) string { return fn.Name }
func (KeepNames) FieldName(d tree.Declaration) string { return d.Base().Name }
func (KeepNames) FileName(f *tree.File) string { return f.Name }
func (KeepNames) EnumEntryName(e *tree.EnumEntry) string { return e.Name }
func (KeepNames) VariableName(v *tree.Variable) string { return v.Name }
func (KeepNames) TypeParameterName(tp *tree.TypeParameter) string { return tp.Name }
func (KeepNames) ValueParameterName(p *tree.ValueParameter) string { return p.Name }

// SpecializationNames appends Suffix to classes, functions, fields and
// files, in the casing each kind uses: Box becomes BoxInt, get becomes
// getInt and box.kt becomes box_int.kt. Other names are kept.
type SpecializationNames struct {
	KeepNames
	Suffix string
}

func (p SpecializationNames) ClassName(c *tree.Class) string {
	if c.Companion || p.Suffix == "" {
		return c.Name
	}
	return strcase.ToCamel(c.Name + "_" + p.Suffix)
}

func (p SpecializationNames) FunctionName(fn *tree.Function) string {
	if p.Suffix == "" {
		return fn.Name
	}
	return strcase.ToLowerCamel(fn.Name + "_" + p.Suffix)
}

func (p SpecializationNames) FieldName(d tree.Declaration) string {
	if p.Suffix == "" {
		return d.Base().Name
	}
	return strcase.ToLowerCamel(d.Base().Name + "_" + p.Suffix)
}

func (p SpecializationNames) FileName(f *tree.File) string {
	if p.Suffix == "" {
		return f.Name
	}
	ext := path.Ext(f.Name)
	return strcase.ToSnake(strings.TrimSuffix(f.Name, ext)+"_"+p.Suffix) + ext
}
