package tree

import "strings"

// ClassID names a classifier by package and dot-separated relative name,
// printed as "pkg.name/Outer.Inner".
type ClassID struct {
	Package  string
	Relative string
	Local    bool
}

func NewClassID(pkg string, names ...string) ClassID {
	return ClassID{Package: pkg, Relative: strings.Join(names, ".")}
}

// ParseClassID reads the "pkg/Outer.Inner" form.
func ParseClassID(s string) ClassID {
	i := strings.LastIndex(s, "/")
	if i < 0 {
		return ClassID{Relative: s}
	}
	return ClassID{Package: s[:i], Relative: s[i+1:]}
}

func (c ClassID) String() string {
	if c.Local {
		return "<local>/" + c.Relative
	}
	return c.Package + "/" + c.Relative
}

func (c ClassID) IsZero() bool {
	return c.Package == "" && c.Relative == ""
}

func (c ClassID) ShortName() string {
	if i := strings.LastIndex(c.Relative, "."); i >= 0 {
		return c.Relative[i+1:]
	}
	return c.Relative
}

func (c ClassID) Nested(name string) ClassID {
	return ClassID{Package: c.Package, Relative: c.Relative + "." + name, Local: c.Local}
}

// Outer returns the enclosing class ID for a nested class.
func (c ClassID) Outer() (ClassID, bool) {
	i := strings.LastIndex(c.Relative, ".")
	if i < 0 {
		return ClassID{}, false
	}
	return ClassID{Package: c.Package, Relative: c.Relative[:i], Local: c.Local}, true
}

// FQName is the dotted fully qualified name.
func (c ClassID) FQName() string {
	if c.Package == "" {
		return c.Relative
	}
	return c.Package + "." + c.Relative
}
