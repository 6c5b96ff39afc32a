package scope

import (
	"resolvecore/internal/engine/tree"
)

// ImportingScope resolves names visible at file level. Lookup proceeds in
// priority order and stops at the first step that finds anything.
type ImportingScope struct {
	pkg      string
	imports  []*tree.Import
	provider Provider
	defaults []string
}

// NewImportingScope builds the file-level scope for f. defaultImports are
// packages star-imported into every file.
func NewImportingScope(f *tree.File, p Provider, defaultImports ...string) *ImportingScope {
	return &ImportingScope{
		pkg:      f.Package,
		imports:  f.Imports,
		provider: p,
		defaults: defaultImports,
	}
}

func (s *ImportingScope) Kind() string { return "imports:" + s.pkg }

func (s *ImportingScope) Classifiers(name string) []tree.Declaration {
	// 1. Explicit imports
	for _, imp := range s.imports {
		if imp.Star || imp.Kind != tree.ImportClass || imp.ImportedName() != name {
			continue
		}
		if found := classDecls(s.provider.Classes(tree.ClassID{Package: imp.Package, Relative: imp.Relative})); len(found) > 0 {
			return found
		}
	}

	// 2. Same package
	if found := classifiersIn(s.provider, s.pkg, name); len(found) > 0 {
		return found
	}

	// 3. Star imports
	var starred []tree.Declaration
	for _, imp := range s.imports {
		if !imp.Star {
			continue
		}
		switch imp.Kind {
		case tree.ImportPackage:
			starred = appendUnique(starred, classifiersIn(s.provider, imp.Package, name)...)
		case tree.ImportClass:
			nested := tree.ClassID{Package: imp.Package, Relative: imp.Relative}.Nested(name)
			starred = appendUnique(starred, classDecls(s.provider.Classes(nested))...)
		}
	}
	if len(starred) > 0 {
		return starred
	}

	// 4. Default imports
	for _, pkg := range s.defaults {
		if found := classifiersIn(s.provider, pkg, name); len(found) > 0 {
			return found
		}
	}
	return nil
}

func (s *ImportingScope) Callables(name string) []tree.Declaration {
	// 1. Explicit imports
	var explicit []tree.Declaration
	for _, imp := range s.imports {
		if imp.Star || imp.Kind != tree.ImportCallable || imp.ImportedName() != name {
			continue
		}
		explicit = appendUnique(explicit, filterNamed(s.provider.TopLevel(imp.Package), imp.Relative, isCallable)...)
	}
	if len(explicit) > 0 {
		return explicit
	}

	// 2. Same package
	if found := filterNamed(s.provider.TopLevel(s.pkg), name, isCallable); len(found) > 0 {
		return found
	}

	// 3. Star imports
	var starred []tree.Declaration
	for _, imp := range s.imports {
		if imp.Star && imp.Kind == tree.ImportPackage {
			starred = appendUnique(starred, filterNamed(s.provider.TopLevel(imp.Package), name, isCallable)...)
		}
	}
	if len(starred) > 0 {
		return starred
	}

	// 4. Default imports
	for _, pkg := range s.defaults {
		if found := filterNamed(s.provider.TopLevel(pkg), name, isCallable); len(found) > 0 {
			return found
		}
	}
	return nil
}

func appendUnique(dst []tree.Declaration, src ...tree.Declaration) []tree.Declaration {
outer:
	for _, d := range src {
		for _, existing := range dst {
			if existing == d {
				continue outer
			}
		}
		dst = append(dst, d)
	}
	return dst
}
