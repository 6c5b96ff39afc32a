package treetest

import (
	"fmt"
	"sort"

	"resolvecore/internal/engine/tree"
)

// FileFunc produces the tree of one source file.
type FileFunc func(f *Factory) *tree.File

// Project is an in-memory source set and tree builder. Each source path maps
// to a FileFunc; building a path runs it with the session's arena.
type Project struct {
	files  map[string]FileFunc
	Builds map[string][]tree.BuildMode
}

func NewProject() *Project {
	return &Project{
		files:  make(map[string]FileFunc),
		Builds: make(map[string][]tree.BuildMode),
	}
}

func (p *Project) Add(path string, fn FileFunc) *Project {
	p.files[path] = fn
	return p
}

func (p *Project) Remove(path string) {
	delete(p.files, path)
}

func (p *Project) Paths() []string {
	out := make([]string, 0, len(p.files))
	for path := range p.files {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

func (p *Project) Source(path string) (tree.Source, error) {
	if _, ok := p.files[path]; !ok {
		return tree.Source{}, fmt.Errorf("no source for %s", path)
	}
	return tree.Source{Path: path}, nil
}

func (p *Project) BuildFile(src tree.Source, mode tree.BuildMode, arena *tree.SymbolArena) (*tree.File, error) {
	fn, ok := p.files[src.Path]
	if !ok {
		return nil, fmt.Errorf("no source for %s", src.Path)
	}
	p.Builds[src.Path] = append(p.Builds[src.Path], mode)

	file := fn(NewFactory(arena))
	if file.Path != src.Path {
		return nil, fmt.Errorf("builder for %s produced %s", src.Path, file.Path)
	}
	file.Mode = mode
	if mode == tree.BuildStub {
		StripBodies(file)
	}
	return file, nil
}

// BuildCount is how many times path has been built.
func (p *Project) BuildCount(path string) int {
	return len(p.Builds[path])
}

// StripBodies removes function bodies and initializers the way a stub build
// omits them.
func StripBodies(root tree.Declaration) {
	tree.Inspect(root, func(n tree.Node) bool {
		switch d := n.(type) {
		case *tree.Function:
			d.Body = nil
		case *tree.Constructor:
			d.Body = nil
		case *tree.AnonymousInitializer:
			d.Body = nil
		case *tree.Property:
			d.Initializer = nil
		case *tree.Field:
			d.Initializer = nil
		case *tree.ValueParameter:
			d.Default = nil
		}
		return true
	})
}
