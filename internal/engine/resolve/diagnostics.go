package resolve

import (
	"fmt"

	"resolvecore/internal/core/errors"
	"resolvecore/internal/engine/tree"

	"github.com/hashicorp/go-multierror"
)

// Diagnostic is a problem in user code found while resolving. Diagnostics
// never abort a drive.
type Diagnostic struct {
	Path    string
	Pos     tree.Position
	Symbol  string
	Code    errors.ErrorCode
	Message string
}

func (d Diagnostic) Error() string {
	loc := d.Path
	if d.Pos != (tree.Position{}) {
		loc = fmt.Sprintf("%s:%s", d.Path, d.Pos)
	}
	if d.Symbol != "" {
		return fmt.Sprintf("%s: %s (in %s)", loc, d.Message, d.Symbol)
	}
	return fmt.Sprintf("%s: %s", loc, d.Message)
}

type Diagnostics struct {
	items []Diagnostic
}

func (d *Diagnostics) Add(diag Diagnostic) {
	d.items = append(d.items, diag)
}

func (d *Diagnostics) Len() int { return len(d.items) }

func (d *Diagnostics) Items() []Diagnostic {
	out := make([]Diagnostic, len(d.items))
	copy(out, d.items)
	return out
}

func (d *Diagnostics) ForPath(path string) []Diagnostic {
	var out []Diagnostic
	for _, diag := range d.items {
		if diag.Path == path {
			out = append(out, diag)
		}
	}
	return out
}

// Drop forgets the diagnostics of rebuilt files.
func (d *Diagnostics) Drop(paths ...string) {
	if len(paths) == 0 {
		return
	}
	drop := make(map[string]bool, len(paths))
	for _, p := range paths {
		drop[p] = true
	}
	kept := d.items[:0]
	for _, diag := range d.items {
		if !drop[diag.Path] {
			kept = append(kept, diag)
		}
	}
	d.items = kept
}

// Err combines every diagnostic into one error, or nil when there are none.
func (d *Diagnostics) Err() error {
	var result *multierror.Error
	for _, diag := range d.items {
		result = multierror.Append(result, diag)
	}
	return result.ErrorOrNil()
}
