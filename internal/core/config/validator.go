package config

import (
	"fmt"
	"os"
)

// Validate reports problems that depend on the file system rather than on
// the file contents. Load does not call it; the app does before watching.
func Validate(cfg *Config, base string) []error {
	var errs []error
	if !cfg.Watch.Enabled {
		return nil
	}
	for i, root := range cfg.WatchRoots(base) {
		info, err := os.Stat(root)
		if err != nil {
			errs = append(errs, fmt.Errorf("watch.paths[%d] %q does not exist", i, root))
			continue
		}
		if !info.IsDir() {
			errs = append(errs, fmt.Errorf("watch.paths[%d] %q is not a directory", i, root))
		}
	}
	return errs
}
