package app

import (
	"fmt"

	"resolvecore/internal/core/config"
	"resolvecore/internal/core/watcher"

	"github.com/hashicorp/go-multierror"
)

// StartWatching watches the configured roots, resolved against base, and
// feeds changes to HandleChanges. It does nothing when watching is disabled.
func (a *App) StartWatching(base string) error {
	if !a.Config.Watch.Enabled {
		return nil
	}
	if a.activeWatcher != nil {
		return fmt.Errorf("watcher already running")
	}
	if errs := config.Validate(a.Config, base); len(errs) > 0 {
		return multierror.Append(nil, errs...)
	}

	w, err := watcher.New(watcher.Options{
		Debounce:     a.Config.Watch.Debounce,
		ExcludeDirs:  a.Config.Exclude.Dirs,
		ExcludeFiles: a.Config.Exclude.Files,
		Extensions:   a.Config.Watch.Extensions,
		Logger:       a.logger,
	}, a.HandleChanges)
	if err != nil {
		return err
	}
	if err := w.Watch(a.Config.WatchRoots(base)); err != nil {
		w.Close()
		return err
	}
	a.activeWatcher = w
	return nil
}
