package fswatch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/studip-sync/pkg/errors"
)

var fs = afero.NewOsFs()

// Watch watches the file at `path`. It sends an event on the returned channel
// whenever the file is written, created, renamed or removed. Bursts of events
// are combined into one. The channel is closed once the returned Closer is
// closed.
func Watch(path string) (<-chan struct{}, io.Closer, error) {
	path = filepath.Clean(path)
	pathsToWatch, err := getPathsToWatch(path)
	if err != nil {
		return nil, nil, errors.WithContext(err, "get paths")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, errors.WithContext(err, "create watcher")
	}

	for _, toWatch := range pathsToWatch {
		if err := watcher.Add(toWatch); err != nil {
			// Close the watcher so that we release the file handlers for the
			// previously added paths.
			if err := watcher.Close(); err != nil {
				log.WithError(err).Warn("Failed to close file watcher")
			}

			return nil, nil, errors.WithContext(err, fmt.Sprintf("watch %q", toWatch))
		}
	}

	go func() {
		for err := range watcher.Errors {
			log.WithError(err).Debug("File watcher error")
		}
	}()
	return combineUpdates(watcher.Events, path), watcher, nil
}

// combineUpdates forwards the events for `path`, and drops them while a
// previous event hasn't been consumed yet.
func combineUpdates(updates <-chan fsnotify.Event, path string) chan struct{} {
	combined := make(chan struct{}, 1)
	go func() {
		defer close(combined)
		for event := range updates {
			if filepath.Clean(event.Name) != path {
				continue
			}

			select {
			case combined <- struct{}{}:
			default:
			}
		}
	}()
	return combined
}

// getPathsToWatch returns the file and its parent directory. Watching the
// directory notices editors that replace the file rather than writing to it.
func getPathsToWatch(path string) ([]string, error) {
	fi, err := fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileNotFound{Path: path}
		}
		return nil, errors.WithContext(err, "stat")
	}

	if fi.IsDir() {
		return nil, errors.WithContext(errors.New("expected a file"), path)
	}
	return []string{path, filepath.Dir(path)}, nil
}
