package sync

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/studip-sync/pkg/errors"
	"github.com/sidkik/studip-sync/pkg/pool"
	"github.com/sidkik/studip-sync/pkg/studip"
	"github.com/sidkik/studip-sync/pkg/tree"
)

// Mocked out in the unit tests.
var fs = afero.NewOsFs()

// chunkSize is the size of the buffer used to copy downloads to disk.
const chunkSize = 1024

// staleTime is the modification time given to placeholders and failed
// downloads so that they're always older than the remote file.
var staleTime = time.Unix(0, 0)

// Scheduler downloads the files of a course tree that are missing or out of
// date locally.
type Scheduler struct {
	client    studip.Client
	pool      *pool.Pool
	listeners *Listeners
	clock     clockwork.Clock
	log       logrus.FieldLogger
}

type scheduledDownload struct {
	path string
	task *pool.Task
}

func NewScheduler(client studip.Client, pool *pool.Pool, listeners *Listeners,
	clock clockwork.Clock, log logrus.FieldLogger) *Scheduler {
	return &Scheduler{
		client:    client,
		pool:      pool,
		listeners: listeners,
		clock:     clock,
		log:       log,
	}
}

// Download mirrors `t` into `dir`. A file is skipped if it exists locally and
// is newer than the remote copy. Otherwise an empty placeholder is created and
// the download is submitted to the pool.
//
// The downloads are awaited in the order they were submitted. Once `ctx` is
// cancelled, the remaining downloads are cancelled rather than awaited.
// Downloads that already started run to completion in the background.
// Failed downloads are logged and otherwise treated as done.
//
// It returns the destination of every scheduled download.
func (s *Scheduler) Download(ctx context.Context, course *studip.Course, dir string, t *tree.Tree) ([]string, error) {
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, errors.WithContext(err, "create course directory")
	}

	t.SortByName()

	var downloads []scheduledDownload
	s.schedule(ctx, dir, t.Root(), map[string]studip.ID{}, &downloads)
	if len(downloads) == 0 {
		return nil, nil
	}

	total := len(downloads)
	completed := 0
	lastFraction := -1.0
	for _, download := range downloads {
		if ctx.Err() != nil {
			download.task.Cancel()
			continue
		}

		if err := download.task.Wait(ctx); err != nil {
			download.task.Cancel()
			continue
		}

		// The pool drops tasks whose context is done before they start.
		if !download.task.Started() {
			continue
		}

		completed++
		lastFraction = float64(completed) / float64(total)
		s.listeners.emitProgress(ProgressEvent{
			Course:   course,
			Fraction: lastFraction,
			Time:     s.clock.Now(),
		})
	}

	// The final progress was already emitted unless the pass was cancelled.
	if fraction := float64(completed) / float64(total); fraction != lastFraction {
		s.listeners.emitProgress(ProgressEvent{
			Course:   course,
			Fraction: fraction,
			Time:     s.clock.Now(),
		})
	}

	files := make([]string, 0, total)
	for _, download := range downloads {
		files = append(files, download.path)
	}
	s.listeners.emitFinished(FinishedEvent{
		Course: course,
		Files:  files,
		Time:   s.clock.Now(),
	})
	return files, nil
}

// schedule submits the downloads below `node`. `used` maps the destinations
// claimed during this pass to the file that claimed them.
func (s *Scheduler) schedule(ctx context.Context, dir string, node *tree.Node,
	used map[string]studip.ID, downloads *[]scheduledDownload) {
	for _, child := range node.Children() {
		if ctx.Err() != nil {
			return
		}

		if child.IsDirectory() {
			subdir := filepath.Join(dir, Sanitize(child.Name()))
			if err := fs.MkdirAll(subdir, 0755); err != nil {
				s.log.WithError(err).WithField("path", subdir).Warn("Failed to create directory")
				continue
			}
			s.schedule(ctx, subdir, child, used, downloads)
			continue
		}

		ref := child.File()
		path, ok := claimPath(used, dir, ref)
		if !ok {
			s.log.WithField("fileID", ref.ID).
				WithField("path", path).
				Warn("Skipping file with a duplicate name")
			continue
		}

		needed, err := needsDownload(path, ref)
		if err != nil {
			s.log.WithError(err).WithField("path", path).Warn("Failed to check local file")
			continue
		}

		if !needed {
			s.log.WithField("path", path).Debug("Skipping up to date file")
			continue
		}

		task := s.pool.Submit(ctx, func(taskCtx context.Context) {
			// Cancellation only drops downloads that haven't started.
			s.download(context.WithoutCancel(taskCtx), ref, path)
		})
		*downloads = append(*downloads, scheduledDownload{path: path, task: task})
	}
}

// claimPath returns the destination of `ref` in `dir`. If another file of the
// pass already uses its name, the file's ID is appended to the name. It
// returns false if that name is taken as well.
func claimPath(used map[string]studip.ID, dir string, ref studip.FileRef) (string, bool) {
	path := filepath.Join(dir, fileName(ref))
	if _, ok := used[path]; ok {
		ext := filepath.Ext(path)
		path = fmt.Sprintf("%s_%s%s", strings.TrimSuffix(path, ext), ref.ID, ext)
		if _, ok := used[path]; ok {
			return path, false
		}
	}
	used[path] = ref.ID
	return path, true
}

// needsDownload returns whether the remote file should be downloaded to
// `path`. Missing files are reserved with an empty placeholder.
func needsDownload(path string, ref studip.FileRef) (bool, error) {
	info, err := fs.Stat(path)
	switch {
	case err == nil:
		if info.IsDir() {
			return false, errors.IsDirectoryError{Path: path}
		}
		return !ref.ChangeTime().Before(info.ModTime()), nil
	case !os.IsNotExist(err):
		return false, errors.WithContext(err, "stat")
	}

	f, err := fs.Create(path)
	if err != nil {
		return false, errors.WithContext(err, "create placeholder")
	}
	if err := f.Close(); err != nil {
		return false, errors.WithContext(err, "close placeholder")
	}

	if err := fs.Chtimes(path, staleTime, staleTime); err != nil {
		return false, errors.WithContext(err, "set placeholder modtime")
	}
	return true, nil
}

func (s *Scheduler) download(ctx context.Context, ref studip.FileRef, path string) {
	log := s.log.WithField("fileID", ref.ID).WithField("path", path)
	if err := downloadFile(ctx, s.client, ref, path, s.clock.Now()); err != nil {
		log.WithError(err).Warn("Failed to download file")

		// Make sure the next pass retries the download.
		if err := fs.Chtimes(path, staleTime, staleTime); err != nil {
			log.WithError(err).Debug("Failed to reset modtime")
		}
		return
	}
	log.Debug("Downloaded file")
}

// downloadFile streams the file into a temporary file next to `path`, and
// renames it into place once it's complete. `path` is therefore either
// untouched or replaced by the whole file.
func downloadFile(ctx context.Context, client studip.Client, ref studip.FileRef,
	path string, modTime time.Time) (err error) {
	body, err := client.Download(ctx, ref.ID)
	if err != nil {
		return errors.WithContext(err, "request")
	}
	defer body.Close()

	f, err := afero.TempFile(fs, filepath.Dir(path), "."+filepath.Base(path)+".part")
	if err != nil {
		return errors.WithContext(err, "create temp file")
	}
	tmpPath := f.Name()
	defer func() {
		if err != nil {
			f.Close()
			fs.Remove(tmpPath)
		}
	}()

	buf := make([]byte, chunkSize)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if _, err := f.Write(buf[:n]); err != nil {
				return errors.WithContext(err, "write")
			}
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.WithContext(err, "read")
		}
	}

	if err := f.Close(); err != nil {
		return errors.WithContext(err, "close")
	}

	// Set the modification time last so that it doesn't get reset by other
	// file operations.
	if err := fs.Chtimes(tmpPath, modTime, modTime); err != nil {
		return errors.WithContext(err, "set modtime")
	}
	return errors.WithContext(fs.Rename(tmpPath, path), "rename")
}
