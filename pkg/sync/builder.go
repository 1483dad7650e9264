package sync

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/sidkik/studip-sync/pkg/errors"
	"github.com/sidkik/studip-sync/pkg/pool"
	"github.com/sidkik/studip-sync/pkg/studip"
	"github.com/sidkik/studip-sync/pkg/tree"
)

// Builder discovers the remote folder hierarchy of a course.
type Builder struct {
	client studip.Client
	pool   *pool.Pool
	log    logrus.FieldLogger
}

// BuildResult is the tree of a course along with the IDs of the files and
// folders whose metadata couldn't be fetched, and so are missing from it.
type BuildResult struct {
	Tree    *tree.Tree
	Skipped []studip.ID
}

func NewBuilder(client studip.Client, pool *pool.Pool, log logrus.FieldLogger) *Builder {
	return &Builder{client: client, pool: pool, log: log}
}

// Build fetches the top folder of `course` and expands it recursively. The
// file metadata of each folder is fetched concurrently on the pool, while
// subfolders are expanded one after another.
//
// Failing to fetch the top folder fails the build. Any other failed fetch only
// skips that item.
func (b *Builder) Build(ctx context.Context, course *studip.Course) (BuildResult, error) {
	if !b.client.IsAuthenticated() {
		return BuildResult{}, errors.ErrNotAuthenticated
	}

	top, err := b.client.GetTopFolder(ctx, course.ID)
	if err != nil {
		return BuildResult{}, errors.WithContext(err, "get top folder")
	}

	t := tree.New(top)
	return BuildResult{
		Tree:    t,
		Skipped: b.expand(ctx, t, t.Root()),
	}, nil
}

func (b *Builder) expand(ctx context.Context, t *tree.Tree, dir *tree.Node) (skipped []studip.ID) {
	folder := dir.Folder()

	var skippedLock sync.Mutex
	skip := func(id studip.ID) {
		skippedLock.Lock()
		skipped = append(skipped, id)
		skippedLock.Unlock()
	}

	tasks := make([]*pool.Task, len(folder.FileIDs))
	for i, id := range folder.FileIDs {
		id := id
		tasks[i] = b.pool.Submit(ctx, func(ctx context.Context) {
			ref, err := b.client.GetFileRef(ctx, id)
			if err != nil {
				b.log.WithError(err).WithField("fileID", id).Warn("Failed to fetch file metadata")
				skip(id)
				return
			}

			if err := dir.AddChild(t.NewFile(ref)); err != nil {
				b.log.WithError(err).WithField("fileID", id).Warn("Failed to add file")
				skip(id)
			}
		})
	}

	for i, task := range tasks {
		<-task.Done()
		if !task.Started() {
			skip(folder.FileIDs[i])
		}
	}

	for _, id := range folder.SubfolderIDs {
		if ctx.Err() != nil {
			skipped = append(skipped, id)
			continue
		}

		sub, err := b.client.GetFolder(ctx, id)
		if err != nil {
			b.log.WithError(err).WithField("folderID", id).Warn("Failed to fetch folder")
			skipped = append(skipped, id)
			continue
		}

		child := t.NewDirectory(sub)
		if err := dir.AddChild(child); err != nil {
			b.log.WithError(err).WithField("folderID", id).Warn("Failed to add folder")
			skipped = append(skipped, id)
			continue
		}
		skipped = append(skipped, b.expand(ctx, t, child)...)
	}
	return skipped
}
