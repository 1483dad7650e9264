package sync

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/sidkik/studip-sync/pkg/errors"
	"github.com/sidkik/studip-sync/pkg/pool"
	"github.com/sidkik/studip-sync/pkg/studip"
)

// WarmUpInterval is how long the loop waits before its first cycle.
const WarmUpInterval = 30 * time.Second

// ErrNotWired is returned by Run if the loop is missing a collaborator.
var ErrNotWired = errors.New("sync loop is missing a collaborator")

// LoopConfig holds the collaborators of a Loop.
type LoopConfig struct {
	Client    studip.Client
	Pool      *pool.Pool
	Listeners *Listeners

	// Root is the local download directory. It must exist.
	Root string

	// Interval is the time between the end of a cycle and the start of the
	// next. Zero runs a single cycle.
	Interval time.Duration

	// WarmUp defaults to WarmUpInterval.
	WarmUp time.Duration

	Clock  clockwork.Clock
	Logger logrus.FieldLogger
}

// Loop periodically synchronizes every course of the user.
type Loop struct {
	client    studip.Client
	listeners *Listeners
	builder   *Builder
	scheduler *Scheduler

	// units runs one lecture and its tutorial. It's separate from the shared
	// pool so that units never wait on tasks queued behind other units.
	units *pool.Pool

	root   string
	warmUp time.Duration
	clock  clockwork.Clock
	log    logrus.FieldLogger

	intervalLock sync.Mutex
	interval     time.Duration

	stopOnce sync.Once
	stop     chan struct{}
}

func NewLoop(cfg LoopConfig) *Loop {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.WarmUp <= 0 {
		cfg.WarmUp = WarmUpInterval
	}

	l := &Loop{
		client:    cfg.Client,
		listeners: cfg.Listeners,
		root:      cfg.Root,
		warmUp:    cfg.WarmUp,
		clock:     cfg.Clock,
		log:       cfg.Logger,
		interval:  cfg.Interval,
		stop:      make(chan struct{}),
	}

	if cfg.Pool != nil {
		l.units = pool.New(cfg.Pool.Size())
		l.builder = NewBuilder(cfg.Client, cfg.Pool, cfg.Logger)
		l.scheduler = NewScheduler(cfg.Client, cfg.Pool, cfg.Listeners, cfg.Clock, cfg.Logger)
	}
	return l
}

// Run blocks until the loop stops. It returns nil after a one-shot run, or
// once `ctx` is cancelled or Stop is called. It returns an error if the loop
// can't continue, such as when the download directory disappears.
func (l *Loop) Run(ctx context.Context) error {
	if l.client == nil || l.listeners == nil || l.units == nil || l.root == "" {
		l.log.WithError(ErrNotWired).Error("Can't start sync loop")
		return ErrNotWired
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-l.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	l.listeners.emitNextSync(NextSyncEvent{At: l.clock.Now().Add(l.warmUp)})
	if !l.sleep(ctx, l.warmUp) {
		return nil
	}

	for {
		if err := l.cycle(ctx); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		interval := l.Interval()
		if interval == 0 {
			l.listeners.emitNextSync(NextSyncEvent{At: time.Unix(0, 0)})
			return nil
		}

		l.listeners.emitNextSync(NextSyncEvent{At: l.clock.Now().Add(interval)})
		if !l.sleep(ctx, interval) {
			return nil
		}
	}
}

// Stop interrupts the running cycle and makes Run return.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// UpdateInterval changes the interval used for the next sleep.
func (l *Loop) UpdateInterval(interval time.Duration) {
	l.intervalLock.Lock()
	defer l.intervalLock.Unlock()
	l.interval = interval
}

func (l *Loop) Interval() time.Duration {
	l.intervalLock.Lock()
	defer l.intervalLock.Unlock()
	return l.interval
}

func (l *Loop) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-l.clock.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

// cycle syncs every lecture and its tutorial concurrently. Only an unusable
// download directory is returned as an error. Everything else is logged.
func (l *Loop) cycle(ctx context.Context) error {
	pairs, err := FetchPairs(ctx, l.client)
	if err != nil {
		l.log.WithError(err).Warn("Failed to get courses")
		return nil
	}

	if err := checkRoot(l.root); err != nil {
		l.log.WithError(err).Error("Download directory is unusable")
		return err
	}

	l.log.WithField("courses", len(pairs)).Info("Starting sync")

	cycleCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	units := make([]*pool.Task, 0, len(pairs))
	for _, pair := range pairs {
		pair := pair
		units = append(units, l.units.Submit(cycleCtx, func(ctx context.Context) {
			l.syncCourse(ctx, pair.Lecture)
			if pair.Tutorial != nil {
				l.syncCourse(ctx, pair.Tutorial)
			}
		}))
	}

	for _, unit := range units {
		if cycleCtx.Err() != nil {
			unit.Cancel()
			continue
		}

		if err := unit.Wait(cycleCtx); err != nil {
			l.log.Info("Sync interrupted")
			cancel()
			unit.Cancel()
		}
	}

	for _, unit := range units {
		<-unit.Done()
	}
	l.log.Info("Finished sync")
	return nil
}

func (l *Loop) syncCourse(ctx context.Context, course *studip.Course) {
	log := l.log.WithField("course", course.Title)

	semester, err := l.client.GetSemester(ctx, course.StartSemesterID)
	if err != nil {
		log.WithError(err).Warn("Failed to get semester")
		return
	}

	result, err := l.builder.Build(ctx, course)
	if err != nil {
		log.WithError(err).Warn("Failed to get remote files")
		return
	}
	if len(result.Skipped) != 0 {
		log.WithField("skipped", result.Skipped).Warn("Some remote files are missing")
	}
	log.WithField("nodes", result.Tree.Len()).Debug("Built remote tree")

	dir := CourseDir(l.root, semester, course)
	files, err := l.scheduler.Download(ctx, course, dir, result.Tree)
	if err != nil {
		log.WithError(err).Warn("Failed to download files")
		return
	}
	log.WithField("scheduled", len(files)).Debug("Synced course")
}

func checkRoot(root string) error {
	info, err := fs.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.FileNotFound{Path: root}
		}
		return errors.WithContext(err, "stat")
	}

	if !info.IsDir() {
		return errors.NotDirectoryError{Path: root}
	}
	return nil
}
