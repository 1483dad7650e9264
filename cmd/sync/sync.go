package sync

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/studip-sync/cmd/util"
	"github.com/sidkik/studip-sync/pkg/config"
	"github.com/sidkik/studip-sync/pkg/errors"
	"github.com/sidkik/studip-sync/pkg/fswatch"
	"github.com/sidkik/studip-sync/pkg/pool"
	"github.com/sidkik/studip-sync/pkg/studip"
	syncer "github.com/sidkik/studip-sync/pkg/sync"
)

// Mocked for unit testing.
var (
	stdout            io.Writer = os.Stdout
	parseUserConfig             = config.ParseUser
	newClient                   = studip.New
	watchFile                   = fswatch.Watch
	getUserConfigPath           = config.GetUserConfigPath
	homedirExpand               = homedir.Expand
	warmUp                      = syncer.WarmUpInterval
)

type options struct {
	once        bool
	interval    string
	downloadDir string
	disableGUI  bool
}

type syncCmd struct {
	userConfig config.User
	client     studip.Client
	gui        syncGUI

	// reloadInterval is set if the interval wasn't overridden by a flag, in
	// which case edits to the config file change the interval.
	reloadInterval bool
}

// chanWriter provides an io.Writer interface for writing to a channel.
type chanWriter chan []byte

func (w chanWriter) Write(p []byte) (int, error) {
	cpy := make([]byte, len(p))
	copy(cpy, p)
	w <- cpy
	return len(p), nil
}

// New creates a new `sync` command.
func New() *cobra.Command {
	var opts options
	cobraCmd := &cobra.Command{
		Use:   "sync",
		Short: "Download the files of all your courses",
		Long: `Download the files of every course you're a member of into the
download directory, and keep them up to date.

Each course is synced to <download dir>/<semester>/<course>/Vorlesung, and its
tutorial to <download dir>/<semester>/<course>/Übung.`,
		Run: func(_ *cobra.Command, _ []string) {
			userConfig, err := parseUserConfig()
			if err != nil {
				util.HandleFatalError(errors.WithContext(err, "parse user config"))
			}

			if err := applyOptions(&userConfig, opts); err != nil {
				util.HandleFatalError(err)
			}

			cmd := syncCmd{
				userConfig:     userConfig,
				reloadInterval: !opts.once && opts.interval == "",
			}
			if opts.disableGUI {
				cmd.gui = noOutputGUI{}
			} else {
				cmd.gui = newSyncGUI(userConfig)

				logFile, err := openLogFile(userConfig.DownloadDir)
				if err != nil {
					util.HandleFatalError(errors.WithContext(err, "open log file"))
				}
				defer logFile.Close()
			}

			cmd.client, err = newClient(userConfig.BaseURL, studip.Credentials{
				Username: userConfig.Username,
				Password: userConfig.Password,
			})
			if err != nil {
				util.HandleFatalError(errors.WithContext(err, "create Stud.IP client"))
			}

			if err := cmd.authenticate(); err != nil {
				util.HandleFatalError(err)
			}

			if err := cmd.run(); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cobraCmd.Flags().BoolVar(&opts.once, "once", false,
		"Sync once and exit, rather than syncing periodically.")
	cobraCmd.Flags().StringVar(&opts.interval, "interval", "",
		"Override the time between syncs, such as 30m.")
	cobraCmd.Flags().StringVar(&opts.downloadDir, "download-dir", "",
		"Override the directory that courses are synced to.")
	cobraCmd.Flags().BoolVar(&opts.disableGUI, "no-gui", false,
		"Disable the GUI and log progress instead.")
	return cobraCmd
}

// applyOptions overrides the user config with the command line flags.
func applyOptions(userConfig *config.User, opts options) error {
	if opts.interval != "" {
		interval, err := time.ParseDuration(opts.interval)
		if err != nil || interval < 0 {
			return errors.NewFriendlyError("Invalid interval %q. "+
				"It should be a duration such as 30m or 1h.", opts.interval)
		}
		userConfig.SyncInterval = opts.interval
	}

	if opts.once {
		userConfig.SyncInterval = ""
	}

	if opts.downloadDir != "" {
		dir, err := homedirExpand(opts.downloadDir)
		if err != nil {
			return errors.WithContext(err, "expand download directory")
		}

		dir, err = filepath.Abs(dir)
		if err != nil {
			return errors.WithContext(err, "resolve download directory")
		}
		userConfig.DownloadDir = dir
	}
	return nil
}

// openLogFile redirects the standard logger to a file next to the download
// directory so that it doesn't interfere with the GUI.
func openLogFile(downloadDir string) (*os.File, error) {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,

		// Disable colors since we'll be logging to a file.
		DisableColors: true,
	})

	logPath := filepath.Join(filepath.Dir(downloadDir), "studip-sync.log")
	logFile, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	logrus.SetOutput(logFile)
	return logFile, nil
}

func (sc syncCmd) authenticate() error {
	pp := util.NewProgressPrinter(stdout, "Logging in to Stud.IP..")
	go pp.Run()
	err := sc.client.Authenticate(context.Background())
	if err != nil {
		pp.StopWithPrint(util.ClearProgress)
	} else {
		pp.Stop()
	}

	if err == nil {
		return nil
	}

	if httpErr, ok := errors.RootCause(err).(errors.HTTPStatusError); ok &&
		httpErr.StatusCode == http.StatusUnauthorized {
		return errors.NewFriendlyError("Stud.IP rejected the credentials of %q.\n"+
			"Run `studip-sync config` to update them.", sc.userConfig.Username)
	}
	return errors.WithContext(err, "log in")
}

func (sc syncCmd) run() error {
	syncLogger := sc.gui.GetLogger()

	listeners := syncer.NewListeners()
	stats := newSummary()
	stats.register(listeners)

	loop := syncer.NewLoop(syncer.LoopConfig{
		Client:    sc.client,
		Pool:      pool.New(sc.userConfig.Workers),
		Listeners: listeners,
		Root:      sc.userConfig.DownloadDir,
		Interval:  sc.userConfig.Interval(),
		WarmUp:    warmUp,
		Logger:    syncLogger,
	})

	if sc.reloadInterval {
		if watcher := watchConfig(loop, syncLogger); watcher != nil {
			defer watcher.Close()
		}
	}

	syncLogger.WithField("dir", sc.userConfig.DownloadDir).Info("Starting sync")

	started := false
	loopErr := make(chan error, 1)
	start := func() <-chan struct{} {
		started = true
		loopDone := make(chan struct{})
		go func() {
			defer util.HandlePanic()
			loopErr <- loop.Run(context.Background())
			close(loopDone)
		}()
		return loopDone
	}

	guiErr := sc.gui.Run(listeners, start)
	loop.Stop()

	if started {
		if err := <-loopErr; err != nil {
			return syncError(err)
		}
	}
	if guiErr != nil {
		return errors.WithContext(guiErr, "run GUI")
	}

	fmt.Fprintln(stdout, stats)
	return nil
}

// watchConfig updates the loop's interval whenever the user config changes.
// It returns nil if the config can't be watched.
func watchConfig(loop *syncer.Loop, log logrus.FieldLogger) io.Closer {
	path, err := getUserConfigPath()
	if err != nil {
		log.WithError(err).Debug("Failed to get config path")
		return nil
	}

	updates, watcher, err := watchFile(path)
	if err != nil {
		log.WithError(err).Debug("Failed to watch config for changes")
		return nil
	}

	go func() {
		defer util.HandlePanic()
		reloadInterval(loop, updates, log)
	}()
	return watcher
}

func reloadInterval(loop *syncer.Loop, updates <-chan struct{}, log logrus.FieldLogger) {
	for range updates {
		userConfig, err := parseUserConfig()
		if err != nil {
			log.WithError(err).Warn("Failed to reload config")
			continue
		}

		if interval := userConfig.Interval(); interval != loop.Interval() {
			loop.UpdateInterval(interval)
			log.WithField("interval", interval).Info("Updated sync interval")
		}
	}
}

func syncError(err error) error {
	switch cause := errors.RootCause(err).(type) {
	case errors.FileNotFound:
		return errors.NewFriendlyError("The download directory %q doesn't exist. "+
			"Create it, or run `studip-sync config` to choose another.", cause.Path)
	case errors.NotDirectoryError:
		return errors.NewFriendlyError("The download directory %q isn't a directory. "+
			"Run `studip-sync config` to choose another.", cause.Path)
	}
	return errors.WithContext(err, "sync")
}

// summary counts the downloads of every sync for the exit message.
type summary struct {
	lock    sync.Mutex
	files   int
	courses map[studip.ID]struct{}
}

func newSummary() *summary {
	return &summary{courses: map[studip.ID]struct{}{}}
}

func (s *summary) register(listeners *syncer.Listeners) {
	listeners.AddFinishedListener(func(event syncer.FinishedEvent) {
		s.lock.Lock()
		defer s.lock.Unlock()
		s.files += len(event.Files)
		s.courses[event.Course.ID] = struct{}{}
	})
}

func (s *summary) String() string {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.files == 0 {
		return "All courses are up to date."
	}
	return fmt.Sprintf("Synced %d files in %d courses.", s.files, len(s.courses))
}
