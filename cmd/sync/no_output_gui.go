package sync

import (
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"

	syncer "github.com/sidkik/studip-sync/pkg/sync"
)

// Mocked for unit testing.
var notifyInterrupt = func(c chan<- os.Signal) {
	signal.Notify(c, os.Interrupt)
}

// noOutputGUI implements a headless GUI. Rather than drawing views, it logs
// the sync events, and blocks until the loop exits or the command is
// interrupted.
type noOutputGUI struct{}

func (gui noOutputGUI) Run(listeners *syncer.Listeners, start func() <-chan struct{}) error {
	log := gui.GetLogger()
	handles := []syncer.ListenerHandle{
		listeners.AddNextSyncListener(func(event syncer.NextSyncEvent) {
			log.WithField("at", nextSyncString(event.At)).Info("Scheduled sync")
		}),
		listeners.AddProgressListener(func(event syncer.ProgressEvent) {
			log.WithField("course", event.Course.Title).
				Infof("Downloaded %.0f%%", event.Fraction*100)
		}),
		listeners.AddFinishedListener(func(event syncer.FinishedEvent) {
			log.WithField("course", event.Course.Title).
				WithField("files", len(event.Files)).
				Info("Finished course")
		}),
	}
	defer func() {
		for _, handle := range handles {
			listeners.RemoveListener(handle)
		}
	}()

	c := make(chan os.Signal, 1)
	notifyInterrupt(c)
	defer signal.Stop(c)

	done := start()

	select {
	case <-c:
		log.Info("Interrupted")
	case <-done:
	}
	return nil
}

func (gui noOutputGUI) GetLogger() *logrus.Logger {
	return logrus.StandardLogger()
}
