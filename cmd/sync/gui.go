package sync

import (
	"fmt"
	"sort"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/buger/goterm"
	"github.com/jroimartin/gocui"
	"github.com/sirupsen/logrus"

	"github.com/sidkik/studip-sync/cmd/util"
	"github.com/sidkik/studip-sync/pkg/config"
	"github.com/sidkik/studip-sync/pkg/errors"
	"github.com/sidkik/studip-sync/pkg/studip"
	syncer "github.com/sidkik/studip-sync/pkg/sync"
)

const (
	accountWidgetName  = "account"
	scheduleWidgetName = "schedule"
	coursesWidgetName  = "courses"
	statusWidgetName   = "status"
)

type syncGUI interface {
	// Run implements the main GUI loop. It calls `start` once it's listening
	// for events, and returns when the user quits or the channel returned by
	// `start` is closed.
	Run(listeners *syncer.Listeners, start func() <-chan struct{}) error

	// GetLogger returns a logrus Logger that can be used to display messages
	// on the user's screen.
	GetLogger() *logrus.Logger
}

// syncGUIImpl contains the GUI implementation for normal user usage.
type syncGUIImpl struct {
	userConfig config.User
	logger     *logrus.Logger
	loggerOut  chanWriter
}

func newSyncGUI(userConfig config.User) syncGUI {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		ForceColors:     true,
		FullTimestamp:   true,
		TimestampFormat: time.Kitchen,
	})

	// Allow 256 `Write`s without a corresponding `Read`. If the channel is
	// full, logging blocks until the status view catches up.
	loggerOut := chanWriter(make(chan []byte, 256))
	logger.SetOutput(loggerOut)
	logger.SetLevel(logrus.GetLevel())

	return &syncGUIImpl{userConfig, logger, loggerOut}
}

func (syncGUI *syncGUIImpl) GetLogger() *logrus.Logger {
	return syncGUI.logger
}

func (syncGUI *syncGUIImpl) Run(listeners *syncer.Listeners, start func() <-chan struct{}) error {
	gui, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		return err
	}
	defer gui.Close()

	account := &accountWidget{
		username:    syncGUI.userConfig.Username,
		downloadDir: syncGUI.userConfig.DownloadDir,
	}

	schedule := &scheduleWidget{}
	courses := newCoursesWidget()

	// Stream the logrus output to the status view.
	status := &statusWidget{height: 8}
	go func() {
		defer util.HandlePanic()
		copyToView(gui, statusWidgetName, syncGUI.loggerOut)
	}()

	handles := []syncer.ListenerHandle{
		listeners.AddNextSyncListener(func(event syncer.NextSyncEvent) {
			schedule.update(event)
			gui.Update(schedule.Layout)
		}),
		listeners.AddProgressListener(func(event syncer.ProgressEvent) {
			courses.updateProgress(event)
			gui.Update(courses.Layout)
		}),
		listeners.AddFinishedListener(func(event syncer.FinishedEvent) {
			courses.updateFinished(event)
			gui.Update(courses.Layout)
		}),
	}
	defer func() {
		for _, handle := range handles {
			listeners.RemoveListener(handle)
		}
	}()

	done := start()
	go func() {
		defer util.HandlePanic()
		<-done
		gui.Update(func(_ *gocui.Gui) error {
			return gocui.ErrQuit
		})
	}()

	gui.SetManager(account, schedule, courses, status)
	ctrlCHandler := func(_ *gocui.Gui, _ *gocui.View) error {
		return gocui.ErrQuit
	}
	if err := gui.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, ctrlCHandler); err != nil {
		return errors.WithContext(err, "bind GUI Ctrl-C")
	}

	if err := gui.MainLoop(); err != nil && err != gocui.ErrQuit {
		return err
	}
	return nil
}

// accountWidget displays the user and download directory at the top of the
// GUI.
type accountWidget struct {
	username    string
	downloadDir string
}

func (w *accountWidget) Layout(g *gocui.Gui) error {
	maxWidth, _ := g.Size()
	height := 2

	v, err := g.SetView(accountWidgetName, 0, 0, maxWidth-1, height+1)
	if err != nil && err != gocui.ErrUnknownView {
		return err
	}

	v.Title = "Stud.IP"
	v.Wrap = true
	v.Clear()
	fmt.Fprintf(v, "User: %s\n", w.username)
	fmt.Fprintf(v, "Download directory: %s\n", w.downloadDir)

	return nil
}

// scheduleWidget displays when the next sync starts. It's placed under the
// account overview.
type scheduleWidget struct {
	next time.Time
	lock sync.Mutex
}

func (w *scheduleWidget) update(event syncer.NextSyncEvent) {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.next = event.At
}

func (w *scheduleWidget) Layout(g *gocui.Gui) error {
	w.lock.Lock()
	defer w.lock.Unlock()

	x1, y1, x2, y2, err := relativeTo(g, accountWidgetName, 1)
	if err != nil {
		return err
	}

	v, err := g.SetView(scheduleWidgetName, x1, y1, x2, y2)
	if err != nil && err != gocui.ErrUnknownView {
		return err
	}

	v.Title = "Schedule"
	v.Wrap = true
	v.Clear()
	if w.next.Equal(time.Unix(0, 0)) {
		fmt.Fprintln(v, goterm.Color(nextSyncString(w.next), goterm.YELLOW))
	} else {
		fmt.Fprintln(v, nextSyncString(w.next))
	}

	return nil
}

func nextSyncString(next time.Time) string {
	switch {
	case next.IsZero():
		return "Starting"
	case next.Equal(time.Unix(0, 0)):
		return "Stopped"
	default:
		return fmt.Sprintf("Next sync at %s", next.Format(time.Kitchen))
	}
}

type courseStatus struct {
	title    string
	fraction float64
	files    int
	finished bool
}

func (status courseStatus) String() string {
	if status.finished {
		return goterm.Color(fmt.Sprintf("Synced %d files", status.files), goterm.GREEN)
	}
	return goterm.Color(fmt.Sprintf("Downloading (%.0f%%)", status.fraction*100), goterm.YELLOW)
}

// coursesWidget displays the download progress of every course that had
// files to download. It's placed under the schedule view.
type coursesWidget struct {
	courses map[studip.ID]courseStatus
	lock    sync.Mutex
}

func newCoursesWidget() *coursesWidget {
	return &coursesWidget{courses: map[studip.ID]courseStatus{}}
}

func (w *coursesWidget) updateProgress(event syncer.ProgressEvent) {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.courses[event.Course.ID] = courseStatus{
		title:    event.Course.Title,
		fraction: event.Fraction,
	}
}

func (w *coursesWidget) updateFinished(event syncer.FinishedEvent) {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.courses[event.Course.ID] = courseStatus{
		title:    event.Course.Title,
		fraction: 1,
		files:    len(event.Files),
		finished: true,
	}
}

// sorted returns the course statuses ordered by title so that the output is
// consistent.
func (w *coursesWidget) sorted() []courseStatus {
	var statuses []courseStatus
	for _, status := range w.courses {
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].title < statuses[j].title
	})
	return statuses
}

func (w *coursesWidget) Layout(g *gocui.Gui) error {
	w.lock.Lock()
	defer w.lock.Unlock()

	height := len(w.courses)
	if height == 0 {
		height = 1
	}

	x1, y1, x2, y2, err := relativeTo(g, scheduleWidgetName, height)
	if err != nil {
		return err
	}

	v, err := g.SetView(coursesWidgetName, x1, y1, x2, y2)
	if err != nil && err != gocui.ErrUnknownView {
		return err
	}

	v.Title = "Courses"
	v.Wrap = true
	v.Clear()

	if len(w.courses) == 0 {
		fmt.Fprintln(v, "No downloads yet")
		return nil
	}

	out := tabwriter.NewWriter(v, 0, 10, 5, ' ', 0)
	defer out.Flush()
	for _, status := range w.sorted() {
		fmt.Fprintf(out, "%s\t%s\n", status.title, status)
	}

	return nil
}

// statusWidget is an empty view that streams the sync logs. It's placed under
// the courses view.
type statusWidget struct {
	height int
}

func (w *statusWidget) Layout(g *gocui.Gui) error {
	x1, y1, x2, y2, err := relativeTo(g, coursesWidgetName, w.height)
	if err != nil {
		return err
	}

	v, err := g.SetView(statusWidgetName, x1, y1, x2, y2)
	if err != nil && err != gocui.ErrUnknownView {
		return err
	}

	v.Title = "Status"
	v.Wrap = true
	v.Autoscroll = true

	return nil
}

func relativeTo(g *gocui.Gui, view string, height int) (int, int, int, int, error) {
	maxWidth, _ := g.Size()

	_, _, _, origin, err := g.ViewPosition(view)
	if err != nil {
		return 0, 0, 0, 0, err
	}

	top := origin + 1
	return 0, top, maxWidth - 1, top + height + 1, nil
}

// copyToView writes the messages in `stream` into the desired `view` in `gui`.
// It guarantees writes occur in the order of messages in `stream`.
func copyToView(gui *gocui.Gui, view string, stream chanWriter) {
	for b := range stream {
		b := b
		done := make(chan struct{})
		gui.Update(func(gui *gocui.Gui) error {
			defer close(done)
			v, err := gui.View(view)
			if err != nil {
				return err
			}

			if _, err := v.Write(b); err != nil {
				return err
			}
			return nil
		})
		<-done
	}
}
