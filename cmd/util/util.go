package util

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/studip-sync/pkg/errors"
)

// ClearProgress is an escape sequence that clears the current line.
const ClearProgress = "\033[2K\r"

// Mocked for unit testing.
var (
	exit             = os.Exit
	stderr io.Writer = os.Stderr
)

// HandleFatalError prints the error and exits. Friendly errors are printed as
// is, and other errors are printed with their context.
func HandleFatalError(err error) {
	log.WithError(err).Debug("Fatal error")
	fmt.Fprintln(stderr, errors.GetPrintableMessage(err))
	exit(1)
}

// HandlePanic logs the panic and exits. It must be deferred directly by
// every goroutine that might panic.
func HandlePanic() {
	if r := recover(); r != nil {
		log.WithField("stack", string(debug.Stack())).Errorf("Unexpected panic: %v", r)
		exit(1)
	}
}

// ProgressPrinter shows a spinner next to a message until it's stopped.
type ProgressPrinter struct {
	out      io.Writer
	msg      string
	interval time.Duration

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewProgressPrinter creates a ProgressPrinter. Run must be called to start
// printing.
func NewProgressPrinter(out io.Writer, msg string) *ProgressPrinter {
	return &ProgressPrinter{
		out:      out,
		msg:      msg,
		interval: 250 * time.Millisecond,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run prints the spinner until Stop is called.
func (pp *ProgressPrinter) Run() {
	defer close(pp.done)

	frames := []string{"|", "/", "-", "\\"}
	ticker := time.NewTicker(pp.interval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		fmt.Fprintf(pp.out, "\r%s %s", pp.msg, frames[i%len(frames)])
		select {
		case <-ticker.C:
		case <-pp.stop:
			return
		}
	}
}

// Stop stops the spinner and ends the line.
func (pp *ProgressPrinter) Stop() {
	pp.StopWithPrint("\n")
}

// StopWithPrint stops the spinner and prints `msg`, such as ClearProgress.
func (pp *ProgressPrinter) StopWithPrint(msg string) {
	pp.stopOnce.Do(func() {
		close(pp.stop)
		<-pp.done
		fmt.Fprint(pp.out, msg)
	})
}
