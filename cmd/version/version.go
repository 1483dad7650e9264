package version

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/sidkik/studip-sync/pkg/version"
)

// Mocked for unit testing.
var stdout io.Writer = os.Stdout

// New creates a new `version` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of studip-sync.",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(stdout, "studip-sync version: %s\n", version.Version)
			fmt.Fprintf(stdout, "go version:          %s\n", runtime.Version())
		},
	}
}
