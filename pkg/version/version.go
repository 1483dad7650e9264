package version

import (
	"fmt"
	"runtime"
)

// EmptyValue is the value we use when running a version that wasn't compiled
// by `make`. This is helpful for telling when we're running in a unit test.
const EmptyValue = "set-by-make"

// Version is the latest tag on git for releases. On non-release commits, it may
// include additional information such as the most recent commit hash.
var Version = EmptyValue

// UserAgent identifies the client in requests to the Stud.IP API.
func UserAgent() string {
	return fmt.Sprintf("studip-sync/%s (%s/%s)", Version, runtime.GOOS, runtime.GOARCH)
}
