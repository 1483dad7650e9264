package studip

import (
	"fmt"
	"regexp"
	"strings"
)

// ID is the opaque 32 character hex token that the API uses to name courses,
// folders, files, semesters and users.
type ID string

var (
	idPattern     = regexp.MustCompile(`^[0-9a-f]{32}$`)
	linkIDPattern = regexp.MustCompile(`/([0-9a-f]{32})`)
)

// ParseID validates `s` as an ID.
func ParseID(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if !idPattern.MatchString(s) {
		return "", fmt.Errorf("malformed id %q", s)
	}
	return ID(s), nil
}

// ExtractID returns the first ID found in an API link such as
// `/api.php/semester/<id>`.
func ExtractID(link string) (ID, bool) {
	match := linkIDPattern.FindStringSubmatch(link)
	if match == nil {
		return "", false
	}
	return ID(match[1]), true
}

func (id ID) String() string {
	return string(id)
}
