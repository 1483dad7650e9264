package sync

import (
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/sidkik/studip-sync/pkg/studip"
)

const (
	lectureDir  = "Vorlesung"
	tutorialDir = "Übung"
)

// Mocked out in the unit tests.
var isWindows = runtime.GOOS == "windows"

var (
	unsafeChars        = regexp.MustCompile(`[^a-zA-Z0-9\-\s]`)
	unsafeCharsWindows = regexp.MustCompile(`[^a-zA-Z0-9\-\säöüÄÖÜ]`)

	transliterate = strings.NewReplacer(
		"Ä", "Ae", "Ö", "Oe", "Ü", "Ue",
		"ä", "ae", "ö", "oe", "ü", "ue",
		"ß", "ss",
	)
)

// Sanitize turns a remote title into a directory name. Path separators become
// dashes and anything else that isn't alphanumeric becomes a space. Umlauts
// are kept on Windows and transliterated elsewhere.
func Sanitize(name string) string {
	name = norm.NFC.String(name)
	name = strings.Replace(name, "/", "-", -1)
	if isWindows {
		name = unsafeCharsWindows.ReplaceAllString(name, " ")
	} else {
		name = unsafeChars.ReplaceAllString(transliterate.Replace(name), " ")
	}
	return strings.TrimSpace(name)
}

// CourseDir returns where the files of `course` are stored:
// <root>/<semester>/<title>/Vorlesung for lectures and
// <root>/<semester>/<title without marker>/Übung for tutorials.
func CourseDir(root string, semester studip.Semester, course *studip.Course) string {
	semesterDir := Sanitize(semester.Title)
	if course.IsTutorial() {
		title := strings.TrimSpace(strings.Replace(course.Title, studip.TutorialMarker, "", -1))
		return filepath.Join(root, semesterDir, Sanitize(title), tutorialDir)
	}
	return filepath.Join(root, semesterDir, Sanitize(course.Title), lectureDir)
}

// fileName is the local name of a remote file. Separators are replaced so
// that every file stays inside its folder.
func fileName(ref studip.FileRef) string {
	name := strings.Replace(ref.Name, "/", "-", -1)
	if isWindows {
		name = strings.Replace(name, `\`, "-", -1)
	}

	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return string(ref.ID)
	}
	return name
}
