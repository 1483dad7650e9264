package studip

import (
	"encoding/json"
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TutorialMarker is the title substring that marks a course as the tutorial
// section of a lecture.
const TutorialMarker = "Übung"

// MemberType is a course membership role.
type MemberType string

// The member types reported in a course's `members` object.
const (
	MemberUser   MemberType = "user"
	MemberAutor  MemberType = "autor"
	MemberTutor  MemberType = "tutor"
	MemberDozent MemberType = "dozent"
)

// User is a reference to a platform user, e.g. a lecturer.
type User struct {
	ID       ID
	Username string
	Name     string
}

// Module is a content module that is enabled for a course, e.g. documents or
// the forum.
type Module struct {
	Key  string
	Path string
}

// Course is one remote teaching unit, either a lecture or a tutorial section.
// Courses are immutable after construction and compare equal by ID.
type Course struct {
	ID              ID
	Number          string
	Title           string
	Subtitle        string
	Type            int
	Group           int
	Description     string
	Location        string
	Lecturers       []User
	MemberCounts    map[MemberType]int
	StartSemesterID ID
	EndSemesterID   ID
	Modules         []Module

	isTutorial bool
}

// NewCourse returns a course with its tutorial flag derived from the title.
func NewCourse(c Course) *Course {
	c.isTutorial = strings.Contains(c.Title, TutorialMarker)
	return &c
}

// IsTutorial returns whether the course is the tutorial section of a lecture.
func (c *Course) IsTutorial() bool {
	return c.isTutorial
}

func (c *Course) String() string {
	return c.ID.String() + " - " + c.Title
}

// Semester is used to resolve the directory that a course is downloaded into.
type Semester struct {
	ID    ID
	Title string
	Begin int64
	End   int64
}

// Contains returns whether `t` lies strictly within the semester.
func (s Semester) Contains(t time.Time) bool {
	now := t.Unix()
	return s.Begin < now && now < s.End
}

// Folder is one remote directory listing. It only references its children.
type Folder struct {
	ID           ID
	Name         string
	FileIDs      []ID
	SubfolderIDs []ID
}

// FileRef is the metadata of a remote file.
type FileRef struct {
	ID     ID
	Name   string
	ChDate int64
	Size   int64
}

// ChangeTime returns the remote change timestamp.
func (f FileRef) ChangeTime() time.Time {
	return time.Unix(f.ChDate, 0)
}

// News is an announcement posted in a course.
type News struct {
	ID       ID
	CourseID ID
	Topic    string
	Body     string
	Date     int64
	ChDate   int64
}

// flexString accepts JSON strings, numbers, booleans and null.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch v := v.(type) {
	case nil:
		*s = ""
	case string:
		*s = flexString(v)
	case float64:
		*s = flexString(strconv.FormatFloat(v, 'f', -1, 64))
	case bool:
		*s = flexString(strconv.FormatBool(v))
	default:
		*s = ""
	}
	return nil
}

// flexInt accepts numbers and numeric strings. Empty or unparseable values
// decode to zero.
type flexInt int64

func (i *flexInt) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	str := strings.TrimSpace(string(s))
	if str == "" {
		*i = 0
		return nil
	}
	if n, err := strconv.ParseInt(str, 10, 64); err == nil {
		*i = flexInt(n)
		return nil
	}
	if f, err := strconv.ParseFloat(str, 64); err == nil {
		*i = flexInt(f)
		return nil
	}
	*i = 0
	return nil
}

// idList accepts either a list of IDs or a list (or map) of objects that have
// an `id` field.
type idList []ID

func (l *idList) UnmarshalJSON(b []byte) error {
	var raw interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	var elems []interface{}
	switch raw := raw.(type) {
	case []interface{}:
		elems = raw
	case map[string]interface{}:
		keys := make([]string, 0, len(raw))
		for k := range raw {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			elems = append(elems, raw[k])
		}
	}

	ids := idList{}
	for _, elem := range elems {
		switch elem := elem.(type) {
		case string:
			ids = append(ids, ID(elem))
		case map[string]interface{}:
			if id, ok := elem["id"].(string); ok {
				ids = append(ids, ID(id))
			}
		}
	}
	*l = ids
	return nil
}

type userJSON struct {
	ID       flexString `json:"user_id"`
	Username flexString `json:"username"`
	Name     struct {
		Formatted flexString `json:"formatted"`
	} `json:"name"`
}

func (u userJSON) toUser() User {
	return User{
		ID:       ID(u.ID),
		Username: string(u.Username),
		Name:     strings.TrimSpace(string(u.Name.Formatted)),
	}
}

type courseJSON struct {
	ID            flexString            `json:"course_id"`
	Number        flexString            `json:"number"`
	Title         flexString            `json:"title"`
	Subtitle      flexString            `json:"subtitle"`
	Type          flexInt               `json:"type"`
	Group         flexInt               `json:"group"`
	Description   flexString            `json:"description"`
	Location      flexString            `json:"location"`
	Lecturers     map[string]userJSON   `json:"lecturers"`
	Members       map[string]flexInt    `json:"members"`
	StartSemester flexString            `json:"start_semester"`
	EndSemester   flexString            `json:"end_semester"`
	Modules       map[string]flexString `json:"modules"`
}

func (c courseJSON) toCourse() *Course {
	course := Course{
		ID:           ID(strings.TrimSpace(string(c.ID))),
		Number:       strings.TrimSpace(string(c.Number)),
		Title:        strings.TrimSpace(html.UnescapeString(string(c.Title))),
		Subtitle:     strings.TrimSpace(string(c.Subtitle)),
		Type:         int(c.Type),
		Group:        int(c.Group),
		Description:  strings.TrimSpace(string(c.Description)),
		Location:     strings.TrimSpace(string(c.Location)),
		MemberCounts: map[MemberType]int{},
	}

	lecturerKeys := make([]string, 0, len(c.Lecturers))
	for k := range c.Lecturers {
		lecturerKeys = append(lecturerKeys, k)
	}
	sort.Strings(lecturerKeys)
	for _, k := range lecturerKeys {
		course.Lecturers = append(course.Lecturers, c.Lecturers[k].toUser())
	}

	for key, count := range c.Members {
		if !strings.HasSuffix(key, "_count") {
			continue
		}
		memberType := MemberType(strings.ToLower(strings.Split(key, "_")[0]))
		course.MemberCounts[memberType] = int(count)
	}

	if id, ok := ExtractID(string(c.StartSemester)); ok {
		course.StartSemesterID = id
	}
	if id, ok := ExtractID(string(c.EndSemester)); ok {
		course.EndSemesterID = id
	}

	moduleKeys := make([]string, 0, len(c.Modules))
	for k := range c.Modules {
		moduleKeys = append(moduleKeys, k)
	}
	sort.Strings(moduleKeys)
	for _, k := range moduleKeys {
		course.Modules = append(course.Modules, Module{Key: k, Path: string(c.Modules[k])})
	}

	return NewCourse(course)
}

type semesterJSON struct {
	ID    flexString `json:"id"`
	Title flexString `json:"title"`
	Begin flexInt    `json:"begin"`
	End   flexInt    `json:"end"`
}

func (s semesterJSON) toSemester() Semester {
	return Semester{
		ID:    ID(s.ID),
		Title: strings.TrimSpace(html.UnescapeString(string(s.Title))),
		Begin: int64(s.Begin),
		End:   int64(s.End),
	}
}

type folderJSON struct {
	ID         flexString `json:"id"`
	Name       flexString `json:"name"`
	FileRefs   idList     `json:"file_refs"`
	Subfolders idList     `json:"subfolders"`
}

func (f folderJSON) toFolder() Folder {
	return Folder{
		ID:           ID(f.ID),
		Name:         strings.TrimSpace(string(f.Name)),
		FileIDs:      f.FileRefs,
		SubfolderIDs: f.Subfolders,
	}
}

type fileRefJSON struct {
	ID     flexString `json:"id"`
	Name   flexString `json:"name"`
	ChDate flexInt    `json:"chdate"`
	Size   flexInt    `json:"size"`
}

func (f fileRefJSON) toFileRef() FileRef {
	return FileRef{
		ID:     ID(f.ID),
		Name:   string(f.Name),
		ChDate: int64(f.ChDate),
		Size:   int64(f.Size),
	}
}

type newsJSON struct {
	ID     flexString `json:"news_id"`
	Topic  flexString `json:"topic"`
	Body   flexString `json:"body"`
	Date   flexInt    `json:"date"`
	ChDate flexInt    `json:"chdate"`
}

func (n newsJSON) toNews(courseID ID) News {
	return News{
		ID:       ID(n.ID),
		CourseID: courseID,
		Topic:    strings.TrimSpace(html.UnescapeString(string(n.Topic))),
		Body:     string(n.Body),
		Date:     int64(n.Date),
		ChDate:   int64(n.ChDate),
	}
}

// collection is keyed by the entry's API link. Empty collections are
// sometimes sent as a JSON array.
type collection map[string]json.RawMessage

func (c *collection) UnmarshalJSON(b []byte) error {
	var list []json.RawMessage
	if err := json.Unmarshal(b, &list); err == nil {
		entries := collection{}
		for i, entry := range list {
			entries[fmt.Sprintf("%08d", i)] = entry
		}
		*c = entries
		return nil
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(b, &entries); err != nil {
		return err
	}
	*c = entries
	return nil
}

// page is the envelope of paginated collection responses.
type page struct {
	Pagination struct {
		Total  flexInt `json:"total"`
		Offset flexInt `json:"offset"`
		Limit  flexInt `json:"limit"`
	} `json:"pagination"`
	Collection collection `json:"collection"`
}

// sortedEntries returns the collection's values ordered by their key so
// that results are stable across runs.
func (p page) sortedEntries() []json.RawMessage {
	keys := make([]string, 0, len(p.Collection))
	for k := range p.Collection {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]json.RawMessage, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, p.Collection[k])
	}
	return entries
}
