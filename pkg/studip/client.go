package studip

//go:generate mockery -name Client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	log "github.com/sirupsen/logrus"

	"github.com/sidkik/studip-sync/pkg/errors"
	"github.com/sidkik/studip-sync/pkg/version"
)

const (
	// DefaultBaseURL is the Stud.IP instance used when none is configured.
	DefaultBaseURL = "https://studip.uni-hannover.de"

	apiPath = "/api.php"

	userEndpoint         = "/user"
	userCoursesEndpoint  = "/user/:id/courses"
	courseEndpoint       = "/course/:id"
	courseNewsEndpoint   = "/course/:id/news"
	topFolderEndpoint    = "/course/:id/top_folder"
	folderEndpoint       = "/folder/:id"
	fileEndpoint         = "/file/:id"
	fileDownloadEndpoint = "/file/:id/download"
	semesterEndpoint     = "/semester/:id"
	semestersEndpoint    = "/semesters"

	// pageLimit is the number of collection entries requested per page.
	pageLimit = 20

	// connectTimeout bounds establishing a connection to the API. Requests
	// themselves aren't bounded so that large downloads can finish.
	connectTimeout = 2 * time.Second

	courseCacheSize = 512
)

// ErrNoCurrentSemester is returned when no semester contains the current
// time.
var ErrNoCurrentSemester = errors.New("no current semester")

// Credentials are handed to the API as HTTP Basic authentication.
type Credentials struct {
	Username string
	Password string
}

// Client is the interface for reading course data from the Stud.IP REST API.
// Every method other than Authenticate fails with errors.ErrNotAuthenticated
// before touching the network if the session isn't authenticated.
type Client interface {
	Authenticate(ctx context.Context) error
	IsAuthenticated() bool
	CurrentUserID() ID

	GetCourse(ctx context.Context, id ID) (*Course, error)
	GetAllCourses(ctx context.Context) ([]*Course, error)
	GetCourseNews(ctx context.Context, courseID ID) ([]News, error)

	GetSemester(ctx context.Context, id ID) (Semester, error)
	GetAllSemesters(ctx context.Context) ([]Semester, error)
	GetCurrentSemester(ctx context.Context) (Semester, error)

	GetTopFolder(ctx context.Context, courseID ID) (Folder, error)
	GetFolder(ctx context.Context, id ID) (Folder, error)
	GetFileRef(ctx context.Context, id ID) (FileRef, error)

	// Download returns the contents of the file. The caller must close the
	// returned reader.
	Download(ctx context.Context, fileID ID) (io.ReadCloser, error)
}

type client struct {
	apiURL string
	creds  Credentials
	http   *http.Client

	// courses is an advisory cache. Entries may be stale and are never
	// required for correctness.
	courses *lru.Cache

	lock          sync.RWMutex
	authenticated bool
	userID        ID
}

// now is mocked out in the unit tests.
var now = time.Now

// New returns a new API Client for the Stud.IP instance at `baseURL`.
func New(baseURL string, creds Credentials) (Client, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, errors.WithContext(err, "parse base url")
	}

	courses, err := lru.New(courseCacheSize)
	if err != nil {
		return nil, errors.WithContext(err, "create course cache")
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConnsPerHost: 16,
	}

	return &client{
		apiURL:  strings.TrimRight(baseURL, "/") + apiPath,
		creds:   creds,
		http:    &http.Client{Transport: transport},
		courses: courses,
	}, nil
}

func (c *client) Authenticate(ctx context.Context) error {
	var user userJSON
	err := c.getJSON(ctx, userEndpoint, nil, &user)

	c.lock.Lock()
	defer c.lock.Unlock()
	if err != nil {
		c.authenticated = false
		return errors.WithContext(err, "get user")
	}

	c.authenticated = true
	c.userID = ID(user.ID)
	log.WithField("userID", c.userID).Debug("Authenticated")
	return nil
}

func (c *client) IsAuthenticated() bool {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.authenticated
}

func (c *client) CurrentUserID() ID {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.userID
}

func (c *client) checkAuthenticated() error {
	if !c.IsAuthenticated() {
		return errors.ErrNotAuthenticated
	}
	return nil
}

func (c *client) GetCourse(ctx context.Context, id ID) (*Course, error) {
	if err := c.checkAuthenticated(); err != nil {
		return nil, err
	}

	if cached, ok := c.courses.Get(id); ok {
		return cached.(*Course), nil
	}

	var raw courseJSON
	if err := c.getJSON(ctx, withID(courseEndpoint, id), nil, &raw); err != nil {
		return nil, errors.WithContext(err, fmt.Sprintf("get course %s", id))
	}

	course := raw.toCourse()
	c.courses.Add(course.ID, course)
	return course, nil
}

func (c *client) GetAllCourses(ctx context.Context) ([]*Course, error) {
	if err := c.checkAuthenticated(); err != nil {
		return nil, err
	}

	entries, err := c.paginate(ctx, withID(userCoursesEndpoint, c.CurrentUserID()))
	if err != nil {
		return nil, errors.WithContext(err, "list courses")
	}

	courses := make([]*Course, 0, len(entries))
	for _, entry := range entries {
		var raw courseJSON
		if err := json.Unmarshal(entry, &raw); err != nil {
			return nil, errors.WithContext(err, "parse course")
		}

		course := raw.toCourse()
		c.courses.Add(course.ID, course)
		courses = append(courses, course)
	}
	return courses, nil
}

func (c *client) GetCourseNews(ctx context.Context, courseID ID) ([]News, error) {
	if err := c.checkAuthenticated(); err != nil {
		return nil, err
	}

	entries, err := c.paginate(ctx, withID(courseNewsEndpoint, courseID))
	if err != nil {
		return nil, errors.WithContext(err, "list news")
	}

	news := make([]News, 0, len(entries))
	for _, entry := range entries {
		var raw newsJSON
		if err := json.Unmarshal(entry, &raw); err != nil {
			return nil, errors.WithContext(err, "parse news")
		}
		news = append(news, raw.toNews(courseID))
	}
	return news, nil
}

func (c *client) GetSemester(ctx context.Context, id ID) (Semester, error) {
	if err := c.checkAuthenticated(); err != nil {
		return Semester{}, err
	}

	var raw semesterJSON
	if err := c.getJSON(ctx, withID(semesterEndpoint, id), nil, &raw); err != nil {
		return Semester{}, errors.WithContext(err, fmt.Sprintf("get semester %s", id))
	}
	return raw.toSemester(), nil
}

func (c *client) GetAllSemesters(ctx context.Context) ([]Semester, error) {
	if err := c.checkAuthenticated(); err != nil {
		return nil, err
	}

	entries, err := c.paginate(ctx, semestersEndpoint)
	if err != nil {
		return nil, errors.WithContext(err, "list semesters")
	}

	semesters := make([]Semester, 0, len(entries))
	for _, entry := range entries {
		var raw semesterJSON
		if err := json.Unmarshal(entry, &raw); err != nil {
			return nil, errors.WithContext(err, "parse semester")
		}
		semesters = append(semesters, raw.toSemester())
	}
	return semesters, nil
}

func (c *client) GetCurrentSemester(ctx context.Context) (Semester, error) {
	semesters, err := c.GetAllSemesters(ctx)
	if err != nil {
		return Semester{}, err
	}

	t := now()
	for _, semester := range semesters {
		if semester.Contains(t) {
			return semester, nil
		}
	}
	return Semester{}, ErrNoCurrentSemester
}

func (c *client) GetTopFolder(ctx context.Context, courseID ID) (Folder, error) {
	if err := c.checkAuthenticated(); err != nil {
		return Folder{}, err
	}

	var raw folderJSON
	if err := c.getJSON(ctx, withID(topFolderEndpoint, courseID), nil, &raw); err != nil {
		return Folder{}, errors.WithContext(err, fmt.Sprintf("get top folder of %s", courseID))
	}
	return raw.toFolder(), nil
}

func (c *client) GetFolder(ctx context.Context, id ID) (Folder, error) {
	if err := c.checkAuthenticated(); err != nil {
		return Folder{}, err
	}

	var raw folderJSON
	if err := c.getJSON(ctx, withID(folderEndpoint, id), nil, &raw); err != nil {
		return Folder{}, errors.WithContext(err, fmt.Sprintf("get folder %s", id))
	}
	return raw.toFolder(), nil
}

func (c *client) GetFileRef(ctx context.Context, id ID) (FileRef, error) {
	if err := c.checkAuthenticated(); err != nil {
		return FileRef{}, err
	}

	var raw fileRefJSON
	if err := c.getJSON(ctx, withID(fileEndpoint, id), nil, &raw); err != nil {
		return FileRef{}, errors.WithContext(err, fmt.Sprintf("get file %s", id))
	}
	return raw.toFileRef(), nil
}

func (c *client) Download(ctx context.Context, fileID ID) (io.ReadCloser, error) {
	if err := c.checkAuthenticated(); err != nil {
		return nil, err
	}

	resp, err := c.get(ctx, withID(fileDownloadEndpoint, fileID), nil)
	if err != nil {
		return nil, errors.WithContext(err, fmt.Sprintf("download file %s", fileID))
	}
	return resp.Body, nil
}

// paginate fetches every entry of a paginated collection. The total is read
// from a single-entry request first.
func (c *client) paginate(ctx context.Context, path string) ([]json.RawMessage, error) {
	var first page
	if err := c.getJSON(ctx, path, url.Values{"limit": {"1"}}, &first); err != nil {
		return nil, errors.WithContext(err, "get total")
	}

	total := int(first.Pagination.Total)
	var entries []json.RawMessage
	for offset := 0; offset < total; offset += pageLimit {
		query := url.Values{
			"offset": {strconv.Itoa(offset)},
			"limit":  {strconv.Itoa(pageLimit)},
		}

		var p page
		if err := c.getJSON(ctx, path, query, &p); err != nil {
			return nil, errors.WithContext(err, fmt.Sprintf("get page at offset %d", offset))
		}
		entries = append(entries, p.sortedEntries()...)
	}
	return entries, nil
}

func (c *client) getJSON(ctx context.Context, path string, query url.Values, v interface{}) error {
	resp, err := c.get(ctx, path, query)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return errors.WithContext(err, "decode response")
	}
	return nil
}

// get issues an authenticated GET request. Any status outside of 2xx is
// returned as an errors.HTTPStatusError.
func (c *client) get(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	reqURL := c.apiURL + path
	if len(query) != 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequest(http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errors.WithContext(err, "create request")
	}
	req = req.WithContext(ctx)
	req.SetBasicAuth(c.creds.Username, c.creds.Password)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain the body so that the connection can be reused.
		io.Copy(ioutil.Discard, resp.Body)
		resp.Body.Close()
		return nil, errors.HTTPStatusError{
			Method:     http.MethodGet,
			URL:        c.apiURL + path,
			StatusCode: resp.StatusCode,
		}
	}
	return resp, nil
}

func withID(template string, id ID) string {
	return strings.Replace(template, ":id", string(id), 1)
}
