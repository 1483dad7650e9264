package studip

import (
	"context"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/studip-sync/pkg/errors"
)

const (
	testUserID   = "0123456789abcdef0123456789abcdef"
	testCourseID = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	testFolderID = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	testFileID   = "cccccccccccccccccccccccccccccccc"
)

type fakeAPI struct {
	routes   map[string]func(w http.ResponseWriter, r *http.Request)
	requests int32
}

func newFakeAPI(t *testing.T) (*fakeAPI, Client) {
	api := &fakeAPI{routes: map[string]func(http.ResponseWriter, *http.Request){
		"/api.php/user": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, `{"user_id": %q, "username": "jdoe", "name": {"formatted": "Jane Doe"}}`, testUserID)
		},
	}}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&api.requests, 1)
		if user, pass, ok := r.BasicAuth(); !ok || user != "jdoe" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		handler, ok := api.routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	client, err := New(server.URL, Credentials{Username: "jdoe", Password: "secret"})
	require.NoError(t, err)
	return api, client
}

func TestNotAuthenticated(t *testing.T) {
	api, client := newFakeAPI(t)
	ctx := context.Background()

	_, err := client.GetCourse(ctx, testCourseID)
	assert.Equal(t, errors.ErrNotAuthenticated, err)

	_, err = client.GetAllCourses(ctx)
	assert.Equal(t, errors.ErrNotAuthenticated, err)

	_, err = client.GetTopFolder(ctx, testCourseID)
	assert.Equal(t, errors.ErrNotAuthenticated, err)

	_, err = client.GetFolder(ctx, testFolderID)
	assert.Equal(t, errors.ErrNotAuthenticated, err)

	_, err = client.GetFileRef(ctx, testFileID)
	assert.Equal(t, errors.ErrNotAuthenticated, err)

	_, err = client.Download(ctx, testFileID)
	assert.Equal(t, errors.ErrNotAuthenticated, err)

	_, err = client.GetCurrentSemester(ctx)
	assert.Equal(t, errors.ErrNotAuthenticated, err)

	assert.Zero(t, atomic.LoadInt32(&api.requests))
}

func TestAuthenticate(t *testing.T) {
	_, client := newFakeAPI(t)

	require.NoError(t, client.Authenticate(context.Background()))
	assert.True(t, client.IsAuthenticated())
	assert.Equal(t, ID(testUserID), client.CurrentUserID())
}

func TestAuthenticateBadCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client, err := New(server.URL, Credentials{Username: "jdoe", Password: "wrong"})
	require.NoError(t, err)

	err = client.Authenticate(context.Background())
	assert.Equal(t, errors.HTTPStatusError{
		Method:     http.MethodGet,
		URL:        server.URL + "/api.php/user",
		StatusCode: http.StatusUnauthorized,
	}, errors.RootCause(err))
	assert.False(t, client.IsAuthenticated())
}

func TestGetAllCoursesPaginates(t *testing.T) {
	api, client := newFakeAPI(t)

	var queries []string
	api.routes["/api.php/user/"+testUserID+"/courses"] = func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.RawQuery)

		offset := r.URL.Query().Get("offset")
		limit := r.URL.Query().Get("limit")
		if limit == "1" {
			fmt.Fprint(w, `{"pagination": {"total": 25, "offset": 0, "limit": 1}, "collection": {}}`)
			return
		}

		var entries []string
		start := 0
		fmt.Sscanf(offset, "%d", &start)
		for i := start; i < start+20 && i < 25; i++ {
			id := fmt.Sprintf("%032x", i)
			entries = append(entries, fmt.Sprintf(
				`"/api.php/course/%s": {"course_id": %q, "title": "Course %02d"}`, id, id, i))
		}
		fmt.Fprintf(w, `{"pagination": {"total": 25}, "collection": {%s}}`, strings.Join(entries, ","))
	}

	require.NoError(t, client.Authenticate(context.Background()))
	courses, err := client.GetAllCourses(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"limit=1",
		"limit=20&offset=0",
		"limit=20&offset=20",
	}, queries)
	require.Len(t, courses, 25)
	assert.Equal(t, "Course 00", courses[0].Title)
	assert.Equal(t, "Course 24", courses[24].Title)
}

func TestGetAllCoursesEmpty(t *testing.T) {
	api, client := newFakeAPI(t)
	api.routes["/api.php/user/"+testUserID+"/courses"] = func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"pagination": {"total": 0}, "collection": []}`)
	}

	require.NoError(t, client.Authenticate(context.Background()))
	courses, err := client.GetAllCourses(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, courses)
}

func TestGetCourseCaches(t *testing.T) {
	api, client := newFakeAPI(t)

	var fetches int32
	api.routes["/api.php/course/"+testCourseID] = func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fetches, 1)
		fmt.Fprintf(w, `{
			"course_id": %q,
			"number": 4711,
			"title": " Übung Algorithmen &amp; Datenstrukturen ",
			"type": "1",
			"members": {
				"user": "/api.php/course/%s/members?status=user",
				"user_count": "120",
				"dozent_count": 2
			},
			"start_semester": "/api.php/semester/eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee",
			"end_semester": null,
			"modules": {"documents": "/api.php/course/%s/files"}
		}`, testCourseID, testCourseID, testCourseID)
	}

	require.NoError(t, client.Authenticate(context.Background()))
	for i := 0; i < 2; i++ {
		course, err := client.GetCourse(context.Background(), testCourseID)
		require.NoError(t, err)

		assert.Equal(t, ID(testCourseID), course.ID)
		assert.Equal(t, "4711", course.Number)
		assert.Equal(t, "Übung Algorithmen & Datenstrukturen", course.Title)
		assert.True(t, course.IsTutorial())
		assert.Equal(t, 1, course.Type)
		assert.Equal(t, map[MemberType]int{MemberUser: 120, MemberDozent: 2}, course.MemberCounts)
		assert.Equal(t, ID("eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"), course.StartSemesterID)
		assert.Empty(t, course.EndSemesterID)
		assert.Equal(t, []Module{{Key: "documents", Path: "/api.php/course/" + testCourseID + "/files"}}, course.Modules)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetches))
}

func TestGetFolder(t *testing.T) {
	api, client := newFakeAPI(t)
	api.routes["/api.php/course/"+testCourseID+"/top_folder"] = func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{
			"id": %q,
			"name": "Allgemeiner Dateiordner",
			"file_refs": [{"id": %q, "name": "slides.pdf"}],
			"subfolders": {"/api.php/folder/dddddddddddddddddddddddddddddddd": {"id": "dddddddddddddddddddddddddddddddd"}}
		}`, testFolderID, testFileID)
	}
	api.routes["/api.php/folder/"+testFolderID] = func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"id": %q, "name": "Empty", "file_refs": [], "subfolders": []}`, testFolderID)
	}

	require.NoError(t, client.Authenticate(context.Background()))

	top, err := client.GetTopFolder(context.Background(), testCourseID)
	require.NoError(t, err)
	assert.Equal(t, Folder{
		ID:           testFolderID,
		Name:         "Allgemeiner Dateiordner",
		FileIDs:      []ID{testFileID},
		SubfolderIDs: []ID{"dddddddddddddddddddddddddddddddd"},
	}, top)

	empty, err := client.GetFolder(context.Background(), testFolderID)
	require.NoError(t, err)
	assert.Empty(t, empty.FileIDs)
	assert.Empty(t, empty.SubfolderIDs)

	_, err = client.GetFolder(context.Background(), "ffffffffffffffffffffffffffffffff")
	assert.IsType(t, errors.HTTPStatusError{}, errors.RootCause(err))
}

func TestGetFileRefAndDownload(t *testing.T) {
	api, client := newFakeAPI(t)
	api.routes["/api.php/file/"+testFileID] = func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"id": %q, "name": "slides.pdf", "chdate": "1546300800", "size": 5}`, testFileID)
	}
	api.routes["/api.php/file/"+testFileID+"/download"] = func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "hello")
	}

	require.NoError(t, client.Authenticate(context.Background()))

	ref, err := client.GetFileRef(context.Background(), testFileID)
	require.NoError(t, err)
	assert.Equal(t, FileRef{ID: testFileID, Name: "slides.pdf", ChDate: 1546300800, Size: 5}, ref)
	assert.Equal(t, time.Unix(1546300800, 0), ref.ChangeTime())

	body, err := client.Download(context.Background(), testFileID)
	require.NoError(t, err)
	defer body.Close()

	contents, err := ioutil.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(contents))
}

func TestGetCurrentSemester(t *testing.T) {
	api, client := newFakeAPI(t)
	api.routes["/api.php/semesters"] = func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"pagination": {"total": 2},
			"collection": {
				"/api.php/semester/11111111111111111111111111111111": {
					"id": "11111111111111111111111111111111", "title": "WiSe 18/19", "begin": 1538344800, "end": 1554069599
				},
				"/api.php/semester/22222222222222222222222222222222": {
					"id": "22222222222222222222222222222222", "title": "SoSe 19", "begin": 1554069600, "end": 1569880799
				}
			}
		}`)
	}

	defer func(orig func() time.Time) { now = orig }(now)

	require.NoError(t, client.Authenticate(context.Background()))

	now = func() time.Time { return time.Unix(1560000000, 0) }
	semester, err := client.GetCurrentSemester(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SoSe 19", semester.Title)

	now = func() time.Time { return time.Unix(1600000000, 0) }
	_, err = client.GetCurrentSemester(context.Background())
	assert.Equal(t, ErrNoCurrentSemester, err)
}
