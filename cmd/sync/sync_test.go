package sync

import (
	"bytes"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/studip-sync/pkg/config"
	"github.com/sidkik/studip-sync/pkg/errors"
	"github.com/sidkik/studip-sync/pkg/fswatch"
	"github.com/sidkik/studip-sync/pkg/studip"
	"github.com/sidkik/studip-sync/pkg/studip/mocks"
	syncer "github.com/sidkik/studip-sync/pkg/sync"
)

func TestApplyOptions(t *testing.T) {
	homedirExpand = func(path string) (string, error) {
		return filepath.Join("/home/jdoe", path[1:]), nil
	}
	defer func() { homedirExpand = homedir.Expand }()

	base := config.User{
		Username:     "jdoe",
		DownloadDir:  "/home/jdoe/studip",
		SyncInterval: "30m",
	}

	tests := []struct {
		name      string
		opts      options
		expConfig config.User
		expError  error
	}{
		{
			name:      "No overrides",
			expConfig: base,
		},
		{
			name: "Override interval",
			opts: options{interval: "1h"},
			expConfig: config.User{
				Username:     "jdoe",
				DownloadDir:  "/home/jdoe/studip",
				SyncInterval: "1h",
			},
		},
		{
			name: "Once takes precedence over the interval",
			opts: options{once: true, interval: "1h"},
			expConfig: config.User{
				Username:    "jdoe",
				DownloadDir: "/home/jdoe/studip",
			},
		},
		{
			name: "Override download directory",
			opts: options{downloadDir: "~/uni"},
			expConfig: config.User{
				Username:     "jdoe",
				DownloadDir:  "/home/jdoe/uni",
				SyncInterval: "30m",
			},
		},
		{
			name:     "Invalid interval",
			opts:     options{interval: "often"},
			expError: errors.NewFriendlyError("Invalid interval \"often\". It should be a duration such as 30m or 1h."),
		},
		{
			name:     "Negative interval",
			opts:     options{interval: "-5m"},
			expError: errors.NewFriendlyError("Invalid interval \"-5m\". It should be a duration such as 30m or 1h."),
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			userConfig := base
			err := applyOptions(&userConfig, test.opts)
			if test.expError != nil {
				assert.Equal(t, test.expError, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, test.expConfig, userConfig)
		})
	}
}

func TestSyncError(t *testing.T) {
	err := syncError(errors.WithContext(errors.FileNotFound{Path: "/studip"}, "stat"))
	assert.Equal(t, "The download directory \"/studip\" doesn't exist. "+
		"Create it, or run `studip-sync config` to choose another.",
		errors.GetPrintableMessage(err))

	err = syncError(errors.NotDirectoryError{Path: "/studip"})
	assert.Equal(t, "The download directory \"/studip\" isn't a directory. "+
		"Run `studip-sync config` to choose another.",
		errors.GetPrintableMessage(err))

	err = syncError(errors.New("boom"))
	assert.EqualError(t, err, "sync: boom")
}

func TestAuthenticate(t *testing.T) {
	out := &bytes.Buffer{}
	stdout = out

	tests := []struct {
		name     string
		authErr  error
		expError string
	}{
		{
			name: "Success",
		},
		{
			name: "Rejected credentials",
			authErr: errors.WithContext(errors.HTTPStatusError{
				Method:     "GET",
				URL:        "https://studip.example.com/api.php/user",
				StatusCode: 401,
			}, "get user"),
			expError: "Stud.IP rejected the credentials of \"jdoe\".\n" +
				"Run `studip-sync config` to update them.",
		},
		{
			name:     "Unreachable",
			authErr:  errors.New("connection refused"),
			expError: "log in: connection refused",
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			client := &mocks.Client{}
			client.On("Authenticate", mock.Anything).Return(test.authErr)

			cmd := syncCmd{
				userConfig: config.User{Username: "jdoe"},
				client:     client,
			}
			err := cmd.authenticate()
			if test.expError == "" {
				assert.NoError(t, err)
			} else {
				assert.Equal(t, test.expError, errors.GetPrintableMessage(err))
			}
			client.AssertExpectations(t)
		})
	}
}

func TestRunHeadless(t *testing.T) {
	out := &bytes.Buffer{}
	stdout = out
	warmUp = time.Millisecond
	notifyInterrupt = func(chan<- os.Signal) {}
	defer func() { warmUp = syncer.WarmUpInterval }()

	root, err := ioutil.TempDir("", "studip-sync")
	require.NoError(t, err)
	defer os.RemoveAll(root)

	client := &mocks.Client{}
	client.On("GetAllCourses", mock.Anything).Return([]*studip.Course{}, nil)

	cmd := syncCmd{
		userConfig: config.User{Username: "jdoe", DownloadDir: root, Workers: 2},
		client:     client,
		gui:        noOutputGUI{},
	}
	require.NoError(t, cmd.run())
	assert.Equal(t, "All courses are up to date.\n", out.String())
	client.AssertExpectations(t)
}

func TestRunMissingDownloadDir(t *testing.T) {
	stdout = &bytes.Buffer{}
	warmUp = time.Millisecond
	notifyInterrupt = func(chan<- os.Signal) {}
	defer func() { warmUp = syncer.WarmUpInterval }()

	root, err := ioutil.TempDir("", "studip-sync")
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(root))

	client := &mocks.Client{}
	client.On("GetAllCourses", mock.Anything).Return([]*studip.Course{}, nil)

	cmd := syncCmd{
		userConfig: config.User{Username: "jdoe", DownloadDir: root, SyncInterval: "1h"},
		client:     client,
		gui:        noOutputGUI{},
	}
	err = cmd.run()
	assert.Equal(t, errors.NewFriendlyError("The download directory %q doesn't exist. "+
		"Create it, or run `studip-sync config` to choose another.", root), err)
}

func TestSummary(t *testing.T) {
	stats := newSummary()
	assert.Equal(t, "All courses are up to date.", stats.String())

	analysis := studip.NewCourse(studip.Course{ID: "c1", Title: "Analysis I"})
	stats.files += 2
	stats.courses[analysis.ID] = struct{}{}
	assert.Equal(t, "Synced 2 files in 1 courses.", stats.String())
}

func TestCoursesWidget(t *testing.T) {
	analysis := studip.NewCourse(studip.Course{ID: "c1", Title: "Analysis I"})
	algebra := studip.NewCourse(studip.Course{ID: "c2", Title: "Algebra"})

	w := newCoursesWidget()
	w.updateProgress(syncer.ProgressEvent{Course: analysis, Fraction: 0.5})
	w.updateFinished(syncer.FinishedEvent{Course: algebra, Files: []string{"a", "b"}})

	statuses := w.sorted()
	require.Len(t, statuses, 2)
	assert.Equal(t, courseStatus{title: "Algebra", fraction: 1, files: 2, finished: true}, statuses[0])
	assert.Equal(t, courseStatus{title: "Analysis I", fraction: 0.5}, statuses[1])

	w.updateFinished(syncer.FinishedEvent{Course: analysis, Files: []string{"c"}})
	assert.True(t, w.sorted()[1].finished)
}

func TestNextSyncString(t *testing.T) {
	assert.Equal(t, "Starting", nextSyncString(time.Time{}))
	assert.Equal(t, "Stopped", nextSyncString(time.Unix(0, 0)))

	next := time.Date(2023, 11, 2, 15, 4, 0, 0, time.Local)
	assert.Equal(t, "Next sync at 3:04PM", nextSyncString(next))
}

func TestReloadInterval(t *testing.T) {
	intervals := []string{"1h", "not a duration", "1h", "5m"}
	i := 0
	parseUserConfig = func() (config.User, error) {
		defer func() { i++ }()
		if intervals[i] == "not a duration" {
			return config.User{}, errors.New("parse")
		}
		return config.User{SyncInterval: intervals[i]}, nil
	}
	defer func() { parseUserConfig = config.ParseUser }()

	loop := syncer.NewLoop(syncer.LoopConfig{Interval: 30 * time.Minute})
	updates := make(chan struct{})
	done := make(chan struct{})
	go func() {
		reloadInterval(loop, updates, logrus.StandardLogger())
		close(done)
	}()

	updates <- struct{}{}
	updates <- struct{}{}
	updates <- struct{}{}
	updates <- struct{}{}
	close(updates)
	<-done

	assert.Equal(t, 5*time.Minute, loop.Interval())
	assert.Equal(t, len(intervals), i)
}

func TestWatchConfigUnavailable(t *testing.T) {
	getUserConfigPath = func() (string, error) {
		return "/home/jdoe/.studip-sync.yaml", nil
	}
	watchFile = func(path string) (<-chan struct{}, io.Closer, error) {
		assert.Equal(t, "/home/jdoe/.studip-sync.yaml", path)
		return nil, nil, errors.FileNotFound{Path: path}
	}
	defer func() {
		getUserConfigPath = config.GetUserConfigPath
		watchFile = fswatch.Watch
	}()

	loop := syncer.NewLoop(syncer.LoopConfig{})
	assert.Nil(t, watchConfig(loop, logrus.StandardLogger()))
}
