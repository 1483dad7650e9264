package config

import (
	"fmt"
	"testing"
	"time"

	"github.com/ghodss/yaml"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"

	"github.com/sidkik/studip-sync/pkg/errors"
)

func TestParseUser(t *testing.T) {
	out := "/home/jdoe/.studip-sync.yaml"
	userEmptyVersion := User{
		Username:    "jdoe",
		DownloadDir: "/data/studip",
	}
	userInitialVersion := User{
		Version:     InitialUserConfigVersion,
		BaseURL:     DefaultBaseURL,
		Username:    "jdoe",
		DownloadDir: "/data/studip",
	}
	userCorrectVersion := User{
		Version:      SupportedUserConfigVersion,
		BaseURL:      "https://studip.example.com",
		Username:     "jdoe",
		Password:     "secret",
		DownloadDir:  "/data/studip",
		SyncInterval: "30m",
		Workers:      4,
	}
	userIncorrectVersion := User{
		Version:     "incorrect_version",
		Username:    "jdoe",
		DownloadDir: "/data/studip",
	}
	userEmptyVersionString, err := yaml.Marshal(userEmptyVersion)
	assert.NoError(t, err)
	userCorrectVersionString, err := yaml.Marshal(userCorrectVersion)
	assert.NoError(t, err)
	userIncorrectVersionString, err := yaml.Marshal(userIncorrectVersion)
	assert.NoError(t, err)

	tests := []struct {
		name      string
		input     []byte
		expConfig User
		expError  error
	}{
		{
			name:      "EmptyVersion",
			input:     userEmptyVersionString,
			expConfig: userInitialVersion,
		},
		{
			name:      "CorrectVersion",
			input:     userCorrectVersionString,
			expConfig: userCorrectVersion,
		},
		{
			name:  "IncorrectVersion",
			input: userIncorrectVersionString,
			expError: versionError{
				path:   out,
				actual: userIncorrectVersion.Version,
			},
		},
		{
			name: "ExtraFields",
			input: []byte(fmt.Sprintf(
				"version: %s\nextra: fields", SupportedUserConfigVersion)),
			expError: errors.NewFriendlyError(parseErrTemplate, out,
				errors.New("error unmarshaling JSON: while decoding JSON: "+
					`json: unknown field "extra"`)),
		},
		{
			name:     "MissingUsername",
			input:    []byte("downloadDir: /data/studip"),
			expError: errors.WithContext(errors.MissingFieldError{Field: "username"}, "validate"),
		},
		{
			name:     "MissingDownloadDir",
			input:    []byte("username: jdoe"),
			expError: errors.WithContext(errors.MissingFieldError{Field: "downloadDir"}, "validate"),
		},
		{
			name:  "BadInterval",
			input: []byte("username: jdoe\ndownloadDir: /data\nsyncInterval: often"),
			expError: errors.NewFriendlyError("The syncInterval %q in %q is not "+
				"a valid duration. Use a value such as \"30m\", or \"0s\" to "+
				"sync only once.", "often", out),
		},
		{
			name:  "RelativeDownloadDir",
			input: []byte("username: jdoe\ndownloadDir: studip"),
			expConfig: User{
				Version:     InitialUserConfigVersion,
				BaseURL:     DefaultBaseURL,
				Username:    "jdoe",
				DownloadDir: "/home/jdoe/studip",
			},
		},
	}

	fs = afero.NewMemMapFs()
	homedirExpand = func(_ string) (string, error) {
		return out, nil
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			err := afero.WriteFile(fs, out, test.input, 0644)
			assert.NoError(t, err)
			config, err := ParseUser()
			assert.Equal(t, test.expConfig, config)
			assert.Equal(t, test.expError, err)
		})
	}
}

func TestVersionErrorMessage(t *testing.T) {
	err := versionError{path: "/home/jdoe/.studip-sync.yaml", actual: "v2"}
	assert.Equal(t, "The config file \"/home/jdoe/.studip-sync.yaml\" uses "+
		"version \"v2\" of the config format, but this version of studip-sync "+
		"reads \"v1alpha1\".\nRun `studip-sync config` to recreate it.",
		errors.GetPrintableMessage(err))
}

func TestParseUserMissing(t *testing.T) {
	fs = afero.NewMemMapFs()
	homedirExpand = func(_ string) (string, error) {
		return "/home/jdoe/.studip-sync.yaml", nil
	}

	_, err := ParseUser()
	_, isFriendly := err.(errors.Friendly)
	assert.True(t, isFriendly)
}

func TestParseWrittenUser(t *testing.T) {
	fs = afero.NewMemMapFs()
	homedirExpand = func(_ string) (string, error) {
		return "/home/jdoe/.studip-sync.yaml", nil
	}

	user := User{
		BaseURL:      DefaultBaseURL,
		Username:     "jdoe",
		Password:     "secret",
		DownloadDir:  "/data/studip",
		SyncInterval: "1h",
	}

	// Write the user to disk, and assert that we get the same user config when
	// we parse it.
	assert.NoError(t, WriteUser(user))

	parsed, err := ParseUser()
	assert.NoError(t, err)

	user.Version = SupportedUserConfigVersion
	assert.Equal(t, user, parsed)
	assert.Equal(t, time.Hour, parsed.Interval())

	info, err := fs.Stat("/home/jdoe/.studip-sync.yaml")
	assert.NoError(t, err)
	assert.Equal(t, "-rw-------", info.Mode().String())
}
