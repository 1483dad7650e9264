package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ghodss/yaml"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"

	"github.com/sidkik/studip-sync/pkg/errors"
)

const (
	// UserConfigPath is the default path to the user config.
	UserConfigPath = "~/.studip-sync.yaml"

	// InitialUserConfigVersion is the first version of the user config.
	// Config files that do not specify a version will default to this
	// version.
	InitialUserConfigVersion = "v1alpha1"

	// SupportedUserConfigVersion is the supported version of the user config
	// of the current binary.
	SupportedUserConfigVersion = "v1alpha1"

	// DefaultBaseURL is the Stud.IP instance used if none is configured.
	DefaultBaseURL = "https://studip.uni-hannover.de"
)

// User contains the credentials of the user and where their files are
// synced to.
type User struct {
	Version     string `json:"version,omitempty"`
	BaseURL     string `json:"baseURL,omitempty"`
	Username    string `json:"username"`
	Password    string `json:"password,omitempty"`
	DownloadDir string `json:"downloadDir"`

	// SyncInterval is a duration such as "15m". If it's empty or zero, the
	// courses are only synced once.
	SyncInterval string `json:"syncInterval,omitempty"`

	// Workers is the number of concurrent requests. Zero uses one per CPU.
	Workers int `json:"workers,omitempty"`
}

// Interval returns the parsed SyncInterval.
func (u User) Interval() time.Duration {
	if u.SyncInterval == "" {
		return 0
	}

	// The interval is validated by ParseUser.
	d, _ := time.ParseDuration(u.SyncInterval)
	return d
}

// homedirExpand will be overridden in mock tests
var homedirExpand = homedir.Expand

// parseErrTemplate is used when the config file isn't valid YAML, or when
// its fields have the wrong type or are unknown. The yaml library's errors
// don't name the offending line, so its message is passed on as is.
const parseErrTemplate = "The config file %q could not be parsed.\n" +
	"Fix the error below, or run `studip-sync config` to recreate it.\n\n" +
	"%s"

// versionError is returned for config files written for another version of
// the config format.
type versionError struct {
	path, actual string
}

func (err versionError) Error() string {
	return err.FriendlyMessage()
}

func (err versionError) FriendlyMessage() string {
	return fmt.Sprintf("The config file %q uses version %q of the config "+
		"format, but this version of studip-sync reads %q.\n"+
		"Run `studip-sync config` to recreate it.",
		err.path, err.actual, SupportedUserConfigVersion)
}

// ParseUser attempts to parse the User stored in the default path.
func ParseUser() (User, error) {
	path, err := GetUserConfigPath()
	if err != nil {
		return User{}, errors.WithContext(err, "expand config path")
	}

	config, err := readUser(path)
	if err != nil {
		return User{}, err
	}

	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}

	if err := config.validate(path); err != nil {
		return User{}, err
	}

	config.DownloadDir, err = homedir.Expand(config.DownloadDir)
	if err != nil {
		return User{}, errors.WithContext(err, "expand download path")
	}

	// Evaluate relative paths relative to the config path.
	if !filepath.IsAbs(config.DownloadDir) {
		config.DownloadDir = filepath.Join(filepath.Dir(path), config.DownloadDir)
	}
	return config, nil
}

// readUser decodes the config file at `path`. Files without a version are
// read as InitialUserConfigVersion.
func readUser(path string) (User, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return User{}, errors.NewFriendlyError("The user config "+
				"file doesn't exist at %q. Please run `studip-sync config` "+
				"to create it.", path)
		}
		return User{}, errors.WithContext(err, "read config")
	}

	config := User{Version: InitialUserConfigVersion}
	if err := yaml.Unmarshal(raw, &config); err != nil {
		return User{}, errors.NewFriendlyError(parseErrTemplate, path, err)
	}

	if config.Version != SupportedUserConfigVersion {
		return User{}, versionError{path: path, actual: config.Version}
	}

	// Unknown fields are only rejected once the version matches, so that
	// files of other versions get the version error instead.
	if err := yaml.UnmarshalStrict(raw, &config, yaml.DisallowUnknownFields); err != nil {
		return User{}, errors.NewFriendlyError(parseErrTemplate, path, err)
	}
	return config, nil
}

func (u User) validate(path string) error {
	required := []struct{ field, value string }{
		{"baseURL", u.BaseURL},
		{"username", u.Username},
		{"downloadDir", u.DownloadDir},
	}
	for _, r := range required {
		if r.value == "" {
			return errors.WithContext(errors.MissingFieldError{Field: r.field}, "validate")
		}
	}

	if u.SyncInterval != "" {
		d, err := time.ParseDuration(u.SyncInterval)
		if err != nil || d < 0 {
			return errors.NewFriendlyError("The syncInterval %q in %q is not "+
				"a valid duration. Use a value such as \"30m\", or \"0s\" to "+
				"sync only once.", u.SyncInterval, path)
		}
	}

	if u.Workers < 0 {
		return errors.NewFriendlyError("The number of workers in %q can't "+
			"be negative.", path)
	}
	return nil
}

// WriteUser writes the given user config to disk.
func WriteUser(cfg User) error {
	cfg.Version = SupportedUserConfigVersion
	path, err := GetUserConfigPath()
	if err != nil {
		return errors.WithContext(err, "expand config path")
	}

	yamlBytes, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.WithContext(err, "marshal")
	}

	// The config contains the user's password.
	if err := afero.WriteFile(fs, path, yamlBytes, 0600); err != nil {
		return errors.WithContext(err, "write")
	}
	return nil
}

// GetUserConfigPath returns the path to the user's configuration. This path
// is expanded, so it can be directly passed to file operations.
func GetUserConfigPath() (string, error) {
	return homedirExpand(UserConfigPath)
}
