package config

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/user"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh/terminal"

	"github.com/sidkik/studip-sync/cmd/util"
	"github.com/sidkik/studip-sync/pkg/config"
	"github.com/sidkik/studip-sync/pkg/errors"
)

const (
	defaultDownloadDir  = "~/studip"
	defaultSyncInterval = "30m"
)

// Mocked for unit testing.
var (
	stdout          io.Writer = os.Stdout
	stdin           io.Reader = os.Stdin
	guessDefaults             = guessDefaultsImpl
	parseUserConfig           = config.ParseUser
	getCurrentUser            = user.Current
	readPassword              = readPasswordImpl
)

// New creates a new `config` command.
func New() *cobra.Command {
	var cliOpts config.User
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Setup the studip-sync user configuration",
		Run: func(_ *cobra.Command, _ []string) {
			if err := SetupConfig(cliOpts); err != nil {
				err = errors.NewFriendlyError("Failed to setup configuration:\n%s", err)
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().StringVar(&cliOpts.BaseURL, "url", "",
		"Set the URL of the Stud.IP instance. "+
			"Optional: If not set, `studip-sync config` will interactively prompt.")
	cmd.Flags().StringVar(&cliOpts.Username, "username", "",
		"Set the Stud.IP username. "+
			"Optional: If not set, `studip-sync config` will interactively prompt.")
	cmd.Flags().StringVar(&cliOpts.Password, "password", "",
		"Set the Stud.IP password. "+
			"Optional: If not set, `studip-sync config` will interactively prompt.")
	cmd.Flags().StringVar(&cliOpts.DownloadDir, "download-dir", "",
		"Set the directory that courses are synced to. "+
			"Optional: If not set, `studip-sync config` will interactively prompt.")
	cmd.Flags().StringVar(&cliOpts.SyncInterval, "interval", "",
		"Set the time between syncs, such as 30m. 0s only syncs once. "+
			"Optional: If not set, `studip-sync config` will interactively prompt.")
	cmd.Flags().IntVar(&cliOpts.Workers, "workers", 0,
		"Set the number of concurrent requests. Defaults to the number of CPUs.")

	// Setup the commands for querying the contents of the user config.
	type getterSpec struct {
		use, short string
		fn         func(config.User) string
	}

	getters := []getterSpec{
		{
			use:   "get-download-dir",
			short: "Get the directory that courses are synced to",
			fn:    func(cfg config.User) string { return cfg.DownloadDir },
		},
		{
			use:   "get-url",
			short: "Get the URL of the Stud.IP instance",
			fn:    func(cfg config.User) string { return cfg.BaseURL },
		},
	}
	for _, getter := range getters {
		getter := getter
		cmd.AddCommand(&cobra.Command{
			Use:   getter.use,
			Short: getter.short,
			Run: func(_ *cobra.Command, _ []string) {
				cfg, err := parseUserConfig()
				if err != nil {
					err = errors.WithContext(err, "read config")
					util.HandleFatalError(err)
				}

				fmt.Fprintln(stdout, getter.fn(cfg))
			},
		})
	}

	return cmd
}

func SetupConfig(cliOpts config.User) error {
	cfg, err := generateConfig(cliOpts)
	if err != nil {
		return errors.WithContext(err, "generate config")
	}

	if err := config.WriteUser(cfg); err != nil {
		return errors.WithContext(err, "write config")
	}

	path, err := config.GetUserConfigPath()
	if err != nil {
		return errors.WithContext(err, "get user config path")
	}

	fmt.Fprintf(stdout, "Wrote config to %s\n", path)
	return nil
}

func urlValidationFn(s string) (string, bool) {
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "Please enter a full URL, such as https://studip.uni-hannover.de.", false
	}
	return "", true
}

func notEmptyValidationFn(s string) (string, bool) {
	if strings.TrimSpace(s) == "" {
		return "This field is required.", false
	}
	return "", true
}

func intervalValidationFn(s string) (string, bool) {
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return "Please enter a duration such as 30m or 2h, or 0s to only sync once.", false
	}
	return "", true
}

type prompt struct {
	helpString, prompt, defaultAnswer, currAnswer string
	field                                         *string
	validationFn                                  func(string) (string, bool)
}

// generateConfig interacts with the user to decide what the user's desired
// configuration is.
// It makes best guesses at reasonable defaults, and allows users to explicitly
// override them if desired.
func generateConfig(cliOpts config.User) (config.User, error) {
	defaults := guessDefaults()
	currConfig, err := parseUserConfig()
	if err != nil {
		currConfig = config.User{}
		log.WithError(err).Debug("Failed to read current config")
	}

	cfg := cliOpts
	var prompts []prompt
	if cliOpts.BaseURL == "" {
		prompts = append(prompts, prompt{
			helpString:    "Enter the URL of your university's Stud.IP instance.",
			prompt:        "Stud.IP URL",
			defaultAnswer: defaults.BaseURL,
			currAnswer:    currConfig.BaseURL,
			field:         &cfg.BaseURL,
			validationFn:  urlValidationFn,
		})
	}

	if cliOpts.Username == "" {
		prompts = append(prompts, prompt{
			helpString:    "Enter the username that you log into Stud.IP with.",
			prompt:        "Username",
			defaultAnswer: defaults.Username,
			currAnswer:    currConfig.Username,
			field:         &cfg.Username,
			validationFn:  notEmptyValidationFn,
		})
	}

	if cliOpts.DownloadDir == "" {
		prompts = append(prompts, prompt{
			helpString: "Enter the directory that course files are downloaded to.\n" +
				"Files are sorted into a directory per semester and course.",
			prompt:        "Download directory",
			defaultAnswer: defaults.DownloadDir,
			currAnswer:    currConfig.DownloadDir,
			field:         &cfg.DownloadDir,
			validationFn:  notEmptyValidationFn,
		})
	}

	if cliOpts.SyncInterval == "" {
		prompts = append(prompts, prompt{
			helpString: "Enter how long to wait between syncs.\n" +
				"Use 0s to only sync once.",
			prompt:        "Sync interval",
			defaultAnswer: defaults.SyncInterval,
			currAnswer:    currConfig.SyncInterval,
			field:         &cfg.SyncInterval,
			validationFn:  intervalValidationFn,
		})
	}

	for _, prompt := range prompts {
		var resp string
		for {
			resp, err = promptUser(prompt.helpString, prompt.prompt,
				prompt.defaultAnswer, prompt.currAnswer)
			if err != nil {
				return config.User{}, errors.WithContext(err, "read response")
			}

			if prompt.validationFn == nil {
				break
			}

			validationErr, ok := prompt.validationFn(resp)
			if ok {
				break
			}

			fmt.Fprintln(stdout, validationErr)
		}

		*prompt.field = resp
	}

	if cfg.Password == "" {
		cfg.Password = currConfig.Password
	}
	if cfg.Password == "" {
		fmt.Fprint(stdout, "Password: ")
		cfg.Password, err = readPassword()
		fmt.Fprintln(stdout)
		if err != nil {
			return config.User{}, errors.WithContext(err, "read password")
		}
	}

	if cfg.Workers == 0 {
		cfg.Workers = currConfig.Workers
	}
	return cfg, nil
}

// guessDefaults tries to guess reasonable defaults for the fields in the user
// config.
func guessDefaultsImpl() (cfg config.User) {
	cfg.BaseURL = config.DefaultBaseURL
	cfg.DownloadDir = defaultDownloadDir
	cfg.SyncInterval = defaultSyncInterval

	if user, err := getCurrentUser(); err == nil {
		cfg.Username = user.Username
	} else {
		log.WithError(err).Info("Failed to guess username")
	}
	return cfg
}

// readPasswordImpl reads the password without echoing it if stdin is a
// terminal.
func readPasswordImpl() (string, error) {
	if f, ok := stdin.(*os.File); ok && terminal.IsTerminal(int(f.Fd())) {
		password, err := terminal.ReadPassword(int(f.Fd()))
		return string(password), err
	}

	resp, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(resp, "\n"), nil
}

func promptUser(helpString, prompt, defaultAnswer, currAnswer string) (string, error) {
	// Display a new line at the end to separate different fields to make it
	// look clearer.
	defer fmt.Fprintln(stdout)

	options := []string{}
	if defaultAnswer != "" {
		options = append(options, defaultAnswer)
	}
	if currAnswer != "" && currAnswer != defaultAnswer {
		options = append(options, currAnswer)
	}
	options = append(options, "(Enter manually)")

	fmt.Fprintln(stdout, helpString+"\n"+prompt+":")

	stdinReader := bufio.NewReader(stdin)

	if nOptions := len(options); nOptions > 1 {
		// defaultAnswer or currAnswer exists.
		fmt.Fprintln(stdout)
		for i, option := range options {
			if i == 0 {
				option = fmt.Sprintf("%s (recommended)", option)
			}
			fmt.Fprintf(stdout, "\t%d. %s\n", i+1, option)
		}
		fmt.Fprintln(stdout)

		for {
			fmt.Fprintf(stdout, "Please choose one [1-%d]: ", nOptions)
			choiceStr, err := stdinReader.ReadString('\n')
			if err != nil {
				return "", err
			}

			var choice int
			choiceStr = strings.TrimRight(choiceStr, "\n")

			// Default to the first choice if user doesn't enter anything.
			if choiceStr == "" {
				choice = 1
			} else {
				choice, err = strconv.Atoi(choiceStr)
				if err != nil || choice < 1 || choice > nOptions {
					// Try again if the input is invalid.
					continue
				}
			}

			if choice == nOptions {
				// Enter manually.
				break
			}

			return options[choice-1], nil
		}
	}

	fmt.Fprint(stdout, "Please enter manually: ")
	resp, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}

	return strings.TrimRight(resp, "\n"), nil
}
