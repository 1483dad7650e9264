package courses

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/sidkik/studip-sync/cmd/util"
	"github.com/sidkik/studip-sync/pkg/config"
	"github.com/sidkik/studip-sync/pkg/errors"
	"github.com/sidkik/studip-sync/pkg/studip"
	syncer "github.com/sidkik/studip-sync/pkg/sync"
)

// Mocked for unit testing.
var (
	stdout          io.Writer = os.Stdout
	parseUserConfig           = config.ParseUser
	newClient                 = studip.New
)

// New creates a new `courses` command.
func New() *cobra.Command {
	var currentOnly bool
	cmd := &cobra.Command{
		Use:   "courses",
		Short: "List your courses and their tutorials",
		Run: func(_ *cobra.Command, _ []string) {
			if err := listCourses(context.Background(), currentOnly); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().BoolVar(&currentOnly, "current", false,
		"Only list the courses of the current semester.")
	return cmd
}

func listCourses(ctx context.Context, currentOnly bool) error {
	userConfig, err := parseUserConfig()
	if err != nil {
		return errors.WithContext(err, "parse user config")
	}

	client, err := newClient(userConfig.BaseURL, studip.Credentials{
		Username: userConfig.Username,
		Password: userConfig.Password,
	})
	if err != nil {
		return errors.WithContext(err, "create Stud.IP client")
	}

	pp := util.NewProgressPrinter(stdout, "Fetching courses..")
	go pp.Run()
	pairs, semesters, err := fetch(ctx, client, currentOnly)
	pp.StopWithPrint(util.ClearProgress)
	if err != nil {
		return err
	}

	if len(pairs) == 0 {
		fmt.Fprintln(stdout, "No courses found.")
		return nil
	}

	fmt.Fprintln(stdout, render(pairs, semesters))
	return nil
}

// fetch returns the paired courses and the titles of their semesters.
func fetch(ctx context.Context, client studip.Client, currentOnly bool) (
	[]syncer.Pair, map[studip.ID]string, error) {

	if err := client.Authenticate(ctx); err != nil {
		return nil, nil, errors.WithContext(err, "log in")
	}

	pairs, err := syncer.FetchPairs(ctx, client)
	if err != nil {
		return nil, nil, err
	}

	semesters := map[studip.ID]string{}
	allSemesters, err := client.GetAllSemesters(ctx)
	if err != nil {
		return nil, nil, errors.WithContext(err, "list semesters")
	}
	for _, semester := range allSemesters {
		semesters[semester.ID] = semester.Title
	}

	if !currentOnly {
		return pairs, semesters, nil
	}

	current, err := client.GetCurrentSemester(ctx)
	if errors.RootCause(err) == studip.ErrNoCurrentSemester {
		return nil, nil, errors.NewFriendlyError("No semester is running right now. " +
			"Run `studip-sync courses` without --current to list all courses.")
	} else if err != nil {
		return nil, nil, errors.WithContext(err, "get current semester")
	}

	var filtered []syncer.Pair
	for _, pair := range pairs {
		if pair.Lecture.StartSemesterID == current.ID {
			filtered = append(filtered, pair)
		}
	}
	return filtered, semesters, nil
}

func render(pairs []syncer.Pair, semesters map[studip.ID]string) *table.Table {
	var (
		purple = lipgloss.Color("99")

		headerStyle = lipgloss.NewStyle().Foreground(purple).Bold(true).Align(lipgloss.Center)
		cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	)

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(purple)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("Semester", "Lecture", "Tutorial")

	for _, pair := range pairs {
		tutorial := "-"
		if pair.Tutorial != nil {
			tutorial = pair.Tutorial.Title
		}

		semester, ok := semesters[pair.Lecture.StartSemesterID]
		if !ok {
			semester = "?"
		}
		t.Row(semester, pair.Lecture.Title, tutorial)
	}
	return t
}
