package news

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/studip-sync/cmd/util"
	"github.com/sidkik/studip-sync/pkg/config"
	"github.com/sidkik/studip-sync/pkg/errors"
	"github.com/sidkik/studip-sync/pkg/studip"
)

// Mocked for unit testing.
var (
	stdout          io.Writer = os.Stdout
	parseUserConfig           = config.ParseUser
	newClient                 = studip.New
)

// dateFormat is how announcement dates are shown.
const dateFormat = "02.01.2006"

// item is an announcement together with the title of its course.
type item struct {
	course string
	news   studip.News
}

// New creates a new `news` command.
func New() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "news [course ID]",
		Short: "Show the announcements of your courses",
		Long: `Show the latest announcements of every course you're a member of, or
only those of the course with the given ID.`,
		Args: cobra.MaximumNArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			var courseID string
			if len(args) == 1 {
				courseID = args[0]
			}

			if err := listNews(context.Background(), courseID, limit); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 3,
		"The maximum number of announcements shown per course.")
	return cmd
}

func listNews(ctx context.Context, courseID string, limit int) error {
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

	pp := util.NewProgressPrinter(stdout, "Fetching news..")
	go pp.Run()
	items, err := fetch(ctx, client, courseID, limit)
	pp.StopWithPrint(util.ClearProgress)
	if err != nil {
		return err
	}

	if len(items) == 0 {
		fmt.Fprintln(stdout, "No announcements found.")
		return nil
	}

	fmt.Fprintln(stdout, render(items))
	return nil
}

// fetch returns the latest `limit` announcements of each course, newest
// first. Courses whose news can't be fetched are skipped.
func fetch(ctx context.Context, client studip.Client, courseID string, limit int) ([]item, error) {
	if err := client.Authenticate(ctx); err != nil {
		return nil, errors.WithContext(err, "log in")
	}

	courses, err := getCourses(ctx, client, courseID)
	if err != nil {
		return nil, err
	}

	var items []item
	for _, course := range courses {
		news, err := client.GetCourseNews(ctx, course.ID)
		if err != nil {
			log.WithError(err).WithField("course", course.Title).
				Warn("Failed to get news")
			continue
		}

		sort.SliceStable(news, func(i, j int) bool {
			return news[i].Date > news[j].Date
		})
		if limit > 0 && len(news) > limit {
			news = news[:limit]
		}

		for _, n := range news {
			items = append(items, item{course: course.Title, news: n})
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].news.Date > items[j].news.Date
	})
	return items, nil
}

func getCourses(ctx context.Context, client studip.Client, courseID string) ([]*studip.Course, error) {
	if courseID == "" {
		courses, err := client.GetAllCourses(ctx)
		if err != nil {
			return nil, errors.WithContext(err, "list courses")
		}
		return courses, nil
	}

	id, err := studip.ParseID(courseID)
	if err != nil {
		return nil, errors.NewFriendlyError("%q isn't a course ID. "+
			"Course IDs consist of 32 hexadecimal characters.", courseID)
	}

	course, err := client.GetCourse(ctx, id)
	if err != nil {
		return nil, errors.WithContext(err, "get course")
	}
	return []*studip.Course{course}, nil
}

func render(items []item) *table.Table {
	var (
		purple = lipgloss.Color("99")

		headerStyle = lipgloss.NewStyle().Foreground(purple).Bold(true).Align(lipgloss.Center)
		cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	)

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("Date", "Course", "Topic")

	for _, it := range items {
		date := time.Unix(it.news.Date, 0).Format(dateFormat)
		t.Row(date, it.course, it.news.Topic)
	}
	return t
}
