package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/sidkik/studip-sync/pkg/errors"
	"github.com/sidkik/studip-sync/pkg/studip"
	"github.com/sidkik/studip-sync/pkg/studip/mocks"
)

func courses(titles ...string) (courses []*studip.Course) {
	for _, title := range titles {
		courses = append(courses, studip.NewCourse(studip.Course{ID: studip.ID(title), Title: title}))
	}
	return courses
}

func TestPairCourses(t *testing.T) {
	tests := []struct {
		name   string
		titles []string
		exp    map[string]string
	}{
		{
			name:   "LectureWithTutorial",
			titles: []string{"Analysis I", "Analysis I Übung", "Physik"},
			exp:    map[string]string{"Analysis I": "Analysis I Übung", "Physik": ""},
		},
		{
			name:   "FirstMatchWins",
			titles: []string{"Analysis", "Analysis I", "Analysis Übung"},
			exp:    map[string]string{"Analysis": "Analysis I", "Analysis I": ""},
		},
		{
			name:   "SharedTutorial",
			titles: []string{"Übung Mathe", "Mathe", "Mathe"},
			exp:    map[string]string{"Mathe": "Übung Mathe"},
		},
		{
			name: "Empty",
			exp:  map[string]string{},
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			pairs := PairCourses(courses(test.titles...))

			actual := map[string]string{}
			for _, pair := range pairs {
				assert.False(t, pair.Lecture.IsTutorial())
				actual[pair.Lecture.Title] = ""
				if pair.Tutorial != nil {
					actual[pair.Lecture.Title] = pair.Tutorial.Title
				}
			}
			assert.Equal(t, test.exp, actual)
		})
	}
}

func TestPairCoursesKeepsOrder(t *testing.T) {
	pairs := PairCourses(courses("Physik", "Analysis I Übung", "Analysis I"))
	if assert.Len(t, pairs, 2) {
		assert.Equal(t, "Physik", pairs[0].Lecture.Title)
		assert.Equal(t, "Analysis I", pairs[1].Lecture.Title)
	}
}

func TestFetchPairs(t *testing.T) {
	client := &mocks.Client{}
	client.On("GetAllCourses", mock.Anything).Return(nil, assert.AnError).Once()
	client.On("GetAllCourses", mock.Anything).Return(courses("Physik"), nil).Once()

	_, err := FetchPairs(context.Background(), client)
	assert.Equal(t, assert.AnError, errors.RootCause(err))

	pairs, err := FetchPairs(context.Background(), client)
	assert.NoError(t, err)
	assert.Len(t, pairs, 1)
}
