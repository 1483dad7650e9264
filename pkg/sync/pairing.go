package sync

import (
	"context"
	"strings"

	"github.com/sidkik/studip-sync/pkg/errors"
	"github.com/sidkik/studip-sync/pkg/studip"
)

// Pair is a lecture and its tutorial, which is nil if the lecture has none.
type Pair struct {
	Lecture  *studip.Course
	Tutorial *studip.Course
}

// PairCourses pairs every course that isn't a tutorial with the first other
// course whose title contains its title. Pairs are in the order of `courses`.
// A tutorial may be paired with more than one lecture.
func PairCourses(courses []*studip.Course) []Pair {
	var pairs []Pair
	for _, lecture := range courses {
		if lecture.IsTutorial() {
			continue
		}

		pair := Pair{Lecture: lecture}
		for _, candidate := range courses {
			if candidate.Title != lecture.Title && strings.Contains(candidate.Title, lecture.Title) {
				pair.Tutorial = candidate
				break
			}
		}
		pairs = append(pairs, pair)
	}
	return pairs
}

// FetchPairs lists the user's courses and pairs them.
func FetchPairs(ctx context.Context, client studip.Client) ([]Pair, error) {
	courses, err := client.GetAllCourses(ctx)
	if err != nil {
		return nil, errors.WithContext(err, "list courses")
	}
	return PairCourses(courses), nil
}
