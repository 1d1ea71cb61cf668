package assessment

import (
	"regexp"
	"strings"

	"github.com/abhisek/dsatutor/internal/learner"
)

// Questions are the three self-ratings, asked in this order.
var Questions = []string{
	"basic data structures (arrays, linked lists, stacks, queues)",
	"sorting algorithms",
	"advanced topics (trees, graphs, dynamic programming)",
}

var (
	digitRe = regexp.MustCompile(`\b([1-5])\b`)
	words   = map[string]int{"one": 1, "two": 2, "three": 3, "four": 4, "five": 5}
)

// ParseRating extracts a 1-5 self-rating from a learner reply.
func ParseRating(text string) (int, bool) {
	if m := digitRe.FindStringSubmatch(text); m != nil {
		return int(m[1][0] - '0'), true
	}
	for _, f := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return r < 'a' || r > 'z'
	}) {
		if n, ok := words[f]; ok {
			return n, true
		}
	}
	return 0, false
}

// Ratings applies the early-termination rules to the ratings given so far.
// A basics rating of 1 fixes the rest at 1; a sorting rating of 1 fixes
// advanced at 1. The result has len 3 once the questionnaire is complete.
func Ratings(given []int) []int {
	out := make([]int, 0, 3)
	for _, r := range given {
		if len(out) == 3 {
			break
		}
		out = append(out, r)
		if r == 1 {
			for len(out) < 3 {
				out = append(out, 1)
			}
		}
	}
	return out
}

// RatingsFromReplies reads the ratings out of the learner's replies in
// questionnaire order. Replies without a rating, like an opening "hi",
// are skipped.
func RatingsFromReplies(replies []string) []int {
	var given []int
	for _, r := range replies {
		if n, ok := ParseRating(r); ok {
			given = append(given, n)
		}
	}
	return Ratings(given)
}

// band maps one rating to a level: 1-2 beginner, 3-4 intermediate,
// 5 advanced.
func band(r int) learner.Level {
	switch {
	case r <= 2:
		return learner.LevelBeginner
	case r <= 4:
		return learner.LevelIntermediate
	default:
		return learner.LevelAdvanced
	}
}

// LevelFromRatings returns the majority band of three ratings. A three-way
// split resolves to intermediate. Fewer than three ratings is incomplete.
func LevelFromRatings(ratings []int) (learner.Level, bool) {
	if len(ratings) < 3 {
		return learner.LevelUnknown, false
	}
	counts := map[learner.Level]int{}
	for _, r := range ratings[:3] {
		counts[band(r)]++
	}
	for _, l := range []learner.Level{learner.LevelBeginner, learner.LevelIntermediate, learner.LevelAdvanced} {
		if counts[l] >= 2 {
			return l, true
		}
	}
	return learner.LevelIntermediate, true
}
