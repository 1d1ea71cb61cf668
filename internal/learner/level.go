package learner

import "strings"

// Level is the learner's estimated proficiency band.
type Level string

const (
	LevelUnknown      Level = "unknown"
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

// bands is the ordered set a level may move through one step at a time.
var bands = []Level{LevelBeginner, LevelIntermediate, LevelAdvanced}

// ParseLevel maps a label to a Level. Matching is case-insensitive and
// ignores surrounding whitespace. Unknown labels return false.
func ParseLevel(s string) (Level, bool) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelBeginner:
		return LevelBeginner, true
	case LevelIntermediate:
		return LevelIntermediate, true
	case LevelAdvanced:
		return LevelAdvanced, true
	case LevelUnknown:
		return LevelUnknown, true
	}
	return LevelUnknown, false
}

// Assessed reports whether the initial assessment has set a band.
func (l Level) Assessed() bool {
	return l.rank() >= 0
}

// Step moves the level by delta bands, clamped to the band range and
// limited to a single step. An unassessed level does not move.
func (l Level) Step(delta int) Level {
	r := l.rank()
	if r < 0 {
		return l
	}
	switch {
	case delta > 0:
		r++
	case delta < 0:
		r--
	}
	r = max(0, min(r, len(bands)-1))
	return bands[r]
}

// Title returns the level with a leading capital for display.
func (l Level) Title() string {
	if l == "" {
		return ""
	}
	return strings.ToUpper(string(l[:1])) + string(l[1:])
}

func (l Level) rank() int {
	for i, b := range bands {
		if b == l {
			return i
		}
	}
	return -1
}

// LevelChange records a level transition produced by a turn.
type LevelChange struct {
	From   Level
	To     Level
	Reason string // "assessment" or "analysis"
}
