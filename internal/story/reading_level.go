package story

import "fmt"

// ReadingLevel is one of four ordinal audience tiers.
type ReadingLevel string

const (
	LevelElementary  ReadingLevel = "elementary"
	LevelMiddleGrade ReadingLevel = "middle-grade"
	LevelYoungAdult  ReadingLevel = "young-adult"
	LevelAdult       ReadingLevel = "adult"
)

// ReadingLevels lists the tiers in ascending order.
var ReadingLevels = []ReadingLevel{LevelElementary, LevelMiddleGrade, LevelYoungAdult, LevelAdult}

// Rank returns the ordinal position of the tier, or -1 if unknown.
func (l ReadingLevel) Rank() int {
	for i, lvl := range ReadingLevels {
		if lvl == l {
			return i
		}
	}
	return -1
}

// ParseReadingLevel validates a user-supplied tier name.
func ParseReadingLevel(s string) (ReadingLevel, error) {
	l := ReadingLevel(s)
	if l.Rank() < 0 {
		return "", fmt.Errorf("unknown reading level %q (want one of %v)", s, ReadingLevels)
	}
	return l, nil
}
