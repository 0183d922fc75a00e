package level

import "fmt"

// Band is the management level a directory position declares.
type Band string

const (
	BandSenior Band = "senior"
	BandMiddle Band = "middle"
	BandJunior Band = "junior"
)

// Band boundaries of the position table: senior >= 10, middle 5..9, junior 1..4.
const (
	SeniorMin = 10
	MiddleMin = 5
	MiddleMax = 9
)

// BandOf returns the band a numeric level falls in.
func BandOf(level int) Band {
	switch {
	case level >= SeniorMin:
		return BandSenior
	case level >= MiddleMin:
		return BandMiddle
	default:
		return BandJunior
	}
}

// ParseBand reads a management level as stored in org_positions.
func ParseBand(s string) (Band, error) {
	switch Band(s) {
	case BandSenior, BandMiddle, BandJunior:
		return Band(s), nil
	}
	return "", fmt.Errorf("unknown management level %q", s)
}

// BandMismatch is a position whose level lies outside its declared band.
type BandMismatch struct {
	Declared Band
	Level    int
	Actual   Band
}

func (m *BandMismatch) Error() string {
	return fmt.Sprintf("level %d is %s but position is declared %s", m.Level, m.Actual, m.Declared)
}

// CheckPosition reports a disagreement between a position's declared
// management level and its numeric level.
func CheckPosition(managementLevel string, lvl int) error {
	declared, err := ParseBand(managementLevel)
	if err != nil {
		return err
	}
	if actual := BandOf(lvl); actual != declared {
		return &BandMismatch{Declared: declared, Level: lvl, Actual: actual}
	}
	return nil
}

// Correct moves lvl into the declared band, to its nearest edge.
// Unknown management levels leave lvl untouched.
func Correct(managementLevel string, lvl int) int {
	declared, err := ParseBand(managementLevel)
	if err != nil {
		return lvl
	}
	switch declared {
	case BandSenior:
		if lvl < SeniorMin {
			return SeniorMin
		}
	case BandMiddle:
		if lvl < MiddleMin {
			return MiddleMin
		}
		if lvl > MiddleMax {
			return MiddleMax
		}
	case BandJunior:
		if lvl < DefaultLevel {
			return DefaultLevel
		}
		if lvl >= MiddleMin {
			return MiddleMin - 1
		}
	}
	return lvl
}
