package lumix

import (
	"fmt"
	"strconv"
	"strings"
)

type (
	// MusicalTime is a position or a length on the timeline expressed as
	// bars, beats and ticks. All the components are 0-based: the origin of the
	// timeline is {0, 0, 0}. Use Display to get the 1-based form shown to the
	// user.
	MusicalTime struct {
		Bars  int
		Beats int
		Ticks int
	}

	// DisplayTime is the 1-based form of a MusicalTime, as shown to the user:
	// the origin of the timeline is 1.1.1. It is a distinct type so that the
	// two forms cannot be mixed without an explicit conversion.
	DisplayTime struct {
		Bars  int
		Beats int
		Ticks int
	}
)

// Add returns the componentwise sum of the two times. The result is not
// normalized; use Transport.Normalize for that.
func (m MusicalTime) Add(o MusicalTime) MusicalTime {
	return MusicalTime{Bars: m.Bars + o.Bars, Beats: m.Beats + o.Beats, Ticks: m.Ticks + o.Ticks}
}

// Sub returns the componentwise difference of the two times. The result is
// not normalized.
func (m MusicalTime) Sub(o MusicalTime) MusicalTime {
	return MusicalTime{Bars: m.Bars - o.Bars, Beats: m.Beats - o.Beats, Ticks: m.Ticks - o.Ticks}
}

// Compare returns -1, 0 or 1 depending on whether m is before, at or after o.
// Both times are assumed to be normalized.
func (m MusicalTime) Compare(o MusicalTime) int {
	switch {
	case m.Bars != o.Bars:
		return sign(m.Bars - o.Bars)
	case m.Beats != o.Beats:
		return sign(m.Beats - o.Beats)
	default:
		return sign(m.Ticks - o.Ticks)
	}
}

func (m MusicalTime) Less(o MusicalTime) bool { return m.Compare(o) < 0 }

// Display converts to the 1-based form.
func (m MusicalTime) Display() DisplayTime {
	return DisplayTime{Bars: m.Bars + 1, Beats: m.Beats + 1, Ticks: m.Ticks + 1}
}

func (m MusicalTime) String() string { return m.Display().String() }

// MusicalTime converts back to the 0-based form.
func (d DisplayTime) MusicalTime() MusicalTime {
	return MusicalTime{Bars: d.Bars - 1, Beats: d.Beats - 1, Ticks: d.Ticks - 1}
}

func (d DisplayTime) String() string {
	return fmt.Sprintf("%d.%d.%d", d.Bars, d.Beats, d.Ticks)
}

// ParseDisplayTime parses a 1-based position of the form "bars.beats.ticks".
// The beats and ticks can be omitted: "3" is the same as "3.1.1".
func ParseDisplayTime(s string) (DisplayTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) > 3 {
		return DisplayTime{}, fmt.Errorf("invalid musical time %q: too many components", s)
	}
	values := [3]int{1, 1, 1}
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return DisplayTime{}, fmt.Errorf("invalid musical time %q: %w", s, err)
		}
		if v < 1 {
			return DisplayTime{}, fmt.Errorf("invalid musical time %q: components start from 1", s)
		}
		values[i] = v
	}
	return DisplayTime{Bars: values[0], Beats: values[1], Ticks: values[2]}, nil
}

func sign(x int) int {
	switch {
	case x < 0:
		return -1
	case x > 0:
		return 1
	}
	return 0
}
