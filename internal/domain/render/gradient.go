package render

import "fmt"

// Stop maps a normalized intensity threshold in [0,1] to a color.
type Stop struct {
	Threshold float64 `json:"threshold" koanf:"threshold"`
	Color     string  `json:"color" koanf:"color"`
}

// DefaultGradient returns the built-in blue → red ramp.
func DefaultGradient() []Stop {
	return []Stop{
		{Threshold: 0.2, Color: "blue"},
		{Threshold: 0.4, Color: "lime"},
		{Threshold: 0.6, Color: "orange"},
		{Threshold: 1.0, Color: "red"},
	}
}

// ValidateGradient checks that stops are non-empty, colored, inside [0,1]
// and strictly increasing.
func ValidateGradient(stops []Stop) error {
	if len(stops) == 0 {
		return fmt.Errorf("%w: no stops", ErrInvalidGradient)
	}
	prev := -1.0
	for i, st := range stops {
		if st.Threshold < 0 || st.Threshold > 1 {
			return fmt.Errorf("%w: stop %d threshold %v outside [0,1]", ErrInvalidGradient, i, st.Threshold)
		}
		if st.Threshold <= prev {
			return fmt.Errorf("%w: stop %d threshold %v not increasing", ErrInvalidGradient, i, st.Threshold)
		}
		if st.Color == "" {
			return fmt.Errorf("%w: stop %d has no color", ErrInvalidGradient, i)
		}
		prev = st.Threshold
	}
	return nil
}
