// pkg/input/script.go
package input

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Transition is one scripted key event.
type Transition struct {
	At      time.Duration `json:"at"`
	Code    int           `json:"code"`
	Pressed bool          `json:"pressed"`
}

// Script is a time-ordered list of key transitions replayed against
// simulated time.
type Script struct {
	steps []Transition
	next  int
}

// NewScript sorts steps by time. Steps at the same instant keep their order.
func NewScript(steps ...Transition) *Script {
	s := append([]Transition(nil), steps...)
	sort.SliceStable(s, func(i, j int) bool { return s[i].At < s[j].At })
	return &Script{steps: s}
}

// Hold returns the two transitions that press code at start and release it
// after d.
func Hold(code int, start, d time.Duration) []Transition {
	return []Transition{
		{At: start, Code: code, Pressed: true},
		{At: start + d, Code: code, Pressed: false},
	}
}

// Due returns the transitions scheduled at or before now that have not been
// returned yet.
func (s *Script) Due(now time.Duration) []Transition {
	start := s.next
	for s.next < len(s.steps) && s.steps[s.next].At <= now {
		s.next++
	}
	return s.steps[start:s.next]
}

// Done reports whether every transition has been delivered.
func (s *Script) Done() bool {
	return s.next >= len(s.steps)
}

// End returns the time of the last transition.
func (s *Script) End() time.Duration {
	if len(s.steps) == 0 {
		return 0
	}
	return s.steps[len(s.steps)-1].At
}

// Len returns the number of transitions.
func (s *Script) Len() int {
	return len(s.steps)
}

// Rewind restarts delivery from the first transition.
func (s *Script) Rewind() {
	s.next = 0
}

// ParseScript reads a comma separated list of holds in the form
// KEY@START+DURATION, e.g. "ArrowUp@0s+2s,W@500ms+1s".
func ParseScript(text string) (*Script, error) {
	var steps []Transition
	for _, field := range strings.Split(text, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		key, timing, ok := strings.Cut(field, "@")
		if !ok {
			return nil, fmt.Errorf("script entry %q: missing '@'", field)
		}
		code, err := ParseKey(key)
		if err != nil {
			return nil, fmt.Errorf("script entry %q: %w", field, err)
		}
		startText, durText, ok := strings.Cut(timing, "+")
		if !ok {
			return nil, fmt.Errorf("script entry %q: missing '+duration'", field)
		}
		start, err := parseSeconds(startText)
		if err != nil {
			return nil, fmt.Errorf("script entry %q: %w", field, err)
		}
		d, err := parseSeconds(durText)
		if err != nil {
			return nil, fmt.Errorf("script entry %q: %w", field, err)
		}
		if start < 0 || d < 0 {
			return nil, fmt.Errorf("script entry %q: negative time", field)
		}
		steps = append(steps, Hold(code, start, d)...)
	}
	return NewScript(steps...), nil
}

// parseSeconds accepts Go durations ("1.5s") and bare seconds ("1.5").
func parseSeconds(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return time.Duration(f * float64(time.Second)), nil
}
