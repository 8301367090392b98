package util

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Age is a non-negative duration in whole seconds. It parses from
// kubectl-style strings like "10s", "5m30s", "1h", "2d12h" and renders
// back using kubectl's at-most-two-units abbreviation rules.
type Age int64

var (
	ageRe     = regexp.MustCompile(`^(\d+[smhd])+$`)
	agePartRe = regexp.MustCompile(`\d+[smhd]`)
)

var ageUnitSecs = map[byte]int64{'s': 1, 'm': 60, 'h': 3600, 'd': 86400}

// ParseAge converts a string like "5m30s" to a second count.
func ParseAge(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty age")
	}
	if !ageRe.MatchString(s) {
		return 0, fmt.Errorf("invalid age syntax: %s", s)
	}
	var total int64
	for _, part := range agePartRe.FindAllString(s, -1) {
		amount, err := strconv.ParseInt(part[:len(part)-1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid age syntax: %s", s)
		}
		total += amount * ageUnitSecs[part[len(part)-1]]
	}
	return total, nil
}

// ToAge renders a second count in at most two units, the way kubectl
// abbreviates object ages.
func ToAge(secs int64) string {
	if secs < 0 {
		secs = -secs
	}
	days := secs / 86400
	rem := secs % 86400
	hours := rem / 3600
	minutes := (rem % 3600) / 60
	seconds := rem % 60
	switch {
	case days > 9:
		return fmt.Sprintf("%dd", days)
	case days > 1:
		// kubectl prints hours up to 47
		if hours > 0 {
			return fmt.Sprintf("%dd%dh", days, hours)
		}
		return fmt.Sprintf("%dd", days)
	case days > 0 || hours > 9:
		return fmt.Sprintf("%dh", days*24+hours)
	case hours > 2:
		// kubectl prints minutes up to 179
		if minutes > 0 {
			return fmt.Sprintf("%dh%dm", hours, minutes)
		}
		return fmt.Sprintf("%dh", hours)
	case hours > 0 || minutes > 9:
		return fmt.Sprintf("%dm", hours*60+minutes)
	case minutes > 0:
		if seconds > 0 {
			return fmt.Sprintf("%dm%ds", minutes, seconds)
		}
		return fmt.Sprintf("%dm", minutes)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// Seconds returns the age as a plain second count.
func (a Age) Seconds() int64 { return int64(a) }

func (a Age) String() string { return ToAge(int64(a)) }

// UnmarshalJSON accepts either an age string ("2m") or a bare number of
// seconds; config files are YAML routed through JSON.
func (a *Age) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		if n < 0 {
			return fmt.Errorf("age may not be negative: %d", n)
		}
		*a = Age(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid age: %s", string(data))
	}
	secs, err := ParseAge(s)
	if err != nil {
		return err
	}
	*a = Age(secs)
	return nil
}

func (a Age) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}
