package util

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Memory and CPU quantity handling, using the Kubernetes suffix
// conventions: K/M/G/T are powers of 10, Ki/Mi/Gi/Ti are powers of 2,
// and a trailing "m" means milli.

var sizeRe = regexp.MustCompile(`^([0-9]*\.?[0-9]+)\s*([KMGT]i?|m)?$`)

var sizeMultipliers = map[string]float64{
	"K":  1e3,
	"M":  1e6,
	"G":  1e9,
	"T":  1e12,
	"Ki": 1 << 10,
	"Mi": 1 << 20,
	"Gi": 1 << 30,
	"Ti": 1 << 40,
}

// ParseSize converts a quantity string like "10Mi", "1.5G" or "500m" to
// a byte count.
func ParseSize(s string) (int64, error) {
	m := sizeRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("invalid size syntax: %s", s)
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size syntax: %s", s)
	}
	switch suffix := m[2]; suffix {
	case "":
	case "m":
		value /= 1000
	default:
		value *= sizeMultipliers[suffix]
	}
	return int64(math.Round(value)), nil
}

// ToSize renders a byte count using binary suffixes, with at most one
// digit after the decimal point.
func ToSize(nbytes int64) string {
	if nbytes < 1024 {
		return strconv.FormatInt(nbytes, 10)
	}
	size, suffix := float64(nbytes), ""
	for _, s := range []string{"Ki", "Mi", "Gi", "Ti"} {
		size /= 1024
		suffix = s
		if size < 1024 || s == "Ti" {
			break
		}
	}
	if size == math.Trunc(size) {
		return fmt.Sprintf("%d%s", int64(size), suffix)
	}
	if size < 10 {
		return fmt.Sprintf("%.1f%s", size, suffix)
	}
	return fmt.Sprintf("%d%s", int64(math.Round(size)), suffix)
}

// ParseCPU converts a CPU quantity like "2" or "1500m" to cores.
func ParseCPU(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "m") {
		value, err := strconv.ParseFloat(strings.TrimSuffix(s, "m"), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid cpu syntax: %s", s)
		}
		return value / 1000, nil
	}
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid cpu syntax: %s", s)
	}
	return value, nil
}
