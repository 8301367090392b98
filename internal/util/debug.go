package util

import (
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Named debug channels, enabled with --debug cache,itemize or the
// KUGL_DEBUG environment variable. Output goes through logrus so the
// level and destination follow the process logger.

var (
	debugMu       sync.Mutex
	debugFeatures = map[string]bool{}
	debugLog      = logrus.New()
)

func init() {
	debugLog.SetOutput(os.Stderr)
	debugLog.SetLevel(logrus.DebugLevel)
	debugLog.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if env := os.Getenv("KUGL_DEBUG"); env != "" {
		DebugOn(strings.Split(env, ",")...)
	}
}

// DebugOn enables the named debug features; "all" enables everything.
func DebugOn(features ...string) {
	debugMu.Lock()
	defer debugMu.Unlock()
	for _, f := range features {
		debugFeatures[strings.TrimSpace(f)] = true
	}
}

// Debugging reports whether a feature is enabled.
func Debugging(feature string) bool {
	debugMu.Lock()
	defer debugMu.Unlock()
	return debugFeatures[feature] || debugFeatures["all"]
}

// Debug logs a message on a feature channel if that channel is enabled.
func Debug(feature string, format string, args ...any) {
	if !Debugging(feature) {
		return
	}
	debugLog.WithField("debug", feature).Debugf(format, args...)
}
