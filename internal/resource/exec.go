package resource

import (
	"os"
	"path/filepath"

	"kugl/internal/config"
	"kugl/internal/util"
)

// Exec runs a subprocess and parses its standard output. Cacheable only
// when the config supplies a cache_key with environment references, so
// distinct environments get distinct snapshots.
type Exec struct {
	name      string
	argv      []string
	cacheable bool
	cacheKey  string
}

func (e *Exec) Name() string    { return e.name }
func (e *Exec) Cacheable() bool { return e.cacheable }

func (e *Exec) CachePath() (string, error) {
	if !e.cacheable {
		return "", util.Configf("exec resource '%s' is not cacheable", e.name)
	}
	nonEmpty := 0
	for _, ref := range config.EnvRefs(e.cacheKey) {
		if os.Getenv(ref) != "" {
			nonEmpty++
		}
	}
	if nonEmpty == 0 {
		return "", util.Configf("cache_key '%s' for resource '%s' expands to no environment values", e.cacheKey, e.name)
	}
	expanded := os.ExpandEnv(e.cacheKey)
	return filepath.Join(expanded, e.name+".exec.json"), nil
}

func (e *Exec) GetObjects() (any, error) {
	out, err := util.Run(e.argv)
	if err != nil {
		return nil, err
	}
	return ParseDocument(out)
}
