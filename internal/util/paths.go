package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Home returns the kugl config root: $KUGL_HOME, or ~/.kugl.
func Home() string {
	if dir := os.Getenv("KUGL_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".kugl"
	}
	return filepath.Join(home, ".kugl")
}

// CacheDir returns the snapshot cache root: $KUGL_CACHE, or a cache
// folder under the config root.
func CacheDir() string {
	if dir := os.Getenv("KUGL_CACHE"); dir != "" {
		return dir
	}
	return filepath.Join(Home(), "cache")
}

// ExpandPath expands a leading ~ and $VAR environment references in a
// file path.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = home + path[1:]
		}
	}
	return os.ExpandEnv(path)
}

// CheckNotWorldWriteable rejects config files that anyone can modify.
func CheckNotWorldWriteable(fs afero.Fs, path string) error {
	info, err := fs.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Mode().Perm()&0o002 != 0 {
		return Configf("%s is world writeable, refusing to run", path)
	}
	return nil
}
