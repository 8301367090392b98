package resource

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"

	"kugl/internal/util"
)

// Stdin is read when a file resource names the literal path "stdin";
// tests substitute a reader.
var Stdin io.Reader = os.Stdin

// File reads a filesystem path or standard input. Never cacheable.
type File struct {
	name string
	path string
	fs   afero.Fs
}

func (f *File) Name() string    { return f.name }
func (f *File) Cacheable() bool { return false }

func (f *File) CachePath() (string, error) {
	return "", util.Configf("file resource '%s' is not cacheable", f.name)
}

func (f *File) GetObjects() (any, error) {
	if f.path == "stdin" {
		text, err := io.ReadAll(Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return ParseDocument(string(text))
	}
	path := util.ExpandPath(f.path)
	text, err := afero.ReadFile(f.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
	}
	return ParseDocument(string(text))
}
