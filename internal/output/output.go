// Package output names generated files and keeps them inside the outputs
// directory. Generated files can also be mirrored to a NATS object store.
package output

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgnsrekt/voxclone/internal/voice"
)

// TimestampLayout formats the time part of every generated name.
const TimestampLayout = "20060102_150405"

// maxCollisions bounds the _N suffix search in Next.
const maxCollisions = 10000

// Name returns output_<ts>.wav, used by the single-shot CLI.
func Name(t time.Time) string {
	return "output_" + t.Format(TimestampLayout) + ".wav"
}

// InteractiveName returns interactive_<ts>_<NNN>.wav.
func InteractiveName(t time.Time, n int) string {
	return fmt.Sprintf("interactive_%s_%03d.wav", t.Format(TimestampLayout), n)
}

// WebName returns web_ui_<ts>.wav.
func WebName(t time.Time) string {
	return "web_ui_" + t.Format(TimestampLayout) + ".wav"
}

// QuickName returns cloned_<ts>.wav.
func QuickName(t time.Time) string {
	return "cloned_" + t.Format(TimestampLayout) + ".wav"
}

// SampleName returns sample_<ts>.wav, used for microphone recordings.
func SampleName(t time.Time) string {
	return "sample_" + t.Format(TimestampLayout) + ".wav"
}

// Dir is a directory that receives generated files.
type Dir struct {
	root string
}

// NewDir returns the output directory at root.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// Root returns the directory path.
func (d *Dir) Root() string {
	return d.root
}

// Next creates the directory and claims a fresh path for name by creating
// it empty. When two files are named within the same second the later one
// gets a _2, _3, ... suffix. A claimed path that ends up unused should be
// handed to Discard.
func (d *Dir) Next(name string) (string, error) {
	if err := os.MkdirAll(d.root, 0o755); err != nil { //nolint:gosec
		return "", fmt.Errorf("unable to create output directory: %w", err)
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; i < maxCollisions; i++ {
		candidate := filepath.Join(d.root, name)
		if i > 1 {
			candidate = filepath.Join(d.root, fmt.Sprintf("%s_%d%s", stem, i, ext))
		}
		f, err := os.OpenFile(candidate, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644) //nolint:gosec
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("unable to create %s: %w", candidate, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("unable to create %s: %w", candidate, err)
		}
		return candidate, nil
	}
	return "", fmt.Errorf("unable to find a free name for %s", name)
}

// Discard removes a path claimed by Next that was never written.
// Files with content are left alone.
func (d *Dir) Discard(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Size() > 0 {
		return
	}
	_ = os.Remove(path)
}

// Resolve checks that a user supplied path lies inside the directory and
// returns its resolved form.
func (d *Dir) Resolve(path string) (string, error) {
	return voice.ValidatePath(path, d.root)
}

// Open returns the generated file called name. Names that are not a plain
// file name inside the directory are rejected.
func (d *Dir) Open(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %s", voice.ErrPathOutsideRoot, name)
	}
	path, err := d.Resolve(filepath.Join(d.root, name))
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s: %w", name, fs.ErrNotExist)
	}
	return path, nil
}
