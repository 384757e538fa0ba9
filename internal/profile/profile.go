// Package profile manages the voice library: one directory per voice under
// the voices root, holding sample_*.wav recordings and the combined.wav
// reference built from them.
package profile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/dgnsrekt/voxclone/internal/voice"
)

const (
	// CombinedName is the reference file built from a profile's samples.
	CombinedName = "combined.wav"

	// SamplePrefix starts the name of every recorded sample.
	SamplePrefix = "sample_"

	// ProcessedSuffix marks a cleaned copy of a sample.
	ProcessedSuffix = ".processed.wav"

	maxSuggestions = 3
)

// ErrVoiceNotFound is returned when no reference audio matches a voice name.
var ErrVoiceNotFound = errors.New("voice profile not found")

// NotFoundError carries the closest existing profile names.
type NotFoundError struct {
	Name        string
	Suggestions []string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("voice profile '%s' not found", e.Name)
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(e.Suggestions, ", "))
	}
	return msg
}

// Is matches ErrVoiceNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrVoiceNotFound
}

// Profile summarizes one voice directory.
type Profile struct {
	Name         string
	Dir          string
	HasCombined  bool
	CombinedSize int64
	Samples      int
}

// VoiceFile is a selectable reference file.
type VoiceFile struct {
	Label string // <profile>/<file>
	Path  string
}

// Library is the voices root directory.
type Library struct {
	root string
}

// New returns the library rooted at root.
func New(root string) *Library {
	return &Library{root: root}
}

// Root returns the voices directory.
func (l *Library) Root() string {
	return l.root
}

// Dir returns the directory of the named profile.
func (l *Library) Dir(name string) string {
	return filepath.Join(l.root, name)
}

// Find resolves a voice name to a reference file. name may be a path to a
// WAV file inside the library, or a profile name; a profile resolves to its
// combined.wav, else to its first WAV file.
func (l *Library) Find(name string) (string, error) {
	if strings.EqualFold(filepath.Ext(name), ".wav") && isFile(name) {
		if p, err := voice.ValidatePath(name, l.root); err == nil {
			return p, nil
		}
	}

	combined := filepath.Join(l.root, name, CombinedName)
	if isFile(combined) {
		return combined, nil
	}

	wavs, err := wavFiles(filepath.Join(l.root, name))
	if err == nil && len(wavs) > 0 {
		return wavs[0], nil
	}

	return "", &NotFoundError{Name: name, Suggestions: l.suggest(name)}
}

func (l *Library) suggest(name string) []string {
	profiles, err := l.Profiles()
	if err != nil || len(profiles) == 0 {
		return nil
	}
	names := make([]string, len(profiles))
	for i, p := range profiles {
		names[i] = p.Name
	}

	var out []string
	for _, m := range fuzzy.Find(strings.ToLower(filepath.Base(name)), names) {
		out = append(out, m.Str)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}

// Profiles lists non-hidden voice directories holding at least one WAV file,
// sorted by name. A missing voices directory yields no profiles.
func (l *Library) Profiles() ([]Profile, error) {
	entries, err := os.ReadDir(l.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read voices directory: %w", err)
	}

	var profiles []Profile
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		dir := filepath.Join(l.root, e.Name())
		wavs, err := wavFiles(dir)
		if err != nil || len(wavs) == 0 {
			continue
		}

		p := Profile{Name: e.Name(), Dir: dir}
		for _, w := range wavs {
			base := filepath.Base(w)
			if base == CombinedName {
				p.HasCombined = true
				if info, err := os.Stat(w); err == nil {
					p.CombinedSize = info.Size()
				}
			}
			if strings.HasPrefix(base, SamplePrefix) {
				p.Samples++
			}
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// Files lists the reference files offered for selection: each profile's
// combined.wav first, then its samples.
func (l *Library) Files() ([]VoiceFile, error) {
	profiles, err := l.Profiles()
	if err != nil {
		return nil, err
	}

	var files []VoiceFile
	for _, p := range profiles {
		if p.HasCombined {
			files = append(files, VoiceFile{
				Label: p.Name + "/" + CombinedName,
				Path:  filepath.Join(p.Dir, CombinedName),
			})
		}
		samples, err := l.Samples(p.Name)
		if err != nil {
			return nil, err
		}
		for _, s := range samples {
			files = append(files, VoiceFile{
				Label: p.Name + "/" + filepath.Base(s),
				Path:  s,
			})
		}
	}
	return files, nil
}

// Samples returns the sorted sample_*.wav recordings of a profile,
// including processed copies.
func (l *Library) Samples(name string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(l.Dir(name), SamplePrefix+"*.wav"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// CombineSources returns the recordings to join into combined.wav. A
// sample with a processed copy contributes only the processed copy.
func (l *Library) CombineSources(name string) ([]string, error) {
	samples, err := l.Samples(name)
	if err != nil {
		return nil, err
	}

	present := make(map[string]bool, len(samples))
	for _, s := range samples {
		present[s] = true
	}

	var out []string
	for _, s := range samples {
		if strings.HasSuffix(s, ProcessedSuffix) {
			out = append(out, s)
			continue
		}
		if present[ProcessedPath(s)] {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// ProcessedPath returns where the cleaned copy of a recording is written.
func ProcessedPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ProcessedSuffix
}

// Resolve confines a user supplied reference path to the library and checks
// it exists.
func (l *Library) Resolve(path string) (string, error) {
	resolved, err := voice.ValidatePath(path, l.root)
	if err != nil {
		return "", err
	}
	if err := voice.ValidateReference(resolved); err != nil {
		return "", err
	}
	return resolved, nil
}

func wavFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), ".wav") {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil // ReadDir sorts by name
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
