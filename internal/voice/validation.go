package voice

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// DefaultMaxTextLength is the maximum number of characters accepted for a
// single synthesis request.
const DefaultMaxTextLength = 10000

// ValidateText checks that text is non-blank and at most maxLen characters.
// Characters are counted as Unicode code points.
func ValidateText(text string, maxLen int) error {
	if strings.TrimSpace(text) == "" {
		return NewCloneError(ErrorCodeInvalidInput, "Text cannot be empty", ErrTextEmpty)
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxTextLength
	}
	if n := utf8.RuneCountInString(text); n > maxLen {
		return NewCloneError(ErrorCodeTextTooLong,
			fmt.Sprintf("Text exceeds maximum length of %d characters (got %d)", maxLen, n),
			ErrTextTooLong)
	}
	return nil
}

// ValidateLanguage normalizes code and checks it is supported. An empty code
// selects DefaultLanguage.
func ValidateLanguage(code string) (string, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return DefaultLanguage, nil
	}
	if !IsSupportedLanguage(code) {
		return "", NewCloneError(ErrorCodeUnsupportedLanguage,
			fmt.Sprintf("Unsupported language: %s (supported: %s)", code, strings.Join(SupportedLanguages(), ", ")),
			ErrUnsupportedLanguage)
	}
	return code, nil
}

// ValidatePath resolves path and checks it lies within root. The resolved
// absolute path is returned. Symlinks are followed for the longest existing
// prefix of each path, so a link inside root pointing elsewhere is rejected.
func ValidatePath(path, root string) (string, error) {
	resolved, err := resolve(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	allowed, err := resolve(root)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", root, err)
	}

	rel, err := filepath.Rel(allowed, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", NewCloneError(ErrorCodePathOutsideRoot,
			fmt.Sprintf("Invalid path: %s (must be within %s)", path, root),
			ErrPathOutsideRoot)
	}
	return resolved, nil
}

// ValidateReference checks that path names an existing regular file.
func ValidateReference(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewCloneError(ErrorCodeReferenceNotFound,
			fmt.Sprintf("Reference audio not found: %s", path), ErrReferenceNotFound)
	}
	if err != nil {
		return NewCloneError(ErrorCodeIO, "unable to stat reference audio", err)
	}
	if !info.Mode().IsRegular() {
		return NewCloneError(ErrorCodeReferenceNotFound,
			fmt.Sprintf("Reference audio is not a file: %s", path), ErrReferenceNotFound)
	}
	return nil
}

// resolve returns an absolute, symlink-free form of path. Components that
// cannot be resolved yet are appended unchanged to the resolved prefix.
func resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	var missing []string
	cur := abs
	for {
		target, err := filepath.EvalSymlinks(cur)
		if err == nil {
			for i := len(missing) - 1; i >= 0; i-- {
				target = filepath.Join(target, missing[i])
			}
			return filepath.Clean(target), nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return abs, nil
		}
		missing = append(missing, filepath.Base(cur))
		cur = parent
	}
}
