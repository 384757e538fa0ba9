package voice

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateText(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		max      int
		wantErr  error
		wantCode ErrorCode
	}{
		{"simple", "Hello world", 10000, nil, ""},
		{"exactly max", strings.Repeat("a", 10000), 10000, nil, ""},
		{"one over max", strings.Repeat("a", 10001), 10000, ErrTextTooLong, ErrorCodeTextTooLong},
		{"multibyte counted as characters", strings.Repeat("é", 10), 10, nil, ""},
		{"multibyte over", strings.Repeat("日", 11), 10, ErrTextTooLong, ErrorCodeTextTooLong},
		{"empty", "", 10000, ErrTextEmpty, ErrorCodeInvalidInput},
		{"whitespace only", " \t\n ", 10000, ErrTextEmpty, ErrorCodeInvalidInput},
		{"zero max uses default", strings.Repeat("a", DefaultMaxTextLength), 0, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateText(tt.text, tt.max)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("ValidateText() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ValidateText() error = %v, want %v", err, tt.wantErr)
			}
			if got := CodeOf(err); got != tt.wantCode {
				t.Errorf("CodeOf() = %s, want %s", got, tt.wantCode)
			}
		})
	}
}

func TestValidateLanguage(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"en", "en", false},
		{"ES", "es", false},
		{" zh-cn ", "zh-cn", false},
		{"", DefaultLanguage, false},
		{"xx", "", true},
		{"zh", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ValidateLanguage(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateLanguage(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrUnsupportedLanguage) {
				t.Errorf("error = %v, want ErrUnsupportedLanguage", err)
			}
			if got != tt.want {
				t.Errorf("ValidateLanguage(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	root := t.TempDir()
	voices := filepath.Join(root, "voices")
	if err := os.MkdirAll(filepath.Join(voices, "my_voice"), 0o755); err != nil {
		t.Fatal(err)
	}
	outside := filepath.Join(root, "secret")
	if err := os.MkdirAll(outside, 0o755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"file inside", filepath.Join(voices, "my_voice", "combined.wav"), false},
		{"root itself", voices, false},
		{"missing nested inside", filepath.Join(voices, "new", "deep", "x.wav"), false},
		{"traversal", filepath.Join(voices, "..", "secret", "x.wav"), true},
		{"sibling with common prefix", voices + "_evil", true},
		{"outside", filepath.Join(outside, "x.wav"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidatePath(tt.path, voices)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidatePath() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrPathOutsideRoot) {
					t.Errorf("error = %v, want ErrPathOutsideRoot", err)
				}
				return
			}
			if !filepath.IsAbs(got) {
				t.Errorf("ValidatePath() = %q, want absolute path", got)
			}
		})
	}
}

func TestValidatePathSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	voices := filepath.Join(root, "voices")
	outside := filepath.Join(root, "outside")
	if err := os.MkdirAll(voices, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(outside, 0o755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(voices, "link")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	if _, err := ValidatePath(filepath.Join(link, "x.wav"), voices); !errors.Is(err, ErrPathOutsideRoot) {
		t.Errorf("ValidatePath() through symlink error = %v, want ErrPathOutsideRoot", err)
	}
}

func TestValidateReference(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "ref.wav")
	if err := os.WriteFile(file, []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ValidateReference(file); err != nil {
		t.Errorf("ValidateReference(file) error = %v", err)
	}
	if err := ValidateReference(filepath.Join(dir, "missing.wav")); !errors.Is(err, ErrReferenceNotFound) {
		t.Errorf("ValidateReference(missing) error = %v, want ErrReferenceNotFound", err)
	}
	if err := ValidateReference(dir); !errors.Is(err, ErrReferenceNotFound) {
		t.Errorf("ValidateReference(dir) error = %v, want ErrReferenceNotFound", err)
	}
}

func TestLanguages(t *testing.T) {
	codes := SupportedLanguages()
	if len(codes) != 16 {
		t.Fatalf("SupportedLanguages() returned %d codes, want 16", len(codes))
	}
	if codes[0] != "en" || codes[len(codes)-1] != "ko" {
		t.Errorf("unexpected order: %v", codes)
	}
	if got := LanguageName("es"); got != "Spanish (Español)" {
		t.Errorf("LanguageName(es) = %q", got)
	}
	if got := LanguageName("xx"); got != "xx" {
		t.Errorf("LanguageName(xx) = %q, want xx", got)
	}
	if !IsSupportedLanguage("ZH-CN") {
		t.Error("IsSupportedLanguage should ignore case")
	}
}
