package cache

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDiskCache_BasicOperations(t *testing.T) {
	dc, err := NewDiskCache(t.TempDir(), 1<<20, 3)
	if err != nil {
		t.Fatalf("NewDiskCache failed: %v", err)
	}
	defer dc.Close() //nolint:errcheck

	value := []byte("speaker latents")
	if err := dc.Put("voice", value); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok := dc.Get("voice")
	if !ok {
		t.Fatal("Get failed: key not found")
	}
	if !bytes.Equal(got, value) {
		t.Errorf("Get = %q, want %q", got, value)
	}

	if err := dc.Delete("voice"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if dc.Contains("voice") {
		t.Error("key still present after delete")
	}
	if dc.Size() != 0 {
		t.Errorf("Size = %d after delete", dc.Size())
	}
}

func TestDiskCache_Compression(t *testing.T) {
	dc, err := NewDiskCache(t.TempDir(), 1<<20, 3)
	if err != nil {
		t.Fatalf("NewDiskCache failed: %v", err)
	}
	defer dc.Close() //nolint:errcheck

	value := bytes.Repeat([]byte("0.125,"), 4096)
	if err := dc.Put("latents", value); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if dc.Size() >= int64(len(value)) {
		t.Errorf("Size = %d, expected compressed size below %d", dc.Size(), len(value))
	}

	got, ok := dc.Get("latents")
	if !ok || !bytes.Equal(got, value) {
		t.Error("compressed value did not round trip")
	}
}

func TestDiskCache_Persistence(t *testing.T) {
	dir := t.TempDir()

	dc, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatalf("NewDiskCache failed: %v", err)
	}
	if err := dc.Put("voice", []byte("persisted")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := dc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close() //nolint:errcheck

	got, ok := reopened.Get("voice")
	if !ok || string(got) != "persisted" {
		t.Errorf("Get after reopen = %q, %v", got, ok)
	}
}

func TestDiskCache_SharedDirectory(t *testing.T) {
	dir := t.TempDir()

	first, err := NewDiskCache(dir, 1<<20, 0)
	if err != nil {
		t.Fatalf("NewDiskCache failed: %v", err)
	}
	defer first.Close() //nolint:errcheck

	second, err := NewDiskCache(dir, 1<<20, 0)
	if err != nil {
		t.Fatalf("NewDiskCache failed: %v", err)
	}
	defer second.Close() //nolint:errcheck

	if err := first.Put("a", []byte("from first")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := second.Put("b", []byte("from second")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if got, ok := second.Get("a"); !ok || string(got) != "from first" {
		t.Errorf("second.Get(a) = %q, %v", got, ok)
	}
	if got, ok := first.Get("b"); !ok || string(got) != "from second" {
		t.Errorf("first.Get(b) = %q, %v", got, ok)
	}
}

func TestDiskCache_Eviction(t *testing.T) {
	dc, err := NewDiskCache(t.TempDir(), 100, 0)
	if err != nil {
		t.Fatalf("NewDiskCache failed: %v", err)
	}
	defer dc.Close() //nolint:errcheck

	for i := 0; i < 4; i++ {
		if err := dc.Put(fmt.Sprintf("key-%d", i), make([]byte, 25)); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	dc.Get("key-0")

	if err := dc.Put("key-new", make([]byte, 25)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if !dc.Contains("key-0") {
		t.Error("recently read key-0 was evicted")
	}
	if dc.Contains("key-1") {
		t.Error("key-1 should have been evicted")
	}
	if dc.Size() > 100 {
		t.Errorf("Size %d exceeds capacity", dc.Size())
	}
	if dc.Stats().Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", dc.Stats().Evictions)
	}
}

func TestDiskCache_ItemTooLarge(t *testing.T) {
	dc, err := NewDiskCache(t.TempDir(), 10, 0)
	if err != nil {
		t.Fatalf("NewDiskCache failed: %v", err)
	}
	defer dc.Close() //nolint:errcheck

	if err := dc.Put("big", make([]byte, 11)); !errors.Is(err, ErrItemTooLarge) {
		t.Errorf("expected ErrItemTooLarge, got %v", err)
	}
}

func TestDiskCache_MissingFile(t *testing.T) {
	dir := t.TempDir()
	dc, err := NewDiskCache(dir, 1<<20, 0)
	if err != nil {
		t.Fatalf("NewDiskCache failed: %v", err)
	}
	defer dc.Close() //nolint:errcheck

	if err := dc.Put("voice", []byte("data")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, fileName("voice"))); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	if _, ok := dc.Get("voice"); ok {
		t.Error("Get succeeded for a removed file")
	}
	if dc.Contains("voice") {
		t.Error("entry kept after its file disappeared")
	}
}

func TestDiskCache_Closed(t *testing.T) {
	dc, err := NewDiskCache(t.TempDir(), 1<<20, 3)
	if err != nil {
		t.Fatalf("NewDiskCache failed: %v", err)
	}
	if err := dc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := dc.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	if err := dc.Put("k", []byte("v")); !errors.Is(err, ErrCacheClosed) {
		t.Errorf("Put after close = %v, want ErrCacheClosed", err)
	}
}
