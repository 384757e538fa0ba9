package web

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/dgnsrekt/voxclone/internal/profile"
)

// voiceList caches the selectable voice files. A watcher on the voices tree
// drops the cache on any change; without a watcher every call reloads.
type voiceList struct {
	library *profile.Library
	logger  *log.Logger

	mu    sync.Mutex
	files []profile.VoiceFile
	valid bool

	watcher *fsnotify.Watcher
	done    chan struct{}
}

func newVoiceList(library *profile.Library, logger *log.Logger) *voiceList {
	v := &voiceList{
		library: library,
		logger:  logger,
		done:    make(chan struct{}),
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Debug("Voice watcher unavailable", "err", err)
		close(v.done)
		return v
	}
	if err := v.watchTree(w); err != nil {
		logger.Debug("Not watching voices directory", "dir", library.Root(), "err", err)
		_ = w.Close()
		close(v.done)
		return v
	}

	v.watcher = w
	go v.run()
	return v
}

// watchTree adds the voices root and each profile directory.
func (v *voiceList) watchTree(w *fsnotify.Watcher) error {
	root := v.library.Root()
	if err := w.Add(root); err != nil {
		return err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := w.Add(filepath.Join(root, e.Name())); err != nil {
				v.logger.Debug("Unable to watch profile", "name", e.Name(), "err", err)
			}
		}
	}
	return nil
}

func (v *voiceList) run() {
	defer close(v.done)
	for {
		select {
		case ev, ok := <-v.watcher.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = v.watcher.Add(ev.Name)
				}
			}
			v.invalidate()
		case err, ok := <-v.watcher.Errors:
			if !ok {
				return
			}
			v.logger.Debug("Voice watcher error", "err", err)
			v.invalidate()
		}
	}
}

func (v *voiceList) invalidate() {
	v.mu.Lock()
	v.valid = false
	v.mu.Unlock()
}

// Files returns the voice files, reloading them when the cache is stale.
func (v *voiceList) Files() ([]profile.VoiceFile, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.valid {
		return v.files, nil
	}
	files, err := v.library.Files()
	if err != nil {
		return nil, err
	}
	v.files = files
	v.valid = v.watcher != nil
	return files, nil
}

// Close stops the watcher.
func (v *voiceList) Close() error {
	if v.watcher == nil {
		return nil
	}
	err := v.watcher.Close()
	<-v.done
	return err
}
