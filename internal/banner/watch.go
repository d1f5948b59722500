package banner

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// FileWatcher polls the banner directory and triggers a callback when a
// banner file is added, changed or removed.
type FileWatcher struct {
	Dir      string
	Interval time.Duration
	Clock    clockwork.Clock

	onChange  func(string) // called with path that changed
	stopCh    chan struct{}
	stopOnce  sync.Once
	lastMTime map[string]time.Time
}

// NewFileWatcher creates a watcher for the *.yaml files in dir.
func NewFileWatcher(dir string, interval time.Duration, clock clockwork.Clock, onChange func(string)) *FileWatcher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &FileWatcher{
		Dir:       dir,
		Interval:  interval,
		Clock:     clock,
		onChange:  onChange,
		stopCh:    make(chan struct{}),
		lastMTime: make(map[string]time.Time),
	}
}

// Watch invalidates the loader's cache whenever a banner file changes.
func Watch(l *Loader, interval time.Duration, clock clockwork.Clock, log zerolog.Logger) *FileWatcher {
	w := NewFileWatcher(l.Paths().Dir(), interval, clock, func(path string) {
		log.Info().Str("path", path).Msg("banner config changed; cache invalidated")
		l.Invalidate()
	})
	w.Start()
	return w
}

// Start records the current files, then polls in a goroutine.
func (w *FileWatcher) Start() {
	ticker := w.Clock.NewTicker(w.Interval)
	w.scanAll(true)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				w.scanAll(false)
			case <-w.stopCh:
				return
			}
		}
	}()
}

// Stop terminates the watcher. It is safe to call more than once.
func (w *FileWatcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

// scanAll compares mtimes with the previous scan and reports every
// difference, including files that appeared or disappeared.
func (w *FileWatcher) scanAll(prime bool) {
	paths, _ := filepath.Glob(filepath.Join(w.Dir, "*.yaml"))
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			continue
		}
		seen[p] = true
		mt := fi.ModTime()
		last, ok := w.lastMTime[p]
		w.lastMTime[p] = mt
		if prime || (ok && mt.Equal(last)) {
			continue
		}
		w.notify(p)
	}
	for p := range w.lastMTime {
		if !seen[p] {
			delete(w.lastMTime, p)
			w.notify(p)
		}
	}
}

func (w *FileWatcher) notify(path string) {
	if w.onChange != nil {
		w.onChange(path)
	}
}
