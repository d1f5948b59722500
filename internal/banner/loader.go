package banner

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const defaultName = "default"

var (
	ErrUnknownBanner = errors.New("unknown banner")

	validName = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)
)

// Paths helper for the default and per-banner files.
type Paths struct {
	BaseDir string // base directory, e.g., /etc/gachasim
}

func (p Paths) Dir() string {
	return filepath.Join(p.BaseDir, "banners")
}
func (p Paths) DefaultPath() string {
	return filepath.Join(p.Dir(), defaultName+".yaml")
}
func (p Paths) BannerPath(name string) string {
	return filepath.Join(p.Dir(), name+".yaml")
}

// Loader reads banner YAML files and merges default → banner.
type Loader struct {
	paths Paths

	mu    sync.RWMutex
	cache map[string]RawBanner // key: banner name
}

// NewLoader creates a banner loader rooted at baseDir.
func NewLoader(baseDir string) *Loader {
	return &Loader{
		paths: Paths{BaseDir: baseDir},
		cache: make(map[string]RawBanner),
	}
}

func (l *Loader) Paths() Paths { return l.paths }

// LoadMerged loads default.yaml and <name>.yaml and merges them.
// It returns the merged RawBanner (without validation).
func (l *Loader) LoadMerged(name string) (RawBanner, error) {
	if !validName.MatchString(name) || name == defaultName {
		return RawBanner{}, fmt.Errorf("%w: %q", ErrUnknownBanner, name)
	}

	l.mu.RLock()
	if cfg, ok := l.cache[name]; ok {
		l.mu.RUnlock()
		return cfg, nil
	}
	l.mu.RUnlock()

	defCfg, _, err := readYAML(l.paths.DefaultPath()) // default file may not exist
	if err != nil {
		return RawBanner{}, fmt.Errorf("read default: %w", err)
	}
	cfg, ok, err := readYAML(l.paths.BannerPath(name))
	if err != nil {
		return RawBanner{}, fmt.Errorf("read banner %s: %w", name, err)
	}
	if !ok {
		return RawBanner{}, fmt.Errorf("%w: %q", ErrUnknownBanner, name)
	}

	merged := mergeRaw(defCfg, cfg)
	if cfg.Name == "" {
		merged.Name = name
	}

	l.mu.Lock()
	l.cache[name] = merged
	l.mu.Unlock()
	return merged, nil
}

// List returns the names of every banner file, sorted.
func (l *Loader) List() ([]string, error) {
	entries, err := os.ReadDir(l.paths.Dir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".yaml")
		if e.IsDir() || !ok || name == defaultName || !validName.MatchString(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Invalidate clears loader's cache. Call after hot-reload detects changes.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string]RawBanner)
}

// readYAML loads a YAML file into RawBanner. Missing files return a zero
// config and ok=false. Unknown keys are errors.
func readYAML(path string) (cfg RawBanner, ok bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return RawBanner{}, false, nil
		}
		return RawBanner{}, false, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return RawBanner{}, false, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return cfg, true, nil
}

// mergeRaw overlays b on a: scalars when non-empty, pointers when non-nil,
// slices replaced when provided. The store catalog is replaced as a whole.
func mergeRaw(a, b RawBanner) RawBanner {
	out := a

	if b.Version != "" {
		out.Version = b.Version
	}
	if b.Name != "" {
		out.Name = b.Name
	}
	if b.Title != "" {
		out.Title = b.Title
	}
	if b.EndDate != "" {
		out.EndDate = b.EndDate
	}
	if b.Notes != "" {
		out.Notes = b.Notes
	}
	if len(b.Characters) > 0 {
		out.Characters = append([]string(nil), b.Characters...)
	}
	if len(b.Weapons) > 0 {
		out.Weapons = append([]string(nil), b.Weapons...)
	}
	if len(b.Costumes) > 0 {
		out.Costumes = append([]string(nil), b.Costumes...)
	}
	if b.NonFeaturedRate != nil {
		r := *b.NonFeaturedRate
		out.NonFeaturedRate = &r
	}
	if len(b.Cards) > 0 {
		out.Cards = append(out.Cards[:0:0], b.Cards...)
	}

	// currency
	switch {
	case out.Currency == nil && b.Currency != nil:
		c := *b.Currency
		out.Currency = &c
	case out.Currency != nil && b.Currency != nil:
		c := *out.Currency
		if b.Currency.Name != "" {
			c.Name = b.Currency.Name
		}
		if b.Currency.PerDraw != nil {
			c.PerDraw = b.Currency.PerDraw
		}
		if b.Currency.PerTenDraw != nil {
			c.PerTenDraw = b.Currency.PerTenDraw
		}
		out.Currency = &c
	}

	if b.Store != nil {
		s := *b.Store
		out.Store = &s
	}
	return out
}
