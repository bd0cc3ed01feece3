package memarchive

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ClassSuffix is appended to a class's slash-separated name to form its
// entry name.
const ClassSuffix = ".class"

// Origin describes where a class was loaded from.
type Origin struct {
	// URL is the address of the archive holding the class, e.g. "memory:/lib1.jar".
	URL string

	// Path is the logical path of that archive.
	Path string

	// Package is the dotted package of the class, empty for the default package.
	Package string
}

// Definer turns class bytes into something executable.
//
// It is supplied by the host. Define is called at most once per class name
// for a given Loader.
type Definer interface {
	Define(name string, code []byte, origin Origin) (any, error)
}

// DefinerFunc adapts a function to the Definer interface.
type DefinerFunc func(name string, code []byte, origin Origin) (any, error)

// Define calls f.
func (f DefinerFunc) Define(name string, code []byte, origin Origin) (any, error) {
	return f(name, code, origin)
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLoaderLogger sets the logger for class definition events.
// If not set, logging is disabled.
func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Loader loads classes and resources out of the archives bound to a Resolver.
//
// Each class is defined once; later and concurrent calls for the same name
// share the first result. A Loader is safe for concurrent use.
type Loader struct {
	resolver *Resolver
	definer  Definer
	logger   *slog.Logger

	mu      sync.RWMutex
	defined map[string]any
	group   singleflight.Group
}

// NewLoader creates a Loader searching resolver and defining classes with definer.
func NewLoader(resolver *Resolver, definer Definer, opts ...LoaderOption) *Loader {
	l := &Loader{
		resolver: resolver,
		definer:  definer,
		logger:   slog.New(slog.DiscardHandler),
		defined:  make(map[string]any),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Resolver returns the resolver the Loader searches.
func (l *Loader) Resolver() *Resolver {
	return l.resolver
}

// ClassEntryName maps a dotted class name to its entry name, e.g.
// "pkg.One" to "pkg/One.class".
func ClassEntryName(name string) string {
	return strings.ReplaceAll(name, ".", "/") + ClassSuffix
}

// LoadClass returns the definition of the class with the given dotted name.
//
// A class absent from every bound archive yields ErrClassNotFound. Errors
// from the Definer are returned wrapped and are not memoized.
func (l *Loader) LoadClass(name string) (any, error) {
	if unit, ok := l.lookup(name); ok {
		return unit, nil
	}

	unit, err, _ := l.group.Do(name, func() (any, error) {
		if unit, ok := l.lookup(name); ok {
			return unit, nil
		}

		res, err := l.resolver.ReadResource(ClassEntryName(name))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("%s: %w", name, ErrClassNotFound)
			}
			return nil, fmt.Errorf("load class %s: %w", name, err)
		}

		origin := Origin{
			URL:  res.Archive.URL(),
			Path: res.Archive.Path(),
		}
		if i := strings.LastIndexByte(name, '.'); i > 0 {
			origin.Package = name[:i]
		}

		unit, err := l.definer.Define(name, res.Data, origin)
		if err != nil {
			return nil, fmt.Errorf("define class %s: %w", name, err)
		}

		l.mu.Lock()
		l.defined[name] = unit
		l.mu.Unlock()
		l.logger.Debug("class defined",
			slog.String("class", name),
			slog.String("origin", origin.URL),
			slog.Int("size", len(res.Data)))
		return unit, nil
	})
	return unit, err
}

func (l *Loader) lookup(name string) (any, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	unit, ok := l.defined[name]
	return unit, ok
}

// FindResource returns the resource URL of the first archive holding name.
func (l *Loader) FindResource(name string) (string, bool) {
	m, ok := l.resolver.Find(name)
	if !ok {
		return "", false
	}
	return m.URL(), true
}

// FindResources returns the resource URLs of every archive holding name, in
// search order.
func (l *Loader) FindResources(name string) []string {
	matches := l.resolver.FindAll(name)
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.URL()
	}
	return out
}
