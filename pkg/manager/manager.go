// Package manager implements the Manager component: a thin facade that
// owns the set of configured Libraries, routes public paths to the right
// one by mount name, and owns the PageCache shared across all of them.
package manager

import (
	"sort"
	"strings"
	"sync"

	"medialib/pkg/apierror"
	"medialib/pkg/fileindex"
	"medialib/pkg/library"
	"medialib/pkg/logging"
	"medialib/pkg/pagecache"
)

// Manager owns every configured Library plus the shared PageCache of
// search/list results. It carries no ambient global state: every request
// handler is threaded a *Manager explicitly.
type Manager struct {
	mu        sync.RWMutex
	libraries map[string]*library.Library
	cache     *pagecache.PageCache[*fileindex.Entry]
	logger    *logging.Logger
}

// New builds a Manager from an already-opened set of Libraries. maxCachedPages
// bounds the shared PageCache (0 selects its default).
func New(libraries []*library.Library, maxCachedPages int, logger *logging.Logger) *Manager {
	byName := make(map[string]*library.Library, len(libraries))
	for _, lib := range libraries {
		byName[lib.Name()] = lib
	}

	return &Manager{
		libraries: byName,
		cache:     pagecache.New[*fileindex.Entry](maxCachedPages),
		logger:    logger,
	}
}

// LibraryFor returns the named Library, or a not-found apierror.Error.
func (m *Manager) LibraryFor(name string) (*library.Library, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lib, ok := m.libraries[name]
	if !ok {
		return nil, apierror.Newf(apierror.NotFound, "no such library: %s", name)
	}
	return lib, nil
}

// Resolve parses a public path of the form "/<libraryName>/<relative>" (or
// just "/<libraryName>" for a mount root) and returns the owning Library
// together with the corresponding native path.
func (m *Manager) Resolve(publicPath string) (*library.Library, string, error) {
	trimmed := strings.TrimPrefix(publicPath, "/")
	if trimmed == "" {
		return nil, "", apierror.New(apierror.InvalidRequest, "public path must not be empty")
	}

	name, rel, _ := strings.Cut(trimmed, "/")
	lib, err := m.LibraryFor(name)
	if err != nil {
		return nil, "", err
	}

	native, err := lib.Resolve(rel)
	if err != nil {
		return nil, "", err
	}
	return lib, native, nil
}

// Libraries returns every configured Library sorted by mount name, the
// order mountpoint listings and the root "/" listing use.
func (m *Manager) Libraries() []*library.Library {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*library.Library, 0, len(m.libraries))
	for _, lib := range m.libraries {
		result = append(result, lib)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}

// CachePage serves one page of results through the shared PageCache,
// resuming the query cached under pageUUID or starting a fresh one from
// factory.
func (m *Manager) CachePage(pageUUID string, skip int, factory func() pagecache.Iterator[*fileindex.Entry], pageSize int) (*pagecache.Page[*fileindex.Entry], error) {
	return m.cache.Get(pageUUID, skip, factory, pageSize)
}

// Shutdown cancels every Library's background tasks and closes its
// FileIndex, in library-name order for deterministic logging.
func (m *Manager) Shutdown() error {
	var firstErr error
	for _, lib := range m.Libraries() {
		if err := lib.Shutdown(); err != nil {
			m.logger.Warn(err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
