// Package workspace manages staged analysis directories: creation per
// request, refcounted leases that protect in-flight analyses, and
// deadline-based reclamation.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Workspace is one staged directory. Deadline and refs are managed by
// the owning Manager under its lock.
type Workspace struct {
	ID        string
	Path      string
	CreatedAt time.Time
	Deadline  time.Time

	refs int
}

// Manager owns the workspace registry. All methods are safe for
// concurrent use.
type Manager struct {
	mu         sync.Mutex
	root       string
	retention  time.Duration
	workspaces map[string]*Workspace
	logger     *zap.Logger

	sweeper *sweeper
}

func NewManager(root string, retention time.Duration, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("workspace root: %w", err)
	}
	return &Manager{
		root:       root,
		retention:  retention,
		workspaces: make(map[string]*Workspace),
		logger:     logger,
	}, nil
}

// Acquire returns the workspace for a request id, creating its staging
// directory on first use. An empty id gets a generated one.
func (m *Manager) Acquire(requestID string) (*Workspace, error) {
	if requestID == "" {
		requestID = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if ws, ok := m.workspaces[requestID]; ok {
		return ws, nil
	}

	path := filepath.Join(m.root, requestID)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("stage workspace %s: %w", requestID, err)
	}
	now := time.Now()
	ws := &Workspace{
		ID:        requestID,
		Path:      path,
		CreatedAt: now,
		Deadline:  now.Add(m.retention),
	}
	m.workspaces[requestID] = ws
	m.logger.Debug("workspace staged", zap.String("id", requestID), zap.String("path", path))
	return ws, nil
}

// Lease pins a workspace against reclamation for the duration of an
// analysis. The returned release is idempotent and refreshes the
// retention deadline, so a swept-while-busy workspace still gets its
// full retention after the analysis ends.
func (m *Manager) Lease(id string) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.workspaces[id]
	if !ok {
		return nil, fmt.Errorf("workspace %s not found", id)
	}
	ws.refs++

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			ws.refs--
			ws.Deadline = time.Now().Add(m.retention)
		})
	}, nil
}

// Get returns a registered workspace by id.
func (m *Manager) Get(id string) (*Workspace, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.workspaces[id]
	return ws, ok
}

// List returns the registered workspaces ordered by id.
func (m *Manager) List() []*Workspace {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Workspace, 0, len(m.workspaces))
	for _, ws := range m.workspaces {
		out = append(out, ws)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SweepOnce reclaims every workspace whose deadline has passed and
// which holds no lease. A failed removal is logged and retried on the
// next sweep; the registry entry stays until the directory is gone.
func (m *Manager) SweepOnce(now time.Time) (removed int, errs []error) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.workspaces))
	for id := range m.workspaces {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	sort.Strings(ids)

	for _, id := range ids {
		m.mu.Lock()
		ws, ok := m.workspaces[id]
		if !ok || ws.refs != 0 || !ws.Deadline.Before(now) {
			m.mu.Unlock()
			continue
		}
		// Removal happens under the lock: the refcount check and the
		// delete are atomic against Lease and Acquire, so a held lease
		// can never observe a vanishing directory.
		err := os.RemoveAll(ws.Path)
		if err == nil {
			delete(m.workspaces, id)
		}
		m.mu.Unlock()

		if err != nil {
			m.logger.Warn("workspace removal failed",
				zap.String("id", id), zap.Error(err))
			errs = append(errs, fmt.Errorf("remove workspace %s: %w", id, err))
			continue
		}
		removed++
		m.logger.Debug("workspace reclaimed", zap.String("id", id))
	}
	return removed, errs
}
