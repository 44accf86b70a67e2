package workspace

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, retention time.Duration) *Manager {
	t.Helper()
	m, err := NewManager(filepath.Join(t.TempDir(), "workspaces"), retention, nil)
	require.NoError(t, err)
	return m
}

func TestAcquireStagesDirectory(t *testing.T) {
	m := newTestManager(t, time.Hour)

	ws, err := m.Acquire("req-1")
	require.NoError(t, err)
	assert.Equal(t, "req-1", ws.ID)
	assert.DirExists(t, ws.Path)

	again, err := m.Acquire("req-1")
	require.NoError(t, err)
	assert.Same(t, ws, again)
}

func TestAcquireGeneratesID(t *testing.T) {
	m := newTestManager(t, time.Hour)

	ws, err := m.Acquire("")
	require.NoError(t, err)
	assert.NotEmpty(t, ws.ID)
}

func TestSweepOnceReclaimsExpired(t *testing.T) {
	m := newTestManager(t, time.Hour)

	ws, err := m.Acquire("req-1")
	require.NoError(t, err)

	removed, errs := m.SweepOnce(time.Now())
	assert.Zero(t, removed, "deadline not reached yet")
	assert.Empty(t, errs)

	removed, errs = m.SweepOnce(time.Now().Add(2 * time.Hour))
	assert.Equal(t, 1, removed)
	assert.Empty(t, errs)
	assert.NoDirExists(t, ws.Path)

	_, ok := m.Get("req-1")
	assert.False(t, ok)
}

func TestLeaseBlocksSweep(t *testing.T) {
	m := newTestManager(t, time.Hour)

	ws, err := m.Acquire("req-1")
	require.NoError(t, err)
	release, err := m.Lease(ws.ID)
	require.NoError(t, err)

	removed, _ := m.SweepOnce(time.Now().Add(2 * time.Hour))
	assert.Zero(t, removed, "leased workspace is never reclaimed")
	assert.DirExists(t, ws.Path)

	release()
	removed, _ = m.SweepOnce(time.Now().Add(30 * time.Minute))
	assert.Zero(t, removed, "release refreshed the deadline")

	removed, _ = m.SweepOnce(time.Now().Add(2 * time.Hour))
	assert.Equal(t, 1, removed)
}

func TestReleaseIsIdempotent(t *testing.T) {
	m := newTestManager(t, time.Hour)

	ws, err := m.Acquire("req-1")
	require.NoError(t, err)
	release, err := m.Lease(ws.ID)
	require.NoError(t, err)

	release()
	release()

	got, ok := m.Get(ws.ID)
	require.True(t, ok)
	assert.Equal(t, 0, got.refs)
}

func TestLeaseUnknownWorkspace(t *testing.T) {
	m := newTestManager(t, time.Hour)
	_, err := m.Lease("missing")
	assert.Error(t, err)
}

func TestListIsOrdered(t *testing.T) {
	m := newTestManager(t, time.Hour)
	for _, id := range []string{"b", "c", "a"} {
		_, err := m.Acquire(id)
		require.NoError(t, err)
	}

	list := m.List()
	require.Len(t, list, 3)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
	assert.Equal(t, "c", list[2].ID)
}

func TestSweepNeverReclaimsUnderChurningLeases(t *testing.T) {
	m := newTestManager(t, time.Hour)

	ws, err := m.Acquire("req-1")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(ws.Path, "app.py"), []byte("x"), 0o644))

	// Fixed sweep instant past every refreshed deadline, so the
	// workspace stays eligible while leases come and go.
	past := time.Now().Add(3 * time.Hour)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			release, err := m.Lease("req-1")
			if err != nil {
				// Reclaimed between leases; from here no lease can start.
				return
			}
			if _, statErr := os.Stat(ws.Path); statErr != nil {
				t.Error("workspace directory removed while a lease was held")
				release()
				return
			}
			release()
		}
	}()

	for i := 0; i < 200; i++ {
		if removed, _ := m.SweepOnce(past); removed > 0 {
			break
		}
	}
	// Guarantee the workspace is gone so the lease loop terminates.
	for {
		if _, ok := m.Get("req-1"); !ok {
			break
		}
		m.SweepOnce(past)
	}
	<-done
}

func TestSweepOnceKeepsEntryOnRemovalFailure(t *testing.T) {
	m := newTestManager(t, time.Hour)

	ws, err := m.Acquire("req-1")
	require.NoError(t, err)
	// Point the workspace at a path that cannot be removed cleanly.
	require.NoError(t, os.RemoveAll(ws.Path))
	ws.Path = string([]byte{0})

	_, errs := m.SweepOnce(time.Now().Add(2 * time.Hour))
	if len(errs) == 0 {
		t.Skip("platform removed the invalid path without error")
	}
	_, ok := m.Get("req-1")
	assert.True(t, ok, "failed removal keeps the registry entry for the next sweep")
}
