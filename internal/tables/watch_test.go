package tables

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatchSwapsSnapshotOnChange(t *testing.T) {
	dir := t.TempDir()

	initial, err := Load(dir)
	require.NoError(t, err)
	provider := NewProvider(initial)

	_, ok := provider.Current().StateForCity("gotham")
	require.False(t, ok)

	watcher, err := provider.Watch(context.Background(), dir, func(err error) {
		t.Logf("watch error: %v", err)
	})
	require.NoError(t, err)
	defer watcher.Stop()

	override := `{"gotham": "New Jersey"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cities.json"), []byte(override), 0o600))

	require.Eventually(t, func() bool {
		_, ok := provider.Current().StateForCity("gotham")
		return ok
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWatchKeepsSnapshotOnBrokenReload(t *testing.T) {
	dir := t.TempDir()

	initial, err := Load(dir)
	require.NoError(t, err)
	provider := NewProvider(initial)

	errCh := make(chan error, 8)
	watcher, err := provider.Watch(context.Background(), dir, func(err error) {
		errCh <- err
	})
	require.NoError(t, err)
	defer watcher.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "cities.json"), []byte("{broken"), 0o600))

	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected reload error for malformed table")
	}

	// Previous snapshot stays live.
	_, _, ok := provider.Current().ResolveCountry("US")
	require.True(t, ok)
}

func TestWatchRequiresFolder(t *testing.T) {
	provider := NewProvider(nil)
	_, err := provider.Watch(context.Background(), "", nil)
	require.Error(t, err)
}
