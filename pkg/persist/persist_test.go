package persist

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/actlife/pkg/client"
)

func TestFileRepository_LoadMissing(t *testing.T) {
	repo := NewFileRepository(t.TempDir())

	st, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, st.IsEmpty())
	assert.Equal(t, Version, st.Version)
}

func TestFileRepository_SaveLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	repo := NewFileRepository(dir)
	saved := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	in := State{Tasks: []TaskSnapshot{{
		TaskID:    7,
		DisplayID: 1,
		SavedAt:   saved,
		Activities: []ActivitySnapshot{{
			Token:               "tok-1",
			Component:           "com.example/.Main",
			ProcessName:         "com.example",
			LaunchedFromUID:     10042,
			LaunchedFromPackage: "com.launcher",
			Intent:              client.Intent{Action: "MAIN", Extras: map[string]string{"k": "v"}},
			PersistentState:     []byte("blob"),
		}},
	}}}
	require.NoError(t, repo.Save(context.Background(), in))

	_, err := os.Stat(repo.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must be renamed away")

	out, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Version, out.Version)
	require.Len(t, out.Tasks, 1)
	task, ok := out.Task(7)
	require.True(t, ok)
	assert.True(t, task.SavedAt.Equal(saved))
	assert.Equal(t, in.Tasks[0].Activities, task.Activities)

	_, ok = out.Task(8)
	assert.False(t, ok)
}

func TestFileRepository_RejectsNewerVersion(t *testing.T) {
	dir := t.TempDir()
	repo := NewFileRepository(dir)
	require.NoError(t, os.WriteFile(repo.Path(), []byte(`{"version": 99, "tasks": []}`), 0o600))

	_, err := repo.Load(context.Background())
	assert.ErrorIs(t, err, ErrIncompatibleVersion)
}

func TestFileRepository_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	repo := NewFileRepository(dir)
	require.NoError(t, os.WriteFile(repo.Path(), []byte(`{not json`), 0o600))

	_, err := repo.Load(context.Background())
	assert.Error(t, err)
}

func TestFileRepository_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	repo := NewFileRepository(t.TempDir())

	assert.ErrorIs(t, repo.Save(ctx, State{}), context.Canceled)
	_, err := repo.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
