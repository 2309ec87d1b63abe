package activity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/actlife/pkg/client"
	"github.com/bft-labs/actlife/pkg/lifecycle"
	"github.com/bft-labs/actlife/pkg/persist"
)

func knownComponents(names ...string) Resolver {
	return func(component string) (Info, bool) {
		for _, n := range names {
			if info := appInfo(n); info.Component == component {
				return info, true
			}
		}
		return Info{}, false
	}
}

func TestPersistence_RoundTrip(t *testing.T) {
	f := newFixture(t, Config{})
	a, b := f.twoStacked()

	st := f.eng.PersistState()
	require.Len(t, st.Tasks, 1)
	require.Len(t, st.Tasks[0].Activities, 2)
	assert.Equal(t, string(a), st.Tasks[0].Activities[0].Token)
	assert.Equal(t, epoch, st.Tasks[0].SavedAt)

	repo := persist.NewFileRepository(t.TempDir())
	require.NoError(t, repo.Save(context.Background(), st))
	loaded, err := repo.Load(context.Background())
	require.NoError(t, err)

	g := newFixture(t, Config{})
	ids, err := g.eng.RestoreState(loaded, knownComponents("A", "B"))
	require.NoError(t, err)
	require.Len(t, ids, 1)

	ts, err := g.eng.Task(ids[0])
	require.NoError(t, err)
	assert.Equal(t, []Token{a, b}, ts.Activities)

	assert.Equal(t, lifecycle.StateResumed, g.state(b))
	assert.Equal(t, []client.Kind{client.KindLaunch}, g.kinds(b))
	assert.Equal(t, lifecycle.StateInitializing, g.state(a))
	assert.Empty(t, g.kinds(a))
	assert.Equal(t, "MAIN", g.snap(a).Intent.Action)
}

func TestPersistence_FinishingSkipped(t *testing.T) {
	f := newFixture(t, Config{})
	a, b := f.twoStacked()
	_, err := f.eng.RequestFinish(b, ResultCanceled, "", "back")
	require.NoError(t, err)

	snap, err := f.eng.PersistTask(f.snap(a).Task)
	require.NoError(t, err)
	require.Len(t, snap.Activities, 1)
	assert.Equal(t, string(a), snap.Activities[0].Token)

	_, err = f.eng.PersistTask(99)
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestRestoreTask_BelowExistingTasks(t *testing.T) {
	f := newFixture(t, Config{})
	x := f.start(appInfo("X"), 0)

	id, err := f.eng.RestoreTask(persist.TaskSnapshot{
		TaskID: 12,
		Activities: []persist.ActivitySnapshot{
			{Token: "restored", Component: "com.example/.A", ProcessName: "app"},
			{Component: "com.example/.Gone"},
		},
	}, knownComponents("A"))
	require.NoError(t, err)

	tasks := f.eng.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, id, tasks[0].ID)
	assert.Equal(t, []Token{"restored"}, tasks[0].Activities)

	assert.Equal(t, lifecycle.StateResumed, f.state(x))
	assert.Equal(t, lifecycle.StateInitializing, f.state("restored"))
	assert.Empty(t, f.kinds("restored"))
}

func TestRestoreTask_Errors(t *testing.T) {
	f := newFixture(t, Config{})

	_, err := f.eng.RestoreTask(persist.TaskSnapshot{DisplayID: 5}, knownComponents())
	assert.ErrorIs(t, err, ErrUnknownDisplay)

	_, err = f.eng.RestoreTask(persist.TaskSnapshot{
		Activities: []persist.ActivitySnapshot{{Component: "com.example/.Gone"}},
	}, knownComponents())
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Empty(t, f.eng.Tasks())

	ids, err := f.eng.RestoreState(persist.State{
		Version: persist.Version,
		Tasks: []persist.TaskSnapshot{{
			Activities: []persist.ActivitySnapshot{{Component: "com.example/.Gone"}},
		}},
	}, knownComponents())
	require.NoError(t, err)
	assert.Empty(t, ids)
}
