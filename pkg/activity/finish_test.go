package activity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/actlife/pkg/client"
	"github.com/bft-labs/actlife/pkg/lifecycle"
	"github.com/bft-labs/actlife/pkg/timeout"
)

func TestFinish_OnlyActivity(t *testing.T) {
	f := newFixture(t, Config{})
	a := f.start(appInfo("A"), 0)

	res, err := f.eng.RequestFinish(a, ResultOK, "", "back")
	require.NoError(t, err)
	assert.Equal(t, FinishRequested, res)
	assert.True(t, f.last(a).Finishing)

	res, err = f.eng.RequestFinish(a, ResultOK, "", "back")
	require.NoError(t, err)
	assert.Equal(t, FinishCancelled, res, "second finish is a no-op")

	f.ack(a, AckPaused)
	assert.Equal(t, lifecycle.StateDestroying, f.state(a))
	assert.Equal(t, []client.Kind{client.KindLaunch, client.KindPause, client.KindDestroy}, f.kinds(a))
	assert.True(t, f.last(a).Finishing)

	f.ack(a, AckDestroyed)
	assert.True(t, f.gone(a))
	assert.Empty(t, f.eng.Tasks())
	assert.False(t, f.procs.Foreground("app"))

	res, err = f.eng.RequestFinish(a, ResultOK, "", "back")
	require.NoError(t, err)
	assert.Equal(t, FinishCancelled, res)
	assert.Equal(t, 1, f.metrics.finishes[FinishRequested])
	assert.Equal(t, 2, f.metrics.finishes[FinishCancelled])
}

func TestFinish_TopOfTwoWaitsForSuccessor(t *testing.T) {
	f := newFixture(t, Config{})
	a, b := f.twoStacked()
	task := f.snap(a).Task

	_, err := f.eng.RequestFinish(b, ResultOK, "", "back")
	require.NoError(t, err)
	f.ack(b, AckPaused)

	assert.Equal(t, lifecycle.StateStopping, f.state(b), "waits for A to show")
	assert.Equal(t, lifecycle.StateResumed, f.state(a))
	assert.Equal(t, []Token{b}, f.eng.Stopping())

	f.ack(a, AckWindowsVisible)
	assert.Equal(t, lifecycle.StateDestroying, f.state(b))
	f.ack(b, AckDestroyed)
	assert.True(t, f.gone(b))

	assert.Equal(t, []client.Kind{
		client.KindLaunch, client.KindPause, client.KindStop, client.KindStart, client.KindResume,
	}, f.kinds(a))
	assert.Equal(t, []client.Kind{client.KindLaunch, client.KindPause, client.KindDestroy}, f.kinds(b))

	ts, err := f.eng.Task(task)
	require.NoError(t, err)
	assert.Equal(t, []Token{a}, ts.Activities)
	assert.Equal(t, a, ts.Resumed)
}

func TestFinish_InvisibleActivityDestroyedAtOnce(t *testing.T) {
	f := newFixture(t, Config{})
	a, b := f.twoStacked()

	res, err := f.eng.RequestFinish(a, ResultCanceled, "", "cleanup")
	require.NoError(t, err)
	assert.Equal(t, FinishRequested, res)
	assert.Equal(t, lifecycle.StateDestroying, f.state(a))
	assert.Equal(t, client.KindDestroy, f.last(a).Kind)
	assert.Equal(t, lifecycle.StateResumed, f.state(b))

	f.ack(a, AckDestroyed)
	assert.True(t, f.gone(a))
}

func startForResult(f *fixture, from Token, info Info) Token {
	f.t.Helper()
	tok, err := f.eng.StartActivity(StartRequest{
		TaskID:      f.snap(from).Task,
		Info:        info,
		ResultTo:    from,
		RequestCode: 7,
	})
	require.NoError(f.t, err)
	f.ack(from, AckPaused)
	f.sched.Advance(0)
	f.ackStopped(from, "")
	return tok
}

func TestFinish_ResultQueuedForStoppedTarget(t *testing.T) {
	f := newFixture(t, Config{})
	a := f.start(appInfo("A"), 0)
	b := startForResult(f, a, appInfo("B"))
	require.Equal(t, a, f.snap(b).ResultTo)

	_, err := f.eng.RequestFinish(b, ResultOK, "picked", "done")
	require.NoError(t, err)

	pending := f.snap(a).PendingResults
	require.Len(t, pending, 1)
	assert.Equal(t, client.Result{
		From:        "com.example/.B",
		RequestCode: 7,
		ResultCode:  ResultOK,
		Data:        "picked",
	}, pending[0])
	assert.Empty(t, f.snap(b).ResultTo)

	f.ack(b, AckPaused)
	msg := f.last(a)
	assert.Equal(t, client.KindResume, msg.Kind)
	require.Len(t, msg.Results, 1)
	assert.Equal(t, "picked", msg.Results[0].Data)
	assert.Empty(t, f.snap(a).PendingResults)
}

func TestFinish_ForceSendResult(t *testing.T) {
	f := newFixture(t, Config{})
	a := f.start(appInfo("A"), 0)
	info := appInfo("B")
	info.ForceSendResult = true
	b := startForResult(f, a, info)

	_, err := f.eng.RequestFinish(b, ResultOK, "x", "done")
	require.NoError(t, err)

	msg := f.last(a)
	assert.Equal(t, client.KindDeliverResult, msg.Kind)
	require.NotNil(t, msg.Final)
	assert.Equal(t, client.KindStop, *msg.Final)
	assert.Empty(t, f.snap(a).PendingResults)
}

func TestFinish_CanceledResultWhenRemoved(t *testing.T) {
	f := newFixture(t, Config{})
	a := f.start(appInfo("A"), 0)
	b := startForResult(f, a, appInfo("B"))

	require.NoError(t, f.eng.HandleAppDied("app"))
	assert.False(t, f.gone(a))
	// Both records survive the crash; finishing B still reaches A.
	_, err := f.eng.RequestFinish(b, ResultCanceled, "", "back")
	require.NoError(t, err)
	require.Len(t, f.snap(a).PendingResults, 1)
	assert.Equal(t, ResultCanceled, f.snap(a).PendingResults[0].ResultCode)
}

func TestFinish_NoHistoryFinishedWhenStopped(t *testing.T) {
	f := newFixture(t, Config{})
	info := appInfo("A")
	info.NoHistory = true
	a := f.start(info, 0)
	b := f.start(appInfo("B"), f.snap(a).Task)
	f.ack(a, AckPaused)

	f.sched.Advance(0)
	s := f.snap(a)
	assert.True(t, s.Finishing)
	assert.Equal(t, lifecycle.StateStopping, s.State)

	f.ack(b, AckWindowsVisible)
	assert.Equal(t, lifecycle.StateDestroying, f.state(a))
	f.ack(a, AckDestroyed)
	assert.True(t, f.gone(a))
	assert.Equal(t, []client.Kind{client.KindLaunch, client.KindPause, client.KindDestroy}, f.kinds(a))
}

func TestFinish_ClearWhenTaskResetPropagates(t *testing.T) {
	f := newFixture(t, Config{})
	a := f.start(appInfo("A"), 0)
	task := f.snap(a).Task
	b, err := f.eng.StartActivity(StartRequest{
		TaskID: task,
		Info:   appInfo("B"),
		Intent: client.Intent{ClearWhenTaskReset: true},
	})
	require.NoError(t, err)
	f.ack(a, AckPaused)
	c := f.start(appInfo("C"), task)
	f.ack(b, AckPaused)

	_, err = f.eng.RequestFinish(b, ResultCanceled, "", "reset")
	require.NoError(t, err)
	assert.True(t, f.snap(c).Intent.ClearWhenTaskReset)
}

func TestRemoveTask(t *testing.T) {
	f := newFixture(t, Config{})
	a, b := f.twoStacked()
	task := f.snap(a).Task

	require.NoError(t, f.eng.RemoveTask(task))
	assert.True(t, f.snap(a).Finishing)
	assert.True(t, f.snap(b).Finishing)
	assert.Equal(t, lifecycle.StateDestroying, f.state(a))

	f.ack(a, AckDestroyed)
	f.ack(b, AckPaused)
	f.ack(b, AckDestroyed)
	assert.True(t, f.gone(a))
	assert.True(t, f.gone(b))
	assert.Empty(t, f.eng.Tasks())

	assert.ErrorIs(t, f.eng.RemoveTask(task), ErrUnknownTask)
}

func TestDestroy_Twice(t *testing.T) {
	f := newFixture(t, Config{})
	a, _ := f.twoStacked()

	done, err := f.eng.RequestDestroy(a, "trim")
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, lifecycle.StateDestroying, f.state(a))
	assert.False(t, f.last(a).Finishing)

	done, err = f.eng.RequestDestroy(a, "trim")
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, 1, f.rec.Count(string(a), client.KindDestroy))

	f.ack(a, AckDestroyed)
	s := f.snap(a)
	assert.Equal(t, lifecycle.StateDestroyed, s.State)
	assert.Empty(t, s.Process)
}

func TestDestroy_RelaunchedWithSavedStateWhenReturningToTop(t *testing.T) {
	f := newFixture(t, Config{})
	a, b := f.twoStacked()
	_, err := f.eng.RequestDestroy(a, "trim")
	require.NoError(t, err)
	f.ack(a, AckDestroyed)

	_, err = f.eng.RequestFinish(b, ResultCanceled, "", "back")
	require.NoError(t, err)
	f.ack(b, AckPaused)

	s := f.snap(a)
	assert.Equal(t, lifecycle.StateResumed, s.State)
	msg := f.last(a)
	assert.Equal(t, client.KindLaunch, msg.Kind)
	assert.True(t, msg.Resume)
	assert.Equal(t, []byte("a-state"), msg.SavedState)
}

func TestDestroy_Timeout(t *testing.T) {
	f := newFixture(t, Config{})
	a, _ := f.twoStacked()
	_, err := f.eng.RequestDestroy(a, "trim")
	require.NoError(t, err)

	f.sched.Advance(f.eng.Config().DestroyTimeout)
	assert.Equal(t, lifecycle.StateDestroyed, f.state(a))
	assert.Equal(t, 1, f.metrics.timeouts[timeout.KindDestroy])

	// A late ack for a destroyed record changes nothing.
	f.ack(a, AckDestroyed)
	assert.Equal(t, lifecycle.StateDestroyed, f.state(a))
}

func TestFinish_RetainedDestroyedRecordIsRemoved(t *testing.T) {
	f := newFixture(t, Config{})
	a, b := f.twoStacked()
	task := f.snap(a).Task

	done, err := f.eng.RequestDestroy(a, "trim memory")
	require.NoError(t, err)
	require.True(t, done)
	f.ack(a, AckDestroyed)
	require.Equal(t, lifecycle.StateDestroyed, f.state(a))

	res, err := f.eng.RequestFinish(a, ResultOK, "", "back")
	require.NoError(t, err)
	assert.Equal(t, FinishRemoved, res)
	assert.True(t, f.gone(a))
	assert.Equal(t, lifecycle.StateResumed, f.state(b))

	ts, err := f.eng.Task(task)
	require.NoError(t, err)
	assert.Equal(t, []Token{b}, ts.Activities)
	assert.Equal(t, 1, f.metrics.finishes[FinishRemoved])
}

func TestFinish_WhileDestroyingRemovesOnAck(t *testing.T) {
	f := newFixture(t, Config{})
	a, b := f.twoStacked()

	done, err := f.eng.RequestDestroy(a, "trim memory")
	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, lifecycle.StateDestroying, f.state(a))

	res, err := f.eng.RequestFinish(a, ResultOK, "", "back")
	require.NoError(t, err)
	assert.Equal(t, FinishRequested, res)
	assert.Equal(t, lifecycle.StateDestroying, f.state(a))

	f.ack(a, AckDestroyed)
	assert.True(t, f.gone(a))
	assert.Equal(t, lifecycle.StateResumed, f.state(b))
}
