package activity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/actlife/pkg/client"
	"github.com/bft-labs/actlife/pkg/configuration"
	"github.com/bft-labs/actlife/pkg/lifecycle"
	"github.com/bft-labs/actlife/pkg/sizecompat"
)

const rotationHandled = configuration.ChangeOrientation | configuration.ChangeScreenSize |
	configuration.ChangeSmallestScreenSize | configuration.ChangeScreenLayout

func withDensity(seq, density int) configuration.Configuration {
	c := portrait()
	c.Seq = seq
	b := c.Window.Bounds
	return configuration.ComputeScreenOverrides(c, b, b, density)
}

func TestConfiguration_DensityChangeRelaunches(t *testing.T) {
	f := newFixture(t, Config{})
	a := f.start(appInfo("A"), 0)

	require.NoError(t, f.eng.SetDisplayConfiguration(0, withDensity(2, 320)))
	msg := f.last(a)
	assert.Equal(t, client.KindRelaunch, msg.Kind)
	assert.True(t, msg.Changes.Has(configuration.ChangeDensity))
	assert.True(t, msg.Resume)
	assert.False(t, msg.PreserveWindow)
	require.NotNil(t, msg.Configuration)
	assert.Equal(t, 320, msg.Configuration.DensityDPI)

	s := f.snap(a)
	assert.Equal(t, lifecycle.StateResumed, s.State)
	assert.Equal(t, 1, s.PendingRelaunchCount)
	assert.Equal(t, RelaunchReasonNone, s.RelaunchReason)
	assert.Equal(t, 320, s.LastReported.DensityDPI)
	assert.Equal(t, 1, f.metrics.relaunched)
}

func TestConfiguration_RelaunchCountConserved(t *testing.T) {
	f := newFixture(t, Config{})
	a := f.start(appInfo("A"), 0)

	require.NoError(t, f.eng.SetDisplayConfiguration(0, withDensity(2, 320)))
	require.NoError(t, f.eng.SetDisplayConfiguration(0, withDensity(3, 480)))
	assert.Equal(t, 2, f.snap(a).PendingRelaunchCount)

	f.ack(a, AckRelaunched)
	assert.Equal(t, 1, f.snap(a).PendingRelaunchCount)
	f.ack(a, AckRelaunched)
	assert.Equal(t, 0, f.snap(a).PendingRelaunchCount)
	f.ack(a, AckRelaunched)
	assert.Equal(t, 0, f.snap(a).PendingRelaunchCount, "surplus acks are ignored")
}

func TestConfiguration_RelaunchTimeoutClearsCount(t *testing.T) {
	f := newFixture(t, Config{})
	a := f.start(appInfo("A"), 0)
	require.NoError(t, f.eng.SetDisplayConfiguration(0, withDensity(2, 320)))
	require.Equal(t, 1, f.snap(a).PendingRelaunchCount)

	f.sched.Advance(f.eng.Config().RelaunchTimeout)
	assert.Equal(t, 0, f.snap(a).PendingRelaunchCount)
}

func TestConfiguration_StaleDisplayConfigIgnored(t *testing.T) {
	f := newFixture(t, Config{})
	a := f.start(appInfo("A"), 0)

	require.NoError(t, f.eng.SetDisplayConfiguration(0, withDensity(3, 320)))
	require.NoError(t, f.eng.SetDisplayConfiguration(0, withDensity(2, 240)))
	assert.Equal(t, 320, f.snap(a).Configuration.DensityDPI)
	assert.Equal(t, 1, f.rec.Count(string(a), client.KindRelaunch))
}

func TestConfiguration_Rotation(t *testing.T) {
	t.Run("handled in place", func(t *testing.T) {
		f := newFixture(t, Config{})
		info := appInfo("A")
		info.HandledChanges = rotationHandled
		a := f.start(info, 0)

		require.NoError(t, f.eng.SetDisplayConfiguration(0, landscape()))
		msg := f.last(a)
		assert.Equal(t, client.KindConfigurationChanged, msg.Kind)
		require.NotNil(t, msg.Configuration)
		assert.Equal(t, configuration.OrientationLandscape, msg.Configuration.Orientation)
		assert.Zero(t, f.snap(a).PendingRelaunchCount)
		assert.Zero(t, f.rec.Count(string(a), client.KindRelaunch))
	})

	t.Run("unhandled relaunches", func(t *testing.T) {
		f := newFixture(t, Config{})
		a := f.start(appInfo("A"), 0)

		require.NoError(t, f.eng.SetDisplayConfiguration(0, landscape()))
		msg := f.last(a)
		assert.Equal(t, client.KindRelaunch, msg.Kind)
		assert.True(t, msg.Changes.Has(configuration.ChangeOrientation))
		assert.False(t, msg.PreserveWindow, "rotation never preserves the window")
		assert.Equal(t, RelaunchReasonWindowingModeResize, f.snap(a).RelaunchReason)
	})
}

func TestConfiguration_ResizePreservesWindow(t *testing.T) {
	f := newFixture(t, Config{})
	a := f.start(appInfo("A"), 0)

	require.NoError(t, f.eng.SetTaskBounds(f.snap(a).Task, configuration.NewRect(1080, 1200)))
	msg := f.last(a)
	assert.Equal(t, client.KindRelaunch, msg.Kind)
	assert.True(t, msg.Changes.ResizeOnly())
	assert.True(t, msg.PreserveWindow)
	assert.Equal(t, 1200, f.snap(a).Configuration.Window.Bounds.Height())

	assert.ErrorIs(t, f.eng.SetTaskBounds(99, configuration.NewRect(1, 1)), ErrUnknownTask)
}

func TestConfiguration_SizeBuckets(t *testing.T) {
	tests := []struct {
		name       string
		horizontal []int
		want       client.Kind
	}{
		{"threshold not crossed", []int{700}, client.KindConfigurationChanged},
		{"threshold crossed", []int{600}, client.KindRelaunch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			info := appInfo("A")
			info.HandledChanges = configuration.ChangeOrientation
			info.SizeBuckets = &configuration.SizeBuckets{Horizontal: tt.horizontal}
			a := f.start(info, 0)

			require.NoError(t, f.eng.SetDisplayConfiguration(0, landscape()))
			assert.Equal(t, tt.want, f.last(a).Kind)
		})
	}
}

func deskConfig() configuration.Configuration {
	c := portrait()
	c.Seq = 2
	c.UIMode = configuration.UIModeTypeDesk | configuration.UIModeNightNo
	return c
}

func TestConfiguration_DeskDock(t *testing.T) {
	t.Run("skipped without desk resources", func(t *testing.T) {
		f := newFixture(t, Config{})
		a := f.start(appInfo("A"), 0)
		require.NoError(t, f.eng.SetDisplayConfiguration(0, deskConfig()))
		assert.Equal(t, client.KindConfigurationChanged, f.last(a).Kind)
	})

	t.Run("relaunch with desk resources", func(t *testing.T) {
		f := newFixture(t, Config{})
		info := appInfo("A")
		info.HasDeskResources = true
		a := f.start(info, 0)
		require.NoError(t, f.eng.SetDisplayConfiguration(0, deskConfig()))
		assert.Equal(t, client.KindRelaunch, f.last(a).Kind)
	})

	t.Run("relaunch when policy disabled", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.SkipRelaunchWhenDocking = false
		f := newFixture(t, cfg)
		a := f.start(appInfo("A"), 0)
		require.NoError(t, f.eng.SetDisplayConfiguration(0, deskConfig()))
		assert.Equal(t, client.KindRelaunch, f.last(a).Kind)
	})
}

func TestConfiguration_CustomRelaunchPolicy(t *testing.T) {
	fontScale := RelaunchPolicyFunc(func(c RelaunchContext) configuration.Change {
		return c.Changes & configuration.ChangeFontScale
	})
	f := newFixture(t, Config{}, WithRelaunchPolicy(fontScale))
	a := f.start(appInfo("A"), 0)

	c := portrait()
	c.Seq = 2
	c.FontScale = 1.3
	require.NoError(t, f.eng.SetDisplayConfiguration(0, c))
	assert.Equal(t, client.KindConfigurationChanged, f.last(a).Kind)
}

func TestConfiguration_RelaunchDeferredWhilePausing(t *testing.T) {
	f := newFixture(t, Config{})
	a := f.start(appInfo("A"), 0)
	info := appInfo("B")
	info.Translucent = true
	b := f.start(info, f.snap(a).Task)
	require.Equal(t, lifecycle.StatePausing, f.state(a))
	require.True(t, f.snap(a).VisibleRequested)

	require.NoError(t, f.eng.SetDisplayConfiguration(0, landscape()))
	assert.True(t, f.snap(a).DeferredRelaunch)
	assert.Zero(t, f.rec.Count(string(a), client.KindRelaunch))

	f.ack(a, AckPaused)
	s := f.snap(a)
	assert.False(t, s.DeferredRelaunch)
	assert.Equal(t, lifecycle.StatePaused, s.State)
	assert.Equal(t, []client.Kind{client.KindLaunch, client.KindPause, client.KindRelaunch}, f.kinds(a))
	msg := f.last(a)
	assert.False(t, msg.Resume)
	assert.True(t, msg.Changes.Has(configuration.ChangeOrientation))

	assert.Equal(t, lifecycle.StateResumed, f.state(b))
	assert.Equal(t, configuration.OrientationLandscape, f.last(b).Configuration.Orientation)
}

func TestResolveConfiguration(t *testing.T) {
	f := newFixture(t, Config{})
	info := appInfo("A")
	info.HandledChanges = rotationHandled
	a := f.start(info, 0)

	res, err := f.eng.ResolveConfiguration(a, landscape())
	require.NoError(t, err)
	assert.True(t, res.InPlaceUpdate)
	assert.False(t, res.RelaunchRequired)
	assert.Equal(t, configuration.OrientationLandscape, res.Resolved.Orientation)

	res, err = f.eng.ResolveConfiguration(a, landscape())
	require.NoError(t, err)
	assert.False(t, res.InPlaceUpdate, "nothing changed")

	_, err = f.eng.ResolveConfiguration("nope", landscape())
	assert.ErrorIs(t, err, ErrUnknownActivity)
}

func compatInfo() Info {
	info := appInfo("Compat")
	info.SizeTraits = sizecompat.Traits{Orientation: configuration.OrientationPortrait}
	return info
}

func TestSizeCompat_ScalesIntoSmallerTask(t *testing.T) {
	f := newFixture(t, Config{})
	a := f.start(compatInfo(), 0)

	s := f.snap(a)
	assert.True(t, s.HasCompatInsets)
	assert.False(t, s.InSizeCompatMode)
	assert.Equal(t, 1.0, s.SizeCompatScale)

	require.NoError(t, f.eng.SetTaskBounds(s.Task, configuration.NewRect(540, 960)))
	s = f.snap(a)
	assert.True(t, s.InSizeCompatMode)
	assert.InDelta(t, 0.5, s.SizeCompatScale, 1e-9)
	require.NotNil(t, s.SizeCompatBounds)
	assert.Equal(t, 540, s.SizeCompatBounds.Width())
	assert.Equal(t, 960, s.SizeCompatBounds.Height())
	// The activity keeps seeing the frozen display.
	assert.Equal(t, 1080, s.Configuration.Window.Bounds.Width())
}

func TestSizeCompat_Clear(t *testing.T) {
	f := newFixture(t, Config{})
	a := f.start(compatInfo(), 0)
	require.NoError(t, f.eng.SetTaskBounds(f.snap(a).Task, configuration.NewRect(540, 960)))
	require.True(t, f.snap(a).InSizeCompatMode)

	cfg := DefaultConfig()
	cfg.UniversalResizeable = true
	require.NoError(t, f.eng.UpdateConfig(cfg))
	require.NoError(t, f.eng.ClearSizeCompatMode(a))

	s := f.snap(a)
	assert.False(t, s.HasCompatInsets)
	assert.False(t, s.InSizeCompatMode)
	assert.Equal(t, 1.0, s.SizeCompatScale)
	assert.Nil(t, s.SizeCompatBounds)
	assert.Equal(t, 540, s.Configuration.Window.Bounds.Width())
}

func TestSizeCompat_ResizeableActivityNotFrozen(t *testing.T) {
	f := newFixture(t, Config{})
	info := compatInfo()
	info.SizeTraits.Resizeable = true
	a := f.start(info, 0)
	assert.False(t, f.snap(a).HasCompatInsets)
}

func TestSizeCompat_OrientationChangeRefreezesInsets(t *testing.T) {
	f := newFixture(t, Config{})
	a := f.start(compatInfo(), 0)
	before := f.eng.records[a].compatInsets
	require.NotNil(t, before)

	require.NoError(t, f.eng.SetRequestedOrientation(a, f.eng.records[a].requestedOrientation))
	assert.Same(t, before, f.eng.records[a].compatInsets, "unchanged orientation keeps the insets")

	require.NoError(t, f.eng.SetRequestedOrientation(a, configuration.OrientationLandscape))
	after := f.eng.records[a].compatInsets
	require.NotNil(t, after)
	assert.NotSame(t, before, after)
	assert.True(t, f.snap(a).HasCompatInsets)
}

func TestSizeCompat_UniversalResizeableClearsInsets(t *testing.T) {
	f := newFixture(t, Config{})
	a := f.start(compatInfo(), 0)
	task := f.snap(a).Task
	require.NoError(t, f.eng.SetTaskBounds(task, configuration.NewRect(540, 960)))
	require.True(t, f.snap(a).InSizeCompatMode)

	cfg := DefaultConfig()
	cfg.UniversalResizeable = true
	require.NoError(t, f.eng.UpdateConfig(cfg))

	s := f.snap(a)
	assert.False(t, s.HasCompatInsets)
	assert.False(t, s.InSizeCompatMode)
	assert.Equal(t, 1.0, s.SizeCompatScale)
	assert.Nil(t, s.SizeCompatBounds)
	assert.Equal(t, 540, s.Configuration.Window.Bounds.Width())

	require.NoError(t, f.eng.SetTaskBounds(task, configuration.NewRect(720, 1280)))
	s = f.snap(a)
	assert.False(t, s.HasCompatInsets)
	assert.Equal(t, 720, s.Configuration.Window.Bounds.Width())
}
