package nav

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(m *Machine, step Step) {
	for !step.IsZero() {
		step = m.Advance(step)
	}
}

func TestNavigateSamePageIsNoop(t *testing.T) {
	m := New(PageHome, ThemeStereo, DefaultTiming())
	var changes, swaps int
	m.Observe(func(State) { changes++ })
	m.OnSwap(func(from, to Page) { swaps++ })

	before := m.State()
	step, ok := m.Navigate(PageHome)

	assert.False(t, ok)
	assert.True(t, step.IsZero())
	assert.Equal(t, before, m.State())
	assert.Zero(t, changes)
	assert.Zero(t, swaps)
}

func TestNavigateSequence(t *testing.T) {
	timing := DefaultTiming()
	m := New(PageHome, ThemeStereo, timing)

	var hookFrom, hookTo Page
	m.OnSwap(func(from, to Page) {
		hookFrom, hookTo = from, to
		// hooks run outside the lock
		_ = m.State()
	})

	step, ok := m.Navigate(PageAdmin)
	require.True(t, ok)
	assert.Equal(t, StepSwap, step.Kind)
	assert.Equal(t, timing.NavFade, step.After)

	s := m.State()
	assert.True(t, s.Navigating)
	assert.Equal(t, PageHome, s.Page, "page must not swap before the fade")
	assert.False(t, s.ContentVisible())

	step = m.Advance(step)
	assert.Equal(t, StepSettle, step.Kind)
	assert.Equal(t, timing.NavSettle, step.After)
	s = m.State()
	assert.Equal(t, PageAdmin, s.Page)
	assert.Equal(t, PageHome, s.Previous)
	assert.True(t, s.Navigating)
	assert.Equal(t, PageHome, hookFrom)
	assert.Equal(t, PageAdmin, hookTo)

	step = m.Advance(step)
	assert.True(t, step.IsZero())
	assert.False(t, m.State().Navigating)
	assert.True(t, m.State().ContentVisible())
}

func TestNavigateRejectedWhileNavigating(t *testing.T) {
	m := New(PageHome, ThemeStereo, DefaultTiming())
	first, ok := m.Navigate(PageNews)
	require.True(t, ok)

	_, ok = m.Navigate(PageCode)
	assert.False(t, ok)

	drain(m, first)
	assert.Equal(t, PageNews, m.State().Page)

	_, ok = m.Navigate(PageCode)
	assert.True(t, ok)
}

func TestAdvanceIgnoresDuplicateSteps(t *testing.T) {
	m := New(PageHome, ThemeStereo, DefaultTiming())
	swaps := 0
	m.OnSwap(func(Page, Page) { swaps++ })

	step, _ := m.Navigate(PagePhone)
	next := m.Advance(step)
	assert.True(t, m.Advance(step).IsZero(), "replayed swap must be ignored")
	drain(m, next)

	assert.Equal(t, 1, swaps)
	assert.Equal(t, PagePhone, m.State().Page)
}

func TestToggleThemePhaseOrdering(t *testing.T) {
	timing := DefaultTiming()
	m := New(PageHome, ThemeStereo, timing)

	var stages []Stage
	var themes []Theme
	m.Observe(func(s State) {
		stages = append(stages, s.Stage)
		themes = append(themes, s.Theme)
	})

	step, ok := m.ToggleTheme()
	require.True(t, ok)
	assert.Equal(t, timing.ThemeExit, step.After)

	var delays []time.Duration
	for !step.IsZero() {
		delays = append(delays, step.After)
		step = m.Advance(step)
	}

	assert.Equal(t, []Stage{StageExiting, StageHolding, StageEntering, StageIdle}, stages)
	assert.Equal(t, []Theme{ThemeStereo, ThemeFlat, ThemeFlat, ThemeFlat}, themes,
		"theme may only change when entering the holding stage")
	assert.Equal(t, []time.Duration{timing.ThemeExit, timing.ThemeHold, timing.ThemeEnter}, delays)
}

func TestToggleThemeBackgroundRegeneration(t *testing.T) {
	m := New(PageHome, ThemeStereo, DefaultTiming())

	step, _ := m.ToggleTheme()
	drain(m, step)
	assert.Equal(t, ThemeFlat, m.State().Theme)
	assert.Equal(t, 0, m.State().BackgroundGeneration, "leaving stereo does not regenerate")

	step, _ = m.ToggleTheme()
	drain(m, step)
	assert.Equal(t, ThemeStereo, m.State().Theme)
	assert.Equal(t, 1, m.State().BackgroundGeneration)
}

func TestToggleThemeRejectedUntilIdle(t *testing.T) {
	m := New(PageHome, ThemeStereo, DefaultTiming())
	step, ok := m.ToggleTheme()
	require.True(t, ok)

	for !step.IsZero() {
		_, again := m.ToggleTheme()
		assert.False(t, again, "toggle accepted at stage %s", m.State().Stage)
		step = m.Advance(step)
	}

	_, ok = m.ToggleTheme()
	assert.True(t, ok)
}

func TestTransitionIcon(t *testing.T) {
	m := New(PageHome, ThemeFlat, DefaultTiming())
	step, _ := m.ToggleTheme()
	assert.False(t, m.State().ShowsTransitionIcon())
	step = m.Advance(step)
	assert.True(t, m.State().ShowsTransitionIcon())
	m.Advance(step)
	assert.False(t, m.State().ShowsTransitionIcon())
}

func TestNavigationAndThemeAreIndependent(t *testing.T) {
	m := New(PageHome, ThemeStereo, DefaultTiming())
	themeStep, _ := m.ToggleTheme()
	navStep, ok := m.Navigate(PageCode)
	require.True(t, ok)

	themeStep = m.Advance(themeStep)
	navStep = m.Advance(navStep)
	drain(m, themeStep)
	drain(m, navStep)

	s := m.State()
	assert.Equal(t, PageCode, s.Page)
	assert.Equal(t, ThemeFlat, s.Theme)
	assert.True(t, s.ContentVisible())
}

func TestRun(t *testing.T) {
	timing := Timing{
		NavFade:    time.Millisecond,
		NavSettle:  time.Millisecond,
		ThemeExit:  time.Millisecond,
		ThemeHold:  time.Millisecond,
		ThemeEnter: time.Millisecond,
	}
	m := New(PageHome, ThemeStereo, timing)

	step, _ := m.Navigate(PageHardware)
	require.NoError(t, Run(context.Background(), m, step))
	assert.Equal(t, PageHardware, m.State().Page)
	assert.False(t, m.State().Navigating)

	step, _ = m.ToggleTheme()
	require.NoError(t, Run(context.Background(), m, step))
	assert.Equal(t, StageIdle, m.State().Stage)
}

func TestRunCancelled(t *testing.T) {
	timing := DefaultTiming()
	timing.NavFade = time.Hour
	m := New(PageHome, ThemeStereo, timing)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	step, _ := m.Navigate(PageNews)

	assert.ErrorIs(t, Run(ctx, m, step), context.Canceled)
	assert.Equal(t, PageHome, m.State().Page)
}

func TestPageValid(t *testing.T) {
	assert.True(t, PageNewsDetail.Valid())
	assert.False(t, Page("poster").Valid())
}
