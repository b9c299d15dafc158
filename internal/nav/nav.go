// Package nav owns the current page and the timed transition sequences that
// mediate every page change and theme change.
//
// Operations never sleep. Navigate and ToggleTheme return the first Step of
// their sequence; the caller schedules Advance(step) after step.After and
// keeps feeding the returned steps back until a zero Step comes out. The
// interactive UI does that with tea.Tick, Run does it with timers.
package nav

import (
	"context"
	"sync"
	"time"

	"digibox/internal/logging"
)

// Page identifies one screen of the application.
type Page string

const (
	PageHome       Page = "home"
	PageComputer   Page = "computer"
	PagePhone      Page = "phone"
	PageSecondhand Page = "secondhand"
	PageCode       Page = "code"
	PageHardware   Page = "hardware"
	PageNews       Page = "news"
	PageAdmin      Page = "admin"
	PageToolsGeo   Page = "tools-geo"
	PageNewsFull   Page = "news-full"
	PageNewsDetail Page = "news-detail"
)

// Pages lists every valid page.
var Pages = []Page{
	PageHome, PageComputer, PagePhone, PageSecondhand, PageCode, PageHardware,
	PageNews, PageAdmin, PageToolsGeo, PageNewsFull, PageNewsDetail,
}

// Valid reports whether p is one of Pages.
func (p Page) Valid() bool {
	for _, q := range Pages {
		if p == q {
			return true
		}
	}
	return false
}

// Theme is one of the two visual modes.
type Theme string

const (
	ThemeStereo Theme = "stereo" // primary
	ThemeFlat   Theme = "flat"
)

// Next returns the other theme.
func (t Theme) Next() Theme {
	if t == ThemeStereo {
		return ThemeFlat
	}
	return ThemeStereo
}

// Stage is a point in the theme transition timeline.
type Stage int

const (
	StageIdle Stage = iota
	StageExiting
	StageHolding
	StageEntering
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageExiting:
		return "exiting"
	case StageHolding:
		return "holding"
	case StageEntering:
		return "entering"
	}
	return "unknown"
}

// StepKind names the action a Step performs when advanced.
type StepKind int

const (
	StepNone StepKind = iota
	StepSwap          // navigation: swap the current page
	StepSettle        // navigation: clear the navigating flag
	StepHold          // theme: enter holding, flip the theme
	StepEnter         // theme: enter entering
	StepIdle          // theme: back to idle
)

func (k StepKind) String() string {
	return [...]string{"none", "swap", "settle", "hold", "enter", "idle"}[k]
}

// Step is the next timed action of a running sequence.
type Step struct {
	Kind   StepKind
	After  time.Duration
	Target Page
	gen    uint64
}

// IsZero reports whether the sequence has finished.
func (s Step) IsZero() bool { return s.Kind == StepNone }

// Timing holds the fixed delays between phases.
type Timing struct {
	NavFade    time.Duration // navigating=true until the swap
	NavSettle  time.Duration // swap until navigating=false
	ThemeExit  time.Duration // exiting until holding
	ThemeHold  time.Duration // holding until entering
	ThemeEnter time.Duration // entering until idle
}

// DefaultTiming returns the standard delays.
func DefaultTiming() Timing {
	return Timing{
		NavFade:    250 * time.Millisecond,
		NavSettle:  50 * time.Millisecond,
		ThemeExit:  250 * time.Millisecond,
		ThemeHold:  800 * time.Millisecond,
		ThemeEnter: 250 * time.Millisecond,
	}
}

// State is a snapshot of everything the machine owns.
type State struct {
	Page       Page
	Previous   Page
	Theme      Theme
	Stage      Stage
	Navigating bool

	// BackgroundGeneration increments every time the stereo theme is
	// entered; renderers regenerate the decorative background on change.
	BackgroundGeneration int
}

// ContentVisible reports whether page content should be drawn.
func (s State) ContentVisible() bool {
	return !s.Navigating && s.Stage == StageIdle
}

// ShowsTransitionIcon reports whether the dead-time icon should be drawn.
func (s State) ShowsTransitionIcon() bool {
	return s.Stage == StageHolding
}

// SwapHook runs when the current page changes, after the swap.
type SwapHook func(from, to Page)

// Machine is the navigation and theme transition state machine.
type Machine struct {
	mu     sync.Mutex
	state  State
	timing Timing

	navGen       uint64
	navPending   StepKind
	themeGen     uint64
	themePending StepKind
	hooks        []SwapHook
	observers    []func(State)
}

// New returns a machine showing start in the given theme.
func New(start Page, theme Theme, timing Timing) *Machine {
	if theme != ThemeFlat {
		theme = ThemeStereo
	}
	return &Machine{
		state:  State{Page: start, Previous: start, Theme: theme},
		timing: timing,
	}
}

// State returns the current snapshot.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Timing returns the configured delays.
func (m *Machine) Timing() Timing { return m.timing }

// OnSwap registers a hook run after every page swap.
func (m *Machine) OnSwap(h SwapHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, h)
}

// Observe registers fn to receive every state change.
func (m *Machine) Observe(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// Navigate starts a page transition. Navigating to the current page, or while
// another navigation is still running, is rejected and changes nothing.
func (m *Machine) Navigate(target Page) (Step, bool) {
	m.mu.Lock()
	if target == m.state.Page {
		m.mu.Unlock()
		return Step{}, false
	}
	if m.state.Navigating {
		m.mu.Unlock()
		logging.NavDebug("Navigate to %s rejected: navigation in progress", target)
		return Step{}, false
	}
	m.navGen++
	m.navPending = StepSwap
	m.state.Navigating = true
	step := Step{Kind: StepSwap, After: m.timing.NavFade, Target: target, gen: m.navGen}
	snap, observers := m.state, m.observers
	m.mu.Unlock()

	logging.Nav("Navigate %s -> %s", snap.Page, target)
	notify(observers, snap)
	return step, true
}

// ToggleTheme starts the four-stage theme transition. Rejected while a
// previous toggle has not yet returned to idle.
func (m *Machine) ToggleTheme() (Step, bool) {
	m.mu.Lock()
	if m.state.Stage != StageIdle {
		m.mu.Unlock()
		logging.NavDebug("ToggleTheme rejected: stage=%s", m.state.Stage)
		return Step{}, false
	}
	m.themeGen++
	m.themePending = StepHold
	m.state.Stage = StageExiting
	step := Step{Kind: StepHold, After: m.timing.ThemeExit, gen: m.themeGen}
	snap, observers := m.state, m.observers
	m.mu.Unlock()

	logging.Nav("Theme transition started from %s", snap.Theme)
	notify(observers, snap)
	return step, true
}

// Advance applies step and returns the following one, or a zero Step when the
// sequence is complete. Steps that are not the one the machine is waiting for
// (duplicates, or leftovers of an older sequence) are ignored.
func (m *Machine) Advance(step Step) Step {
	m.mu.Lock()

	var next Step
	var swapped bool
	var from, to Page

	switch step.Kind {
	case StepSwap, StepSettle:
		if step.gen != m.navGen || step.Kind != m.navPending {
			m.mu.Unlock()
			return Step{}
		}
		if step.Kind == StepSwap {
			from, to = m.state.Page, step.Target
			m.state.Previous = from
			m.state.Page = to
			swapped = true
			m.navPending = StepSettle
			next = Step{Kind: StepSettle, After: m.timing.NavSettle, Target: step.Target, gen: step.gen}
		} else {
			m.state.Navigating = false
			m.navPending = StepNone
		}

	case StepHold, StepEnter, StepIdle:
		if step.gen != m.themeGen || step.Kind != m.themePending {
			m.mu.Unlock()
			return Step{}
		}
		switch step.Kind {
		case StepHold:
			m.state.Stage = StageHolding
			m.state.Theme = m.state.Theme.Next()
			if m.state.Theme == ThemeStereo {
				m.state.BackgroundGeneration++
			}
			m.themePending = StepEnter
			next = Step{Kind: StepEnter, After: m.timing.ThemeHold, gen: step.gen}
		case StepEnter:
			m.state.Stage = StageEntering
			m.themePending = StepIdle
			next = Step{Kind: StepIdle, After: m.timing.ThemeEnter, gen: step.gen}
		case StepIdle:
			m.state.Stage = StageIdle
			m.themePending = StepNone
		}

	default:
		m.mu.Unlock()
		return Step{}
	}

	snap, observers := m.state, m.observers
	hooks := m.hooks
	m.mu.Unlock()

	if swapped {
		logging.NavDebug("Swapped page %s -> %s", from, to)
		for _, h := range hooks {
			h(from, to)
		}
	} else {
		logging.NavDebug("Advanced %s: stage=%s navigating=%v", step.Kind, snap.Stage, snap.Navigating)
	}
	notify(observers, snap)
	return next
}

func notify(observers []func(State), s State) {
	for _, fn := range observers {
		fn(s)
	}
}

// Run drives a sequence to completion using real timers.
func Run(ctx context.Context, m *Machine, step Step) error {
	for !step.IsZero() {
		t := time.NewTimer(step.After)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		step = m.Advance(step)
	}
	return nil
}
