// Package app implements the interactive DigiBox terminal client.
package app

import (
	"context"
	"time"

	"digibox/cmd/digibox/ui"
	"digibox/internal/admin"
	"digibox/internal/config"
	"digibox/internal/content"
	"digibox/internal/geo"
	"digibox/internal/logging"
	"digibox/internal/nav"
	"digibox/internal/region"
	"digibox/internal/store"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// KeyTheme is the store key for the last used theme.
const KeyTheme = "digibox_theme"

// Deps are the services the UI drives.
type Deps struct {
	Config   *config.Config
	KV       *store.KV
	Articles *content.Store
	Gate     *admin.Gate
	Geo      *geo.Client
	Detector *region.Detector // nil skips detection
	Timing   nav.Timing
}

type menuItem struct {
	page  nav.Page
	label string
}

var menu = []menuItem{
	{nav.PageComputer, "电脑"},
	{nav.PagePhone, "手机"},
	{nav.PageSecondhand, "二手交易"},
	{nav.PageCode, "代码"},
	{nav.PageHardware, "硬件"},
	{nav.PageNews, "科技新闻"},
	{nav.PageToolsGeo, "AI 识图"},
	{nav.PageAdmin, "管理"},
}

// AdminTab is a section of the admin dashboard.
type AdminTab int

const (
	TabArticles AdminTab = iota
	TabSettings
)

// Settings form fields.
const (
	fieldPasscode = iota
	fieldAPIKey
	fieldBaseURL
	fieldModel
	fieldCount
)

// keypad is the on-screen layout; "" is an empty cell.
var keypad = [][]string{
	{"1", "2", "3"},
	{"4", "5", "6"},
	{"7", "8", "9"},
	{"", "0", admin.KeyDelete},
}

// Messages
type (
	stepMsg     struct{ step nav.Step }
	settleMsg   struct{ feedback admin.Feedback }
	analysisMsg struct{ result geo.Result }
	regionMsg   struct{ result region.Result }
)

// editor holds an article being written or edited.
type editor struct {
	id    int // 0 for a new article
	title textinput.Model
	body  textarea.Model
	focus int // 0 title, 1 body
}

// Model is the bubbletea model.
type Model struct {
	deps    Deps
	machine *nav.Machine
	styles  map[nav.Theme]ui.Styles
	theme   nav.Theme // last persisted theme

	width  int
	height int

	menuCursor int

	// news
	newsCursor int
	detailID   int
	detailFrom nav.Page
	viewport   viewport.Model

	// admin
	keypadRow, keypadCol int
	tab                  AdminTab
	articleCursor        int
	editor               *editor
	settings             []textinput.Model
	settingsFocus        int

	// geo tool
	geoInput  textinput.Model
	geoPath   string
	analyzing bool
	geoResult *geo.Result
	spinner   spinner.Model

	regionNote string
	status     string
	quitting   bool
}

// New builds the model. The start page is home.
func New(deps Deps) Model {
	if deps.Timing == (nav.Timing{}) {
		deps.Timing = nav.DefaultTiming()
	}
	themeName := "stereo"
	if deps.Config != nil && deps.Config.UI.Theme != "" {
		themeName = deps.Config.UI.Theme
	}
	theme := nav.Theme(store.LoadString(deps.KV, KeyTheme, themeName))
	if theme != nav.ThemeFlat {
		theme = nav.ThemeStereo
	}

	machine := nav.New(nav.PageHome, theme, deps.Timing)
	machine.OnSwap(func(from, to nav.Page) {
		if from == nav.PageAdmin {
			deps.Gate.Reset()
		}
		if from == nav.PageToolsGeo {
			deps.Geo.Reset()
		}
	})

	gi := textinput.New()
	gi.Placeholder = "图片路径 (image path)"
	gi.CharLimit = 1024
	gi.Width = 48

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		deps:    deps,
		machine: machine,
		styles: map[nav.Theme]ui.Styles{
			nav.ThemeStereo: ui.NewStyles(ui.StereoTheme()),
			nav.ThemeFlat:   ui.NewStyles(ui.FlatTheme()),
		},
		theme:    theme,
		width:    80,
		height:   24,
		viewport: viewport.New(76, 16),
		geoInput: gi,
		spinner:  sp,
	}
	m.settings = m.newSettingsForm()
	return m
}

func (m Model) newSettingsForm() []textinput.Model {
	fields := make([]textinput.Model, fieldCount)
	placeholders := [fieldCount]string{"新密码 (8 位数字)", "API Key", "Base URL", "Model"}
	for i := range fields {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.Width = 40
		fields[i] = ti
	}
	fields[fieldPasscode].CharLimit = admin.CodeLength
	fields[fieldPasscode].EchoMode = textinput.EchoPassword
	fields[fieldAPIKey].EchoMode = textinput.EchoPassword

	s := m.deps.Geo.OpenAISettings()
	fields[fieldAPIKey].SetValue(s.APIKey)
	fields[fieldBaseURL].SetValue(s.BaseURL)
	fields[fieldModel].SetValue(s.Model)
	return fields
}

// Init starts the one-shot region detection. It runs even when a provider
// was chosen explicitly; applyRegion keeps that choice.
func (m Model) Init() tea.Cmd {
	logging.UI("TUI started: page=%s theme=%s", m.machine.State().Page, m.machine.State().Theme)
	if m.deps.Detector == nil {
		return nil
	}
	d := m.deps.Detector
	return func() tea.Msg {
		return regionMsg{result: d.Detect(context.Background())}
	}
}

// State exposes the navigation state.
func (m Model) State() nav.State { return m.machine.State() }

func stepCmd(s nav.Step) tea.Cmd {
	if s.IsZero() {
		return nil
	}
	return tea.Tick(s.After, func(time.Time) tea.Msg { return stepMsg{step: s} })
}

func settleCmd(f admin.Feedback) tea.Cmd {
	if !f.NeedsSettle() {
		return nil
	}
	return tea.Tick(f.After, func(time.Time) tea.Msg { return settleMsg{feedback: f} })
}

func analyzeCmd(c *geo.Client, uri string) tea.Cmd {
	return func() tea.Msg {
		return analysisMsg{result: c.Analyze(context.Background(), uri)}
	}
}

func (m Model) currentStyles() ui.Styles {
	return m.styles[m.machine.State().Theme]
}
