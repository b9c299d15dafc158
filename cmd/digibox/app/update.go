package app

import (
	"errors"
	"fmt"
	"strings"

	"digibox/internal/admin"
	"digibox/internal/content"
	"digibox/internal/geo"
	"digibox/internal/logging"
	"digibox/internal/nav"
	"digibox/internal/store"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = max(msg.Width-4, 20)
		m.viewport.Height = max(msg.Height-8, 5)
		if m.machine.State().Page == nav.PageNewsDetail {
			m = m.renderDetail()
		}
		return m, nil

	case stepMsg:
		return m.advance(msg.step)

	case settleMsg:
		m.deps.Gate.Settle(msg.feedback)
		if m.deps.Gate.Authenticated() {
			m.status = "已解锁 (unlocked)"
		}
		return m, nil

	case analysisMsg:
		if !m.deps.Geo.Accept(msg.result) {
			logging.UIDebug("Dropping stale analysis %d", msg.result.Seq)
			return m, nil
		}
		res := msg.result
		m.geoResult = &res
		m.analyzing = false
		return m, nil

	case regionMsg:
		return m.applyRegion(msg), nil

	case spinner.TickMsg:
		if !m.analyzing {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) advance(step nav.Step) (tea.Model, tea.Cmd) {
	before := m.machine.State()
	next := m.machine.Advance(step)
	after := m.machine.State()

	if before.Page != after.Page {
		m = m.leave(before.Page)
		m = m.enter(after.Page)
	}
	if after.Stage == nav.StageIdle && after.Theme != m.theme {
		m.theme = after.Theme
		_ = store.SaveString(m.deps.KV, KeyTheme, string(after.Theme))
	}
	return m, stepCmd(next)
}

// leave clears transient state owned by the page being left.
func (m Model) leave(p nav.Page) Model {
	switch p {
	case nav.PageAdmin:
		m.editor = nil
		m.keypadRow, m.keypadCol = 0, 0
		m.settings = m.newSettingsForm()
		m.settingsFocus = 0
		m.tab = TabArticles
		m.articleCursor = 0
	case nav.PageToolsGeo:
		m.geoInput.Reset()
		m.geoInput.Blur()
		m.geoPath = ""
		m.geoResult = nil
		m.analyzing = false
	}
	m.status = ""
	return m
}

func (m Model) enter(p nav.Page) Model {
	switch p {
	case nav.PageToolsGeo:
		m.geoInput.Focus()
	case nav.PageNewsDetail:
		m = m.renderDetail()
	}
	return m
}

func (m Model) navigate(p nav.Page) (tea.Model, tea.Cmd) {
	step, ok := m.machine.Navigate(p)
	if !ok {
		return m, nil
	}
	return m, stepCmd(step)
}

func (m Model) toggleTheme() (tea.Model, tea.Cmd) {
	step, ok := m.machine.ToggleTheme()
	if !ok {
		return m, nil
	}
	return m, stepCmd(step)
}

func (m Model) back() (tea.Model, tea.Cmd) {
	switch m.machine.State().Page {
	case nav.PageHome:
		return m, nil
	case nav.PageNewsDetail:
		from := m.detailFrom
		if from == "" {
			from = nav.PageNews
		}
		return m.navigate(from)
	case nav.PageNewsFull:
		return m.navigate(nav.PageNews)
	}
	return m.navigate(nav.PageHome)
}

func (m Model) applyRegion(msg regionMsg) Model {
	r := msg.result
	applied := m.deps.Geo.ApplyDetected(r.Selection)
	switch {
	case r.Country != "":
		m.regionNote = fmt.Sprintf("地区 %s", r.Country)
	case r.Estimated:
		m.regionNote = fmt.Sprintf("地区 (估计) %s", r.Zone)
	default:
		m.regionNote = "地区未知"
	}
	if applied {
		m.regionNote += " · 默认使用 " + r.Selection.DisplayName()
	} else {
		m.regionNote += " · 使用已选 " + m.deps.Geo.Selection().DisplayName()
	}
	logging.UI("Region: %s (applied=%v)", m.regionNote, applied)
	return m
}

func (m Model) typing() bool {
	switch m.machine.State().Page {
	case nav.PageToolsGeo:
		return true
	case nav.PageAdmin:
		return m.deps.Gate.Authenticated() && (m.editor != nil || m.tab == TabSettings)
	}
	return false
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	switch key {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "ctrl+t":
		return m.toggleTheme()
	case "esc":
		if m.editor != nil {
			m.editor = nil
			m.status = "已取消 (cancelled)"
			return m, nil
		}
		return m.back()
	}

	if !m.typing() {
		switch key {
		case "q":
			m.quitting = true
			return m, tea.Quit
		case "t":
			return m.toggleTheme()
		}
	}

	// Keys are dropped while the old page fades out.
	if m.machine.State().Navigating {
		return m, nil
	}

	switch m.machine.State().Page {
	case nav.PageHome:
		return m.handleHomeKey(key)
	case nav.PageNews, nav.PageNewsFull:
		return m.handleNewsKey(key)
	case nav.PageNewsDetail:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	case nav.PageAdmin:
		if !m.deps.Gate.Authenticated() {
			return m.handleKeypadKey(key)
		}
		return m.handleDashboardKey(msg)
	case nav.PageToolsGeo:
		return m.handleGeoKey(msg)
	}
	return m, nil
}

func (m Model) handleHomeKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "up", "k", "left", "h":
		if m.menuCursor > 0 {
			m.menuCursor--
		}
	case "down", "j", "right", "l":
		if m.menuCursor < len(menu)-1 {
			m.menuCursor++
		}
	case "enter", " ":
		return m.navigate(menu[m.menuCursor].page)
	default:
		if len(key) == 1 && key[0] >= '1' && int(key[0]-'1') < len(menu) {
			m.menuCursor = int(key[0] - '1')
			return m.navigate(menu[m.menuCursor].page)
		}
	}
	return m, nil
}

func (m Model) newsList() []content.Article {
	list := m.deps.Articles.List()
	if m.machine.State().Page == nav.PageNews && len(list) > 3 {
		list = list[:3]
	}
	return list
}

func (m Model) handleNewsKey(key string) (tea.Model, tea.Cmd) {
	list := m.newsList()
	switch key {
	case "up", "k":
		if m.newsCursor > 0 {
			m.newsCursor--
		}
	case "down", "j":
		if m.newsCursor < len(list)-1 {
			m.newsCursor++
		}
	case "a", "m":
		if m.machine.State().Page == nav.PageNews {
			m.newsCursor = 0
			return m.navigate(nav.PageNewsFull)
		}
	case "enter", " ":
		if m.newsCursor < len(list) {
			m.detailID = list[m.newsCursor].ID
			m.detailFrom = m.machine.State().Page
			return m.navigate(nav.PageNewsDetail)
		}
	}
	return m, nil
}

func (m Model) renderDetail() Model {
	a, err := m.deps.Articles.Get(m.detailID)
	if err != nil {
		m.viewport.SetContent(m.currentStyles().Error.Render("文章不存在 (article not found)"))
		return m
	}
	s := m.currentStyles()
	body, err := content.RenderMarkdown(a.Content, m.viewport.Width, s.Theme.IsDark)
	if err != nil {
		body = a.Content
	}
	header := s.Title.Render(a.Title) + "\n" + s.Muted.Render(a.Date) + "\n"
	m.viewport.SetContent(header + body)
	m.viewport.GotoTop()
	return m
}

// Keypad

func (m Model) handleKeypadKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "up":
		if m.keypadRow > 0 {
			m.keypadRow--
		}
		return m, nil
	case "down":
		if m.keypadRow < len(keypad)-1 {
			m.keypadRow++
		}
		return m, nil
	case "left":
		if m.keypadCol > 0 {
			m.keypadCol--
		}
		return m, nil
	case "right":
		if m.keypadCol < len(keypad[0])-1 {
			m.keypadCol++
		}
		return m, nil
	case "enter", " ":
		return m.press(keypad[m.keypadRow][m.keypadCol])
	case "backspace", "delete":
		return m.press(admin.KeyDelete)
	}
	if len(key) == 1 && key[0] >= '0' && key[0] <= '9' {
		return m.press(key)
	}
	return m, nil
}

func (m Model) press(key string) (tea.Model, tea.Cmd) {
	if key == "" {
		return m, nil
	}
	f := m.deps.Gate.Press(key)
	if f.Result == admin.Rejected {
		m.status = "密码错误 (wrong passcode)"
	}
	return m, settleCmd(f)
}

// Dashboard

func (m Model) handleDashboardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.editor != nil {
		return m.handleEditorKey(msg)
	}
	key := msg.String()
	if key == "ctrl+right" || key == "ctrl+left" || (m.tab == TabArticles && key == "tab") {
		return m.switchTab()
	}
	if m.tab == TabSettings {
		return m.handleSettingsKey(msg)
	}

	list := m.deps.Articles.List()
	switch key {
	case "up", "k":
		if m.articleCursor > 0 {
			m.articleCursor--
		}
	case "down", "j":
		if m.articleCursor < len(list)-1 {
			m.articleCursor++
		}
	case "n":
		return m.openEditor(content.Article{})
	case "e", "enter":
		if m.articleCursor < len(list) {
			return m.openEditor(list[m.articleCursor])
		}
	case "d", "x":
		if m.articleCursor < len(list) {
			a := list[m.articleCursor]
			if err := m.deps.Articles.Delete(a.ID); err != nil {
				m.status = err.Error()
				return m, nil
			}
			m.status = fmt.Sprintf("已删除 #%d", a.ID)
			if m.articleCursor >= m.deps.Articles.Len() && m.articleCursor > 0 {
				m.articleCursor--
			}
		}
	}
	return m, nil
}

func (m Model) switchTab() (tea.Model, tea.Cmd) {
	if m.tab == TabArticles {
		m.tab = TabSettings
		m.settingsFocus = 0
		return m, m.focusSettings()
	}
	m.tab = TabArticles
	for i := range m.settings {
		m.settings[i].Blur()
	}
	return m, nil
}

func (m Model) openEditor(a content.Article) (tea.Model, tea.Cmd) {
	ti := textinput.New()
	ti.Placeholder = "标题 (title)"
	ti.CharLimit = 120
	ti.Width = max(m.width-10, 20)
	ti.SetValue(a.Title)

	ta := textarea.New()
	ta.Placeholder = "正文，支持 Markdown"
	ta.ShowLineNumbers = false
	ta.SetWidth(max(m.width-8, 20))
	ta.SetHeight(max(m.height-14, 4))
	ta.SetValue(a.Content)

	m.editor = &editor{id: a.ID, title: ti, body: ta}
	m.status = ""
	return m, m.editor.title.Focus()
}

func (m Model) handleEditorKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ed := *m.editor
	switch msg.String() {
	case "tab", "shift+tab":
		if ed.focus == 0 {
			ed.focus = 1
			ed.title.Blur()
			cmd := ed.body.Focus()
			m.editor = &ed
			return m, cmd
		}
		ed.focus = 0
		ed.body.Blur()
		cmd := ed.title.Focus()
		m.editor = &ed
		return m, cmd
	case "ctrl+s":
		return m.saveArticle(ed)
	}

	var cmd tea.Cmd
	if ed.focus == 0 {
		ed.title, cmd = ed.title.Update(msg)
	} else {
		ed.body, cmd = ed.body.Update(msg)
	}
	m.editor = &ed
	return m, cmd
}

func (m Model) saveArticle(ed editor) (tea.Model, tea.Cmd) {
	var (
		a   content.Article
		err error
	)
	if ed.id == 0 {
		a, err = m.deps.Articles.Create(ed.title.Value(), ed.body.Value())
	} else {
		a, err = m.deps.Articles.Update(ed.id, ed.title.Value(), ed.body.Value())
	}
	if err != nil {
		if errors.Is(err, content.ErrEmptyTitle) {
			m.status = "标题不能为空 (title required)"
		} else {
			m.status = err.Error()
		}
		m.editor = &ed
		return m, nil
	}
	m.editor = nil
	m.status = fmt.Sprintf("已保存 #%d %s", a.ID, a.Title)
	return m, nil
}

func (m Model) focusSettings() tea.Cmd {
	var cmd tea.Cmd
	for i := range m.settings {
		if i == m.settingsFocus {
			cmd = m.settings[i].Focus()
		} else {
			m.settings[i].Blur()
		}
	}
	return cmd
}

func (m Model) handleSettingsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab", "down":
		m.settingsFocus = (m.settingsFocus + 1) % fieldCount
		return m, m.focusSettings()
	case "shift+tab", "up":
		m.settingsFocus = (m.settingsFocus + fieldCount - 1) % fieldCount
		return m, m.focusSettings()
	case "ctrl+p":
		sel := m.deps.Geo.Toggle()
		m.status = "当前 AI: " + sel.DisplayName()
		return m, nil
	case "enter", "ctrl+s":
		if m.settingsFocus == fieldPasscode {
			return m.changePasscode()
		}
		return m.saveProviderSettings()
	}

	var cmd tea.Cmd
	m.settings[m.settingsFocus], cmd = m.settings[m.settingsFocus].Update(msg)
	return m, cmd
}

func (m Model) changePasscode() (tea.Model, tea.Cmd) {
	code := strings.TrimSpace(m.settings[fieldPasscode].Value())
	switch err := m.deps.Gate.ChangeCode(code); {
	case err == nil:
		m.status = "密码已更新 (passcode changed)"
		m.settings[fieldPasscode].Reset()
	case errors.Is(err, admin.ErrInvalidCode):
		m.status = "密码必须是 8 位数字"
	default:
		m.status = err.Error()
	}
	return m, nil
}

func (m Model) saveProviderSettings() (tea.Model, tea.Cmd) {
	m.deps.Geo.SetOpenAISettings(geo.OpenAISettings{
		APIKey:  strings.TrimSpace(m.settings[fieldAPIKey].Value()),
		BaseURL: strings.TrimSpace(m.settings[fieldBaseURL].Value()),
		Model:   strings.TrimSpace(m.settings[fieldModel].Value()),
	})
	m.status = "AI 设置已保存 (settings saved)"
	return m, nil
}

// Geo tool

func (m Model) handleGeoKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+p":
		sel := m.deps.Geo.Toggle()
		m.status = "当前 AI: " + sel.DisplayName()
		return m, nil
	case "enter":
		path := strings.Trim(strings.TrimSpace(m.geoInput.Value()), `"'`)
		if path == "" {
			return m, nil
		}
		uri, err := geo.LoadImageFile(path)
		if err != nil {
			m.status = "无法读取图片: " + err.Error()
			return m, nil
		}
		m.geoPath = path
		m.geoResult = nil
		m.analyzing = true
		m.status = ""
		return m, tea.Batch(analyzeCmd(m.deps.Geo, uri), m.spinner.Tick)
	}
	var cmd tea.Cmd
	m.geoInput, cmd = m.geoInput.Update(msg)
	return m, cmd
}
