package app

import (
	"fmt"
	"strings"

	"digibox/cmd/digibox/ui"
	"digibox/internal/admin"
	"digibox/internal/content"
	"digibox/internal/geo"
	"digibox/internal/nav"

	"github.com/charmbracelet/lipgloss"
)

// View renders the current page.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	state := m.machine.State()
	s := m.currentStyles()

	if state.ShowsTransitionIcon() {
		return m.transitionView(s, state)
	}

	body := m.pageView(s, state.Page)
	if !state.ContentVisible() {
		// Old content fades out, new content fades in.
		body = m.pageView(faded(s), state.Page)
	}

	var b strings.Builder
	b.WriteString(m.headerView(s, state))
	b.WriteString("\n")
	b.WriteString(s.RenderDivider(max(m.width-2, 10)))
	b.WriteString("\n")
	b.WriteString(s.Content.Render(body))
	b.WriteString("\n")
	if m.status != "" {
		b.WriteString(s.Info.Render("  " + m.status))
		b.WriteString("\n")
	}
	b.WriteString(s.Footer.Render(m.helpLine(state.Page)))
	return s.App.Render(b.String())
}

// faded derives a style set where everything is drawn in the border color.
func faded(s ui.Styles) ui.Styles {
	th := s.Theme
	th.Foreground, th.Primary, th.Accent, th.Muted = th.Border, th.Border, th.Border, th.Border
	return ui.NewStyles(th)
}

func (m Model) transitionView(s ui.Styles, state nav.State) string {
	icon := "✦"
	if state.Theme == nav.ThemeFlat {
		icon = "◯"
	}
	msg := s.Title.Render(icon) + "\n" + s.Muted.Render(strings.ToUpper(string(state.Theme)))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, msg)
}

func (m Model) headerView(s ui.Styles, state nav.State) string {
	items := []string{s.Header.Render("DigiBox")}
	for _, it := range menu {
		style := s.NavItem
		if it.page == state.Page || (it.page == nav.PageNews && (state.Page == nav.PageNewsFull || state.Page == nav.PageNewsDetail)) {
			style = s.NavActive
		}
		items = append(items, style.Render(it.label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, items...)
}

func (m Model) helpLine(p nav.Page) string {
	common := "t/ctrl+t 主题 · esc 返回 · q 退出"
	switch p {
	case nav.PageHome:
		return "↑↓ 选择 · enter 打开 · 1-8 快速跳转 · " + common
	case nav.PageNews:
		return "↑↓ 选择 · enter 阅读 · a 全部文章 · " + common
	case nav.PageNewsFull:
		return "↑↓ 选择 · enter 阅读 · " + common
	case nav.PageNewsDetail:
		return "↑↓/pgup/pgdn 滚动 · " + common
	case nav.PageAdmin:
		switch {
		case !m.deps.Gate.Authenticated():
			return "数字键输入 · ←↑→↓ + enter 屏幕键盘 · backspace 删除 · " + common
		case m.editor != nil:
			return "tab 切换字段 · ctrl+s 保存 · esc 取消"
		case m.tab == TabSettings:
			return "tab/↑↓ 切换字段 · enter 保存 · ctrl+p 切换 AI · ctrl+→ 文章 · esc 返回"
		default:
			return "n 新建 · e 编辑 · d 删除 · tab 设置 · " + common
		}
	case nav.PageToolsGeo:
		return "输入图片路径后 enter 分析 · ctrl+p 切换 AI · ctrl+t 主题 · esc 返回"
	}
	return common
}

func (m Model) pageView(s ui.Styles, p nav.Page) string {
	switch p {
	case nav.PageHome:
		return m.homeView(s)
	case nav.PageNews:
		return m.newsView(s, true)
	case nav.PageNewsFull:
		return m.newsView(s, false)
	case nav.PageNewsDetail:
		return m.viewport.View()
	case nav.PageAdmin:
		return m.adminView(s)
	case nav.PageToolsGeo:
		return m.geoView(s)
	}
	if c, ok := content.CategoryByKey(string(p)); ok {
		return categoryView(s, c, m.width)
	}
	return s.Muted.Render("404")
}

func (m Model) homeView(s ui.Styles) string {
	var b strings.Builder
	b.WriteString(ui.Logo(s))
	b.WriteString("\n")
	b.WriteString(s.Subtitle.Render("北京建筑大学 数码交流社团"))
	b.WriteString("\n\n")
	for i, it := range menu {
		line := fmt.Sprintf("%d  %s", i+1, it.label)
		if i == m.menuCursor {
			b.WriteString(s.Selected.Render("▸ " + line))
		} else {
			b.WriteString(s.Body.Render("  " + line))
		}
		b.WriteString("\n")
	}
	if m.regionNote != "" {
		b.WriteString("\n")
		b.WriteString(s.Muted.Render(m.regionNote))
	}
	return b.String()
}

func categoryView(s ui.Styles, c content.Category, width int) string {
	w := max(width-8, 20)
	var b strings.Builder
	b.WriteString(s.Title.Render(c.Title))
	b.WriteString("\n")
	b.WriteString(s.Subtitle.Render(c.Description))
	b.WriteString("\n\n")
	paras := make([]string, len(c.Paragraphs))
	for i, p := range c.Paragraphs {
		paras[i] = s.Body.Width(w).Render(p)
	}
	b.WriteString(s.Card.Render(strings.Join(paras, "\n\n")))
	return b.String()
}

func (m Model) newsView(s ui.Styles, latestOnly bool) string {
	var b strings.Builder
	if latestOnly {
		if c, ok := content.CategoryByKey(string(nav.PageNews)); ok {
			b.WriteString(s.Title.Render(c.Title))
			b.WriteString("\n")
			b.WriteString(s.Subtitle.Render(c.Description))
			b.WriteString("\n\n")
		}
		b.WriteString(s.Bold.Render("最新公告"))
	} else {
		b.WriteString(s.Title.Render("全部文章"))
	}
	b.WriteString("\n")

	list := m.newsList()
	if len(list) == 0 {
		b.WriteString(s.Muted.Render("暂无文章"))
		return b.String()
	}
	for i, a := range list {
		line := fmt.Sprintf("%s  %s", a.Date, a.Title)
		if i == m.newsCursor {
			b.WriteString(s.Selected.Render("▸ " + line))
		} else {
			b.WriteString(s.Body.Render("  " + line))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) adminView(s ui.Styles) string {
	if !m.deps.Gate.Authenticated() {
		return m.keypadView(s)
	}
	if m.editor != nil {
		return m.editorView(s)
	}

	tabs := []string{"文章管理", "设置"}
	rendered := make([]string, len(tabs))
	for i, t := range tabs {
		if AdminTab(i) == m.tab {
			rendered[i] = s.NavActive.Render(t)
		} else {
			rendered[i] = s.NavItem.Render(t)
		}
	}

	var b strings.Builder
	b.WriteString(s.Title.Render("管理后台"))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, rendered...))
	b.WriteString("\n\n")
	if m.tab == TabSettings {
		b.WriteString(m.settingsView(s))
	} else {
		b.WriteString(m.articlesView(s))
	}
	return b.String()
}

func (m Model) keypadView(s ui.Styles) string {
	shaking := m.deps.Gate.Shaking()
	entered := m.deps.Gate.Entered()

	dots := make([]string, admin.CodeLength)
	for i := range dots {
		switch {
		case shaking:
			dots[i] = s.Error.Render("●")
		case i < entered:
			dots[i] = s.DotFilled.Render("●")
		default:
			dots[i] = s.Dot.Render("○")
		}
	}
	indicator := strings.Join(dots, " ")
	if shaking {
		// Offset the row to suggest the shake.
		indicator = "  " + indicator
	}

	rows := make([]string, len(keypad))
	for r, row := range keypad {
		cells := make([]string, len(row))
		for c, k := range row {
			label := k
			if label == "" {
				label = " "
			}
			if k == admin.KeyDelete {
				label = "⌫"
			}
			style := s.Key
			if shaking {
				style = s.KeyShake
			} else if r == m.keypadRow && c == m.keypadCol {
				style = s.Key.BorderForeground(s.Theme.Accent).Foreground(s.Theme.Accent)
			}
			cells[c] = style.Width(5).Align(lipgloss.Center).Render(label)
		}
		rows[r] = lipgloss.JoinHorizontal(lipgloss.Top, cells...)
	}

	return lipgloss.JoinVertical(lipgloss.Center,
		s.Title.Render("管理员验证"),
		indicator,
		"",
		lipgloss.JoinVertical(lipgloss.Left, rows...),
	)
}

func (m Model) articlesView(s ui.Styles) string {
	list := m.deps.Articles.List()
	if len(list) == 0 {
		return s.Muted.Render("暂无文章，按 n 新建")
	}
	var b strings.Builder
	for i, a := range list {
		line := fmt.Sprintf("#%-3d %s  %s", a.ID, a.Date, a.Title)
		if i == m.articleCursor {
			b.WriteString(s.Selected.Render("▸ " + line))
		} else {
			b.WriteString(s.Body.Render("  " + line))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) editorView(s ui.Styles) string {
	heading := "新建文章"
	if m.editor.id != 0 {
		heading = fmt.Sprintf("编辑文章 #%d", m.editor.id)
	}
	return strings.Join([]string{
		s.Title.Render(heading),
		s.Muted.Render("标题"),
		m.editor.title.View(),
		"",
		s.Muted.Render("正文 (Markdown)"),
		m.editor.body.View(),
	}, "\n")
}

func (m Model) settingsView(s ui.Styles) string {
	labels := [fieldCount]string{"修改密码", "OpenAI API Key", "OpenAI Base URL", "OpenAI Model"}
	var b strings.Builder
	b.WriteString(s.Bold.Render("当前 AI: "))
	b.WriteString(s.Selected.Render(m.deps.Geo.Selection().DisplayName()))
	b.WriteString("\n\n")
	for i := range m.settings {
		label := s.Muted.Render(labels[i])
		if i == m.settingsFocus {
			label = s.Selected.Render(labels[i])
		}
		b.WriteString(label)
		b.WriteString("\n")
		b.WriteString(m.settings[i].View())
		b.WriteString("\n")
		if i == fieldPasscode {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m Model) geoView(s ui.Styles) string {
	var b strings.Builder
	b.WriteString(s.Title.Render("AI 识图定位"))
	b.WriteString("\n")
	b.WriteString(s.Subtitle.Render("上传一张照片，AI 推测拍摄地点"))
	b.WriteString("\n")
	b.WriteString(s.Muted.Render("AI: " + m.deps.Geo.Selection().DisplayName()))
	if m.regionNote != "" {
		b.WriteString(s.Muted.Render(" · " + m.regionNote))
	}
	b.WriteString("\n\n")
	b.WriteString(m.geoInput.View())
	b.WriteString("\n\n")

	if m.geoPath != "" {
		b.WriteString(s.Body.Render("图片: " + m.geoPath))
		b.WriteString("\n")
	}
	switch {
	case m.analyzing:
		b.WriteString(s.Spinner.Render(m.spinner.View()) + " " + s.Muted.Render("分析中 (analyzing)..."))
	case m.geoResult != nil:
		b.WriteString(resultsView(s, m.geoResult.Guesses))
	}
	return b.String()
}

func resultsView(s ui.Styles, guesses []geo.Guess) string {
	var b strings.Builder
	for i, g := range guesses {
		if g.Error {
			b.WriteString(s.Error.Render("! " + g.Label))
		} else {
			b.WriteString(fmt.Sprintf("%d. %s %s %3d%%", i+1, s.Bar(g.Confidence, 20), s.Body.Render(g.Label), g.Confidence))
		}
		b.WriteString("\n")
	}
	return b.String()
}
