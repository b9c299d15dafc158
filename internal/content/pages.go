package content

import (
	"fmt"

	"github.com/charmbracelet/glamour"
)

// Category is one of the fixed content pages.
type Category struct {
	Key         string
	Title       string
	Description string
	Paragraphs  []string
}

var categories = []Category{
	{
		Key:         "computer",
		Title:       "电脑",
		Description: "探索计算机架构与生产力工具的极致。",
		Paragraphs: []string{
			"DigiBox 数码交流电脑板块致力于为同学们提供最前沿的计算机硬件知识与软件生态体验。",
			"我们定期举办黑苹果 (Hackintosh) 安装工作坊、Windows 性能调优讲座以及 Linux 发行版尝鲜活动。",
			"无论你是需要一台高性能的渲染工作站，还是轻薄便携的课堂笔记神器，这里都有详尽的评测与选购指南。",
			"加入我们，一起探索 ARM 架构的未来，对比 x86 的辉煌，挖掘每一个晶体管的潜能。",
		},
	},
	{
		Key:         "phone",
		Title:       "手机",
		Description: "移动科技的前沿阵地与摄影艺术。",
		Paragraphs: []string{
			"手机早已不仅是通讯工具，它是我们延伸的感官。",
			"在这里，我们对比 iOS 与 Android 的生态差异，探讨计算摄影的最新算法，以及移动端芯片的性能跃进。",
			"我们关注各大厂商的发布会，从折叠屏的工业设计到快充技术的物理极限，无所不谈。",
			"社团内部提供多品牌旗舰机型供成员体验，让“云评测”成为过去。",
		},
	},
	{
		Key:         "secondhand",
		Title:       "二手交易",
		Description: "校内安全、透明的数码流转平台。",
		Paragraphs: []string{
			"为 BUCEA 师生打造的专属数码循环平台。",
			"在这里交易闲置的数码产品，我们倡导“验机透明、价格公道、交易安全”。",
			"社团提供免费的验机服务与指导，帮助你鉴别成色，规避“翻新机”与“暗病机”风险。",
			"让每一件数码产品都能找到新的主人，发挥它的余热，这不仅是交易，更是环保。",
		},
	},
	{
		Key:         "code",
		Title:       "代码",
		Description: "用逻辑构建世界，用算法改变生活。",
		Paragraphs: []string{
			"Hello World! 这里是极客的乐园。",
			"代码板块涵盖 Web 全栈开发、人工智能算法入门、移动端 App 开发以及算法竞赛 (ACM/ICPC) 训练。",
			"我们崇尚开源精神 (Open Source)，鼓励大家在 GitHub 上分享自己的项目。",
			"定期举办黑客马拉松 (Hackathon)，让你在 24 小时内将疯狂的想法变为现实。",
		},
	},
	{
		Key:         "hardware",
		Title:       "硬件",
		Description: "硬核极客的浪漫，从电路到芯片。",
		Paragraphs: []string{
			"如果你对 PCB 电路板的味道着迷，那么你来对地方了。",
			"硬件板块深入探讨半导体物理、微处理器架构以及嵌入式系统开发 (Arduino/STM32/ESP32)。",
			"我们组织“装机大赛”，挑战理线艺术与散热极限；我们也研究键盘客制化，寻找最完美的手感。",
			"从摩尔定律到量子计算，我们关注算力基石的每一次震动。",
		},
	},
	{
		Key:         "news",
		Title:       "科技新闻",
		Description: "捕捉全球科技脉搏，解读行业趋势。",
		Paragraphs: []string{
			"在这个信息爆炸的时代，我们为你筛选最有价值的科技资讯。",
			"从 AI 大模型的迭代到半导体产业链的博弈，从虚拟现实 (VR/AR) 的突破到清洁能源的应用。",
			"不仅是搬运新闻，更是深度解读。我们定期发布社团原创的科技评论周刊。",
			"在这里，我们不仅是科技的见证者，更是思考者。",
		},
	},
}

// Categories returns the category pages in menu order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// CategoryByKey looks up a category page.
func CategoryByKey(key string) (Category, bool) {
	for _, c := range categories {
		if c.Key == key {
			return c, true
		}
	}
	return Category{}, false
}

// RenderMarkdown renders an article body for the terminal.
func RenderMarkdown(body string, width int, dark bool) (string, error) {
	if width <= 0 {
		width = 80
	}
	style := "light"
	if dark {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	out, err := r.Render(body)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return out, nil
}
