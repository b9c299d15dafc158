// Package content holds the club's editorial content: the news/announcement
// articles (editable from the admin dashboard) and the fixed category pages.
package content

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"digibox/internal/logging"
	"digibox/internal/store"
)

// KeyArticles is the store key for the article list.
const KeyArticles = "digibox_news"

// ArticlesVersion gates the persisted article list. Bump it to force every
// installation back to SeedArticles on next start.
const ArticlesVersion = 1

// DateLayout is the format of Article.Date.
const DateLayout = "2006-01-02"

var (
	ErrEmptyTitle = errors.New("content: title must not be empty")
	ErrNotFound   = errors.New("content: article not found")
)

// Article is a news item or announcement.
type Article struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	Date    string `json:"date"`
	Content string `json:"content,omitempty"` // Markdown
}

// Store owns the article list and writes it through to the key-value store
// after every change.
type Store struct {
	mu       sync.RWMutex
	kv       *store.KV
	version  store.Version
	articles []Article

	// Now is the clock used to date new articles.
	Now func() time.Time
}

// NewStore loads the article list, falling back to the seed when nothing
// matching ArticlesVersion is stored.
func NewStore(kv *store.KV) *Store {
	return NewStoreVersion(kv, ArticlesVersion)
}

// NewStoreVersion is NewStore with an explicit version gate.
func NewStoreVersion(kv *store.KV, version int) *Store {
	v := store.V(version)
	articles := store.Load(kv, KeyArticles, SeedArticles(), v)
	logging.Content("Loaded %d articles (version %s)", len(articles), v)
	return &Store{kv: kv, version: v, articles: articles, Now: time.Now}
}

// List returns a copy of all articles, newest first.
func (s *Store) List() []Article {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Article, len(s.articles))
	copy(out, s.articles)
	return out
}

// Len returns the number of articles.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.articles)
}

// Get returns the article with the given id.
func (s *Store) Get(id int) (Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.index(id); i >= 0 {
		return s.articles[i], nil
	}
	return Article{}, fmt.Errorf("%w: %d", ErrNotFound, id)
}

// Create adds an article dated today with id max+1 (1 when empty).
func (s *Store) Create(title, body string) (Article, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Article{}, ErrEmptyTitle
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a := Article{
		ID:      s.nextID(),
		Title:   title,
		Date:    s.Now().Format(DateLayout),
		Content: body,
	}
	s.articles = append([]Article{a}, s.articles...)
	s.persist()
	logging.Content("Created article %d %q", a.ID, a.Title)
	logging.Audit(logging.CategoryContent).ArticleOp(logging.AuditArticleCreate, a.ID, a.Title)
	return a, nil
}

// Update replaces title and body of an existing article. The date is kept.
func (s *Store) Update(id int, title, body string) (Article, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Article{}, ErrEmptyTitle
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return Article{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	s.articles[i].Title = title
	s.articles[i].Content = body
	s.persist()
	logging.Content("Updated article %d", id)
	logging.Audit(logging.CategoryContent).ArticleOp(logging.AuditArticleUpdate, id, title)
	return s.articles[i], nil
}

// Delete removes the article with the given id.
func (s *Store) Delete(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	removed := s.articles[i]
	s.articles = append(s.articles[:i], s.articles[i+1:]...)
	s.persist()
	logging.Content("Deleted article %d", id)
	logging.Audit(logging.CategoryContent).ArticleOp(logging.AuditArticleDelete, id, removed.Title)
	return nil
}

func (s *Store) index(id int) int {
	for i, a := range s.articles {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) nextID() int {
	max := 0
	for _, a := range s.articles {
		if a.ID > max {
			max = a.ID
		}
	}
	return max + 1
}

// persist writes the list through; failures are logged by the store and the
// in-memory list stays authoritative.
func (s *Store) persist() {
	_ = store.Save(s.kv, KeyArticles, s.articles, s.version)
}

// SeedArticles returns the first-run article list.
func SeedArticles() []Article {
	return []Article{
		{ID: 1, Title: "数码交流 2024 秋季招新正式启动！", Date: "2024-11-20", Content: "我们不仅寻找数码爱好者，更寻找未来的科技领袖。\n\n无论你是硬件发烧友、代码极客，还是摄影达人，这里都有属于你的舞台。\n\n**招新部门：**\n- 技术部\n- 媒体部\n- 运营部\n\n期待你的加入！"},
		{ID: 2, Title: "关于举办第十届“装机猿”大赛的通知", Date: "2024-11-18", Content: "这是一场速度与美学的较量。\n\n参赛选手需要在规定时间内完成一台高性能主机的组装与点亮。不仅比拼手速，更比拼理线艺术。\n\n**奖品丰厚：**\n- 一等奖：RTX 4060 显卡一张\n- 二等奖：机械键盘一把\n- 三等奖：大容量固态硬盘"},
		{ID: 3, Title: "苹果 M4 芯片深度架构解析讲座回顾", Date: "2024-11-15", Content: "本次讲座我们深入剖析了 Apple M4 芯片的微架构设计。\n\n从 N3E 工艺的优势到新的 SME 矩阵扩展指令集，讲师带大家领略了移动计算的巅峰。\n\n错过的同学可以在社团网盘下载录像回放。"},
		{ID: 4, Title: "校园二手市场规范化交易倡议书", Date: "2024-11-10", Content: "为了维护良好的校园交易环境，我们倡议：\n\n1. 如实描述商品成色，不隐瞒暗病。\n2. 尽量面交，当场验机。\n3. 合理定价，拒绝恶意倒卖。\n\n让我们共同打造一个诚信、透明的数码交流圈。"},
	}
}
