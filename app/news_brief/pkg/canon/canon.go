package canon

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/iWorld-y/news_brief/app/news_brief/pkg/model"
)

// 去重与排序参数
const (
	TitleSimilarity = 0.8            // 标题词重合率阈值
	MinTitleTokens  = 3              // 较短标题至少需要的词数，避免短标题误判
	DuplicateWindow = 48 * time.Hour // 近似标题只在该时间窗口内视为重复
	RecencyWeight   = 0.7
	TrustWeight     = 0.3
	NeutralTrust    = 0.5
)

// Options 排序参数
type Options struct {
	// Trust 来源域名的静态权重，取值 [0, 1]，未列出的域名取 NeutralTrust。
	// 按后缀匹配，reuters.com 同样作用于 uk.reuters.com。
	Trust map[string]float64
}

type member struct {
	article model.RawArticle
	order   int
	urlKey  string
	tokens  map[string]struct{}
}

type group struct {
	members []member
	urlKeys map[string]struct{}
}

type ranked struct {
	rep   member
	size  int
	score float64
}

// Canonicalize 去重、打分并截断到 maxArticles。纯函数，相同输入总是得到相同顺序。
func Canonicalize(raw []model.RawArticle, maxArticles int, opts Options) []model.CanonicalArticle {
	groups := buildGroups(raw)

	var newest *time.Time
	items := make([]ranked, 0, len(groups))
	for _, g := range groups {
		rep := g.representative()
		if t := rep.article.PublishedAt; t != nil && (newest == nil || t.After(*newest)) {
			newest = t
		}
		items = append(items, ranked{rep: rep, size: len(g.members)})
	}
	for i := range items {
		items[i].score = score(items[i].rep.article, newest, opts.Trust)
	}

	// 分数相同按抓取顺序，保证稳定
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].score != items[j].score {
			return items[i].score > items[j].score
		}
		return items[i].rep.order < items[j].rep.order
	})

	if maxArticles >= 0 && len(items) > maxArticles {
		items = items[:maxArticles]
	}

	out := make([]model.CanonicalArticle, 0, len(items))
	for rank, it := range items {
		out = append(out, model.CanonicalArticle{
			RawArticle:    it.rep.article,
			DedupGroupID:  GroupID(it.rep.urlKey),
			RelevanceRank: rank,
			Duplicates:    it.size - 1,
		})
	}
	return out
}

// buildGroups 按抓取顺序扫描，文章并入第一个 URL 相同或标题近似的组；
// 同时命中多个组时把这些组合并，保证不同组之间没有共享去重键的文章
func buildGroups(raw []model.RawArticle) []*group {
	var groups []*group
	for i, a := range raw {
		m := member{
			article: a,
			order:   i,
			urlKey:  NormalizeURL(a.URL),
			tokens:  Tokens(a.Title),
		}

		var target *group
		kept := groups[:0]
		for _, g := range groups {
			switch {
			case !g.matches(m):
				kept = append(kept, g)
			case target == nil:
				target = g
				kept = append(kept, g)
			default:
				target.merge(g)
			}
		}
		groups = kept
		if target == nil {
			target = &group{urlKeys: map[string]struct{}{}}
			groups = append(groups, target)
		}
		target.members = append(target.members, m)
		target.urlKeys[m.urlKey] = struct{}{}
	}
	return groups
}

func (g *group) merge(other *group) {
	g.members = append(g.members, other.members...)
	sort.SliceStable(g.members, func(i, j int) bool { return g.members[i].order < g.members[j].order })
	for k := range other.urlKeys {
		g.urlKeys[k] = struct{}{}
	}
}

func (g *group) matches(m member) bool {
	if _, ok := g.urlKeys[m.urlKey]; ok {
		return true
	}
	for _, other := range g.members {
		if NearDuplicate(m.tokens, other.tokens) && withinWindow(m.article.PublishedAt, other.article.PublishedAt) {
			return true
		}
	}
	return false
}

// representative 保留最早发布的成员；都没有时间时保留最先出现的
func (g *group) representative() member {
	rep := g.members[0]
	for _, m := range g.members[1:] {
		t := m.article.PublishedAt
		if t == nil {
			continue
		}
		if rep.article.PublishedAt == nil || t.Before(*rep.article.PublishedAt) {
			rep = m
		}
	}
	return rep
}

func withinWindow(a, b *time.Time) bool {
	if a == nil || b == nil {
		return true
	}
	d := a.Sub(*b)
	if d < 0 {
		d = -d
	}
	return d <= DuplicateWindow
}

func score(a model.RawArticle, newest *time.Time, trust map[string]float64) float64 {
	var recency float64
	if a.PublishedAt != nil && newest != nil {
		ageHours := newest.Sub(*a.PublishedAt).Hours()
		if ageHours < 0 {
			ageHours = 0
		}
		recency = 1 / (1 + ageHours/24)
	}
	return RecencyWeight*recency + TrustWeight*trustOf(a.SourceDomain, trust)
}

func trustOf(domain string, trust map[string]float64) float64 {
	domain = strings.ToLower(domain)
	best, bestLen := NeutralTrust, -1
	for d, w := range trust {
		d = strings.ToLower(d)
		if (domain == d || strings.HasSuffix(domain, "."+d)) && len(d) > bestLen {
			best, bestLen = w, len(d)
		}
	}
	return best
}

// NormalizeURL 去重用的 URL 键：协议统一为 https，小写主机并去掉 www.，丢弃查询串、锚点和末尾斜杠
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if port := u.Port(); port != "" && port != "80" && port != "443" {
		host += ":" + port
	}
	path := strings.TrimRight(u.EscapedPath(), "/")
	if path == "" {
		path = "/"
	}
	return "https://" + host + path
}

// GroupID 由 URL 键生成稳定的分组 ID
func GroupID(urlKey string) string {
	h := sha256.Sum256([]byte(urlKey))
	return fmt.Sprintf("%x", h[:16])
}

// Tokens 标题分词：小写，按非字母数字切分
func Tokens(title string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// NearDuplicate 重合词数 / 较短标题词数 ≥ TitleSimilarity
func NearDuplicate(a, b map[string]struct{}) bool {
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	if len(small) < MinTitleTokens {
		return false
	}
	shared := 0
	for tok := range small {
		if _, ok := large[tok]; ok {
			shared++
		}
	}
	return float64(shared)/float64(len(small)) >= TitleSimilarity
}
