package canon

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/news_brief/app/news_brief/pkg/model"
)

var base = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

func at(hoursAgo float64) *time.Time {
	t := base.Add(-time.Duration(hoursAgo * float64(time.Hour)))
	return &t
}

func art(title, u string, published *time.Time) model.RawArticle {
	return model.RawArticle{Title: title, URL: u, Snippet: "snippet of " + title, SourceDomain: "example.com", PublishedAt: published}
}

// evBatch 8 篇文章，其中 2 篇是同一新闻的近似标题
func evBatch() []model.RawArticle {
	return []model.RawArticle{
		art("Used EV prices fall after subsidy changes", "https://autos.example.com/used-ev", at(12)),
		art("Congress extends electric vehicle subsidies through 2027", "https://www.reuters.com/ev-2027", at(1)),
		art("Analysts question long-term cost of clean car credits", "https://ft.example.com/credits", at(30)),
		art("Automakers push back on EV tax credit phase-out", "https://wsj.example.com/pushback", at(3)),
		art("Electric vehicle subsidies extended through 2027 by Congress", "https://apnews.com/ev-ext", at(2)),
		art("Charging network funding survives budget talks", "https://verge.example.com/charging", at(20)),
		art("States weigh new incentives for electric buses", "https://gov.example.com/buses", at(5)),
		art("Battery supply chain tightens as subsidies shift", "https://bloomberg.example.com/battery", at(8)),
	}
}

func TestCanonicalizeScenario(t *testing.T) {
	out := Canonicalize(evBatch(), 5, Options{})
	require.Len(t, out, 5)
	require.NoError(t, Verify(out, 5))

	wantURLs := []string{
		"https://apnews.com/ev-ext", // 近似重复组保留更早发布的一篇
		"https://wsj.example.com/pushback",
		"https://gov.example.com/buses",
		"https://bloomberg.example.com/battery",
		"https://autos.example.com/used-ev",
	}
	for i, a := range out {
		assert.Equal(t, wantURLs[i], a.URL)
		assert.Equal(t, i, a.RelevanceRank)
		if i > 0 {
			assert.True(t, out[i-1].PublishedAt.After(*a.PublishedAt), "descending recency at %d", i)
		}
	}
	assert.Equal(t, 1, out[0].Duplicates)
	assert.Equal(t, 0, out[1].Duplicates)
}

func TestCanonicalizeURLDuplicates(t *testing.T) {
	raw := []model.RawArticle{
		art("Story A", "https://www.site.com/story?utm_source=x", at(2)),
		art("Story A (mirror)", "http://site.com/story/", at(1)),
		art("Story A again", "https://site.com/story#comments", nil),
	}
	out := Canonicalize(raw, 10, Options{})
	require.Len(t, out, 1)
	assert.Equal(t, "https://www.site.com/story?utm_source=x", out[0].URL)
	assert.Equal(t, 2, out[0].Duplicates)
	assert.Equal(t, GroupID("https://site.com/story"), out[0].DedupGroupID)
}

func TestCanonicalizeFirstSeenWithoutTimestamps(t *testing.T) {
	raw := []model.RawArticle{
		art("first", "https://a.com/x?id=1", nil),
		art("second", "https://a.com/x?id=2", nil),
	}
	out := Canonicalize(raw, 10, Options{})
	require.Len(t, out, 1)
	assert.Equal(t, "first", out[0].Title)
}

func TestCanonicalizeTitleWindow(t *testing.T) {
	raw := []model.RawArticle{
		art("Central bank holds interest rates steady", "https://a.com/1", at(0)),
		art("Central bank holds interest rates steady", "https://b.com/1", at(100)),
	}
	assert.Len(t, Canonicalize(raw, 10, Options{}), 2, "outside the window titles do not collapse")

	raw[1].PublishedAt = at(47)
	assert.Len(t, Canonicalize(raw, 10, Options{}), 1)
}

func TestCanonicalizeMergesBridgedGroups(t *testing.T) {
	raw := []model.RawArticle{
		art("Solar tariffs lifted on imported panels", "https://a.com/solar", at(5)),
		art("Wind farm approved offshore", "https://b.com/wind", at(4)),
		// 标题与第 1 篇近似，URL 与第 2 篇相同：两组必须合并
		art("Solar tariffs lifted on imported panels today", "https://b.com/wind?ref=rss", at(6)),
	}
	out := Canonicalize(raw, 10, Options{})
	require.Len(t, out, 1)
	require.NoError(t, Verify(out, 10))
	assert.Equal(t, 2, out[0].Duplicates)
	assert.Equal(t, "https://b.com/wind?ref=rss", out[0].URL)
}

func TestCanonicalizeStableTies(t *testing.T) {
	var raw []model.RawArticle
	for i := 0; i < 6; i++ {
		raw = append(raw, art(fmt.Sprintf("unrelated headline number %d", i*7919), fmt.Sprintf("https://s%d.com/x", i), nil))
	}
	out := Canonicalize(raw, 6, Options{})
	require.Len(t, out, 6)
	for i, a := range out {
		assert.Equal(t, raw[i].URL, a.URL)
	}
}

func TestCanonicalizeTrust(t *testing.T) {
	raw := []model.RawArticle{
		{Title: "Tabloid scoop on subsidies", URL: "https://tabloid.com/1", SourceDomain: "tabloid.com", PublishedAt: at(1)},
		{Title: "Wire report on the subsidy vote", URL: "https://uk.reuters.com/1", SourceDomain: "uk.reuters.com", PublishedAt: at(2)},
	}
	out := Canonicalize(raw, 2, Options{Trust: map[string]float64{"reuters.com": 1, "tabloid.com": 0}})
	require.Len(t, out, 2)
	assert.Equal(t, "https://uk.reuters.com/1", out[0].URL)

	out = Canonicalize(raw, 2, Options{})
	assert.Equal(t, "https://tabloid.com/1", out[0].URL)
}

func TestCanonicalizeTruncatesAfterRanking(t *testing.T) {
	raw := []model.RawArticle{
		art("old news one here", "https://a.com/1", at(50)),
		art("old news two here", "https://a.com/2", at(40)),
		art("breaking fresh story here", "https://a.com/3", at(0)),
	}
	out := Canonicalize(raw, 1, Options{})
	require.Len(t, out, 1)
	assert.Equal(t, "https://a.com/3", out[0].URL)
}

func TestCanonicalizeEmpty(t *testing.T) {
	out := Canonicalize(nil, 5, Options{})
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func randomBatch(r *rand.Rand) []model.RawArticle {
	words := []string{"ev", "subsidy", "vote", "battery", "charging", "tariff", "congress", "credit", "market", "sales", "grid", "solar"}
	n := r.Intn(25)
	raw := make([]model.RawArticle, 0, n)
	for i := 0; i < n; i++ {
		k := 3 + r.Intn(5)
		title := ""
		for j := 0; j < k; j++ {
			title += words[r.Intn(len(words))] + " "
		}
		u := fmt.Sprintf("https://site%d.com/p/%d", r.Intn(4), r.Intn(8))
		if r.Intn(3) == 0 {
			u += fmt.Sprintf("?utm=%d", r.Intn(100))
		}
		var pub *time.Time
		if r.Intn(4) != 0 {
			pub = at(float64(r.Intn(96)))
		}
		raw = append(raw, art(title, u, pub))
	}
	return raw
}

func TestCanonicalizeProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for iter := 0; iter < 500; iter++ {
		raw := randomBatch(r)
		max := 1 + r.Intn(8)

		out := Canonicalize(raw, max, Options{})
		require.LessOrEqual(t, len(out), max)
		require.NoError(t, Verify(out, max))

		for i := range out {
			for j := i + 1; j < len(out); j++ {
				dup := NearDuplicate(Tokens(out[i].Title), Tokens(out[j].Title)) &&
					withinWindow(out[i].PublishedAt, out[j].PublishedAt)
				require.False(t, dup, "iteration %d: %q and %q are near duplicates", iter, out[i].Title, out[j].Title)
			}
		}

		again := Canonicalize(raw, max, Options{})
		require.Equal(t, out, again, "iteration %d not deterministic", iter)
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := map[string]string{
		"https://www.Example.com/a/b/?q=1#x": "https://example.com/a/b",
		"http://example.com":                 "https://example.com/",
		"https://example.com:443/a":          "https://example.com/a",
		"https://example.com:8443/a":         "https://example.com:8443/a",
		"not a url":                          "not a url",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeURL(in), in)
	}
}

func TestNearDuplicate(t *testing.T) {
	assert.True(t, NearDuplicate(Tokens("EV subsidies cut by government"), Tokens("EV subsidies cut by government - Reuters")))
	assert.False(t, NearDuplicate(Tokens("EV news"), Tokens("EV news today")), "short titles never collapse")
	assert.False(t, NearDuplicate(Tokens("Rates rise again in October"), Tokens("Rates fall sharply in September")))
}

func TestVerify(t *testing.T) {
	ok := Canonicalize(evBatch(), 3, Options{})
	require.NoError(t, Verify(ok, 3))

	assert.Error(t, Verify(ok, 2))

	bad := append([]model.CanonicalArticle(nil), ok...)
	bad[1].RelevanceRank = 5
	assert.Error(t, Verify(bad, 3))

	dup := append([]model.CanonicalArticle(nil), ok...)
	dup[2].URL = dup[0].URL + "?again=1"
	assert.Error(t, Verify(dup, 3))
}
