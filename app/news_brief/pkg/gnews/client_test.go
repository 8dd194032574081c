package gnews

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/news_brief/app/news_brief/pkg/fault"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/search"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>news</title>
<item>
  <title>EV subsidies extended through 2027 - Reuters</title>
  <link>https://news.google.com/rss/articles/abc</link>
  <pubDate>Sat, 17 Oct 2026 08:00:00 GMT</pubDate>
  <source url="https://www.reuters.com">Reuters</source>
  <description>&lt;a href="https://news.google.com/rss/articles/abc"&gt;EV subsidies extended through 2027&lt;/a&gt;&amp;nbsp;&amp;nbsp;&lt;font color="#6f6f6f"&gt;Reuters&lt;/font&gt;</description>
</item>
<item>
  <title>Battery makers react</title>
  <link>https://news.google.com/rss/articles/def</link>
</item>
</channel></rss>`

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "ev subsidies when:2d", q.Get("q"))
		assert.Equal(t, "en-US", q.Get("hl"))
		assert.Equal(t, "US", q.Get("gl"))
		assert.Equal(t, "US:en", q.Get("ceid"))
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(feedXML))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "us", srv.Client())
	resp, err := c.Search(context.Background(), &search.Request{Query: "ev subsidies", Language: "en-US", Days: 2, MaxResults: 10})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)

	first := resp.Results[0]
	assert.Equal(t, "EV subsidies extended through 2027", first.Title)
	assert.Equal(t, "Reuters", first.Source)
	assert.Equal(t, "https://www.reuters.com", first.SourceURL)
	assert.Equal(t, "2026-10-17T08:00:00Z", first.PublishedDate)
	assert.Equal(t, "", first.Content)

	assert.Equal(t, "Battery makers react", resp.Results[1].Title)
	assert.Equal(t, "", resp.Results[1].PublishedDate)
	assert.Equal(t, "", resp.Results[1].SourceURL)
}

func TestSearchBadFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not a feed"))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", nil).Search(context.Background(), &search.Request{Query: "q"})
	assert.Equal(t, "ProviderInvalidResponse", fault.KindOf(err))
}

func TestSplitTitle(t *testing.T) {
	title, outlet := splitTitle("A - B - The Verge")
	assert.Equal(t, "A - B", title)
	assert.Equal(t, "The Verge", outlet)

	title, outlet = splitTitle("No outlet")
	assert.Equal(t, "No outlet", title)
	assert.Equal(t, "", outlet)
}

func TestHTMLText(t *testing.T) {
	got := htmlText(`<p>Lead <b>text</b></p><font>Outlet</font>`, "", "Outlet")
	assert.Equal(t, "Lead text", got)
}
