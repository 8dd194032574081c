package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/news_brief/app/news_brief/pkg/config"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/fault"
	dm "github.com/iWorld-y/news_brief/app/news_brief/pkg/model"
)

type fakeCompleter struct {
	text    string
	err     error
	prompts []Prompt
}

func (f *fakeCompleter) Name() string    { return "fake" }
func (f *fakeCompleter) ModelID() string { return "fake-model" }

func (f *fakeCompleter) Complete(ctx context.Context, p Prompt) (*Completion, error) {
	f.prompts = append(f.prompts, p)
	if f.err != nil {
		return nil, f.err
	}
	return &Completion{Text: f.text}, nil
}

func articles(n, snippetLen int) []dm.CanonicalArticle {
	out := make([]dm.CanonicalArticle, n)
	for i := range out {
		out[i] = dm.CanonicalArticle{
			RawArticle: dm.RawArticle{
				Title:        fmt.Sprintf("Headline %d", i),
				URL:          fmt.Sprintf("https://news.example.com/%d", i),
				Snippet:      strings.Repeat("s", snippetLen),
				SourceDomain: "news.example.com",
			},
			RelevanceRank: i,
		}
	}
	return out
}

func TestSummarizeUnderBudget(t *testing.T) {
	fc := &fakeCompleter{text: "```json\n{\"summary\": \"EV subsidies were extended.\", \"highlights\": [{\"index\": 2, \"text\": \"Second\\nline\"}, {\"index\": 1, \"text\": \"First\"}]}\n```"}
	s := NewSummarizer(fc, Options{})
	s.now = func() time.Time { return time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC) }

	sum, warnings, err := s.Summarize(context.Background(), articles(3, 100), dm.Query{Topic: "ev", Language: "de"})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.NotNil(t, warnings)

	assert.Equal(t, "EV subsidies were extended.", sum.HeadlineSummary)
	assert.Equal(t, "fake-model", sum.ModelID)
	require.Len(t, sum.Highlights, 2)
	assert.Equal(t, 0, sum.Highlights[0].ArticleRank)
	assert.Equal(t, "https://news.example.com/1", sum.Highlights[1].ArticleURL)
	assert.Equal(t, "Second line", sum.Highlights[1].Text)

	require.Len(t, fc.prompts, 1)
	assert.Contains(t, fc.prompts[0].User, "[3] Headline 2")
	assert.Contains(t, fc.prompts[0].User, "language: de")
}

func TestSummarizeOverBudget(t *testing.T) {
	fc := &fakeCompleter{text: `{"summary": "ok", "highlights": []}`}
	s := NewSummarizer(fc, Options{PromptCharBudget: 1000, SnippetMaxChars: 400})

	in := articles(5, 400)
	_, warnings, err := s.Summarize(context.Background(), in, dm.Query{Topic: "ev"})
	require.NoError(t, err)
	require.Len(t, warnings, 1)

	w := warnings[0]
	assert.Equal(t, dm.StageSummarizing, w.Stage)
	assert.Equal(t, dm.WarnPromptTruncated, w.Kind)
	assert.Equal(t, []string{in[2].URL, in[3].URL, in[4].URL}, w.ArticleURLs)

	user := fc.prompts[0].User
	assert.Contains(t, user, "[2] Headline 1")
	assert.NotContains(t, user, "Headline 2")
}

func TestBuildPromptKeepsTopArticle(t *testing.T) {
	in := articles(2, 400)
	b := buildPrompt(in, dm.Query{Topic: "ev"}, 120, 400)
	require.Len(t, b.included, 1)
	require.NotNil(t, b.warning)
	assert.Equal(t, []string{in[1].URL}, b.warning.ArticleURLs)

	block := b.prompt.User[strings.Index(b.prompt.User, "[1]"):]
	assert.LessOrEqual(t, runeLen(block), 120)
}

func TestBuildPromptTruncatesSnippets(t *testing.T) {
	in := articles(1, 1000)
	b := buildPrompt(in, dm.Query{Topic: "ev"}, 6000, 400)
	assert.Nil(t, b.warning)
	assert.Contains(t, b.prompt.User, strings.Repeat("s", 400))
	assert.NotContains(t, b.prompt.User, strings.Repeat("s", 401))
}

func TestSummarizeInvalidResponses(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"not json", "Here is your news script."},
		{"empty summary", `{"summary": "  ", "highlights": []}`},
		{"unknown index", `{"summary": "ok", "highlights": [{"index": 4, "text": "x"}]}`},
		{"zero index", `{"summary": "ok", "highlights": [{"index": 0, "text": "x"}]}`},
		{"duplicate index", `{"summary": "ok", "highlights": [{"index": 1, "text": "x"}, {"index": 1, "text": "y"}]}`},
		{"empty highlight", `{"summary": "ok", "highlights": [{"index": 1, "text": " "}]}`},
		{"summary too long", fmt.Sprintf(`{"summary": %q, "highlights": []}`, strings.Repeat("a", MaxSummaryChars+1))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSummarizer(&fakeCompleter{text: tt.text}, Options{})
			sum, _, err := s.Summarize(context.Background(), articles(3, 10), dm.Query{Topic: "ev"})
			assert.Nil(t, sum)
			assert.Equal(t, "ModelInvalidResponse", fault.KindOf(err))
		})
	}
}

func TestSummarizeCapsHighlight(t *testing.T) {
	long := strings.Repeat("word ", 100)
	s := NewSummarizer(&fakeCompleter{text: fmt.Sprintf(`{"summary": "ok", "highlights": [{"index": 1, "text": %q}]}`, long)}, Options{})
	sum, _, err := s.Summarize(context.Background(), articles(1, 10), dm.Query{Topic: "ev"})
	require.NoError(t, err)
	assert.Equal(t, MaxHighlightChars, runeLen(sum.Highlights[0].Text))
}

func TestSummarizeClassifiesErrors(t *testing.T) {
	s := NewSummarizer(&fakeCompleter{err: errors.New("error, status code: 429, message: slow down")}, Options{})
	_, _, err := s.Summarize(context.Background(), articles(1, 10), dm.Query{Topic: "ev"})
	assert.Equal(t, "ModelRateLimited", fault.KindOf(err))
	assert.True(t, fault.IsTransient(err))

	s = NewSummarizer(&fakeCompleter{err: context.Canceled}, Options{})
	_, _, err = s.Summarize(context.Background(), articles(1, 10), dm.Query{Topic: "ev"})
	assert.ErrorIs(t, err, context.Canceled)

	_, _, err = s.Summarize(context.Background(), nil, dm.Query{Topic: "ev"})
	assert.Error(t, err)
}

func TestClassifyText(t *testing.T) {
	tests := map[string]string{
		"error, status code: 401, message: bad key":    "ModelUnauthorized",
		"error, status code: 503, message: overloaded": "ModelUnavailable",
		"error, status code: 400, message: bad":        "ModelInvalidResponse",
		"Too Many Requests":                            "ModelRateLimited",
		"dial tcp 10.0.0.1:443: connection refused":    "ModelUnavailable",
	}
	for msg, want := range tests {
		assert.Equal(t, want, fault.KindOf(classifyText("openai", errors.New(msg))), msg)
	}
}

func TestCleanJSONResponse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain JSON unchanged", `{"summary":"test"}`, `{"summary":"test"}`},
		{"strips json fenced block", "```json\n{\"summary\":\"test\"}\n```", `{"summary":"test"}`},
		{"strips plain fenced block", "```\n{\"summary\":\"test\"}\n```", `{"summary":"test"}`},
		{"strips surrounding prose", "Sure! {\"summary\":\"test\"} Hope this helps.", `{"summary":"test"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanJSONResponse(tt.input))
		})
	}
}

type fakeChatModel struct {
	resp  *schema.Message
	err   error
	input []*schema.Message
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.input = input
	return f.resp, f.err
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

func TestEinoCompleter(t *testing.T) {
	cm := &fakeChatModel{resp: &schema.Message{
		Role:         schema.Assistant,
		Content:      `{"summary":"ok"}`,
		ResponseMeta: &schema.ResponseMeta{FinishReason: "stop"},
	}}
	c := NewEinoCompleter(cm, "gpt-4o-mini")

	got, err := c.Complete(context.Background(), Prompt{System: "sys", User: "user"})
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"ok"}`, got.Text)
	require.Len(t, cm.input, 2)
	assert.Equal(t, schema.System, cm.input[0].Role)
	assert.Equal(t, "user", cm.input[1].Content)
	assert.Equal(t, "gpt-4o-mini", c.ModelID())

	cm.resp.ResponseMeta.FinishReason = "content_filter"
	_, err = c.Complete(context.Background(), Prompt{})
	assert.Equal(t, "ModelContentRejected", fault.KindOf(err))

	cm.resp = nil
	_, err = c.Complete(context.Background(), Prompt{})
	assert.Equal(t, "ModelInvalidResponse", fault.KindOf(err))

	cm.err = errors.New("error, status code: 429, message: rate limit reached")
	_, err = c.Complete(context.Background(), Prompt{})
	assert.Equal(t, "ModelRateLimited", fault.KindOf(err))
}

func anthropicServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func anthropicConfig(baseURL string) config.LLMConfig {
	return config.LLMConfig{
		Provider:    "anthropic",
		BaseURL:     baseURL,
		APIKey:      "test-key",
		Model:       "claude-haiku-4-5",
		Temperature: 0.4,
		MaxTokens:   1000,
	}
}

func TestAnthropicCompleter(t *testing.T) {
	srv := anthropicServer(t, http.StatusOK, `{
		"id": "msg_01", "type": "message", "role": "assistant", "model": "claude-haiku-4-5",
		"content": [{"type": "text", "text": "{\"summary\":\"ok\"}"}],
		"stop_reason": "end_turn", "stop_sequence": null,
		"usage": {"input_tokens": 10, "output_tokens": 5}
	}`)
	c := NewAnthropicCompleter(anthropicConfig(srv.URL))

	got, err := c.Complete(context.Background(), Prompt{System: "sys", User: "user"})
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"ok"}`, got.Text)
	assert.Equal(t, "end_turn", got.FinishReason)
	assert.Equal(t, "claude-haiku-4-5", c.ModelID())
}

func TestAnthropicCompleterRefusal(t *testing.T) {
	srv := anthropicServer(t, http.StatusOK, `{
		"id": "msg_02", "type": "message", "role": "assistant", "model": "claude-haiku-4-5",
		"content": [], "stop_reason": "refusal", "stop_sequence": null,
		"usage": {"input_tokens": 10, "output_tokens": 0}
	}`)
	_, err := NewAnthropicCompleter(anthropicConfig(srv.URL)).Complete(context.Background(), Prompt{User: "x"})
	assert.Equal(t, "ModelContentRejected", fault.KindOf(err))
}

func TestAnthropicCompleterStatus(t *testing.T) {
	tests := map[int]string{
		http.StatusTooManyRequests:     "ModelRateLimited",
		http.StatusUnauthorized:        "ModelUnauthorized",
		529:                            "ModelUnavailable",
		http.StatusBadRequest:          "ModelInvalidResponse",
		http.StatusInternalServerError: "ModelUnavailable",
	}
	for status, want := range tests {
		t.Run(fmt.Sprint(status), func(t *testing.T) {
			srv := anthropicServer(t, status, `{"type": "error", "error": {"type": "api_error", "message": "boom"}}`)
			_, err := NewAnthropicCompleter(anthropicConfig(srv.URL)).Complete(context.Background(), Prompt{User: "x"})
			assert.Equal(t, want, fault.KindOf(err))
		})
	}
}
