package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/newsai/internal/article"
	"github.com/deusflow/newsai/internal/config"
	"github.com/deusflow/newsai/internal/logger"
	"github.com/deusflow/newsai/internal/metrics"
	"github.com/deusflow/newsai/internal/ratelimit"
)

type fakeClient struct {
	mu   sync.Mutex
	seen []Request
	fail map[string]error
}

func (f *fakeClient) Complete(_ context.Context, req Request) (*Response, error) {
	f.mu.Lock()
	f.seen = append(f.seen, req)
	f.mu.Unlock()

	if err := f.fail[req.Content]; err != nil {
		return nil, err
	}
	return &Response{Text: "one two three four", PromptTokens: 50, CompletionTokens: 6}, nil
}

func (f *fakeClient) Close() error { return nil }

var testCfg = config.SummarizeConfig{
	Model:       "test-model",
	Concurrency: 5,
	Temperature: 0.5,
	MaxTokens:   1000,
}

func records(n int) []*article.Record {
	out := make([]*article.Record, n)
	for i := range out {
		out[i] = &article.Record{
			URL:           fmt.Sprintf("https://x/%d", i+1),
			Body:          fmt.Sprintf("body-%d", i+1),
			BodyWordCount: 100,
		}
	}
	return out
}

func TestTargetLength(t *testing.T) {
	assert.Equal(t, 40, TargetLength(100))
	assert.Equal(t, 235, TargetLength(2000))
	assert.Equal(t, 1, TargetLength(0))
	assert.Equal(t, 1, TargetLength(50))

	prev := 1.0
	for _, n := range []int{200, 400, 800, 1600, 3200, 6400} {
		ratio := float64(TargetLength(n)) / float64(n)
		assert.Less(t, ratio, prev, "ratio for %d words", n)
		prev = ratio
	}
}

func TestRelativeSize(t *testing.T) {
	assert.Equal(t, 40, RelativeSize(40, 100))
	assert.Equal(t, 12, RelativeSize(235, 2000))
	assert.Equal(t, 0, RelativeSize(10, 0))
}

func TestCompose(t *testing.T) {
	p := New(&fakeClient{}, nil, testCfg, logger.Discard(), nil)
	req := p.Compose(&article.Record{Body: "text", BodyWordCount: 2000})

	assert.Equal(t, "You will be given an article. I want you to summarise it in '235 words'.", req.System)
	assert.Equal(t, "text", req.Content)
	assert.Equal(t, "test-model", req.Model)
	assert.InDelta(t, 0.5, req.Temperature, 1e-6)
	assert.Equal(t, 1000, req.MaxTokens)
}

func TestSummarize_OneFailureInBatch(t *testing.T) {
	boom := errors.New("upstream 500")
	client := &fakeClient{fail: map[string]error{"body-3": boom}}
	arts := records(5)

	rep := New(client, nil, testCfg, logger.Discard(), metrics.New()).Summarize(context.Background(), arts)

	assert.Equal(t, 5, rep.Requested)
	assert.Equal(t, 4, rep.Succeeded)
	require.Len(t, rep.Failed, 1)
	assert.Equal(t, "https://x/3", rep.Failed[0].URL)
	require.ErrorIs(t, rep.Failed[0].Err, boom)

	for i, a := range arts {
		if i == 2 {
			assert.False(t, a.HasSummary())
			continue
		}
		require.True(t, a.HasSummary(), a.URL)
		assert.Equal(t, 4, a.Summary.WordCount)
		assert.Equal(t, 50, a.Summary.TokensSent)
		assert.Equal(t, 6, a.Summary.TokensReceived)
		assert.Equal(t, 4, a.Summary.RelativeSize)
	}
	assert.Equal(t, 200, rep.TokensSent)
	assert.Equal(t, 24, rep.TokensReceived)
}

func TestSummarize_SkipsSummarised(t *testing.T) {
	client := &fakeClient{}
	arts := records(3)
	arts[1].Summary = &article.Summary{Text: "done"}

	rep := New(client, nil, testCfg, logger.Discard(), nil).Summarize(context.Background(), arts)

	assert.Equal(t, 2, rep.Requested)
	assert.Len(t, client.seen, 2)
	assert.Equal(t, "done", arts[1].Summary.Text)
}

func TestSummarize_RequestBudget(t *testing.T) {
	client := &fakeClient{}
	limiter := ratelimit.NewRequestLimiter("test", 0, 2, logger.Discard())

	rep := New(client, limiter, testCfg, logger.Discard(), nil).Summarize(context.Background(), records(4))

	assert.Equal(t, 2, rep.Succeeded)
	require.Len(t, rep.Failed, 2)
	for _, f := range rep.Failed {
		require.ErrorIs(t, f.Err, ratelimit.ErrBudgetExhausted)
	}
}

func TestOpenAIClient_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-3.5-turbo-0125",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": " A short summary. "}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 321, "completion_tokens": 12, "total_tokens": 333}
		}`)
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", srv.URL+"/v1")
	resp, err := c.Complete(context.Background(), Request{
		Model:       "gpt-3.5-turbo-0125",
		System:      "sys",
		Content:     "article",
		Temperature: 0.5,
		MaxTokens:   1000,
	})
	require.NoError(t, err)

	assert.Equal(t, "A short summary.", resp.Text)
	assert.Equal(t, 321, resp.PromptTokens)
	assert.Equal(t, 12, resp.CompletionTokens)

	msgs, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "sys", msgs[0].(map[string]any)["content"])
	assert.Equal(t, "article", msgs[1].(map[string]any)["content"])
	assert.InDelta(t, 0.5, got["temperature"], 1e-6)
	assert.InDelta(t, 1000, got["max_tokens"], 0)
}

func TestOpenAIClient_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error": {"message": "rate limited", "type": "requests"}}`)
	}))
	defer srv.Close()

	_, err := NewOpenAIClient("sk-test", srv.URL+"/v1").Complete(context.Background(), Request{Model: "m"})
	require.Error(t, err)
}

func TestGeminiResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("Summary "), genai.Text("text.")}},
		}},
		UsageMetadata: &genai.UsageMetadata{PromptTokenCount: 90, CandidatesTokenCount: 5},
	}

	out, err := geminiResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, "Summary text.", out.Text)
	assert.Equal(t, 90, out.PromptTokens)
	assert.Equal(t, 5, out.CompletionTokens)

	_, err = geminiResponse(&genai.GenerateContentResponse{})
	require.ErrorIs(t, err, ErrEmptyResponse)
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), config.SummarizeConfig{Provider: "openai"})
	require.Error(t, err)

	c, err := NewClient(context.Background(), config.SummarizeConfig{Provider: "openai", OpenAIAPIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)

	_, err = NewClient(context.Background(), config.SummarizeConfig{Provider: "other"})
	require.Error(t, err)
}
