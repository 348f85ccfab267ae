package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnswers(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    map[string]string
		wantErr bool
	}{
		{
			name: "plain",
			raw:  `{"q1":"Yes","q2":"5"}`,
			want: map[string]string{"q1": "Yes", "q2": "5"},
		},
		{
			name: "fenced with mixed types",
			raw:  "```json\n{\"q1\": 5, \"q2\": true, \"q3\": [\"Go\", \"SQL\"], \"q4\": null, \"q5\": \"  \"}\n```",
			want: map[string]string{"q1": "5", "q2": "Yes", "q3": "Go, SQL"},
		},
		{
			name: "prose around object",
			raw:  "Here you go: {\"q1\":\"Berlin\"} hope it helps",
			want: map[string]string{"q1": "Berlin"},
		},
		{name: "empty", raw: "  ", wantErr: true},
		{name: "garbage", raw: "not json", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAnswers(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildAnswerPromptTruncatesDescription(t *testing.T) {
	prompt, err := buildAnswerPrompt(AnswerRequest{
		Profile:        map[string]string{"city": "Berlin"},
		JobDescription: strings.Repeat("я", MaxJobDescription+500),
		Questions:      []Question{{ID: "q1", Label: "City", Type: "text"}},
	})
	require.NoError(t, err)
	assert.Equal(t, MaxJobDescription, strings.Count(prompt, "я"))
	assert.Contains(t, prompt, `"label": "City"`)

	prompt, err = buildAnswerPrompt(AnswerRequest{})
	require.NoError(t, err)
	assert.Contains(t, prompt, "JOB DESCRIPTION:\nN/A")
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, 100)
	rl.now = func() time.Time { return now }
	rl.last = now

	require.NoError(t, rl.AllowRequest())
	require.NoError(t, rl.AllowRequest())
	assert.Error(t, rl.AllowRequest())

	now = now.Add(30 * time.Second)
	assert.NoError(t, rl.AllowRequest())

	require.NoError(t, rl.AllowTokens(80))
	assert.Error(t, rl.AllowTokens(50))
	rl.ConsumeTokens(500)
	_, tokens := rl.Stats()
	assert.Equal(t, 0, tokens)
}

type recordingLogger struct {
	mu      sync.Mutex
	prompts []string
}

func (l *recordingLogger) LogLLMRequest(_ context.Context, _, _, prompt, _, _ string, _ int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prompts = append(l.prompts, prompt)
	return nil
}

func TestAnswerQuestions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)

		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleAssistant,
					Content: `{"q1":"Because of the mission","stray":"x"}`,
				},
			}},
			Usage: openai.Usage{TotalTokens: 42},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	logger := &recordingLogger{}
	c := NewClient(Options{APIKey: "test", BaseURL: srv.URL + "/v1"}, logger)

	answers, err := c.AnswerQuestions(context.Background(), AnswerRequest{
		Profile:   map[string]string{"phone": "555-1234", "email": "ada@example.com"},
		Questions: []Question{{ID: "q1", Label: "Why us?", Type: "textarea"}},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"q1": "Because of the mission"}, answers)

	require.Len(t, logger.prompts, 1)
	assert.NotContains(t, logger.prompts[0], "555-1234")
	assert.NotContains(t, logger.prompts[0], "ada@example.com")
}

func TestAnswerQuestionsNoQuestions(t *testing.T) {
	c := NewClient(Options{APIKey: "test", BaseURL: "http://127.0.0.1:1"}, nil)
	answers, err := c.AnswerQuestions(context.Background(), AnswerRequest{})
	require.NoError(t, err)
	assert.Empty(t, answers)
}
