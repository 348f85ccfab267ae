package llm

import (
	"context"
	"errors"
	"fmt"

	"jobAgent/internal/sanitizer"

	"github.com/sashabaranov/go-openai"
)

type Client struct {
	client      *openai.Client
	model       string
	maxTokens   int
	logger      Logger
	sanitizer   *sanitizer.DataSanitizer
	rateLimiter *RateLimiter
}

type Options struct {
	APIKey            string
	BaseURL           string
	Model             string
	MaxTokens         int
	RequestsPerMinute int
	TokensPerHour     int
}

func NewClient(opts Options, logger Logger) *Client {
	conf := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		conf.BaseURL = opts.BaseURL
	}
	if opts.Model == "" {
		opts.Model = openai.GPT4oMini
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1500
	}

	return &Client{
		client:      openai.NewClientWithConfig(conf),
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		logger:      logger,
		sanitizer:   sanitizer.New(),
		rateLimiter: NewRateLimiter(opts.RequestsPerMinute, opts.TokensPerHour),
	}
}

// AnswerQuestions возвращает ответы по id вопроса. Пустые ответы отбрасываются.
func (c *Client) AnswerQuestions(ctx context.Context, req AnswerRequest) (map[string]string, error) {
	if len(req.Questions) == 0 {
		return map[string]string{}, nil
	}

	prompt, err := buildAnswerPrompt(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.createChatCompletionWithRateLimit(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: answerSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature:    0.2,
		MaxTokens:      c.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса к OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("пустой ответ от OpenAI")
	}

	content := resp.Choices[0].Message.Content
	c.logRequest(ctx, req, prompt, content, resp.Usage.TotalTokens)

	answers, err := ParseAnswers(content)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(req.Questions))
	for _, q := range req.Questions {
		known[q.ID] = true
	}
	for id := range answers {
		if !known[id] {
			delete(answers, id)
		}
	}
	return answers, nil
}

// logRequest пишет запрос в журнал. Ошибка журнала не влияет на ответ.
func (c *Client) logRequest(ctx context.Context, req AnswerRequest, prompt, response string, tokens int) {
	if c.logger == nil {
		return
	}

	var values []string
	for _, v := range req.Profile {
		values = append(values, v)
	}
	s := c.sanitizer.WithValues(values...)
	_ = c.logger.LogLLMRequest(ctx, req.RunID, "answer_questions", s.Sanitize(prompt), s.Sanitize(response), c.model, tokens)
}

// createChatCompletionWithRateLimit выполняет запрос с проверкой rate limit.
func (c *Client) createChatCompletionWithRateLimit(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if err := c.rateLimiter.AllowRequest(); err != nil {
		return openai.ChatCompletionResponse{}, err
	}

	// Грубая оценка: ~4 символа на токен плюс бюджет ответа.
	estimated := req.MaxTokens
	for _, msg := range req.Messages {
		estimated += len(msg.Content) / 4
	}
	if err := c.rateLimiter.AllowTokens(estimated); err != nil {
		return openai.ChatCompletionResponse{}, err
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return resp, err
	}

	if resp.Usage.TotalTokens > estimated {
		c.rateLimiter.ConsumeTokens(resp.Usage.TotalTokens - estimated)
	}
	return resp, nil
}
