// Package llm отвечает на вопросы анкеты, которые не закрыли эвристики.
// Включает rate limiting и журналирование запросов с маскированием данных.
package llm

import "context"

// Logger сохраняет запросы к LLM в журнал.
type Logger interface {
	LogLLMRequest(ctx context.Context, runID, role, promptText, responseText, model string, tokensUsed int) error
}

// Question - поле формы, отправляемое на вывод.
type Question struct {
	ID      string   `json:"id"`
	Label   string   `json:"label"`
	Type    string   `json:"type"`
	Options []string `json:"options,omitempty"`
}

// AnswerRequest - один пакет вопросов одного шага анкеты.
type AnswerRequest struct {
	RunID          string
	Profile        map[string]string
	JobDescription string
	Questions      []Question
}

// MaxJobDescription - сколько символов описания вакансии попадает в запрос.
const MaxJobDescription = 3000
