// Package sanitizer маскирует персональные данные кандидата перед записью
// запросов к LLM в журнал.
package sanitizer

import (
	"regexp"
	"strings"
)

type DataSanitizer struct {
	rules []SanitizerRule
	exact []string
}

type SanitizerRule interface {
	Sanitize(text string) string
}

func New() *DataSanitizer {
	return &DataSanitizer{
		rules: []SanitizerRule{
			&TokenSanitizer{},
			&CardSanitizer{},
			&EmailSanitizer{},
			&URLSanitizer{},
			&PhoneSanitizer{},
			&AddressSanitizer{},
		},
	}
}

// WithValues добавляет точные значения (телефон, адрес, имя из профиля),
// которые маскируются независимо от формата.
func (s *DataSanitizer) WithValues(values ...string) *DataSanitizer {
	out := &DataSanitizer{rules: s.rules, exact: append([]string(nil), s.exact...)}
	for _, v := range values {
		if v = strings.TrimSpace(v); len(v) >= 3 {
			out.exact = append(out.exact, v)
		}
	}
	return out
}

func (s *DataSanitizer) Sanitize(text string) string {
	if text == "" {
		return text
	}

	result := text
	for _, v := range s.exact {
		result = strings.ReplaceAll(result, v, "[FILTERED]")
	}
	for _, rule := range s.rules {
		result = rule.Sanitize(result)
	}
	return result
}

type TokenSanitizer struct{}

var tokenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(token|api[_-]?key|secret|password)(\s*[:=]\s*["']?)([^"'\s]{6,})["']?`),
	regexp.MustCompile(`(?i)(bearer\s+)()([a-zA-Z0-9._-]{20,})`),
	regexp.MustCompile(`()()(sk-[a-zA-Z0-9_-]{20,})`),
}

func (s *TokenSanitizer) Sanitize(text string) string {
	for _, p := range tokenPatterns {
		text = p.ReplaceAllString(text, `${1}${2}[FILTERED]`)
	}
	return text
}

type CardSanitizer struct{}

var cardPattern = regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`)

func (s *CardSanitizer) Sanitize(text string) string {
	return cardPattern.ReplaceAllString(text, `[FILTERED]`)
}

type EmailSanitizer struct{}

var emailPattern = regexp.MustCompile(`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`)

func (s *EmailSanitizer) Sanitize(text string) string {
	return emailPattern.ReplaceAllString(text, `[FILTERED_EMAIL]`)
}

// URLSanitizer срезает query-параметры: в них бывают идентификаторы сессий.
type URLSanitizer struct{}

var urlQueryPattern = regexp.MustCompile(`(https?://[^\s"'?]+)\?[^\s"']*`)

func (s *URLSanitizer) Sanitize(text string) string {
	return urlQueryPattern.ReplaceAllString(text, `${1}?[FILTERED]`)
}

type PhoneSanitizer struct{}

var phonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\+\d[\d\s().-]{6,}\d`),
	regexp.MustCompile(`\(?\b\d{3}\)?[-.\s]\d{3}[-.\s]\d{4}\b`),
	regexp.MustCompile(`\b\d{3}-\d{4}\b`),
}

func (s *PhoneSanitizer) Sanitize(text string) string {
	for _, p := range phonePatterns {
		text = p.ReplaceAllString(text, `[FILTERED_PHONE]`)
	}
	return text
}

type AddressSanitizer struct{}

var addressPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b\d{1,6}\s+(?:[a-z]+\s){1,4}(?:street|st|avenue|ave|road|rd|boulevard|blvd|lane|ln|drive|dr|way|court|ct)\b\.?`),
	regexp.MustCompile(`(?i)(address|адрес)(\s*[:=]\s*["']?)([^"'\n]{10,})["']?`),
}

func (s *AddressSanitizer) Sanitize(text string) string {
	text = addressPatterns[0].ReplaceAllString(text, `[FILTERED_ADDRESS]`)
	return addressPatterns[1].ReplaceAllString(text, `${1}${2}[FILTERED_ADDRESS]`)
}
