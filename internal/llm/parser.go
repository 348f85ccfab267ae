package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

const answerSystemPrompt = `You are an intelligent form-filling assistant for job applications.
Map the CANDIDATE PROFILE to the FORM FIELDS and answer each field.
Rules:
- Use the profile first; infer sensibly when the profile implies an answer.
- For choice fields return the exact text of one of the listed options.
- For numeric questions (years, notice period) return a whole number.
- If a question cannot be answered safely, omit its id.
Return ONLY a JSON object mapping field ids to string values. No markdown.`

func buildAnswerPrompt(req AnswerRequest) (string, error) {
	profile, err := json.MarshalIndent(req.Profile, "", "  ")
	if err != nil {
		return "", fmt.Errorf("ошибка кодирования профиля: %w", err)
	}
	questions, err := json.MarshalIndent(req.Questions, "", "  ")
	if err != nil {
		return "", fmt.Errorf("ошибка кодирования вопросов: %w", err)
	}

	desc := strings.TrimSpace(req.JobDescription)
	if desc == "" {
		desc = "N/A"
	}
	desc = truncate(desc, MaxJobDescription)

	return fmt.Sprintf("CANDIDATE PROFILE:\n%s\n\nJOB DESCRIPTION:\n%s\n\nFORM FIELDS:\n%s\n",
		profile, desc, questions), nil
}

// truncate обрезает строку до limit рун.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

// ParseAnswers разбирает ответ модели. Допускаются markdown-ограждения и
// нестроковые значения: числа и bool приводятся к строке, массивы
// склеиваются через запятую.
func ParseAnswers(raw string) (map[string]string, error) {
	clean := cleanJSONBlock(raw)
	if clean == "" {
		return nil, errors.New("пустой ответ модели")
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(clean), &decoded); err != nil {
		return nil, fmt.Errorf("ошибка парсинга ответа модели: %w", err)
	}

	out := make(map[string]string, len(decoded))
	for id, v := range decoded {
		if s := stringify(v); s != "" {
			out[id] = s
		}
	}
	return out, nil
}

func cleanJSONBlock(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case bool:
		if t {
			return "Yes"
		}
		return "No"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []any:
		var parts []string
		for _, item := range t {
			if s := stringify(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(t)
	}
}
