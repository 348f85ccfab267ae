package sanitizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	s := New()

	tests := []struct {
		name  string
		in    string
		check func(t *testing.T, out string)
	}{
		{
			name: "email",
			in:   `{"email":"ada@example.com"}`,
			check: func(t *testing.T, out string) {
				assert.NotContains(t, out, "ada@example.com")
				assert.Contains(t, out, "[FILTERED_EMAIL]")
			},
		},
		{
			name: "phone",
			in:   "phone 555-1234 or +1 (415) 555-0100",
			check: func(t *testing.T, out string) {
				assert.NotContains(t, out, "555-1234")
				assert.NotContains(t, out, "555-0100")
			},
		},
		{
			name: "api key",
			in:   "api_key=sk-abcdefghijklmnopqrstuvwxyz123456",
			check: func(t *testing.T, out string) {
				assert.NotContains(t, out, "abcdefghijklmnop")
			},
		},
		{
			name: "street",
			in:   "I live at 221 Baker Street, London",
			check: func(t *testing.T, out string) {
				assert.NotContains(t, out, "Baker")
			},
		},
		{
			name: "url query",
			in:   "https://www.linkedin.com/jobs/search/?keywords=go&currentJobId=42",
			check: func(t *testing.T, out string) {
				assert.Equal(t, "https://www.linkedin.com/jobs/search/?[FILTERED]", out)
			},
		},
		{
			name: "plain text untouched",
			in:   "Years of experience: 5",
			check: func(t *testing.T, out string) {
				assert.Equal(t, "Years of experience: 5", out)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, s.Sanitize(tt.in))
		})
	}
}

func TestWithValuesMasksExactProfileData(t *testing.T) {
	s := New().WithValues("Lovelace", "", "x")
	assert.Equal(t, "Ada [FILTERED]", s.Sanitize("Ada Lovelace"))
	assert.Equal(t, "x marks", s.Sanitize("x marks"))
}
