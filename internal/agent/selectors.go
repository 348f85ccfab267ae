package agent

import (
	"context"
	"strings"

	"jobAgent/internal/browser"
)

// Шаблоны перечислены от самого точного к самому общему.
var (
	listingPatterns = []string{
		".jobs-search-results-list__list-item",
		".scaffold-layout__list-item",
		".job-card-container",
		".jobs-search__job-card",
		"[data-job-id]",
		"li.jobs-search-results__list-item",
	}

	appliedMarkerPattern = ".job-card-container__footer-job-state"
	jobLinkPattern       = `a[href*="/jobs/view/"]`

	listingClickPatterns = []string{".job-card-list__title", "a.job-card-container__link"}
	titlePatterns        = []string{".job-card-list__title", ".artdeco-entity-lockup__title", "strong"}
	companyPatterns      = []string{
		".job-card-container__primary-description",
		".artdeco-entity-lockup__subtitle",
		".job-card-container__company-name",
	}

	applyPatterns = []string{
		".jobs-apply-button",
		"[data-live-test-job-apply-button]",
		`button[aria-label*="Easy Apply"]`,
		".jobs-apply-button--top-card button",
	}

	dialogPatterns = []string{
		".jobs-easy-apply-content",
		".jobs-easy-apply-modal",
		`div[role="dialog"].artdeco-modal`,
		`div[role="dialog"]`,
	}
	openDialogPatterns = []string{".jobs-easy-apply-content", `div[role="dialog"]`}

	descriptionPattern = ".jobs-description__content"
	validationPattern  = ".artdeco-inline-feedback--error"
	dismissPattern     = `button[aria-label="Dismiss"]`

	containerPattern = "div[data-test-form-element]"
	legacyPattern    = "input, select, textarea, fieldset"

	activePagePattern = `button[aria-current="page"]`
	nextPagePattern   = `button[aria-label="Next"]`
)

// Кнопки шага анкеты: сначала точный aria-label, затем подстрока текста.
type stepButton struct {
	name    string
	pattern string
	text    string
}

var (
	submitButton = stepButton{name: "submit", pattern: `button[aria-label="Submit application"]`, text: "Submit application"}
	reviewButton = stepButton{name: "review", pattern: `button[aria-label="Review your application"]`, text: "Review"}
	nextButton   = stepButton{name: "next", pattern: `button[aria-label="Continue to next step"]`, text: "Next"}
)

// firstMatch возвращает первый элемент первого сработавшего шаблона.
func firstMatch(ctx context.Context, s browser.Surface, scope browser.Element, patterns ...string) (browser.Element, string, error) {
	for _, p := range patterns {
		els, err := s.Locate(ctx, scope, p)
		if err != nil {
			return nil, "", err
		}
		if len(els) > 0 {
			return els[0], p, nil
		}
	}
	return nil, "", nil
}

// firstText - текст первого найденного элемента, только первая строка.
func firstText(ctx context.Context, s browser.Surface, scope browser.Element, patterns ...string) string {
	for _, p := range patterns {
		els, err := s.Locate(ctx, scope, p)
		if err != nil || len(els) == 0 {
			continue
		}
		txt, err := s.Text(ctx, els[0])
		if err != nil {
			continue
		}
		if line := firstLine(txt); line != "" {
			return line
		}
	}
	return ""
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// findButton ищет кнопку шага внутри диалога.
func findButton(ctx context.Context, s browser.Surface, dialog browser.Element, b stepButton) (browser.Element, error) {
	els, err := s.Locate(ctx, dialog, b.pattern)
	if err != nil {
		return nil, err
	}
	if len(els) > 0 {
		return els[0], nil
	}

	buttons, err := s.Locate(ctx, dialog, "button")
	if err != nil {
		return nil, err
	}
	for _, btn := range buttons {
		txt, err := s.Text(ctx, btn)
		if err != nil {
			continue
		}
		if strings.Contains(txt, b.text) {
			return btn, nil
		}
	}
	return nil, nil
}

func dialogOpen(ctx context.Context, s browser.Surface) (bool, error) {
	el, _, err := firstMatch(ctx, s, nil, openDialogPatterns...)
	return el != nil, err
}
