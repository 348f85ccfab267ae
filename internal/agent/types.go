// Package agent реализует агента быстрых откликов на вакансии.
// Агент сканирует выдачу, отбирает вакансии, проходит многошаговую анкету,
// заполняя поля по цепочке (выученные ответы, эвристики, значения по
// умолчанию, LLM, человек), и переходит по страницам выдачи.
package agent

import (
	"context"
	"time"

	"jobAgent/internal/browser"
	"jobAgent/internal/config"
	"jobAgent/internal/llm"
)

// Outcome - итог обработки вакансии.
type Outcome string

const (
	OutcomeSubmitted Outcome = "submitted"
	OutcomeAbandoned Outcome = "abandoned"
	OutcomeTimedOut  Outcome = "timed_out"
	OutcomeSkipped   Outcome = "skipped"
)

// Source - откуда взято значение поля.
type Source string

const (
	SourceLearned    Source = "learned"
	SourceHeuristic  Source = "heuristic"
	SourceDefault    Source = "default"
	SourceAI         Source = "ai"
	SourceHuman      Source = "human"
	SourceUnresolved Source = "unresolved"
)

// Причины пропуска вакансии.
const (
	ReasonProcessed          = "already processed"
	ReasonApplied            = "already applied"
	ReasonClickFailed        = "listing click failed"
	ReasonBlacklistedCompany = "blacklisted company"
	ReasonBlacklistedTitle   = "blacklisted title"
	ReasonNoApplyButton      = "no apply button"
	ReasonExternalApply      = "external apply"
	ReasonFailedToOpen       = "failed to open"
)

// Listing - вакансия из выдачи. Element действителен до перерисовки списка.
type Listing struct {
	Element browser.Element
	ID      string
	Title   string
	Company string
	Applied bool
}

// FieldMapping - решение по одному полю на одном шаге анкеты.
type FieldMapping struct {
	Label  string
	Value  string
	Source Source
}

// Result - итог обработки одной вакансии.
type Result struct {
	Listing   Listing
	Outcome   Outcome
	Reason    string
	SessionID string
	// Mappings - решения по полям всех шагов анкеты, включая ответы человека.
	Mappings []FieldMapping
}

// Timings - все ожидания агента. Каждое ожидание разбито на опросы по Poll,
// перед каждым опросом перечитывается флаг активности.
type Timings struct {
	Poll            time.Duration
	ScanAttempts    int
	ListingSettle   time.Duration
	DetailSettle    time.Duration
	ApplyButtonWait time.Duration
	ApplyButtonPoll time.Duration
	OpenAttempts    int
	DialogSettle    time.Duration
	DialogAttempts  int
	StepAttempts    int
	StepSettle      time.Duration
	StuckLimit      int
	HumanWaitPolls  int
	SubmitSettle    time.Duration
	Cooldown        time.Duration
	PageSettle      time.Duration
	MaxRescans      int
}

func DefaultTimings() Timings {
	return Timings{
		Poll:            time.Second,
		ScanAttempts:    15,
		ListingSettle:   2 * time.Second,
		DetailSettle:    2 * time.Second,
		ApplyButtonWait: 5 * time.Second,
		ApplyButtonPoll: 500 * time.Millisecond,
		OpenAttempts:    3,
		DialogSettle:    1500 * time.Millisecond,
		DialogAttempts:  20,
		StepAttempts:    20,
		StepSettle:      time.Second,
		StuckLimit:      5,
		HumanWaitPolls:  600,
		SubmitSettle:    2 * time.Second,
		Cooldown:        2 * time.Second,
		PageSettle:      3 * time.Second,
		MaxRescans:      3,
	}
}

// TimingsFromConfig накладывает настройки окружения на значения по умолчанию.
func TimingsFromConfig(c config.Agent) Timings {
	t := DefaultTimings()
	if c.PollInterval > 0 {
		t.Poll = c.PollInterval
	}
	if c.HumanWaitPolls > 0 {
		t.HumanWaitPolls = c.HumanWaitPolls
	}
	if c.MaxStepAttempts > 0 {
		t.StepAttempts = c.MaxStepAttempts
	}
	if c.StuckLimit > 0 {
		t.StuckLimit = c.StuckLimit
	}
	if c.Cooldown > 0 {
		t.Cooldown = c.Cooldown
	}
	return t
}

// Notifier - канал уведомлений оператора.
type Notifier interface {
	Notify(ctx context.Context, title, message string)
}

// Inferrer отвечает на вопросы анкеты по профилю кандидата.
type Inferrer interface {
	AnswerQuestions(ctx context.Context, req llm.AnswerRequest) (map[string]string, error)
}

// Journal сохраняет итог по каждой вакансии.
type Journal interface {
	Record(ctx context.Context, runID string, r Result) error
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, string) {}

type nopJournal struct{}

func (nopJournal) Record(context.Context, string, Result) error { return nil }
