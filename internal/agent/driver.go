package agent

import (
	"context"
	"sort"

	"jobAgent/internal/browser"
	"jobAgent/internal/logger"
	"jobAgent/internal/profile"

	"go.uber.org/zap"
)

// Phase - состояние диалога отклика.
type Phase string

const (
	PhaseAwaitingDialog Phase = "awaiting_dialog"
	PhaseFilling        Phase = "filling"
	PhaseAwaitingNext   Phase = "awaiting_next"
	PhaseAwaitingReview Phase = "awaiting_review"
	PhaseAwaitingSubmit Phase = "awaiting_submit"
	PhaseIntervention   Phase = "intervention"
)

const (
	stuckTitle   = "Bot Stuck ⚠️"
	stuckMessage = "Please help - validation error or missing button!"
)

// Session - одна попытка отклика.
type Session struct {
	ID       string
	Listing  Listing
	Phase    Phase
	Attempts int
	// Stuck - шаги подряд без продвижения; сбрасывается чистым переходом.
	Stuck    int
	Mappings []FieldMapping
}

// Driver ведет диалог отклика от открытия до отправки.
type Driver struct {
	surface  browser.Surface
	gov      *Governor
	resolver *Resolver
	learning *LearningStore
	notifier Notifier
	timings  Timings
	log      *logger.Zap
}

func NewDriver(s browser.Surface, gov *Governor, resolver *Resolver, learning *LearningStore, notifier Notifier, t Timings, log *logger.Zap) *Driver {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Driver{
		surface:  s,
		gov:      gov,
		resolver: resolver,
		learning: learning,
		notifier: notifier,
		timings:  t,
		log:      log,
	}
}

func (d *Driver) enter(s *Session, p Phase) {
	if s.Phase != p {
		d.log.Debug("Смена состояния", zap.String("from", string(s.Phase)), zap.String("to", string(p)))
	}
	s.Phase = p
}

// Run проходит анкету. Ошибка возвращается только при остановке агента или
// отмене контекста, все остальное выражается исходом.
func (d *Driver) Run(ctx context.Context, s *Session, p *profile.Profile, runID string) (Outcome, error) {
	d.enter(s, PhaseAwaitingDialog)
	dialog, err := d.awaitDialog(ctx)
	if err != nil {
		return OutcomeAbandoned, err
	}
	if dialog == nil {
		d.log.Warn("Диалог отклика так и не появился")
		return OutcomeAbandoned, nil
	}

	for s.Attempts = 1; s.Attempts <= d.timings.StepAttempts; s.Attempts++ {
		if s.Attempts > 1 {
			if dialog, err = d.awaitDialog(ctx); err != nil {
				return OutcomeAbandoned, err
			}
			if dialog == nil {
				d.log.Warn("Диалог отклика закрылся посреди анкеты")
				return OutcomeAbandoned, nil
			}
		}

		d.enter(s, PhaseFilling)
		mappings, err := d.resolver.FillStep(ctx, dialog, p, runID)
		if err != nil {
			return OutcomeAbandoned, err
		}
		s.Mappings = append(s.Mappings, mappings...)
		for _, m := range mappings {
			d.log.Debug("Поле заполнено",
				zap.String("label", m.Label),
				zap.String("source", string(m.Source)))
		}
		if err := d.gov.Wait(ctx, d.timings.StepSettle); err != nil {
			return OutcomeAbandoned, err
		}

		if btn, _ := findButton(ctx, d.surface, dialog, submitButton); btn != nil {
			d.enter(s, PhaseAwaitingSubmit)
			return d.submit(ctx, btn, p.Settings.AutoApply)
		}

		advanced := false
		for _, b := range []stepButton{reviewButton, nextButton} {
			btn, _ := findButton(ctx, d.surface, dialog, b)
			if btn == nil {
				continue
			}
			if b == reviewButton {
				d.enter(s, PhaseAwaitingReview)
			} else {
				d.enter(s, PhaseAwaitingNext)
			}
			if err := d.surface.Click(ctx, btn); err != nil {
				d.log.Warn("Ошибка клика по кнопке шага", zap.String("button", b.name), zap.Error(err))
				break
			}
			advanced = true
			break
		}

		if advanced {
			if err := d.gov.Wait(ctx, d.timings.StepSettle); err != nil {
				return OutcomeAbandoned, err
			}
			if !d.validationError(ctx) {
				s.Stuck = 0
				continue
			}
			d.log.Info("Ошибка валидации после перехода", zap.Int("attempt", s.Attempts))
		} else {
			d.log.Info("Кнопки шага не найдены",
				zap.Int("attempt", s.Attempts),
				zap.Bool("validation_error", d.validationError(ctx)))
		}

		s.Stuck++
		if s.Stuck >= d.timings.StuckLimit {
			d.enter(s, PhaseIntervention)
			return d.intervene(ctx, s)
		}
	}

	d.log.Warn("Исчерпан лимит шагов анкеты", zap.Int("attempts", d.timings.StepAttempts))
	return OutcomeTimedOut, nil
}

// awaitDialog опрашивает страницу до DialogAttempts раз.
func (d *Driver) awaitDialog(ctx context.Context) (browser.Element, error) {
	for i := 0; i < d.timings.DialogAttempts; i++ {
		if err := d.gov.Wait(ctx, d.timings.Poll); err != nil {
			return nil, err
		}
		dialog, _, err := firstMatch(ctx, d.surface, nil, dialogPatterns...)
		if err == nil && dialog != nil {
			return dialog, nil
		}
	}
	return nil, nil
}

func (d *Driver) validationError(ctx context.Context) bool {
	els, err := d.surface.Locate(ctx, nil, validationPattern)
	if err != nil {
		return false
	}
	for _, el := range els {
		if ok, err := d.surface.Visible(ctx, el); err == nil && ok {
			return true
		}
	}
	return false
}

// submit отправляет отклик сам или ждет, пока человек закроет диалог.
func (d *Driver) submit(ctx context.Context, btn browser.Element, auto bool) (Outcome, error) {
	if auto {
		if err := d.surface.Click(ctx, btn); err != nil {
			d.log.Warn("Ошибка клика по кнопке отправки", zap.Error(err))
			return OutcomeAbandoned, nil
		}
		if err := d.gov.Wait(ctx, d.timings.SubmitSettle); err != nil {
			return OutcomeAbandoned, err
		}
		if dismiss, _, _ := firstMatch(ctx, d.surface, nil, dismissPattern); dismiss != nil {
			if err := d.surface.Click(ctx, dismiss); err != nil {
				d.log.Debug("Окно подтверждения не закрыто", zap.Error(err))
			}
		}
		d.log.Info("Отклик отправлен")
		return OutcomeSubmitted, nil
	}

	d.log.Info("Автоотправка выключена, ждем ручной отправки")
	closed, err := d.waitClosed(ctx, nil, nil)
	if err != nil {
		return OutcomeAbandoned, err
	}
	if !closed {
		d.log.Warn("Не дождались ручной отправки")
		return OutcomeAbandoned, nil
	}
	return OutcomeSubmitted, nil
}

// waitClosed ждет закрытия диалога до HumanWaitPolls опросов. После каждого
// опроса вызывается tick, если он задан.
func (d *Driver) waitClosed(ctx context.Context, obs browser.Observer, tick func([]browser.Event)) (bool, error) {
	for i := 0; i < d.timings.HumanWaitPolls; i++ {
		if err := d.gov.Wait(ctx, d.timings.Poll); err != nil {
			return false, err
		}
		if tick != nil && obs != nil {
			tick(obs.Drain())
		}
		open, err := dialogOpen(ctx, d.surface)
		if err != nil {
			d.log.Debug("Ошибка проверки диалога", zap.Error(err))
			continue
		}
		if !open {
			return true, nil
		}
	}
	return false, nil
}

// intervene зовет человека. Пока диалог открыт, его правки полей собираются
// наблюдателем и сохраняются как выученные ответы при каждом клике по кнопке
// и при выходе, чем бы ожидание ни закончилось.
func (d *Driver) intervene(ctx context.Context, s *Session) (Outcome, error) {
	d.log.Warn("Анкета застряла, нужна помощь человека")

	captured := map[string]string{}
	obs, err := d.surface.Observe(ctx, nil)
	if err != nil {
		d.log.Warn("Наблюдатель не подключен, ответы не будут выучены", zap.Error(err))
		obs = nil
	}
	defer func() {
		if obs == nil {
			return
		}
		capture(obs.Drain(), captured)
		if err := obs.Close(); err != nil {
			d.log.Debug("Ошибка отключения наблюдателя", zap.Error(err))
		}
		d.persist(context.WithoutCancel(ctx), captured)
		s.Mappings = append(s.Mappings, humanMappings(captured)...)
	}()

	d.notifier.Notify(ctx, stuckTitle, stuckMessage)

	closed, err := d.waitClosed(ctx, obs, func(events []browser.Event) {
		if capture(events, captured) {
			d.persist(ctx, captured)
		}
	})
	switch {
	case err != nil:
		return OutcomeAbandoned, err
	case closed:
		d.log.Info("Человек закрыл диалог")
		return OutcomeSubmitted, nil
	default:
		d.log.Warn("Не дождались помощи человека")
		return OutcomeAbandoned, nil
	}
}

func (d *Driver) persist(ctx context.Context, captured map[string]string) {
	if len(captured) == 0 {
		return
	}
	if err := d.learning.SaveAll(ctx, captured); err != nil {
		d.log.Warn("Ошибка сохранения выученных ответов", zap.Error(err))
		return
	}
	d.log.Info("Ответы человека сохранены", zap.Int("count", len(captured)))
}

func humanMappings(captured map[string]string) []FieldMapping {
	labels := make([]string, 0, len(captured))
	for l := range captured {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	out := make([]FieldMapping, 0, len(labels))
	for _, l := range labels {
		out = append(out, FieldMapping{Label: l, Value: captured[l], Source: SourceHuman})
	}
	return out
}

// capture переносит изменения полей в captured и сообщает, был ли клик
// по кнопке.
func capture(events []browser.Event, captured map[string]string) bool {
	clicked := false
	for _, ev := range events {
		switch ev.Kind {
		case browser.EventClick:
			clicked = true
		case browser.EventChange:
			label := fieldLabel(ev.Field)
			if ev.Field.Type == "radio" && ev.Field.Legend != "" {
				label = ev.Field.Legend
			}
			label = NormalizeLabel(label)
			if label == "" || ev.Value == "" || ev.Value == "false" {
				continue
			}
			captured[label] = ev.Value
		}
	}
	return clicked
}
