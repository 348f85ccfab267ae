package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jobAgent/internal/browser"
	"jobAgent/internal/logger"
	"jobAgent/internal/profile"
	"jobAgent/internal/state"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const statsTitle = "Job Agent Stats"

// Config содержит настройки и внешних участников агента.
type Config struct {
	SearchURL string   // адрес выдачи без параметров
	Timings   Timings  // нулевое значение - DefaultTimings
	Inferrer  Inferrer // nil - без LLM, поля остаются человеку
	Notifier  Notifier
	Journal   Journal
}

// Agent - конвейер одного прохода: навигатор, сканер, оценщик, водитель
// анкеты, пагинация. Вакансии обрабатываются строго по одной.
type Agent struct {
	surface   browser.Surface
	profiles  *profile.Store
	gov       *Governor
	learning  *LearningStore
	questions *QuestionLog
	nav       *Navigator
	scanner   *Scanner
	evaluator *Evaluator
	resolver  *Resolver
	paginator *Paginator
	notifier  Notifier
	journal   Journal
	timings   Timings
	log       *logger.Zap
}

// New собирает агента. Если тайминги не заданы, берутся значения по умолчанию.
func New(s browser.Surface, kv state.KV, log *logger.Zap, cfg Config) *Agent {
	t := cfg.Timings
	if t.Poll == 0 {
		t = DefaultTimings()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = nopNotifier{}
	}
	if cfg.Journal == nil {
		cfg.Journal = nopJournal{}
	}

	gov := NewGovernor(kv, t.Poll)
	learning := NewLearningStore(kv)
	questions := NewQuestionLog(kv)

	return &Agent{
		surface:   s,
		profiles:  profile.NewStore(kv),
		gov:       gov,
		learning:  learning,
		questions: questions,
		nav:       NewNavigator(s, cfg.SearchURL, log),
		scanner:   NewScanner(s, gov, t, log),
		evaluator: NewEvaluator(s, gov, t, log),
		resolver:  NewResolver(s, learning, questions, cfg.Inferrer, log),
		paginator: NewPaginator(s, gov, t, log),
		notifier:  cfg.Notifier,
		journal:   cfg.Journal,
		timings:   t,
		log:       log,
	}
}

func (a *Agent) Governor() *Governor { return a.gov }
func (a *Agent) Learning() *LearningStore { return a.learning }
func (a *Agent) Questions() *QuestionLog { return a.questions }
func (a *Agent) Profiles() *profile.Store { return a.profiles }

// pass - компоненты одного прохода с логгером, помеченным run_id.
type pass struct {
	runID     string
	log       *logger.Zap
	profile   *profile.Profile
	scanner   *Scanner
	evaluator *Evaluator
	driver    func(log *logger.Zap) *Driver
	paginator *Paginator
}

func (a *Agent) newPass(runID string, p *profile.Profile) *pass {
	log := a.log.With(zap.String("run_id", runID))

	sc, ev, pg := *a.scanner, *a.evaluator, *a.paginator
	sc.log, ev.log, pg.log = log, log, log

	return &pass{
		runID:     runID,
		log:       log,
		profile:   p,
		scanner:   &sc,
		evaluator: &ev,
		paginator: &pg,
		driver: func(l *logger.Zap) *Driver {
			res := *a.resolver
			res.log = l
			return NewDriver(a.surface, a.gov, &res, a.learning, a.notifier, a.timings, l)
		},
	}
}

// Serve опрашивает флаг активности и запускает проход, когда агент включен.
// Возвращается при отмене контекста.
func (a *Agent) Serve(ctx context.Context) error {
	a.log.Info("Агент ожидает команды start")
	ticker := time.NewTicker(a.timings.Poll)
	defer ticker.Stop()

	for {
		active, err := a.gov.Active(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			a.log.Warn("Ошибка чтения флага активности", zap.Error(err))
		case active:
			a.runAndReport(ctx)
		}

		select {
		case <-ctx.Done():
			a.log.Info("Агент завершает работу")
			return nil
		case <-ticker.C:
		}
	}
}

func (a *Agent) runAndReport(ctx context.Context) {
	err := a.RunPass(ctx)
	switch {
	case err == nil:
	case ctx.Err() != nil:
	case errors.Is(err, ErrStopped):
		a.log.Info("Проход остановлен оператором")
	default:
		a.log.Error("Проход завершился ошибкой", zap.Error(err))
		a.notifier.Notify(ctx, "Job Agent ❌", err.Error())
		if err := a.gov.SetActive(context.WithoutCancel(ctx), false); err != nil {
			a.log.Warn("Не удалось снять флаг активности", zap.Error(err))
		}
	}
}

// RunPass выполняет один проход по выдаче: от навигации до последней
// страницы, лимита откликов или остановки.
func (a *Agent) RunPass(ctx context.Context) error {
	runID := uuid.NewString()

	p, err := a.profiles.Load(ctx)
	if errors.Is(err, profile.ErrNoProfile) {
		a.log.Warn("Профиль кандидата не задан, агент выключается")
		a.finish(ctx)
		return err
	}
	if err != nil {
		return fmt.Errorf("ошибка загрузки профиля: %w", err)
	}

	ps := a.newPass(runID, p)
	ps.log.Info("Начат проход по выдаче", zap.Int("max_jobs", p.MaxJobs()), zap.Bool("auto_apply", p.Settings.AutoApply))

	if err := a.gov.Check(ctx); err != nil {
		return err
	}
	redirected, err := a.nav.Ensure(ctx, p)
	if err != nil {
		return err
	}
	if redirected {
		if err := a.gov.Wait(ctx, a.timings.PageSettle); err != nil {
			return err
		}
	}

	page, rescans := 1, 0
	for {
		handled, err := a.processPage(ctx, ps)
		switch {
		case errors.Is(err, ErrRescan):
			// Лимит считает только повторные сканы подряд без новых вакансий.
			if handled > 0 {
				rescans = 0
			}
			rescans++
			if rescans <= a.timings.MaxRescans {
				ps.log.Info("Повторный скан страницы", zap.Int("page", page), zap.Int("rescan", rescans))
				if err := a.gov.Wait(ctx, a.timings.Poll); err != nil {
					return err
				}
				continue
			}
			ps.log.Warn("Страница перерисовывается слишком часто, переходим дальше", zap.Int("page", page))
		case errors.Is(err, ErrNoListings):
			ps.log.Info("Выдача пуста, проход завершен", zap.Int("page", page))
			a.finish(ctx)
			return nil
		case errors.Is(err, ErrCapReached):
			return nil
		case err != nil:
			return err
		}

		rescans = 0
		more, err := ps.paginator.Next(ctx)
		if err != nil {
			return err
		}
		if !more {
			ps.log.Info("Проход завершен", zap.Int("pages", page))
			a.finish(ctx)
			return nil
		}
		page++
	}
}

// finish снимает флаг активности по окончании прохода.
func (a *Agent) finish(ctx context.Context) {
	if err := a.gov.SetActive(context.WithoutCancel(ctx), false); err != nil {
		a.log.Warn("Не удалось снять флаг активности", zap.Error(err))
	}
}

// processPage сканирует страницу и обрабатывает вакансии в порядке документа.
// handled - сколько вакансий обработано впервые до выхода.
func (a *Agent) processPage(ctx context.Context, ps *pass) (handled int, err error) {
	els, _, err := ps.scanner.Scan(ctx)
	if err != nil {
		return 0, err
	}

	for _, el := range els {
		capped, n, err := a.gov.CapReached(ctx, ps.profile.MaxJobs())
		if err != nil {
			return handled, err
		}
		if capped {
			ps.log.Info("Достигнут лимит откликов", zap.Int("count", n), zap.Int("max_jobs", ps.profile.MaxJobs()))
			return handled, ErrCapReached
		}
		if err := a.gov.Check(ctx); err != nil {
			return handled, err
		}

		res, err := a.processListing(ctx, ps, el)
		if res.Outcome != "" && res.Reason != ReasonProcessed {
			if jerr := a.journal.Record(context.WithoutCancel(ctx), ps.runID, res); jerr != nil {
				ps.log.Warn("Ошибка записи в журнал откликов", zap.Error(jerr))
			}
		}
		if err != nil {
			return handled, err
		}
		if res.Reason != ReasonProcessed {
			handled++
		}

		if res.Outcome == OutcomeSubmitted {
			n, err := a.gov.Increment(ctx)
			if err != nil {
				return handled, err
			}
			ps.log.Info("Отклик засчитан", zap.String("job_id", res.Listing.ID), zap.Int("count", n))
			a.notifier.Notify(ctx, statsTitle, fmt.Sprintf("applied %d", n))
		}

		if res.Reason == ReasonProcessed || res.Reason == ReasonApplied {
			continue
		}
		if err := a.gov.Wait(ctx, a.timings.Cooldown); err != nil {
			return handled, err
		}
	}
	return handled, nil
}

func (a *Agent) processListing(ctx context.Context, ps *pass, el browser.Element) (Result, error) {
	v, err := ps.evaluator.Evaluate(ctx, el, ps.profile)
	if err != nil {
		return Result{}, err
	}
	if v.Skip {
		return Result{Listing: v.Listing, Outcome: OutcomeSkipped, Reason: v.Reason}, nil
	}

	s := &Session{ID: uuid.NewString(), Listing: v.Listing}
	log := ps.log.With(zap.String("session_id", s.ID), zap.String("job_id", v.Listing.ID))
	res := Result{Listing: v.Listing, SessionID: s.ID}

	log.Info("Открываем быстрый отклик", zap.String("title", v.Listing.Title), zap.String("company", v.Listing.Company))
	open, err := ps.evaluator.OpenDialog(ctx, v)
	if err != nil {
		res.Outcome = OutcomeAbandoned
		return res, err
	}
	if !open {
		log.Warn("Диалог отклика не открылся")
		res.Outcome, res.Reason = OutcomeSkipped, ReasonFailedToOpen
		return res, nil
	}

	res.Outcome, err = ps.driver(log).Run(ctx, s, ps.profile, ps.runID)
	res.Mappings = s.Mappings
	log.Info("Анкета завершена", zap.String("outcome", string(res.Outcome)), zap.Int("steps", s.Attempts))
	return res, err
}
