package agent

import (
	"context"
	"regexp"
	"strings"
	"time"

	"jobAgent/internal/browser"
	"jobAgent/internal/logger"
	"jobAgent/internal/profile"

	"go.uber.org/zap"
)

var jobViewRe = regexp.MustCompile(`/jobs/view/(\d+)`)

// Verdict - решение по вакансии. Если Skip == false, вакансия ведет на
// быстрый отклик и applyPattern указывает на кнопку отклика.
type Verdict struct {
	Listing      Listing
	Skip         bool
	Reason       string
	applyPattern string
}

func skip(l Listing, reason string) Verdict {
	return Verdict{Listing: l, Skip: true, Reason: reason}
}

// Evaluator отбирает вакансии и открывает диалог отклика. Множество
// обработанных идентификаторов живет, пока жив агент, и только растет.
type Evaluator struct {
	surface   browser.Surface
	gov       *Governor
	timings   Timings
	log       *logger.Zap
	processed map[string]struct{}
}

func NewEvaluator(s browser.Surface, gov *Governor, t Timings, log *logger.Zap) *Evaluator {
	return &Evaluator{
		surface:   s,
		gov:       gov,
		timings:   t,
		log:       log,
		processed: make(map[string]struct{}),
	}
}

func (e *Evaluator) Processed(id string) bool {
	_, ok := e.processed[id]
	return ok
}

func (e *Evaluator) markProcessed(id string) {
	if id != "" {
		e.processed[id] = struct{}{}
	}
}

// ListingID берет идентификатор из атрибутов карточки или из ссылки
// /jobs/view/<id>. Пустая строка - идентификатор не найден.
func (e *Evaluator) ListingID(ctx context.Context, el browser.Element) string {
	for _, name := range []string{"data-job-id", "data-occludable-job-id"} {
		if v, err := e.surface.Attr(ctx, el, name); err == nil && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}

	links, err := e.surface.Locate(ctx, el, jobLinkPattern)
	if err != nil || len(links) == 0 {
		return ""
	}
	href, err := e.surface.Attr(ctx, links[0], "href")
	if err != nil {
		return ""
	}
	if m := jobViewRe.FindStringSubmatch(href); m != nil {
		return m[1]
	}
	return ""
}

// Evaluate проходит карточку вакансии: дедупликация, проверка привязки к
// документу, отметка "Applied", клик, черные списки, поиск кнопки отклика.
// ErrRescan означает, что выдача перерисована и ее нужно пересканировать.
func (e *Evaluator) Evaluate(ctx context.Context, el browser.Element, p *profile.Profile) (Verdict, error) {
	l := Listing{Element: el, ID: e.ListingID(ctx, el)}
	log := e.log.With(zap.String("job_id", l.ID))

	if l.ID != "" && e.Processed(l.ID) {
		log.Debug("Вакансия уже обработана")
		return skip(l, ReasonProcessed), nil
	}

	attached, err := e.surface.Attached(ctx, el)
	if err != nil || !attached {
		log.Info("Карточка отсоединена от документа, нужен повторный скан")
		return Verdict{}, ErrRescan
	}

	if markers, err := e.surface.Locate(ctx, el, appliedMarkerPattern); err == nil && len(markers) > 0 {
		if txt, _ := e.surface.Text(ctx, markers[0]); strings.Contains(txt, "Applied") {
			l.Applied = true
			log.Info("Отклик уже отправлен ранее")
			e.markProcessed(l.ID)
			return skip(l, ReasonApplied), nil
		}
	}

	target, _, err := firstMatch(ctx, e.surface, el, listingClickPatterns...)
	if err != nil || target == nil {
		target = el
	}
	if err := e.surface.Click(ctx, target); err != nil {
		if ok, _ := e.surface.Attached(ctx, el); !ok {
			log.Info("Карточка отсоединилась при клике, нужен повторный скан")
			return Verdict{}, ErrRescan
		}
		e.markProcessed(l.ID)
		log.Warn("Ошибка клика по карточке", zap.Error(err))
		return skip(l, ReasonClickFailed), nil
	}
	// Отмечаем только после клика: карточка, перерисованная до клика,
	// после повторного скана оценивается заново.
	e.markProcessed(l.ID)
	if err := e.gov.Wait(ctx, e.timings.ListingSettle); err != nil {
		return Verdict{}, err
	}

	l.Title = firstText(ctx, e.surface, el, titlePatterns...)
	l.Company = firstText(ctx, e.surface, el, companyPatterns...)
	log.Info("Карточка вакансии", zap.String("title", l.Title), zap.String("company", l.Company))

	if term := blacklisted(l.Company, p.CompanyBlacklist()); term != "" {
		log.Info("Компания в черном списке", zap.String("term", term))
		return skip(l, ReasonBlacklistedCompany), nil
	}
	if term := blacklisted(l.Title, p.TitleBlacklist()); term != "" {
		log.Info("Должность в черном списке", zap.String("term", term))
		return skip(l, ReasonBlacklistedTitle), nil
	}

	if err := e.gov.Wait(ctx, e.timings.DetailSettle); err != nil {
		return Verdict{}, err
	}

	btn, pattern, err := e.waitApplyButton(ctx)
	if err != nil {
		return Verdict{}, err
	}
	if btn == nil {
		log.Info("Кнопка отклика не найдена")
		return skip(l, ReasonNoApplyButton), nil
	}

	txt, _ := e.surface.Text(ctx, btn)
	aria, _ := e.surface.Attr(ctx, btn, "aria-label")
	if !strings.Contains(txt, "Easy Apply") && !strings.Contains(aria, "Easy Apply") {
		log.Info("Отклик на внешнем сайте", zap.String("button", txt))
		return skip(l, ReasonExternalApply), nil
	}

	return Verdict{Listing: l, applyPattern: pattern}, nil
}

// blacklisted возвращает сработавший термин. Сравнение без учета регистра.
func blacklisted(value string, terms []string) string {
	v := strings.ToLower(value)
	for _, t := range terms {
		if strings.Contains(v, t) {
			return t
		}
	}
	return ""
}

// waitApplyButton ждет видимую кнопку отклика не дольше ApplyButtonWait.
func (e *Evaluator) waitApplyButton(ctx context.Context) (browser.Element, string, error) {
	deadline := time.Now().Add(e.timings.ApplyButtonWait)
	for {
		for _, pattern := range applyPatterns {
			els, err := e.surface.Locate(ctx, nil, pattern)
			if err != nil || len(els) == 0 {
				continue
			}
			if ok, err := e.surface.Visible(ctx, els[0]); err == nil && ok {
				return els[0], pattern, nil
			}
		}
		if !time.Now().Before(deadline) {
			return nil, "", nil
		}
		if err := e.gov.Wait(ctx, e.timings.ApplyButtonPoll); err != nil {
			return nil, "", err
		}
	}
}

// OpenDialog кликает по кнопке отклика до OpenAttempts раз, заново находя
// кнопку перед каждой попыткой.
func (e *Evaluator) OpenDialog(ctx context.Context, v Verdict) (bool, error) {
	for attempt := 1; attempt <= e.timings.OpenAttempts; attempt++ {
		btn, _, err := firstMatch(ctx, e.surface, nil, v.applyPattern)
		if err != nil || btn == nil {
			e.log.Warn("Кнопка отклика пропала", zap.Int("attempt", attempt), zap.Error(err))
			return false, nil
		}

		if err := e.surface.Click(ctx, btn); err != nil {
			e.log.Warn("Ошибка клика по кнопке отклика", zap.Int("attempt", attempt), zap.Error(err))
		}
		if err := e.gov.Wait(ctx, e.timings.DialogSettle); err != nil {
			return false, err
		}

		open, err := dialogOpen(ctx, e.surface)
		if err != nil {
			return false, err
		}
		if open {
			return true, nil
		}
		e.log.Debug("Диалог не открылся, повтор", zap.Int("attempt", attempt))
	}
	return false, nil
}
