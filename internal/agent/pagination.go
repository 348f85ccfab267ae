package agent

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"jobAgent/internal/browser"
	"jobAgent/internal/logger"

	"go.uber.org/zap"
)

var pageNumberRe = regexp.MustCompile(`\d+`)

// Paginator переходит на следующую страницу выдачи.
type Paginator struct {
	surface browser.Surface
	gov     *Governor
	timings Timings
	log     *logger.Zap
}

func NewPaginator(s browser.Surface, gov *Governor, t Timings, log *logger.Zap) *Paginator {
	return &Paginator{surface: s, gov: gov, timings: t, log: log}
}

// Next кликает по кнопке следующей страницы. false - страниц больше нет.
func (p *Paginator) Next(ctx context.Context) (bool, error) {
	active, _, err := firstMatch(ctx, p.surface, nil, activePagePattern)
	if err != nil {
		return false, fmt.Errorf("ошибка поиска текущей страницы: %w", err)
	}
	if active == nil {
		p.log.Info("Пагинация не найдена")
		return false, nil
	}

	txt, err := p.surface.Text(ctx, active)
	if err != nil {
		return false, fmt.Errorf("ошибка чтения номера страницы: %w", err)
	}
	current, err := strconv.Atoi(pageNumberRe.FindString(txt))
	if err != nil {
		p.log.Warn("Номер текущей страницы не распознан", zap.String("text", txt))
		return false, nil
	}

	next := current + 1
	btn, pattern, err := firstMatch(ctx, p.surface, nil,
		fmt.Sprintf(`button[aria-label="Page %d"]`, next),
		nextPagePattern)
	if err != nil {
		return false, fmt.Errorf("ошибка поиска следующей страницы: %w", err)
	}
	if btn == nil {
		p.log.Info("Последняя страница выдачи", zap.Int("page", current))
		return false, nil
	}

	p.log.Info("Переход на следующую страницу", zap.Int("page", next), zap.String("pattern", pattern))
	if err := p.surface.Click(ctx, btn); err != nil {
		return false, fmt.Errorf("ошибка перехода на страницу %d: %w", next, err)
	}
	if err := p.gov.Wait(ctx, p.timings.PageSettle); err != nil {
		return false, err
	}
	return true, nil
}
