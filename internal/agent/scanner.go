package agent

import (
	"context"

	"jobAgent/internal/browser"
	"jobAgent/internal/logger"

	"go.uber.org/zap"
)

type Scanner struct {
	surface browser.Surface
	gov     *Governor
	timings Timings
	log     *logger.Zap
}

func NewScanner(s browser.Surface, gov *Governor, t Timings, log *logger.Zap) *Scanner {
	return &Scanner{surface: s, gov: gov, timings: t, log: log}
}

// Scan опрашивает страницу, пока один из шаблонов не даст элементы.
// Возвращает элементы и сработавший шаблон либо ErrNoListings.
func (s *Scanner) Scan(ctx context.Context) ([]browser.Element, string, error) {
	for attempt := 1; attempt <= s.timings.ScanAttempts; attempt++ {
		for _, pattern := range listingPatterns {
			els, err := s.surface.Locate(ctx, nil, pattern)
			if err != nil {
				s.log.Debug("Ошибка поиска вакансий", zap.String("pattern", pattern), zap.Error(err))
				continue
			}
			if len(els) > 0 {
				s.log.Info("Найдены вакансии",
					zap.Int("count", len(els)),
					zap.String("pattern", pattern),
					zap.Int("attempt", attempt))
				return els, pattern, nil
			}
		}

		if err := s.gov.Wait(ctx, s.timings.Poll); err != nil {
			return nil, "", err
		}
	}

	s.log.Warn("Вакансии не найдены", zap.Int("attempts", s.timings.ScanAttempts))
	return nil, "", ErrNoListings
}
