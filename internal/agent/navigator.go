package agent

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"jobAgent/internal/browser"
	"jobAgent/internal/logger"
	"jobAgent/internal/profile"

	"go.uber.org/zap"
)

const (
	DefaultSearchURL = "https://www.linkedin.com/jobs/search/"
	defaultRole      = "Software Engineer"
	defaultLocation  = "United States"
	generalMarker    = "(General)"
)

// Keywords собирает поисковую строку из желаемых ролей.
func Keywords(p *profile.Profile) string {
	var roles []string
	for _, r := range p.PreferredRoles {
		r = strings.TrimSpace(strings.ReplaceAll(r, generalMarker, ""))
		if r != "" {
			roles = append(roles, r)
		}
	}
	if len(roles) == 0 {
		return defaultRole
	}
	return strings.Join(roles, " OR ")
}

// Location: явное значение, затем "город, страна", затем страна.
func Location(p *profile.Profile) string {
	city := strings.TrimSpace(p.City)
	country := strings.TrimSpace(p.Country)
	switch {
	case strings.TrimSpace(p.Location) != "":
		return strings.TrimSpace(p.Location)
	case city != "" && country != "":
		return city + ", " + country
	case country != "":
		return country
	default:
		return defaultLocation
	}
}

// SearchURL строит адрес выдачи с фильтром быстрого отклика.
func SearchURL(base string, p *profile.Profile) (string, error) {
	if base == "" {
		base = DefaultSearchURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("некорректный адрес поиска %q: %w", base, err)
	}
	q := url.Values{}
	q.Set("keywords", Keywords(p))
	q.Set("location", Location(p))
	q.Set("f_AL", "true")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Matches - текущая страница уже является нужной выдачей.
func Matches(current string, p *profile.Profile) bool {
	if !strings.Contains(current, "/jobs/search") {
		return false
	}
	if Keywords(p) != "" && !strings.Contains(current, "keywords=") {
		return false
	}
	return strings.Contains(current, "f_AL=true")
}

type Navigator struct {
	surface browser.Surface
	baseURL string
	log     *logger.Zap
}

func NewNavigator(s browser.Surface, baseURL string, log *logger.Zap) *Navigator {
	return &Navigator{surface: s, baseURL: baseURL, log: log}
}

// Ensure переводит страницу в выдачу, если она еще не там. Адрес
// пересчитывается из профиля при каждом вызове.
func (n *Navigator) Ensure(ctx context.Context, p *profile.Profile) (bool, error) {
	current, err := n.surface.URL(ctx)
	if err != nil {
		return false, fmt.Errorf("ошибка чтения адреса страницы: %w", err)
	}
	if Matches(current, p) {
		return false, nil
	}

	target, err := SearchURL(n.baseURL, p)
	if err != nil {
		return false, err
	}
	n.log.Info("Переход к выдаче", zap.String("from", current), zap.String("to", target))

	err = retryAction(ctx, "переход к выдаче", 3, 2*time.Second, func() error {
		return n.surface.Navigate(ctx, target)
	})
	if err != nil {
		return false, fmt.Errorf("ошибка перехода к выдаче: %w", err)
	}
	return true, nil
}
