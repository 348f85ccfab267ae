package browser

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// ErrNotLaunched возвращается, если страница еще не открыта.
var ErrNotLaunched = errors.New("браузер не запущен")

// ErrDetached - элемент больше не привязан к документу.
var ErrDetached = errors.New("элемент отсоединен от документа")

// Element - непрозрачный дескриптор элемента страницы. Становится
// недействительным после перерисовки страницы.
type Element any

// Surface - единственный способ, которым агент воздействует на страницу.
type Surface interface {
	URL(ctx context.Context) (string, error)
	Navigate(ctx context.Context, url string) error
	// Locate ищет элементы по CSS-шаблону внутри scope (nil - весь документ).
	Locate(ctx context.Context, scope Element, pattern string) ([]Element, error)
	Text(ctx context.Context, el Element) (string, error)
	Attr(ctx context.Context, el Element, name string) (string, error)
	Visible(ctx context.Context, el Element) (bool, error)
	Attached(ctx context.Context, el Element) (bool, error)
	Click(ctx context.Context, el Element) error
	// SetValue выставляет значение так же, как это сделал бы человек:
	// с событиями input, change и blur. Для select передаются value опций,
	// для checkbox и radio - "true" или "false".
	SetValue(ctx context.Context, el Element, values ...string) error
	Describe(ctx context.Context, el Element) (FieldInfo, error)
	// Observe подписывается на изменения полей и клики по кнопкам.
	Observe(ctx context.Context, scope Element) (Observer, error)
}

// FieldInfo - снимок поля формы.
type FieldInfo struct {
	Tag      string   `json:"tag"`
	Type     string   `json:"type"`
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Value    string   `json:"value"`
	Checked  bool     `json:"checked"`
	Multiple bool     `json:"multiple"`
	Hidden   bool     `json:"hidden"`
	Options  []Option `json:"options"`

	Caption        string `json:"caption"`        // текст label[for=id]
	AccessibleName string `json:"accessibleName"` // aria-label
	GroupText      string `json:"groupText"`      // ближайший label, иначе Legend
	Legend         string `json:"legend"`         // legend ближайшего fieldset
}

type Option struct {
	Text     string `json:"text"`
	Value    string `json:"value"`
	Selected bool   `json:"selected"`
}

type EventKind string

const (
	EventChange EventKind = "change"
	EventClick  EventKind = "click"
)

// Event - действие человека, пойманное наблюдателем.
type Event struct {
	Kind  EventKind `json:"kind"`
	Field FieldInfo `json:"field"`
	Value string    `json:"value"`
}

// Observer копит события до вызова Drain. Close снимает слушатели со страницы.
type Observer interface {
	Drain() []Event
	Close() error
}

// PlaywrightBrowser реализует Surface поверх Firefox через playwright-go.
type PlaywrightBrowser struct {
	mu      sync.RWMutex
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	cfg     Config

	bindingOnce sync.Once
	bindingErr  error
	observers   map[string]*pageObserver
}

type Config struct {
	Headless        bool
	UserDataDir     string
	BrowsersPath    string
	Display         string
	Timeout         time.Duration
	NavigateTimeout time.Duration
}
