package browser

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

func New(cfg Config) *PlaywrightBrowser {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.NavigateTimeout == 0 {
		cfg.NavigateTimeout = 60 * time.Second
	}

	return &PlaywrightBrowser{
		cfg:       cfg,
		observers: make(map[string]*pageObserver),
	}
}

func (b *PlaywrightBrowser) getPage() playwright.Page {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.page
}

func (b *PlaywrightBrowser) setPage(page playwright.Page) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.page = page
}

func (b *PlaywrightBrowser) launchArgs() []string {
	return []string{"--no-sandbox"}
}

func (b *PlaywrightBrowser) launchEnv() map[string]string {
	if b.cfg.Display != "" {
		return map[string]string{"DISPLAY": b.cfg.Display}
	}
	return nil
}

// launchPersistent сохраняет сессию сайта между запусками в UserDataDir.
func (b *PlaywrightBrowser) launchPersistent(pw *playwright.Playwright) error {
	opts := playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(b.cfg.Headless),
		Args:     b.launchArgs(),
	}
	if env := b.launchEnv(); env != nil {
		opts.Env = env
	}

	bc, err := pw.Firefox.LaunchPersistentContext(b.cfg.UserDataDir, opts)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.context = bc
	b.mu.Unlock()

	var page playwright.Page
	if pages := bc.Pages(); len(pages) > 0 {
		page = pages[0]
	} else if page, err = bc.NewPage(); err != nil {
		return err
	}

	page.SetDefaultTimeout(float64(b.cfg.Timeout.Milliseconds()))
	b.setPage(page)
	return nil
}

func (b *PlaywrightBrowser) launchStandard(pw *playwright.Playwright) error {
	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(b.cfg.Headless),
		Args:     b.launchArgs(),
	}
	if env := b.launchEnv(); env != nil {
		opts.Env = env
	}

	br, err := pw.Firefox.Launch(opts)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.browser = br
	b.mu.Unlock()

	page, err := br.NewPage()
	if err != nil {
		return err
	}

	page.SetDefaultTimeout(float64(b.cfg.Timeout.Milliseconds()))
	b.setPage(page)
	return nil
}

func (b *PlaywrightBrowser) Launch(ctx context.Context) error {
	if b.cfg.BrowsersPath != "" {
		if err := os.Setenv("PLAYWRIGHT_BROWSERS_PATH", b.cfg.BrowsersPath); err != nil {
			return fmt.Errorf("ошибка установки пути браузеров: %w", err)
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("ошибка запуска playwright: %w", err)
	}
	b.pw = pw

	if b.cfg.UserDataDir != "" {
		return b.launchPersistent(pw)
	}
	return b.launchStandard(pw)
}

func (b *PlaywrightBrowser) URL(ctx context.Context) (string, error) {
	page := b.getPage()
	if page == nil {
		return "", ErrNotLaunched
	}
	return page.URL(), nil
}

// Navigate возвращает управление после загрузки DOM новой страницы.
func (b *PlaywrightBrowser) Navigate(ctx context.Context, url string) error {
	page := b.getPage()
	if page == nil {
		return ErrNotLaunched
	}

	navCtx, cancel := context.WithTimeout(ctx, b.cfg.NavigateTimeout)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		_, err := page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
			Timeout:   playwright.Float(float64(b.cfg.NavigateTimeout.Milliseconds())),
		})
		errChan <- err
	}()

	select {
	case <-navCtx.Done():
		return fmt.Errorf("таймаут навигации после %v: %w", b.cfg.NavigateTimeout, navCtx.Err())
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("ошибка навигации на %s: %w", url, err)
		}
	}
	return nil
}

func (b *PlaywrightBrowser) Locate(ctx context.Context, scope Element, pattern string) ([]Element, error) {
	page := b.getPage()
	if page == nil {
		return nil, ErrNotLaunched
	}

	var (
		found []playwright.ElementHandle
		err   error
	)
	if scope == nil {
		found, err = page.QuerySelectorAll(pattern)
	} else {
		h, herr := handle(scope)
		if herr != nil {
			return nil, herr
		}
		found, err = h.QuerySelectorAll(pattern)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска %q: %w", pattern, err)
	}

	out := make([]Element, 0, len(found))
	for _, h := range found {
		out = append(out, h)
	}
	return out, nil
}

func (b *PlaywrightBrowser) Text(ctx context.Context, el Element) (string, error) {
	h, err := handle(el)
	if err != nil {
		return "", err
	}
	text, err := h.InnerText()
	if err != nil {
		return "", fmt.Errorf("ошибка чтения текста: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func (b *PlaywrightBrowser) Attr(ctx context.Context, el Element, name string) (string, error) {
	h, err := handle(el)
	if err != nil {
		return "", err
	}
	return h.GetAttribute(name)
}

func (b *PlaywrightBrowser) Visible(ctx context.Context, el Element) (bool, error) {
	h, err := handle(el)
	if err != nil {
		return false, err
	}
	return h.IsVisible()
}

// Attached не возвращает ошибку для уничтоженных дескрипторов: такой элемент
// просто считается отсоединенным.
func (b *PlaywrightBrowser) Attached(ctx context.Context, el Element) (bool, error) {
	h, err := handle(el)
	if err != nil {
		return false, err
	}
	res, err := h.Evaluate("el => el.isConnected")
	if err != nil {
		return false, nil
	}
	connected, _ := res.(bool)
	return connected, nil
}

func (b *PlaywrightBrowser) Click(ctx context.Context, el Element) error {
	h, err := handle(el)
	if err != nil {
		return err
	}

	if err := b.scrollIntoView(h); err != nil {
		return err
	}

	err = h.Click(playwright.ElementHandleClickOptions{
		Timeout: playwright.Float(float64(b.cfg.Timeout.Milliseconds())),
	})
	if err == nil {
		return nil
	}

	// Перекрытый оверлеем элемент кликаем из JS.
	if _, jsErr := h.Evaluate("el => el.click()"); jsErr != nil {
		return fmt.Errorf("ошибка клика: %w", err)
	}
	return nil
}

func (b *PlaywrightBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.context != nil {
		if err := b.context.Close(); err != nil {
			return err
		}
	}
	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			return err
		}
	}
	if b.pw != nil {
		return b.pw.Stop()
	}
	return nil
}

func handle(el Element) (playwright.ElementHandle, error) {
	h, ok := el.(playwright.ElementHandle)
	if !ok || h == nil {
		return nil, fmt.Errorf("неизвестный тип элемента %T", el)
	}
	return h, nil
}
