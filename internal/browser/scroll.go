package browser

import (
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

func (b *PlaywrightBrowser) scrollIntoView(h playwright.ElementHandle) error {
	visible, err := h.IsVisible()
	if err == nil && visible {
		return nil
	}

	err = h.ScrollIntoViewIfNeeded(playwright.ElementHandleScrollIntoViewIfNeededOptions{
		Timeout: playwright.Float(5000),
	})
	if err == nil {
		return nil
	}

	_, err = h.Evaluate(`el => el.scrollIntoView({behavior: 'auto', block: 'center', inline: 'center'})`)
	if err != nil {
		return fmt.Errorf("ошибка прокрутки к элементу: %w", err)
	}
	time.Sleep(200 * time.Millisecond)
	return nil
}
