package browsertest

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"jobAgent/internal/browser"
)

type observer struct {
	page   *Page
	events []browser.Event
}

// Drain и Close берут блокировку страницы: события пишутся под ней же.
func (o *observer) Drain() []browser.Event {
	o.page.mu.Lock()
	defer o.page.mu.Unlock()
	out := o.events
	o.events = nil
	return out
}

func (o *observer) Close() error {
	o.page.mu.Lock()
	defer o.page.mu.Unlock()
	delete(o.page.observers, o)
	return nil
}

func (p *Page) Observe(ctx context.Context, scope browser.Element) (browser.Observer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o := &observer{page: p}
	p.observers[o] = struct{}{}
	return o, nil
}

// Observing сообщает, есть ли незакрытые наблюдатели.
func (p *Page) Observing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.observers) > 0
}

func (p *Page) emit(ev browser.Event) {
	for o := range p.observers {
		o.events = append(o.events, ev)
	}
}

// HumanType имитирует ввод человека: значение выставляется и наблюдатели
// получают событие change. Для checkbox и radio value - "true" или "false",
// в событие radio попадает value выбранной кнопки.
func (p *Page) HumanType(pattern, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	sel := p.doc.Find(pattern)
	if sel.Length() == 0 {
		return fmt.Errorf("browsertest: %q не найден", pattern)
	}
	n := sel.Nodes[0]
	p.setValue(n, []string{value})

	info := p.describe(n)
	switch info.Type {
	case "checkbox":
		value = strconv.FormatBool(info.Checked)
	case "radio":
		value = info.Value
	}
	p.emit(browser.Event{Kind: browser.EventChange, Field: info, Value: strings.TrimSpace(value)})
	return nil
}

// HumanClick кликает по первому элементу, совпадающему с pattern.
func (p *Page) HumanClick(pattern string) error {
	p.mu.Lock()
	sel := p.doc.Find(pattern)
	if sel.Length() == 0 {
		p.mu.Unlock()
		return fmt.Errorf("browsertest: %q не найден", pattern)
	}
	n := sel.Nodes[0]
	p.mu.Unlock()
	return p.Click(context.Background(), n)
}
