package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
)

const captureBinding = "__jobAgentCapture"

// installObserverJS вешает слушатели change и click на root и регистрирует
// функцию снятия в window.__jobAgentObservers[id].
const installObserverJS = `(root, id) => {
	const describeField = ` + describeJS + `;
	const onChange = e => {
		const t = e.target;
		if (!t || !t.tagName || !['INPUT', 'SELECT', 'TEXTAREA'].includes(t.tagName)) return;
		const value = t.type === 'checkbox' ? String(t.checked) : (t.value || '');
		window.` + captureBinding + `({id: id, kind: 'change', field: describeField(t), value: value});
	};
	const onClick = e => {
		const btn = e.target && e.target.closest ? e.target.closest('button') : null;
		if (!btn) return;
		window.` + captureBinding + `({id: id, kind: 'click', field: {tag: 'button'}, value: (btn.innerText || '').trim()});
	};
	root.addEventListener('change', onChange, true);
	root.addEventListener('click', onClick, true);
	window.__jobAgentObservers = window.__jobAgentObservers || {};
	window.__jobAgentObservers[id] = () => {
		root.removeEventListener('change', onChange, true);
		root.removeEventListener('click', onClick, true);
	};
}`

const removeObserverJS = `id => {
	const obs = window.__jobAgentObservers || {};
	if (obs[id]) { obs[id](); delete obs[id]; }
}`

type capturePayload struct {
	ID string `json:"id"`
	Event
}

type pageObserver struct {
	id     string
	owner  *PlaywrightBrowser
	mu     sync.Mutex
	events []Event
	closed bool
}

func (o *pageObserver) push(ev Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.closed {
		o.events = append(o.events, ev)
	}
}

func (o *pageObserver) Drain() []Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.events
	o.events = nil
	return out
}

// Close идемпотентен. Ошибка снятия слушателей со страницы (например, после
// навигации) не мешает отписке на стороне Go.
func (o *pageObserver) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.events = nil
	o.mu.Unlock()

	o.owner.mu.Lock()
	delete(o.owner.observers, o.id)
	o.owner.mu.Unlock()

	page := o.owner.getPage()
	if page == nil {
		return nil
	}
	if _, err := page.Evaluate(removeObserverJS, o.id); err != nil {
		return fmt.Errorf("ошибка снятия наблюдателя: %w", err)
	}
	return nil
}

func (b *PlaywrightBrowser) Observe(ctx context.Context, scope Element) (Observer, error) {
	page := b.getPage()
	if page == nil {
		return nil, ErrNotLaunched
	}

	b.bindingOnce.Do(func() {
		b.bindingErr = page.ExposeBinding(captureBinding, b.onCapture)
	})
	if b.bindingErr != nil {
		return nil, fmt.Errorf("ошибка регистрации обработчика событий: %w", b.bindingErr)
	}

	obs := &pageObserver{id: uuid.NewString(), owner: b}
	b.mu.Lock()
	b.observers[obs.id] = obs
	b.mu.Unlock()

	var err error
	if scope == nil {
		_, err = page.Evaluate("id => ("+installObserverJS+")(document, id)", obs.id)
	} else {
		h, herr := handle(scope)
		if herr != nil {
			_ = obs.Close()
			return nil, herr
		}
		_, err = h.Evaluate(installObserverJS, obs.id)
	}
	if err != nil {
		_ = obs.Close()
		return nil, fmt.Errorf("ошибка установки наблюдателя: %w", err)
	}
	return obs, nil
}

func (b *PlaywrightBrowser) onCapture(_ *playwright.BindingSource, args ...interface{}) interface{} {
	if len(args) == 0 {
		return nil
	}
	data, err := json.Marshal(args[0])
	if err != nil {
		return nil
	}
	var p capturePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil
	}

	b.mu.RLock()
	obs := b.observers[p.ID]
	b.mu.RUnlock()
	if obs != nil {
		obs.push(p.Event)
	}
	return nil
}
