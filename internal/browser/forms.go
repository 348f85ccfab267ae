package browser

import (
	"context"
	"encoding/json"
	"fmt"
)

// describeJS собирает FieldInfo за один вызов. Тот же скрипт используется
// наблюдателем, поэтому он объявлен как именованная функция.
const describeJS = `function describeField(el) {
	const tag = el.tagName.toLowerCase();
	let type = tag;
	if (tag === 'input') type = (el.getAttribute('type') || 'text').toLowerCase();
	if (tag === 'select') type = 'select';
	const text = n => n ? (n.innerText || n.textContent || '').trim() : '';
	let caption = '';
	if (el.id) caption = text(document.querySelector('label[for="' + CSS.escape(el.id) + '"]'));
	const fs = el.closest('fieldset');
	const legend = fs ? text(fs.querySelector('legend')) : '';
	const lab = el.closest('label');
	const group = lab ? text(lab) : legend;
	const options = tag === 'select'
		? Array.from(el.options).map(o => ({text: (o.text || '').trim(), value: o.value, selected: o.selected}))
		: [];
	let value = '';
	if (tag === 'select') value = el.selectedIndex >= 0 ? el.options[el.selectedIndex].value : '';
	else if (tag !== 'fieldset') value = el.value || '';
	const style = window.getComputedStyle(el);
	return {
		tag: tag, type: type, id: el.id || '', name: el.getAttribute('name') || '',
		value: value, checked: !!el.checked, multiple: !!el.multiple,
		hidden: type === 'hidden' || style.display === 'none' || el.offsetParent === null && tag !== 'fieldset',
		options: options, caption: caption,
		accessibleName: el.getAttribute('aria-label') || '', groupText: group, legend: legend
	};
}`

const setValueJS = `(el, values) => {
	const tag = el.tagName.toLowerCase();
	const fire = name => el.dispatchEvent(new Event(name, {bubbles: true}));
	if (tag === 'select') {
		for (const o of el.options) o.selected = values.includes(o.value);
	} else if (el.type === 'checkbox' || el.type === 'radio') {
		const want = values[0] === 'true';
		if (el.checked !== want) el.click();
	} else {
		const proto = tag === 'textarea' ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
		const setter = Object.getOwnPropertyDescriptor(proto, 'value').set;
		setter.call(el, values[0] || '');
	}
	fire('input');
	fire('change');
	fire('blur');
}`

func (b *PlaywrightBrowser) Describe(ctx context.Context, el Element) (FieldInfo, error) {
	h, err := handle(el)
	if err != nil {
		return FieldInfo{}, err
	}

	raw, err := h.Evaluate("el => (" + describeJS + ")(el)")
	if err != nil {
		return FieldInfo{}, fmt.Errorf("ошибка описания поля: %w", err)
	}
	return decodeField(raw)
}

func (b *PlaywrightBrowser) SetValue(ctx context.Context, el Element, values ...string) error {
	h, err := handle(el)
	if err != nil {
		return err
	}
	if values == nil {
		values = []string{}
	}
	if _, err := h.Evaluate(setValueJS, values); err != nil {
		return fmt.Errorf("ошибка заполнения поля: %w", err)
	}
	return nil
}

// decodeField переводит результат Evaluate (map[string]interface{}) в FieldInfo.
func decodeField(raw any) (FieldInfo, error) {
	var info FieldInfo
	data, err := json.Marshal(raw)
	if err != nil {
		return info, fmt.Errorf("ошибка кодирования описания поля: %w", err)
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return info, fmt.Errorf("ошибка декодирования описания поля: %w", err)
	}
	return info, nil
}
