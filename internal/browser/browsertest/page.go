// Package browsertest - поддельная страница на goquery для тестов агента.
// Поведение сайта (открытие диалога, переход по шагам, пагинация) задается
// обработчиками кликов.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"jobAgent/internal/browser"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

type clickHook struct {
	pattern string
	fn      func(p *Page)
}

// Page реализует browser.Surface над HTML-документом в памяти.
type Page struct {
	mu         sync.Mutex
	doc        *goquery.Document
	url        string
	navigated  []string
	hooks      []clickHook
	onNavigate func(p *Page, url string)
	observers  map[*observer]struct{}
}

var _ browser.Surface = (*Page)(nil)

func New(url, body string) *Page {
	p := &Page{url: url, observers: make(map[*observer]struct{})}
	p.doc = mustParse(body)
	return p
}

func mustParse(body string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		panic(fmt.Sprintf("browsertest: некорректный HTML: %v", err))
	}
	return doc
}

// SetHTML заменяет документ целиком. Все ранее выданные элементы становятся
// отсоединенными, как после перерисовки страницы.
func (p *Page) SetHTML(body string) {
	doc := mustParse(body)
	p.mu.Lock()
	p.doc = doc
	p.mu.Unlock()
}

// Mutate дает доступ к документу под блокировкой.
func (p *Page) Mutate(fn func(doc *goquery.Document)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p.doc)
}

// OnClick вызывает fn при клике по элементу, совпадающему с pattern, или по
// его потомку.
func (p *Page) OnClick(pattern string, fn func(p *Page)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hooks = append(p.hooks, clickHook{pattern: pattern, fn: fn})
}

func (p *Page) OnNavigate(fn func(p *Page, url string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onNavigate = fn
}

func (p *Page) Navigations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navigated...)
}

func (p *Page) Count(pattern string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.Find(pattern).Length()
}

// Field описывает первое поле, совпадающее с pattern.
func (p *Page) Field(pattern string) (browser.FieldInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sel := p.doc.Find(pattern)
	if sel.Length() == 0 {
		return browser.FieldInfo{}, fmt.Errorf("browsertest: %q не найден", pattern)
	}
	return p.describe(sel.Nodes[0]), nil
}

func (p *Page) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	p.url = url
	p.navigated = append(p.navigated, url)
	fn := p.onNavigate
	p.mu.Unlock()

	if fn != nil {
		fn(p, url)
	}
	return nil
}

func (p *Page) Locate(ctx context.Context, scope browser.Element, pattern string) ([]browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sel := p.doc.Selection
	if scope != nil {
		n, err := node(scope)
		if err != nil {
			return nil, err
		}
		sel = goquery.NewDocumentFromNode(n).Selection
	}

	found := sel.Find(pattern)
	out := make([]browser.Element, 0, found.Length())
	for _, n := range found.Nodes {
		out = append(out, n)
	}
	return out, nil
}

func (p *Page) Text(ctx context.Context, el browser.Element) (string, error) {
	n, err := node(el)
	if err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return textOf(n), nil
}

func (p *Page) Attr(ctx context.Context, el browser.Element, name string) (string, error) {
	n, err := node(el)
	if err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	v, _ := attr(n, name)
	return v, nil
}

func (p *Page) Visible(ctx context.Context, el browser.Element) (bool, error) {
	n, err := node(el)
	if err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attached(n) && visible(n), nil
}

func (p *Page) Attached(ctx context.Context, el browser.Element) (bool, error) {
	n, err := node(el)
	if err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attached(n), nil
}

// Click переключает checkbox и radio, уведомляет наблюдателей и вызывает
// подходящие обработчики.
func (p *Page) Click(ctx context.Context, el browser.Element) error {
	n, err := node(el)
	if err != nil {
		return err
	}

	p.mu.Lock()
	if !p.attached(n) {
		p.mu.Unlock()
		return browser.ErrDetached
	}

	if n.Data == "input" {
		switch t, _ := attr(n, "type"); strings.ToLower(t) {
		case "checkbox":
			_, checked := attr(n, "checked")
			p.setChecked(n, !checked)
		case "radio":
			p.setChecked(n, true)
		}
	}

	if btn := closest(n, "button"); btn != nil {
		p.emit(browser.Event{Kind: browser.EventClick, Field: browser.FieldInfo{Tag: "button"}, Value: textOf(btn)})
	}

	var fns []func(*Page)
	for _, h := range p.hooks {
		for cur := n; cur != nil; cur = cur.Parent {
			if cur.Type == html.ElementNode && p.doc.FindNodes(cur).Is(h.pattern) {
				fns = append(fns, h.fn)
				break
			}
		}
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(p)
	}
	return nil
}

func (p *Page) SetValue(ctx context.Context, el browser.Element, values ...string) error {
	n, err := node(el)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.attached(n) {
		return browser.ErrDetached
	}
	p.setValue(n, values)
	return nil
}

func (p *Page) Describe(ctx context.Context, el browser.Element) (browser.FieldInfo, error) {
	n, err := node(el)
	if err != nil {
		return browser.FieldInfo{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.describe(n), nil
}

func (p *Page) setValue(n *html.Node, values []string) {
	first := ""
	if len(values) > 0 {
		first = values[0]
	}

	switch n.Data {
	case "select":
		goquery.NewDocumentFromNode(n).Find("option").Each(func(_ int, o *goquery.Selection) {
			v := optionValue(o.Nodes[0])
			selected := false
			for _, want := range values {
				if want == v {
					selected = true
				}
			}
			if selected {
				setAttr(o.Nodes[0], "selected", "")
			} else {
				removeAttr(o.Nodes[0], "selected")
			}
		})
	case "textarea":
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			n.RemoveChild(c)
			c = next
		}
		n.AppendChild(&html.Node{Type: html.TextNode, Data: first})
	case "input":
		switch t, _ := attr(n, "type"); strings.ToLower(t) {
		case "checkbox", "radio":
			p.setChecked(n, first == "true")
		default:
			setAttr(n, "value", first)
		}
	}
}

func (p *Page) setChecked(n *html.Node, checked bool) {
	if !checked {
		removeAttr(n, "checked")
		return
	}
	if t, _ := attr(n, "type"); strings.EqualFold(t, "radio") {
		if name, ok := attr(n, "name"); ok {
			p.doc.Find(`input[type="radio"]`).Each(func(_ int, s *goquery.Selection) {
				if other, _ := attr(s.Nodes[0], "name"); other == name {
					removeAttr(s.Nodes[0], "checked")
				}
			})
		}
	}
	setAttr(n, "checked", "")
}

func (p *Page) describe(n *html.Node) browser.FieldInfo {
	info := browser.FieldInfo{Tag: n.Data, Type: n.Data}
	info.ID, _ = attr(n, "id")
	info.Name, _ = attr(n, "name")
	info.AccessibleName, _ = attr(n, "aria-label")
	_, info.Checked = attr(n, "checked")
	_, info.Multiple = attr(n, "multiple")
	info.Hidden = !visible(n)

	switch n.Data {
	case "input":
		t, _ := attr(n, "type")
		if t = strings.ToLower(t); t == "" {
			t = "text"
		}
		info.Type = t
		info.Value, _ = attr(n, "value")
	case "textarea":
		info.Value = goquery.NewDocumentFromNode(n).Text()
	case "select":
		opts := goquery.NewDocumentFromNode(n).Find("option")
		anySelected := false
		opts.Each(func(_ int, o *goquery.Selection) {
			_, sel := attr(o.Nodes[0], "selected")
			anySelected = anySelected || sel
			info.Options = append(info.Options, browser.Option{
				Text:     strings.TrimSpace(o.Text()),
				Value:    optionValue(o.Nodes[0]),
				Selected: sel,
			})
		})
		if !anySelected && !info.Multiple && len(info.Options) > 0 {
			info.Options[0].Selected = true
		}
		for _, o := range info.Options {
			if o.Selected {
				info.Value = o.Value
				break
			}
		}
	}

	if info.ID != "" {
		p.doc.Find("label[for]").EachWithBreak(func(_ int, l *goquery.Selection) bool {
			if f, _ := l.Attr("for"); f == info.ID {
				info.Caption = strings.TrimSpace(l.Text())
				return false
			}
			return true
		})
	}

	if fs := closest(n, "fieldset"); fs != nil {
		info.Legend = strings.TrimSpace(goquery.NewDocumentFromNode(fs).Find("legend").First().Text())
	}
	info.GroupText = info.Legend
	if lab := closest(n, "label"); lab != nil {
		info.GroupText = textOf(lab)
	}
	return info
}

func (p *Page) attached(n *html.Node) bool {
	root := p.doc.Nodes[0]
	for cur := n; cur != nil; cur = cur.Parent {
		if cur == root {
			return true
		}
	}
	return false
}

func node(el browser.Element) (*html.Node, error) {
	n, ok := el.(*html.Node)
	if !ok || n == nil {
		return nil, fmt.Errorf("browsertest: неизвестный тип элемента %T", el)
	}
	return n, nil
}

func textOf(n *html.Node) string {
	return strings.TrimSpace(goquery.NewDocumentFromNode(n).Text())
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, name, value string) {
	for i, a := range n.Attr {
		if a.Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

func removeAttr(n *html.Node, name string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != name {
			out = append(out, a)
		}
	}
	n.Attr = out
}

func optionValue(n *html.Node) string {
	if v, ok := attr(n, "value"); ok {
		return v
	}
	return textOf(n)
}

// closest ищет ближайшего предка (включая сам узел) с тегом tag.
func closest(n *html.Node, tag string) *html.Node {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type == html.ElementNode && cur.Data == tag {
			return cur
		}
	}
	return nil
}

func visible(n *html.Node) bool {
	if n.Data == "input" {
		if t, _ := attr(n, "type"); strings.EqualFold(t, "hidden") {
			return false
		}
	}
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		if _, ok := attr(cur, "hidden"); ok {
			return false
		}
		style, _ := attr(cur, "style")
		if strings.Contains(strings.ReplaceAll(strings.ToLower(style), " ", ""), "display:none") {
			return false
		}
	}
	return true
}
