package agent

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"jobAgent/internal/browser"
	"jobAgent/internal/llm"
	"jobAgent/internal/logger"
	"jobAgent/internal/profile"

	"go.uber.org/zap"
)

// heuristics - ключ профиля и слова в подписи поля. Порядок важен:
// побеждает первая строка, для которой в профиле есть значение.
var heuristics = []struct {
	key      string
	keywords []string
}{
	{"firstName", []string{"first name", "given name", "forename"}},
	{"middleName", []string{"middle name", "middle initial"}},
	{"lastName", []string{"last name", "surname", "family name"}},
	{"fullName", []string{"full name", "signature", "legal name", "your name", "name"}},
	{"email", []string{"email", "e-mail"}},
	{"phone", []string{"phone", "mobile", "cell", "contact number", "telephone"}},
	{"linkedinLink", []string{"linkedin", "profile url", "linkedin url"}},
	{"portfolioLink", []string{"portfolio", "website", "github", "blog", "personal site"}},
	{"street", []string{"street", "address line", "street address"}},
	{"city", []string{"city", "town", "municipality"}},
	{"state", []string{"state", "province", "region"}},
	{"zipcode", []string{"zip", "postal", "pincode", "zip code"}},
	{"country", []string{"country", "nation"}},
	{"fullAddress", []string{"full address", "mailing address", "current address"}},
	{"experience", []string{"experience", "years of experience", "total experience"}},
	{"recentEmployer", []string{"current employer", "recent employer", "company name", "employer"}},
	{"noticePeriodDays", []string{"notice period", "start date", "joining date", "availability"}},
	{"currentCtc", []string{"current ctc", "current salary", "current compensation", "present salary"}},
	{"desiredSalary", []string{"expected ctc", "expected salary", "desired salary", "salary expectation"}},
	{"gender", []string{"gender", "sex"}},
	{"ethnicity", []string{"ethnicity", "race", "ethnic background"}},
	{"disability", []string{"disability", "handicapped", "physical limitation"}},
	{"veteran", []string{"veteran", "military service", "protected veteran"}},
	{"usCitizenship", []string{"citizenship", "work authorization", "employment eligibility"}},
	{"requireVisa", []string{"visa", "sponsorship", "work permit"}},
	{"workStyle", []string{"work style", "work mode", "remote", "hybrid", "on-site"}},
	{"jobType", []string{"job type", "employment type", "full-time", "contract"}},
	{"experienceLevel", []string{"seniority", "experience level", "career level"}},
	{"linkedinHeadline", []string{"headline", "professional title", "tagline"}},
	{"linkedinSummary", []string{"summary", "about yourself", "profile summary", "professional summary"}},
	{"coverLetter", []string{"cover letter", "motivation letter", "application letter"}},
}

var (
	termsWords   = []string{"agree", "terms", "policy", "confirm", "acknowledge"}
	wholeUnitsRe = regexp.MustCompile(`years|experience|notice|duration|age`)
	numberRe     = regexp.MustCompile(`\d+(\.\d+)?`)
)

const textControlPattern = `input[type="text"], input[type="email"], input[type="tel"], input[type="number"], input[type="url"], textarea, input:not([type])`

// slot - поле анкеты вместе с подписью, по которой его узнают.
type slot struct {
	el    browser.Element
	info  browser.FieldInfo
	label string
	key   string
	qid   string
}

func (s slot) kind() string {
	switch s.info.Type {
	case "text", "email", "tel", "number", "url", "search", "textarea":
		return "text"
	default:
		return s.info.Type
	}
}

// Resolver заполняет поля одного шага анкеты.
type Resolver struct {
	surface   browser.Surface
	learning  *LearningStore
	questions *QuestionLog
	inferrer  Inferrer
	breaker   *CircuitBreaker
	log       *logger.Zap
	now       func() time.Time
}

func NewResolver(s browser.Surface, learning *LearningStore, questions *QuestionLog, inferrer Inferrer, log *logger.Zap) *Resolver {
	return &Resolver{
		surface:   s,
		learning:  learning,
		questions: questions,
		inferrer:  inferrer,
		breaker:   NewCircuitBreaker(3, 5*time.Minute),
		log:       log,
		now:       time.Now,
	}
}

// FillStep заполняет видимые поля диалога. Каждое поле проходит цепочку:
// выученный ответ, согласие с условиями, эвристика профиля, значение по
// умолчанию, LLM. Поля, оставшиеся пустыми, попадают в журнал вопросов.
func (r *Resolver) FillStep(ctx context.Context, dialog browser.Element, p *profile.Profile, runID string) ([]FieldMapping, error) {
	learned, err := r.learning.All(ctx)
	if err != nil {
		r.log.Warn("Выученные ответы недоступны", zap.Error(err))
		learned = map[string]string{}
	}

	slots, err := r.collect(ctx, dialog)
	if err != nil {
		return nil, err
	}

	values := p.Values()
	var (
		mappings []FieldMapping
		pending  []slot
	)

	for _, sl := range slots {
		if err := ctx.Err(); err != nil {
			return mappings, err
		}

		if v, ok := learned[sl.key]; ok && sl.key != "" {
			if set, ok := r.apply(ctx, sl, []string{v}); ok {
				r.log.Debug("Выученный ответ", zap.String("label", sl.key))
				mappings = append(mappings, FieldMapping{Label: sl.label, Value: set, Source: SourceLearned})
				continue
			}
		}

		if sl.info.Hidden && sl.info.Type != "fieldset" {
			continue
		}
		switch sl.info.Type {
		case "hidden", "submit", "button", "reset", "image":
			continue
		}
		if r.filled(ctx, sl) {
			continue
		}

		if sl.info.Type == "checkbox" && containsAny(sl.key, termsWords) {
			if err := r.surface.SetValue(ctx, sl.el, "true"); err == nil {
				mappings = append(mappings, FieldMapping{Label: sl.label, Value: "true", Source: SourceDefault})
				continue
			}
		}

		if key, vals := heuristic(sl.key, values); vals != nil {
			if set, ok := r.apply(ctx, sl, vals); ok {
				r.log.Debug("Поле сопоставлено с профилем", zap.String("label", sl.key), zap.String("field", key))
				mappings = append(mappings, FieldMapping{Label: sl.label, Value: set, Source: SourceHeuristic})
				continue
			}
		}

		if sl.info.Type != "checkbox" && sl.info.Type != "file" {
			if def := complianceDefault(sl.key); def != "" {
				if set, ok := r.apply(ctx, sl, []string{def}); ok {
					mappings = append(mappings, FieldMapping{Label: sl.label, Value: set, Source: SourceDefault})
					continue
				}
			}
		}

		switch sl.kind() {
		case "file":
			r.log.Info("Поле загрузки файла оставлено человеку", zap.String("label", sl.label))
		case "text", "select", "fieldset":
			pending = append(pending, sl)
		}
	}

	if len(pending) == 0 {
		return mappings, nil
	}

	answered := r.infer(ctx, pending, p, runID)
	if err := ctx.Err(); err != nil {
		return mappings, err
	}

	var unanswered []Question
	pageURL, _ := r.surface.URL(ctx)
	for _, sl := range pending {
		if a, ok := answered[sl.qid]; ok {
			if set, ok := r.apply(ctx, sl, []string{a}); ok && r.filled(ctx, sl) {
				mappings = append(mappings, FieldMapping{Label: sl.label, Value: set, Source: SourceAI})
				continue
			}
		}
		if r.filled(ctx, sl) {
			continue
		}
		mappings = append(mappings, FieldMapping{Label: sl.label, Source: SourceUnresolved})
		unanswered = append(unanswered, Question{Label: sl.key, Type: sl.info.Type, URL: pageURL, Timestamp: r.now()})
	}

	if added, err := r.questions.Record(ctx, unanswered); err != nil {
		r.log.Warn("Ошибка сохранения вопросов без ответа", zap.Error(err))
	} else if added > 0 {
		r.log.Info("Новые вопросы без ответа", zap.Int("count", added))
	}
	return mappings, nil
}

// collect находит поля шага. Если анкета разбита на контейнеры вопросов,
// подпись берется из контейнера, иначе обходятся все поля диалога.
func (r *Resolver) collect(ctx context.Context, dialog browser.Element) ([]slot, error) {
	containers, err := r.surface.Locate(ctx, dialog, containerPattern)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска полей анкеты: %w", err)
	}

	var slots []slot
	add := func(el browser.Element, label string) {
		info, err := r.surface.Describe(ctx, el)
		if err != nil {
			r.log.Debug("Поле не описано", zap.Error(err))
			return
		}
		if label == "" {
			label = fieldLabel(info)
		}
		// радиокнопки внутри fieldset заполняются через сам fieldset
		if info.Type == "radio" && info.Legend != "" && len(containers) == 0 {
			return
		}
		qid := info.ID
		if qid == "" {
			qid = fmt.Sprintf("field_%d", len(slots))
		}
		label = strings.TrimSpace(label)
		slots = append(slots, slot{el: el, info: info, label: label, key: NormalizeLabel(label), qid: qid})
	}

	if len(containers) > 0 {
		for _, c := range containers {
			el, _, err := firstMatch(ctx, r.surface, c, "fieldset", "select", `input[type="checkbox"]`, textControlPattern)
			if err != nil || el == nil {
				continue
			}
			label := firstText(ctx, r.surface, c, "label", ".fb-form-element-label")
			if label == "" {
				if txt, err := r.surface.Text(ctx, c); err == nil {
					label = firstLine(txt)
				}
			}
			add(el, label)
		}
		return slots, nil
	}

	els, err := r.surface.Locate(ctx, dialog, legacyPattern)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска полей анкеты: %w", err)
	}
	for _, el := range els {
		add(el, "")
	}
	return slots, nil
}

// fieldLabel: подпись label[for], затем aria-label, затем объемлющий label
// или legend.
func fieldLabel(info browser.FieldInfo) string {
	if info.Type == "fieldset" && info.Legend != "" {
		return info.Legend
	}
	for _, s := range []string{info.Caption, info.AccessibleName, info.GroupText} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// optionLabel - подпись радиокнопки, а не вопроса группы.
func optionLabel(info browser.FieldInfo) string {
	if s := strings.TrimSpace(info.Caption); s != "" {
		return s
	}
	if s := strings.TrimSpace(info.GroupText); s != "" && s != info.Legend {
		return s
	}
	if s := strings.TrimSpace(info.AccessibleName); s != "" {
		return s
	}
	return info.Value
}

func heuristic(label string, values map[string][]string) (string, []string) {
	if label == "" {
		return "", nil
	}
	for _, h := range heuristics {
		vals, ok := values[h.key]
		if !ok {
			continue
		}
		if containsAny(label, h.keywords) {
			return h.key, vals
		}
	}
	return "", nil
}

func complianceDefault(label string) string {
	switch {
	case strings.Contains(label, "sponsorship"), strings.Contains(label, "visa"):
		return "No"
	case strings.Contains(label, "authorized"), strings.Contains(label, "legally"):
		return "Yes"
	}
	return ""
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// checkMatch: текст совпадает со значением, если одно содержит другое
// без учета регистра.
func checkMatch(text string, values []string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return false
	}
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if strings.Contains(t, v) || strings.Contains(v, t) {
			return true
		}
	}
	return false
}

// floorWholeUnits округляет дробное число вниз: "5.5 years" -> "5".
// Целые значения не меняются.
func floorWholeUnits(value string) string {
	m := numberRe.FindString(value)
	if m == "" {
		return value
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil || f == math.Trunc(f) {
		return value
	}
	return strconv.Itoa(int(math.Floor(f)))
}

func isYesNo(v string) bool {
	return strings.EqualFold(v, "yes") || strings.EqualFold(v, "no")
}

func isPlaceholder(i int, o browser.Option) bool {
	return i == 0 && (o.Value == "" || strings.HasPrefix(strings.ToLower(o.Text), "select"))
}

// apply выставляет значение в поле и возвращает то, что реально выбрано.
func (r *Resolver) apply(ctx context.Context, sl slot, values []string) (string, bool) {
	var err error
	set := ""

	switch sl.kind() {
	case "select":
		var chosen, texts []string
		opts := sl.info.Options
		for i, o := range opts {
			if isPlaceholder(i, o) || !(checkMatch(o.Text, values) || checkMatch(o.Value, values)) {
				continue
			}
			chosen = append(chosen, o.Value)
			texts = append(texts, o.Text)
			if !sl.info.Multiple || len(values) < 2 {
				break
			}
		}
		// нет подходящей опции - берем первую настоящую
		if len(chosen) == 0 && len(opts) > 1 {
			chosen, texts = []string{opts[1].Value}, []string{opts[1].Text}
		}
		if len(chosen) == 0 {
			return "", false
		}
		err = r.surface.SetValue(ctx, sl.el, chosen...)
		set = strings.Join(texts, ", ")

	case "checkbox":
		v := ""
		if len(values) > 0 {
			v = strings.ToLower(strings.TrimSpace(values[0]))
		}
		own := sl.info.Value
		if own == "on" {
			own = ""
		}
		if !(v == "true" || v == "yes" || checkMatch(sl.label, values) || checkMatch(own, values)) {
			return "", false
		}
		err = r.surface.SetValue(ctx, sl.el, "true")
		set = "true"

	case "fieldset":
		set, err = r.pickRadio(ctx, sl.el, values)
		if err == nil && set == "" {
			return "", false
		}

	case "radio":
		if !checkMatch(optionLabel(sl.info), values) {
			return "", false
		}
		err = r.surface.SetValue(ctx, sl.el, "true")
		set = optionLabel(sl.info)

	case "text":
		set = strings.Join(values, ", ")
		if sl.info.Type == "number" || wholeUnitsRe.MatchString(sl.key) {
			set = floorWholeUnits(set)
		}
		err = r.surface.SetValue(ctx, sl.el, set)

	default:
		return "", false
	}

	if err != nil {
		r.log.Warn("Ошибка заполнения поля", zap.String("label", sl.label), zap.Error(err))
		return "", false
	}
	return set, true
}

// pickRadio выбирает радиокнопку группы. Для ответа Yes/No сначала ищется
// подпись, содержащая ответ, затем совпадение в обе стороны.
func (r *Resolver) pickRadio(ctx context.Context, fieldset browser.Element, values []string) (string, error) {
	radios, err := r.surface.Locate(ctx, fieldset, `input[type="radio"]`)
	if err != nil {
		return "", err
	}

	type option struct {
		el    browser.Element
		label string
	}
	opts := make([]option, 0, len(radios))
	for _, el := range radios {
		info, err := r.surface.Describe(ctx, el)
		if err != nil {
			continue
		}
		opts = append(opts, option{el: el, label: optionLabel(info)})
	}

	if len(values) == 1 && isYesNo(strings.TrimSpace(values[0])) {
		want := strings.ToLower(strings.TrimSpace(values[0]))
		for _, o := range opts {
			if strings.Contains(strings.ToLower(o.label), want) {
				return o.label, r.surface.SetValue(ctx, o.el, "true")
			}
		}
	}
	for _, o := range opts {
		if checkMatch(o.label, values) {
			return o.label, r.surface.SetValue(ctx, o.el, "true")
		}
	}
	return "", nil
}

// filled сообщает, есть ли в поле значение.
func (r *Resolver) filled(ctx context.Context, sl slot) bool {
	info, err := r.surface.Describe(ctx, sl.el)
	if err != nil {
		return false
	}

	switch sl.kind() {
	case "select":
		for i, o := range info.Options {
			if o.Selected && i > 0 {
				return true
			}
		}
		return false
	case "checkbox", "radio":
		return info.Checked
	case "fieldset":
		radios, err := r.surface.Locate(ctx, sl.el, `input[type="radio"]`)
		if err != nil {
			return false
		}
		for _, el := range radios {
			if ri, err := r.surface.Describe(ctx, el); err == nil && ri.Checked {
				return true
			}
		}
		return false
	default:
		return strings.TrimSpace(info.Value) != ""
	}
}

// infer отправляет оставшиеся поля в LLM одним пакетом. Ошибка LLM не
// прерывает анкету: поля просто остаются без ответа.
func (r *Resolver) infer(ctx context.Context, pending []slot, p *profile.Profile, runID string) map[string]string {
	if r.inferrer == nil {
		return nil
	}

	req := llm.AnswerRequest{
		RunID:          runID,
		Profile:        p.Snapshot(),
		JobDescription: r.jobDescription(ctx),
	}
	for _, sl := range pending {
		q := llm.Question{ID: sl.qid, Label: sl.label, Type: sl.info.Type}
		switch sl.kind() {
		case "select":
			for _, o := range sl.info.Options {
				q.Options = append(q.Options, o.Text)
			}
		case "fieldset":
			q.Options = r.radioLabels(ctx, sl.el)
		}
		req.Questions = append(req.Questions, q)
	}

	var answers map[string]string
	err := r.breaker.Call(ctx, func() error {
		var err error
		answers, err = r.inferrer.AnswerQuestions(ctx, req)
		return err
	})
	if err != nil {
		r.log.Warn("LLM не ответил на вопросы анкеты",
			zap.Int("questions", len(req.Questions)),
			zap.String("breaker", r.breaker.GetState().String()),
			zap.Error(err))
		return nil
	}
	r.log.Info("Ответы LLM получены", zap.Int("questions", len(req.Questions)), zap.Int("answers", len(answers)))
	return answers
}

func (r *Resolver) radioLabels(ctx context.Context, fieldset browser.Element) []string {
	radios, err := r.surface.Locate(ctx, fieldset, `input[type="radio"]`)
	if err != nil {
		return nil
	}
	var out []string
	for _, el := range radios {
		if info, err := r.surface.Describe(ctx, el); err == nil {
			out = append(out, optionLabel(info))
		}
	}
	return out
}

func (r *Resolver) jobDescription(ctx context.Context) string {
	els, err := r.surface.Locate(ctx, nil, descriptionPattern)
	if err != nil || len(els) == 0 {
		return ""
	}
	txt, err := r.surface.Text(ctx, els[0])
	if err != nil {
		return ""
	}
	return txt
}
