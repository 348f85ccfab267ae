package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"jobAgent/internal/browser"
	"jobAgent/internal/browser/browsertest"
	"jobAgent/internal/llm"
	"jobAgent/internal/logger"
	"jobAgent/internal/profile"
	"jobAgent/internal/state"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

const searchPage = "https://www.linkedin.com/jobs/search/?f_AL=true&keywords=Go+Engineer&location=Berlin"

type fakeJob struct {
	ID       string
	Title    string
	Company  string
	Applied  bool
	External bool
}

// fakeSite имитирует выдачу с быстрым откликом. Все шаги анкеты одинаковы
// для всех вакансий, последний шаг должен содержать кнопку отправки.
type fakeSite struct {
	page  *browsertest.Page
	pages [][]fakeJob
	steps []string

	// surface, если задан, подменяет page при сборке агента.
	surface browser.Surface

	// valid решает, пускать ли анкету дальше по кнопке Next.
	valid  func(step int, p *browsertest.Page) bool
	onOpen func()

	active    fakeJob
	step      int
	opened    map[string]int
	submitted []string
}

func newFakeSite(pages [][]fakeJob, steps ...string) *fakeSite {
	s := &fakeSite{pages: pages, steps: steps, opened: map[string]int{}}
	s.page = browsertest.New(searchPage, s.render(0))

	seen := map[string]bool{}
	for _, pg := range pages {
		for _, j := range pg {
			if seen[j.ID] {
				continue
			}
			seen[j.ID] = true
			s.page.OnClick(fmt.Sprintf(`[data-job-id="%s"]`, j.ID), func(p *browsertest.Page) { s.selectJob(p, j) })
		}
	}
	s.page.OnClick(".jobs-apply-button", func(p *browsertest.Page) { s.openDialog(p) })
	s.page.OnClick(`button[aria-label="Continue to next step"]`, func(p *browsertest.Page) { s.next(p) })
	s.page.OnClick(`button[aria-label="Submit application"]`, func(p *browsertest.Page) { s.submit(p) })
	for i := 1; i < len(pages); i++ {
		s.page.OnClick(fmt.Sprintf(`button[aria-label="Page %d"]`, i+1), func(p *browsertest.Page) { p.SetHTML(s.render(i)) })
	}
	return s
}

func (s *fakeSite) render(idx int) string {
	var b strings.Builder
	b.WriteString(`<html><body><ul class="jobs-list">`)
	for _, j := range s.pages[idx] {
		fmt.Fprintf(&b, `<li class="jobs-search-results-list__list-item" data-job-id="%s"><div class="job-card-container">`, j.ID)
		fmt.Fprintf(&b, `<a class="job-card-list__title" href="/jobs/view/%s/">%s</a>`, j.ID, j.Title)
		fmt.Fprintf(&b, `<div class="job-card-container__primary-description">%s</div>`, j.Company)
		if j.Applied {
			b.WriteString(`<div class="job-card-container__footer-job-state">Applied</div>`)
		}
		b.WriteString(`</div></li>`)
	}
	b.WriteString(`</ul><div id="detail"></div><div id="modal-root"></div>`)
	if len(s.pages) > 1 {
		b.WriteString(`<div class="pager">`)
		for i := range s.pages {
			if i == idx {
				fmt.Fprintf(&b, `<button aria-current="page">%d</button>`, i+1)
			} else {
				fmt.Fprintf(&b, `<button aria-label="Page %d">%d</button>`, i+1, i+1)
			}
		}
		b.WriteString(`</div>`)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

func (s *fakeSite) selectJob(p *browsertest.Page, j fakeJob) {
	s.active = j
	btn := `<button class="jobs-apply-button" aria-label="Easy Apply to this job">Easy Apply</button>`
	if j.External {
		btn = `<button class="jobs-apply-button" aria-label="Apply on company website">Apply</button>`
	}
	p.Mutate(func(doc *goquery.Document) {
		doc.Find("#detail").SetHtml(`<div class="jobs-description__content">We build Go services.</div>` + btn)
	})
}

func (s *fakeSite) openDialog(p *browsertest.Page) {
	if s.active.External {
		return
	}
	s.opened[s.active.ID]++
	s.step = 0
	s.renderStep(p)
	if s.onOpen != nil {
		s.onOpen()
	}
}

func (s *fakeSite) renderStep(p *browsertest.Page) {
	p.Mutate(func(doc *goquery.Document) {
		doc.Find("#modal-root").SetHtml(`<div role="dialog" class="artdeco-modal"><div class="jobs-easy-apply-content">` +
			s.steps[s.step] + `</div></div>`)
	})
}

func (s *fakeSite) next(p *browsertest.Page) {
	if s.valid != nil && !s.valid(s.step, p) {
		p.Mutate(func(doc *goquery.Document) {
			if doc.Find(".artdeco-inline-feedback--error").Length() == 0 {
				doc.Find(".jobs-easy-apply-content").AppendHtml(`<div class="artdeco-inline-feedback--error">Please enter a valid answer</div>`)
			}
		})
		return
	}
	s.step++
	s.renderStep(p)
}

func (s *fakeSite) submit(p *browsertest.Page) {
	s.submitted = append(s.submitted, s.active.ID)
	p.Mutate(func(doc *goquery.Document) {
		doc.Find("#modal-root").SetHtml("")
	})
}

const submitStep = `<p>Review your application</p><button aria-label="Submit application">Submit application</button>`

func fastTimings() Timings {
	return Timings{
		Poll:            time.Millisecond,
		ScanAttempts:    3,
		ApplyButtonWait: 2 * time.Millisecond,
		ApplyButtonPoll: time.Millisecond,
		OpenAttempts:    3,
		DialogAttempts:  3,
		StepAttempts:    20,
		StuckLimit:      5,
		HumanWaitPolls:  50,
		MaxRescans:      3,
	}
}

func testProfile() *profile.Profile {
	return &profile.Profile{
		FirstName:      "Ada",
		LastName:       "Lovelace",
		Email:          "ada@example.com",
		PreferredRoles: []string{"Go Engineer"},
		City:           "Berlin",
		Settings:       profile.Settings{MaxJobs: 10, AutoApply: true},
	}
}

type memJournal struct {
	mu      sync.Mutex
	results []Result
}

func (j *memJournal) Record(_ context.Context, _ string, r Result) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.results = append(j.results, r)
	return nil
}

func (j *memJournal) byOutcome(o Outcome) []Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []Result
	for _, r := range j.results {
		if r.Outcome == o {
			out = append(out, r)
		}
	}
	return out
}

type note struct{ title, message string }

type memNotifier struct {
	notes    []note
	onNotify func(title string)
}

func (n *memNotifier) Notify(_ context.Context, title, message string) {
	n.notes = append(n.notes, note{title, message})
	if n.onNotify != nil {
		n.onNotify(title)
	}
}

func (n *memNotifier) count(title string) int {
	c := 0
	for _, x := range n.notes {
		if x.title == title {
			c++
		}
	}
	return c
}

type fakeInferrer struct {
	calls   int
	last    llm.AnswerRequest
	answers map[string]string
	err     error
}

func (f *fakeInferrer) AnswerQuestions(_ context.Context, req llm.AnswerRequest) (map[string]string, error) {
	f.calls++
	f.last = req
	return f.answers, f.err
}

type rig struct {
	kv       *state.Memory
	site     *fakeSite
	agent    *Agent
	journal  *memJournal
	notifier *memNotifier
}

func newRig(t *testing.T, site *fakeSite, p *profile.Profile, inf Inferrer, tune ...func(*Timings)) *rig {
	t.Helper()
	ctx := context.Background()

	kv := state.NewMemory()
	require.NoError(t, profile.NewStore(kv).Save(ctx, p))

	timings := fastTimings()
	for _, fn := range tune {
		fn(&timings)
	}

	var surface browser.Surface = site.page
	if site.surface != nil {
		surface = site.surface
	}

	r := &rig{kv: kv, site: site, journal: &memJournal{}, notifier: &memNotifier{}}
	r.agent = New(surface, kv, logger.NewNop(), Config{
		Timings:  timings,
		Inferrer: inf,
		Notifier: r.notifier,
		Journal:  r.journal,
	})
	require.NoError(t, r.agent.Governor().SetActive(ctx, true))
	return r
}
