package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"jobAgent/internal/browser"
	"jobAgent/internal/browser/browsertest"
	"jobAgent/internal/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func fieldValue(t *testing.T, p *browsertest.Page, pattern string) string {
	t.Helper()
	info, err := p.Field(pattern)
	require.NoError(t, err)
	return info.Value
}

func TestMobileNumberFilledFromProfileWithoutAI(t *testing.T) {
	ctx := context.Background()
	site := newFakeSite([][]fakeJob{{{ID: "101", Title: "Go Engineer", Company: "Initech"}}},
		`<div data-test-form-element><label for="phone">Mobile Number</label><input id="phone" type="text"></div>
		 <button aria-label="Continue to next step">Next</button>`,
		submitStep)

	var phone string
	site.valid = func(step int, p *browsertest.Page) bool {
		phone = fieldValue(t, p, "#phone")
		return phone != ""
	}

	prof := testProfile()
	prof.Phone = "+1 555 0100"
	inf := &fakeInferrer{}
	r := newRig(t, site, prof, inf)

	require.NoError(t, r.agent.RunPass(ctx))

	assert.Equal(t, "+1 555 0100", phone)
	assert.Zero(t, inf.calls)
	assert.Equal(t, []string{"101"}, site.submitted)

	n, err := r.agent.Governor().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, r.notifier.count(statsTitle))

	active, err := r.agent.Governor().Active(ctx)
	require.NoError(t, err)
	assert.False(t, active, "без пагинации проход завершается и агент выключается")
}

func TestVisaSponsorshipDefaultsToNo(t *testing.T) {
	ctx := context.Background()
	site := newFakeSite([][]fakeJob{{{ID: "102", Title: "Backend Engineer", Company: "Globex"}}},
		`<div data-test-form-element>
		   <label for="visa">Will you now or in the future require visa sponsorship?</label>
		   <select id="visa"><option>Select an option</option><option>Yes</option><option>No</option></select>
		 </div>
		 <button aria-label="Continue to next step">Next</button>`,
		submitStep)

	var visa string
	site.valid = func(step int, p *browsertest.Page) bool {
		visa = fieldValue(t, p, "#visa")
		return visa != "Select an option"
	}

	inf := &fakeInferrer{}
	r := newRig(t, site, testProfile(), inf)
	require.NoError(t, r.agent.RunPass(ctx))

	assert.Equal(t, "No", visa)
	assert.Zero(t, inf.calls)
	assert.Equal(t, []string{"102"}, site.submitted)
}

func TestYearsOfExperienceIsFloored(t *testing.T) {
	ctx := context.Background()
	site := newFakeSite([][]fakeJob{{{ID: "103", Title: "Go Engineer", Company: "Hooli"}}},
		`<label for="years">Years of Experience</label><input id="years" type="text">
		 <button aria-label="Continue to next step">Next</button>`,
		submitStep)

	var years string
	site.valid = func(step int, p *browsertest.Page) bool {
		years = fieldValue(t, p, "#years")
		return years != ""
	}

	prof := testProfile()
	prof.Experience = "5.5 years"
	r := newRig(t, site, prof, nil)
	require.NoError(t, r.agent.RunPass(ctx))

	assert.Equal(t, "5", years)
	assert.Equal(t, []string{"103"}, site.submitted)
}

func TestDuplicateListingAfterPaginationOpensOneDialog(t *testing.T) {
	ctx := context.Background()
	site := newFakeSite([][]fakeJob{
		{{ID: "201", Title: "Go Engineer", Company: "Initech"}},
		{{ID: "201", Title: "Go Engineer", Company: "Initech"}, {ID: "202", Title: "SRE", Company: "Globex"}},
	}, submitStep)

	r := newRig(t, site, testProfile(), nil)
	require.NoError(t, r.agent.RunPass(ctx))

	assert.Equal(t, map[string]int{"201": 1, "202": 1}, site.opened)
	assert.Equal(t, []string{"201", "202"}, site.submitted)
	assert.Len(t, r.journal.byOutcome(OutcomeSubmitted), 2)
}

func TestStuckQuestionIsLearnedAndReused(t *testing.T) {
	ctx := context.Background()
	site := newFakeSite([][]fakeJob{{
		{ID: "301", Title: "Go Engineer", Company: "Initech"},
		{ID: "302", Title: "Go Engineer", Company: "Globex"},
	}},
		`<label for="why">Why do you want to work here?</label><textarea id="why"></textarea>
		 <button aria-label="Continue to next step">Next</button>`,
		submitStep)
	site.valid = func(step int, p *browsertest.Page) bool {
		return fieldValue(t, p, "#why") != ""
	}

	r := newRig(t, site, testProfile(), nil)
	r.notifier.onNotify = func(title string) {
		if title != stuckTitle {
			return
		}
		require.NoError(t, site.page.HumanType("#why", "I love the mission"))
		require.NoError(t, site.page.HumanClick(`button[aria-label="Continue to next step"]`))
		require.NoError(t, site.page.HumanClick(`button[aria-label="Submit application"]`))
	}

	require.NoError(t, r.agent.RunPass(ctx))

	assert.Equal(t, []string{"301", "302"}, site.submitted)
	assert.Equal(t, 1, r.notifier.count(stuckTitle), "второй раз ответ берется из выученных")
	assert.False(t, site.page.Observing(), "наблюдатель закрыт после вмешательства")

	v, ok, err := r.agent.Learning().Lookup(ctx, "Why do you want to work here?")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "I love the mission", v)

	qs, err := r.agent.Questions().List(ctx)
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, "why do you want to work here?", qs[0].Label)
	assert.Equal(t, "textarea", qs[0].Type)

	submitted := r.journal.byOutcome(OutcomeSubmitted)
	require.Len(t, submitted, 2)
	assert.Contains(t, submitted[0].Mappings,
		FieldMapping{Label: "why do you want to work here?", Value: "I love the mission", Source: SourceHuman})
	assert.Equal(t, []FieldMapping{{Label: "why do you want to work here?", Value: "I love the mission", Source: SourceLearned}},
		normalized(submitted[1].Mappings))
}

func normalized(ms []FieldMapping) []FieldMapping {
	out := make([]FieldMapping, 0, len(ms))
	for _, m := range ms {
		m.Label = NormalizeLabel(m.Label)
		out = append(out, m)
	}
	return out
}

func TestCapStopsBeforeNextListing(t *testing.T) {
	ctx := context.Background()
	site := newFakeSite([][]fakeJob{{
		{ID: "401", Title: "Go Engineer", Company: "Initech"},
		{ID: "402", Title: "Go Engineer", Company: "Globex"},
	}}, submitStep)

	prof := testProfile()
	prof.Settings.MaxJobs = 1
	r := newRig(t, site, prof, nil)
	require.NoError(t, r.agent.RunPass(ctx))

	assert.Equal(t, []string{"401"}, site.submitted)
	assert.NotContains(t, site.opened, "402")

	n, err := r.agent.Governor().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	active, err := r.agent.Governor().Active(ctx)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestBlacklistAndPreFilters(t *testing.T) {
	ctx := context.Background()
	site := newFakeSite([][]fakeJob{{
		{ID: "501", Title: "Go Engineer", Company: "ACME Corp"},
		{ID: "502", Title: "Senior Go Engineer", Company: "Globex"},
		{ID: "503", Title: "Go Engineer", Company: "Hooli", Applied: true},
		{ID: "504", Title: "Go Engineer", Company: "Umbrella", External: true},
		{ID: "505", Title: "Go Engineer", Company: "Initech"},
	}}, submitStep)

	prof := testProfile()
	prof.Settings.CompanyBlacklist = "acme, "
	prof.Settings.TitleBlacklist = "senior"
	r := newRig(t, site, prof, nil)
	require.NoError(t, r.agent.RunPass(ctx))

	assert.Equal(t, map[string]int{"505": 1}, site.opened)

	reasons := map[string]string{}
	for _, res := range r.journal.byOutcome(OutcomeSkipped) {
		reasons[res.Listing.ID] = res.Reason
	}
	assert.Equal(t, map[string]string{
		"501": ReasonBlacklistedCompany,
		"502": ReasonBlacklistedTitle,
		"503": ReasonApplied,
		"504": ReasonExternalApply,
	}, reasons)
}

func TestStopDuringManualSubmitWait(t *testing.T) {
	tests := []struct {
		name    string
		stop    func(t *testing.T, r *rig, cancel context.CancelFunc)
		wantErr error
	}{
		{
			name: "флаг активности снят",
			stop: func(t *testing.T, r *rig, _ context.CancelFunc) {
				require.NoError(t, r.agent.Governor().SetActive(context.Background(), false))
			},
			wantErr: ErrStopped,
		},
		{
			name:    "контекст отменен",
			stop:    func(_ *testing.T, _ *rig, cancel context.CancelFunc) { cancel() },
			wantErr: context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			site := newFakeSite([][]fakeJob{{{ID: "601", Title: "Go Engineer", Company: "Initech"}}}, submitStep)
			opened := make(chan struct{})
			site.onOpen = func() { close(opened) }

			prof := testProfile()
			prof.Settings.AutoApply = false
			r := newRig(t, site, prof, nil, func(tm *Timings) { tm.HumanWaitPolls = 100000 })

			done := make(chan error, 1)
			go func() { done <- r.agent.RunPass(ctx) }()

			select {
			case <-opened:
			case <-time.After(5 * time.Second):
				t.Fatal("диалог не открылся")
			}

			stoppedAt := time.Now()
			tt.stop(t, r, cancel)

			select {
			case err := <-done:
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.Less(t, time.Since(stoppedAt), time.Second)
			case <-time.After(5 * time.Second):
				t.Fatal("агент не остановился")
			}

			assert.Empty(t, site.submitted)
			assert.Len(t, r.journal.byOutcome(OutcomeAbandoned), 1)
		})
	}
}

func TestRunPassWithoutProfileDisablesAgent(t *testing.T) {
	ctx := context.Background()
	site := newFakeSite([][]fakeJob{{{ID: "701", Title: "Go Engineer", Company: "Initech"}}}, submitStep)
	r := newRig(t, site, testProfile(), nil)
	require.NoError(t, r.kv.Delete(ctx, state.KeyCandidateProfile))

	err := r.agent.RunPass(ctx)
	require.Error(t, err)

	active, err := r.agent.Governor().Active(ctx)
	require.NoError(t, err)
	assert.False(t, active)
	assert.Empty(t, site.opened)
}

func TestServeRunsPassWhenActivated(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	site := newFakeSite([][]fakeJob{{{ID: "801", Title: "Go Engineer", Company: "Initech"}}}, submitStep)
	r := newRig(t, site, testProfile(), nil)

	done := make(chan error, 1)
	go func() { done <- r.agent.Serve(ctx) }()

	require.Eventually(t, func() bool {
		active, err := r.agent.Governor().Active(context.Background())
		return err == nil && !active
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Len(t, r.journal.byOutcome(OutcomeSubmitted), 1)
}

func TestListRerenderedAfterEverySubmitIsFullyProcessed(t *testing.T) {
	ctx := context.Background()
	var jobs []fakeJob
	for i := 1; i <= 6; i++ {
		jobs = append(jobs, fakeJob{ID: fmt.Sprint(i), Title: "Go Engineer", Company: fmt.Sprintf("Company %d", i)})
	}
	site := newFakeSite([][]fakeJob{jobs}, submitStep)
	site.page.OnClick(`button[aria-label="Submit application"]`, func(p *browsertest.Page) {
		p.SetHTML(site.render(0))
	})

	r := newRig(t, site, testProfile(), nil)
	require.NoError(t, r.agent.RunPass(ctx))

	assert.Equal(t, []string{"1", "2", "3", "4", "5", "6"}, site.submitted)
	for id, n := range site.opened {
		assert.Equal(t, 1, n, id)
	}
}

// detachOnClick перерисовывает выдачу при первом клике по карточке jobID,
// так что клик приходится на уже отсоединенный элемент.
type detachOnClick struct {
	*browsertest.Page
	site  *fakeSite
	jobID string
	done  bool
}

func (d *detachOnClick) Click(ctx context.Context, el browser.Element) error {
	href, _ := d.Page.Attr(ctx, el, "href")
	if !d.done && strings.Contains(href, "/jobs/view/"+d.jobID+"/") {
		d.done = true
		d.Page.SetHTML(d.site.render(0))
	}
	return d.Page.Click(ctx, el)
}

func TestCardDetachedDuringClickIsEvaluatedAgain(t *testing.T) {
	ctx := context.Background()
	site := newFakeSite([][]fakeJob{{
		{ID: "1", Title: "Go Engineer", Company: "Initech"},
		{ID: "2", Title: "Go Engineer", Company: "Globex"},
	}}, submitStep)
	surface := &detachOnClick{Page: site.page, site: site, jobID: "2"}
	site.surface = surface

	r := newRig(t, site, testProfile(), nil)
	require.NoError(t, r.agent.RunPass(ctx))

	assert.True(t, surface.done)
	assert.Equal(t, map[string]int{"1": 1, "2": 1}, site.opened)
	assert.Equal(t, []string{"1", "2"}, site.submitted)
}

func TestStuckCounterResetsAfterCleanStep(t *testing.T) {
	ctx := context.Background()
	const detailsStep = `<p>Details</p><button aria-label="Continue to next step">Next</button>`
	site := newFakeSite([][]fakeJob{{{ID: "601", Title: "Go Engineer", Company: "Initech"}}},
		detailsStep, detailsStep, submitStep)

	// Каждый шаг отклоняет первую попытку перехода.
	rejected := map[int]bool{}
	site.valid = func(step int, _ *browsertest.Page) bool {
		if rejected[step] {
			return true
		}
		rejected[step] = true
		return false
	}

	r := newRig(t, site, testProfile(), nil, func(tm *Timings) { tm.StuckLimit = 2 })
	require.NoError(t, r.agent.RunPass(ctx))

	assert.Equal(t, map[int]bool{0: true, 1: true}, rejected)
	assert.Equal(t, []string{"601"}, site.submitted)
	assert.Zero(t, r.notifier.count(stuckTitle))
}
