package profile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"jobAgent/internal/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDerivedFields(t *testing.T) {
	p := &Profile{FirstName: "Ada", MiddleName: "K", LastName: "Lovelace", City: "London", Country: "UK"}
	p.Normalize()

	assert.Equal(t, "Ada K Lovelace", p.FullName)
	assert.Equal(t, "London, UK", p.FullAddress)

	p = &Profile{FirstName: "Ada", LastName: "Lovelace", FullName: "Countess"}
	p.Normalize()
	assert.Equal(t, "Countess", p.FullName)
}

func TestBlacklistTermsSkipBlanks(t *testing.T) {
	p := &Profile{Settings: Settings{CompanyBlacklist: " Acme, ,Globex ", TitleBlacklist: ""}}

	assert.Equal(t, []string{"acme", "globex"}, p.CompanyBlacklist())
	assert.Empty(t, p.TitleBlacklist())
}

func TestMaxJobsDefault(t *testing.T) {
	assert.Equal(t, DefaultMaxJobs, (&Profile{}).MaxJobs())
	assert.Equal(t, 3, (&Profile{Settings: Settings{MaxJobs: 3}}).MaxJobs())
}

func TestValuesOnlyPopulated(t *testing.T) {
	p := &Profile{Phone: "555-1234", PreferredRoles: []string{"Backend Engineer", " ", "SRE"}}
	v := p.Values()

	assert.Equal(t, []string{"555-1234"}, v["phone"])
	assert.Equal(t, []string{"Backend Engineer", "SRE"}, v["preferredRoles"])
	_, ok := v["email"]
	assert.False(t, ok)
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewStore(state.NewMemory())

	_, err := s.Load(ctx)
	require.ErrorIs(t, err, ErrNoProfile)

	require.NoError(t, s.Save(ctx, &Profile{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"}))
	p, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", p.FullName)
}

func TestSaveRejectsInvalid(t *testing.T) {
	s := NewStore(state.NewMemory())
	err := s.Save(context.Background(), &Profile{FirstName: "Ada", LastName: "L", Email: "not-an-email"})
	assert.Error(t, err)
}

func TestImportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	body := `
first_name: Ada
last_name: Lovelace
phone: "555-1234"
experience: "5.5 years"
preferred_roles: ["Backend Engineer (General)", "SRE"]
work_style: remote
settings:
  max_jobs: 5
  company_blacklist: "Acme"
  auto_apply: true
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	p, err := ImportFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", p.FullName)
	assert.Equal(t, 5, p.MaxJobs())
	assert.True(t, p.Settings.AutoApply)
	assert.Len(t, p.PreferredRoles, 2)
}

func TestImportFileRejectsBadWorkStyle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("first_name: A\nlast_name: B\nwork_style: moon\n"), 0o600))

	_, err := ImportFile(path)
	assert.Error(t, err)
}
