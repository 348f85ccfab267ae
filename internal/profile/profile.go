// Package profile хранит профиль кандидата и настройки прогона.
// Профиль читается из KV в начале каждого прохода и не меняется до его конца.
package profile

import (
	"strconv"
	"strings"
)

// DefaultMaxJobs - лимит откликов, если в настройках он не задан.
const DefaultMaxJobs = 10

// Profile - плоская запись кандидата плюс настройки прогона.
type Profile struct {
	FirstName  string `json:"firstName,omitempty" yaml:"first_name" validate:"required"`
	MiddleName string `json:"middleName,omitempty" yaml:"middle_name"`
	LastName   string `json:"lastName,omitempty" yaml:"last_name" validate:"required"`
	FullName   string `json:"fullName,omitempty" yaml:"full_name"`

	Email         string `json:"email,omitempty" yaml:"email" validate:"omitempty,email"`
	Phone         string `json:"phone,omitempty" yaml:"phone"`
	ResumeLink    string `json:"resumeLink,omitempty" yaml:"resume_link" validate:"omitempty,url"`
	LinkedinLink  string `json:"linkedinLink,omitempty" yaml:"linkedin_link" validate:"omitempty,url"`
	PortfolioLink string `json:"portfolioLink,omitempty" yaml:"portfolio_link" validate:"omitempty,url"`

	Street      string `json:"street,omitempty" yaml:"street"`
	City        string `json:"city,omitempty" yaml:"city"`
	State       string `json:"state,omitempty" yaml:"state"`
	Zipcode     string `json:"zipcode,omitempty" yaml:"zipcode"`
	Country     string `json:"country,omitempty" yaml:"country"`
	FullAddress string `json:"fullAddress,omitempty" yaml:"full_address"`
	Location    string `json:"location,omitempty" yaml:"location"`

	Experience       string `json:"experience,omitempty" yaml:"experience"`
	RecentEmployer   string `json:"recentEmployer,omitempty" yaml:"recent_employer"`
	NoticePeriodDays string `json:"noticePeriodDays,omitempty" yaml:"notice_period_days"`
	CurrentCTC       string `json:"currentCtc,omitempty" yaml:"current_ctc"`
	DesiredSalary    string `json:"desiredSalary,omitempty" yaml:"desired_salary"`
	Currency         string `json:"currency,omitempty" yaml:"currency"`

	Gender        string `json:"gender,omitempty" yaml:"gender"`
	Ethnicity     string `json:"ethnicity,omitempty" yaml:"ethnicity"`
	Disability    string `json:"disability,omitempty" yaml:"disability"`
	Veteran       string `json:"veteran,omitempty" yaml:"veteran"`
	USCitizenship string `json:"usCitizenship,omitempty" yaml:"us_citizenship"`
	RequireVisa   string `json:"requireVisa,omitempty" yaml:"require_visa"`

	WorkStyle       string   `json:"workStyle,omitempty" yaml:"work_style" validate:"omitempty,oneof=remote hybrid onsite on-site any"`
	JobType         string   `json:"jobType,omitempty" yaml:"job_type"`
	ExperienceLevel string   `json:"experienceLevel,omitempty" yaml:"experience_level"`
	PreferredRoles  []string `json:"preferredRoles,omitempty" yaml:"preferred_roles"`

	LinkedinHeadline string `json:"linkedinHeadline,omitempty" yaml:"linkedin_headline"`
	LinkedinSummary  string `json:"linkedinSummary,omitempty" yaml:"linkedin_summary"`
	CoverLetter      string `json:"coverLetter,omitempty" yaml:"cover_letter"`
	UserInfoAll      string `json:"userInfoAll,omitempty" yaml:"user_info_all"`

	Settings Settings `json:"settings" yaml:"settings"`
}

// Settings - параметры прогона. Изменения применяются со следующего прохода.
type Settings struct {
	MaxJobs          int    `json:"maxJobs,omitempty" yaml:"max_jobs" validate:"gte=0"`
	CompanyBlacklist string `json:"companyBlacklist,omitempty" yaml:"company_blacklist"`
	TitleBlacklist   string `json:"titleBlacklist,omitempty" yaml:"title_blacklist"`
	AutoApply        bool   `json:"autoApply" yaml:"auto_apply"`
}

// Normalize вычисляет производные поля (полное имя и адрес), если они не заданы.
func (p *Profile) Normalize() {
	if p.FullName == "" {
		parts := []string{p.FirstName, p.MiddleName, p.LastName}
		p.FullName = joinNonEmpty(parts, " ")
	}
	if p.FullAddress == "" {
		parts := []string{p.Street, p.City, p.State, p.Zipcode, p.Country}
		p.FullAddress = joinNonEmpty(parts, ", ")
	}
}

// MaxJobs возвращает лимит откликов с учетом значения по умолчанию.
func (p *Profile) MaxJobs() int {
	if p.Settings.MaxJobs <= 0 {
		return DefaultMaxJobs
	}
	return p.Settings.MaxJobs
}

func (p *Profile) CompanyBlacklist() []string {
	return splitTerms(p.Settings.CompanyBlacklist)
}

func (p *Profile) TitleBlacklist() []string {
	return splitTerms(p.Settings.TitleBlacklist)
}

// Values возвращает заполненные поля профиля по ключам, которые использует
// эвристика сопоставления полей формы. Пустые поля в карту не попадают.
func (p *Profile) Values() map[string][]string {
	v := map[string][]string{}
	put := func(key, value string) {
		if value = strings.TrimSpace(value); value != "" {
			v[key] = []string{value}
		}
	}

	put("firstName", p.FirstName)
	put("middleName", p.MiddleName)
	put("lastName", p.LastName)
	put("fullName", p.FullName)
	put("email", p.Email)
	put("phone", p.Phone)
	put("resumeLink", p.ResumeLink)
	put("linkedinLink", p.LinkedinLink)
	put("portfolioLink", p.PortfolioLink)
	put("street", p.Street)
	put("city", p.City)
	put("state", p.State)
	put("zipcode", p.Zipcode)
	put("country", p.Country)
	put("fullAddress", p.FullAddress)
	put("experience", p.Experience)
	put("recentEmployer", p.RecentEmployer)
	put("noticePeriodDays", p.NoticePeriodDays)
	put("currentCtc", p.CurrentCTC)
	put("desiredSalary", p.DesiredSalary)
	put("currency", p.Currency)
	put("gender", p.Gender)
	put("ethnicity", p.Ethnicity)
	put("disability", p.Disability)
	put("veteran", p.Veteran)
	put("usCitizenship", p.USCitizenship)
	put("requireVisa", p.RequireVisa)
	put("workStyle", p.WorkStyle)
	put("jobType", p.JobType)
	put("experienceLevel", p.ExperienceLevel)
	put("linkedinHeadline", p.LinkedinHeadline)
	put("linkedinSummary", p.LinkedinSummary)
	put("coverLetter", p.CoverLetter)
	put("userInfoAll", p.UserInfoAll)

	var roles []string
	for _, r := range p.PreferredRoles {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	if len(roles) > 0 {
		v["preferredRoles"] = roles
	}

	return v
}

// Snapshot - плоское представление профиля для запроса к LLM.
func (p *Profile) Snapshot() map[string]string {
	out := map[string]string{}
	for k, vals := range p.Values() {
		out[k] = strings.Join(vals, ", ")
	}
	out["autoApply"] = strconv.FormatBool(p.Settings.AutoApply)
	return out
}

func splitTerms(raw string) []string {
	var terms []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			terms = append(terms, t)
		}
	}
	return terms
}

func joinNonEmpty(parts []string, sep string) string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
