package apollo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"leadsync-engine/internal/domain"
)

// text accepts a JSON string, number or bool and keeps it as text. null,
// objects and arrays become "". Upstream types drift; parsing must not fail
// because of it.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0, bytes.Equal(b, []byte("null")):
		*t = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = text(s)
	case b[0] == '{', b[0] == '[':
		*t = ""
	default:
		*t = text(b)
	}
	return nil
}

type searchResponse struct {
	People     []person `json:"people"`
	Contacts   []person `json:"contacts"`
	Pagination struct {
		Page         int `json:"page"`
		PerPage      int `json:"per_page"`
		TotalEntries int `json:"total_entries"`
		TotalPages   int `json:"total_pages"`
	} `json:"pagination"`
}

type person struct {
	ID           text          `json:"id"`
	FirstName    text          `json:"first_name"`
	LastName     text          `json:"last_name"`
	Name         text          `json:"name"`
	Title        text          `json:"title"`
	Email        text          `json:"email"`
	LinkedInURL  text          `json:"linkedin_url"`
	City         text          `json:"city"`
	State        text          `json:"state"`
	Country      text          `json:"country"`
	PhoneNumbers []phoneNumber `json:"phone_numbers"`
	Organization *organization `json:"organization"`
}

type phoneNumber struct {
	RawNumber       text `json:"raw_number"`
	SanitizedNumber text `json:"sanitized_number"`
}

type organization struct {
	Name                  text `json:"name"`
	Industry              text `json:"industry"`
	EstimatedNumEmployees text `json:"estimated_num_employees"`
	FoundedYear           text `json:"founded_year"`
	AnnualRevenue         text `json:"annual_revenue"`
	WebsiteURL            text `json:"website_url"`
	ShortDescription      text `json:"short_description"`
	Phone                 text `json:"phone"`
	PrimaryPhone          *struct {
		Number text `json:"number"`
	} `json:"primary_phone"`
}

// Parse maps a search response body onto RawLeads. Missing fields become
// empty strings; only a body that is not a JSON object is an error.
func Parse(body []byte) (Result, error) {
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Result{}, fmt.Errorf("apollo decode: %w", err)
	}

	people := append(resp.People, resp.Contacts...)
	out := make([]domain.RawLead, 0, len(people))
	for _, p := range people {
		out = append(out, toRaw(p))
	}

	return Result{
		Leads:        out,
		Page:         resp.Pagination.Page,
		TotalPages:   resp.Pagination.TotalPages,
		TotalEntries: resp.Pagination.TotalEntries,
	}, nil
}

func toRaw(p person) domain.RawLead {
	r := domain.RawLead{
		ID:          string(p.ID),
		FirstName:   string(p.FirstName),
		LastName:    string(p.LastName),
		Name:        string(p.Name),
		Title:       string(p.Title),
		Email:       string(p.Email),
		LinkedInURL: string(p.LinkedInURL),
		City:        string(p.City),
		State:       string(p.State),
		Country:     string(p.Country),
	}

	for _, ph := range p.PhoneNumbers {
		if n := firstNonEmpty(string(ph.SanitizedNumber), string(ph.RawNumber)); n != "" {
			r.Phone = n
			break
		}
	}

	if o := p.Organization; o != nil {
		r.Company = string(o.Name)
		r.Industry = string(o.Industry)
		r.Employees = string(o.EstimatedNumEmployees)
		r.FoundedYear = string(o.FoundedYear)
		r.Revenue = string(o.AnnualRevenue)
		r.Website = string(o.WebsiteURL)
		r.Description = string(o.ShortDescription)
		if r.Phone == "" {
			primary := ""
			if o.PrimaryPhone != nil {
				primary = string(o.PrimaryPhone.Number)
			}
			r.Phone = firstNonEmpty(primary, string(o.Phone))
		}
	}
	return r
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
