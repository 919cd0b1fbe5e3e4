package domain

import "time"

// RawLead is one person/organization record as it came off the search API.
// Every field is optional; numeric-ish values are kept as text.
type RawLead struct {
	ID          string
	FirstName   string
	LastName    string
	Name        string
	Title       string
	Company     string
	Industry    string
	Employees   string
	Revenue     string
	FoundedYear string
	Email       string
	Phone       string
	City        string
	State       string
	Country     string
	Location    string
	LinkedInURL string
	Website     string
	Description string
}

type Lead struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	Industry    string    `json:"industry"`
	Employees   int       `json:"employees"`
	FoundedYear *int      `json:"foundedYear,omitempty"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	LinkedInURL string    `json:"linkedinUrl"`
	Website     string    `json:"website"`
	Contacted   bool      `json:"contacted"`
	LastUpdated time.Time `json:"lastUpdated"`
	Source      string    `json:"source"`
}

const SourceApollo = "apollo"
