package clean

import (
	"regexp"
	"strings"

	"leadsync-engine/internal/domain"
)

type Reason string

const (
	ReasonMissingName     Reason = "missing_name"
	ReasonMissingCompany  Reason = "missing_company"
	ReasonInvalidEmail    Reason = "invalid_email"
	ReasonTitleNotAllowed Reason = "title_not_allowed"
)

var reEmail = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// AllowedTitles is narrower than the canonical title table on purpose:
// COO, CTO and CFO are normalized but not accepted.
var AllowedTitles = map[string]bool{
	"CEO":        true,
	"Owner":      true,
	"Founder":    true,
	"President":  true,
	"Co-Founder": true,
}

func ValidEmail(s string) bool {
	return s != "" && reEmail.MatchString(s)
}

// Validate reports whether a normalized lead may be kept, and if not, why.
func Validate(l domain.Lead) (bool, Reason) {
	switch {
	case strings.TrimSpace(l.Name) == "":
		return false, ReasonMissingName
	case strings.TrimSpace(l.Company) == "":
		return false, ReasonMissingCompany
	case !ValidEmail(l.Email):
		return false, ReasonInvalidEmail
	case !AllowedTitles[l.Title]:
		return false, ReasonTitleNotAllowed
	}
	return true, ""
}
