// Package clean turns raw search results into validated, deduplicated leads.
package clean

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"leadsync-engine/internal/domain"
)

const (
	MinFoundedYear    = 1800
	MaxDescriptionLen = 500
)

var (
	reOrgJunk = regexp.MustCompile(`[^\p{L}\p{N}_\s\-.&]`)
	reScheme  = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]*://`)
	reTag     = regexp.MustCompile(`<[A-Za-z/!][^>]*>`)
)

// canonical titles, keyed by lower-cased, whitespace-collapsed input
var titleTable = map[string]string{
	"ceo":                      "CEO",
	"chief executive officer":  "CEO",
	"founder":                  "Founder",
	"co-founder":               "Co-Founder",
	"cofounder":                "Co-Founder",
	"co founder":               "Co-Founder",
	"owner":                    "Owner",
	"business owner":           "Owner",
	"president":                "President",
	"coo":                      "COO",
	"chief operating officer":  "COO",
	"cto":                      "CTO",
	"chief technology officer": "CTO",
	"cfo":                      "CFO",
	"chief financial officer":  "CFO",
}

func CleanText(s string) string {
	s = norm.NFKC.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// Name capitalizes the first letter of every whitespace-separated token and
// lower-cases the rest. Hyphens and apostrophes do not start a new token.
func Name(s string) string {
	words := strings.Fields(norm.NFKC.String(s))
	upper, lower := cases.Upper(language.Und), cases.Lower(language.Und)
	for i, w := range words {
		_, size := utf8.DecodeRuneInString(w)
		words[i] = upper.String(w[:size]) + lower.String(w[size:])
	}
	return strings.Join(words, " ")
}

// Title maps well-known executive titles to their canonical spelling.
// Unknown titles come back trimmed with their original casing.
func Title(s string) string {
	t := strings.TrimSpace(s)
	key := strings.ToLower(strings.Join(strings.Fields(t), " "))
	if canon, ok := titleTable[key]; ok {
		return canon
	}
	return t
}

// Org cleans company and industry names: whitespace collapsed, characters
// outside letters, digits, '_', '-', '.', '&' and spaces removed.
func Org(s string) string {
	s = CleanText(s)
	s = reOrgJunk.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

func Location(s string) string {
	return CleanText(s)
}

// Employees parses a head count. Anything unparseable, negative or above
// MaxInt32 is 0.
func Employees(s string) int {
	s = strings.TrimSpace(strings.NewReplacer(",", "", "_", "", " ", "").Replace(s))
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > math.MaxInt32 {
			return 0
		}
		return n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f > math.MaxInt32 {
		return 0
	}
	return int(f)
}

// FoundedYear returns nil when s is not a year in [MinFoundedYear, now.Year()].
func FoundedYear(s string, now time.Time) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	y, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > 1e6 {
			return nil
		}
		y = int(f)
	}
	if y < MinFoundedYear || y > now.Year() {
		return nil
	}
	return &y
}

func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Phone keeps digits and a single leading '+'.
func Phone(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out == "+" {
		return ""
	}
	return out
}

// URL makes sure a non-empty link carries an explicit scheme.
func URL(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return ""
	case reScheme.MatchString(s):
		return s
	case strings.HasPrefix(s, "//"):
		return "https:" + s
	default:
		return "https://" + s
	}
}

// Description strips markup, collapses whitespace and cuts to
// MaxDescriptionLen runes without an ellipsis. Text is only parsed as HTML
// when it carries a tag, so a bare '<' survives.
func Description(s string) string {
	if reTag.MatchString(s) {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
	}
	s = CleanText(s)
	if r := []rune(s); len(r) > MaxDescriptionLen {
		s = string(r[:MaxDescriptionLen])
	}
	return s
}

// NormalizeLead applies every field rule to one raw record. ID is passed
// through trimmed; callers assign one when it is empty.
func NormalizeLead(r domain.RawLead, now time.Time) domain.Lead {
	name := r.Name
	if strings.TrimSpace(name) == "" {
		name = r.FirstName + " " + r.LastName
	}

	loc := r.Location
	if strings.TrimSpace(loc) == "" {
		var parts []string
		for _, p := range []string{r.City, r.State, r.Country} {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		loc = strings.Join(parts, ", ")
	}

	return domain.Lead{
		ID:          strings.TrimSpace(r.ID),
		Name:        Name(name),
		Title:       Title(r.Title),
		Company:     Org(r.Company),
		Industry:    Org(r.Industry),
		Employees:   Employees(r.Employees),
		FoundedYear: FoundedYear(r.FoundedYear, now),
		Email:       Email(r.Email),
		Phone:       Phone(r.Phone),
		Location:    Location(loc),
		Description: Description(r.Description),
		LinkedInURL: URL(r.LinkedInURL),
		Website:     URL(r.Website),
		LastUpdated: now.UTC(),
	}
}
