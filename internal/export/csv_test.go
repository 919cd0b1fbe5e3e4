package export

import (
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"leadsync-engine/internal/domain"
)

func lines(s string) []string {
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

func TestCSVHeaderAndLineCount(t *testing.T) {
	year := 2001
	leads := []domain.Lead{
		{ID: "1", Name: "John Smith", Title: "CEO", Company: "Acme", Email: "john@x.com", Employees: 12, FoundedYear: &year},
		{ID: "2", Name: "Ann Lee", Title: "Owner", Company: "Lee & Co", Email: "ann@x.com"},
		{ID: "3", Name: "Bo Ray", Title: "Founder", Company: "Ray", Email: "bo@x.com", Contacted: true},
	}

	out := CSV(leads)
	ls := lines(out)
	if len(ls) != len(leads)+1 {
		t.Fatalf("got %d lines, want %d", len(ls), len(leads)+1)
	}
	if ls[0] != strings.Join(Header, ",") {
		t.Errorf("header = %q", ls[0])
	}
}

func TestCSVQuoting(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	l := domain.Lead{
		ID:          "p1",
		Name:        `Jo "JJ" Smith`,
		Title:       "CEO",
		Company:     "Acme, Inc",
		Industry:    "Retail",
		Employees:   7,
		Email:       "jo@x.com",
		Phone:       "+15550001111",
		Location:    "Austin, TX",
		Description: "We sell things",
		Website:     "https://acme.example",
		LastUpdated: ts,
		Source:      "apollo",
	}

	got := lines(CSV([]domain.Lead{l}))[1]
	want := `p1,"Jo ""JJ"" Smith","CEO","Acme, Inc","Retail",7,,jo@x.com,+15550001111,"Austin, TX","We sell things",,https://acme.example,false,2026-01-02T03:04:05Z,apollo`
	if got != want {
		t.Errorf("row =\n%s\nwant\n%s", got, want)
	}
}

func TestCSVParsesBack(t *testing.T) {
	leads := []domain.Lead{{ID: "1", Name: `A "B", C`, Company: "X", Email: "a@x.com", Website: "https://x.com/?a=1,2"}}

	recs, err := csv.NewReader(strings.NewReader(CSV(leads))).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(recs) != 2 || len(recs[1]) != len(Header) {
		t.Fatalf("records = %v", recs)
	}
	if recs[1][1] != `A "B", C` || recs[1][12] != "https://x.com/?a=1,2" {
		t.Errorf("round trip = %q / %q", recs[1][1], recs[1][12])
	}
}

func TestCSVEmptyIsHeaderOnly(t *testing.T) {
	ls := lines(CSV(nil))
	if len(ls) != 1 || ls[0] != strings.Join(Header, ",") {
		t.Errorf("empty export = %q", ls)
	}
}

func TestFileName(t *testing.T) {
	got := FileName(time.Date(2026, 10, 15, 23, 0, 0, 0, time.UTC))
	if got != "SMB_Leads_2026-10-15.csv" {
		t.Errorf("FileName = %q", got)
	}
}
