// Package export renders leads as CSV for download.
package export

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"
	"time"

	"leadsync-engine/internal/domain"
)

// Header order follows domain.Lead. Keep it EXACT; spreadsheets import by position.
var Header = []string{
	"ID",
	"Name",
	"Title",
	"Company",
	"Industry",
	"Employees",
	"Founded Year",
	"Email",
	"Phone",
	"Location",
	"Description",
	"LinkedIn URL",
	"Website",
	"Contacted",
	"Last Updated",
	"Source",
}

// FileName is the download name for an export made at t.
func FileName(t time.Time) string {
	return "SMB_Leads_" + t.Format("2006-01-02") + ".csv"
}

// WriteCSV writes the header and one line per lead. With no leads the output
// is the header line alone.
func WriteCSV(w io.Writer, leads []domain.Lead) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(Header, ",") + "\n"); err != nil {
		return err
	}
	for _, l := range leads {
		if _, err := bw.WriteString(strings.Join(row(l), ",") + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func CSV(leads []domain.Lead) string {
	var buf bytes.Buffer
	_ = WriteCSV(&buf, leads)
	return buf.String()
}

func row(l domain.Lead) []string {
	founded := ""
	if l.FoundedYear != nil {
		founded = strconv.Itoa(*l.FoundedYear)
	}
	updated := ""
	if !l.LastUpdated.IsZero() {
		updated = l.LastUpdated.UTC().Format(time.RFC3339)
	}

	return []string{
		field(l.ID),
		text(l.Name),
		text(l.Title),
		text(l.Company),
		text(l.Industry),
		strconv.Itoa(l.Employees),
		founded,
		field(l.Email),
		field(l.Phone),
		text(l.Location),
		text(l.Description),
		field(l.LinkedInURL),
		field(l.Website),
		strconv.FormatBool(l.Contacted),
		updated,
		field(l.Source),
	}
}

// text always quotes free-text values.
func text(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// field quotes only when the value would otherwise break the row.
func field(s string) string {
	if strings.ContainsAny(s, ",\"\r\n") {
		return text(s)
	}
	return s
}
