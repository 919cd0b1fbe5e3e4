package clean

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"leadsync-engine/internal/domain"
)

// Pipeline runs normalize -> validate -> dedupe over one batch.
// The zero value is usable.
type Pipeline struct {
	StrictDedup bool
	Source      string

	// Now and NewID are overridable for tests.
	Now   func() time.Time
	NewID func() string
}

// Report counts what happened to every input record.
type Report struct {
	Input      int            `json:"input"`
	Accepted   int            `json:"accepted"`
	Rejected   map[Reason]int `json:"rejected"`
	Duplicates int            `json:"duplicates"`
	Failed     int            `json:"failed"`
}

func (p Pipeline) Clean(raw []domain.RawLead) []domain.Lead {
	out, _ := p.CleanWithReport(raw)
	return out
}

// CleanWithReport never fails as a whole: a record that cannot be normalized
// is logged and skipped. Output order is input order.
func (p Pipeline) CleanWithReport(raw []domain.RawLead) ([]domain.Lead, Report) {
	now := time.Now()
	if p.Now != nil {
		now = p.Now()
	}

	rep := Report{Input: len(raw), Rejected: make(map[Reason]int)}
	dd := NewDeduper(p.StrictDedup)
	out := make([]domain.Lead, 0, len(raw))

	for i, r := range raw {
		lead, err := p.normalize(r, now)
		if err != nil {
			log.Printf("[clean] warn: skipped record index=%d err=%v", i, err)
			rep.Failed++
			continue
		}
		if ok, why := Validate(lead); !ok {
			rep.Rejected[why]++
			continue
		}
		if !dd.Keep(lead) {
			rep.Duplicates++
			continue
		}
		out = append(out, lead)
	}

	rep.Accepted = len(out)
	return out, rep
}

func (p Pipeline) normalize(r domain.RawLead, now time.Time) (lead domain.Lead, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("normalize: %v", rec)
		}
	}()

	lead = NormalizeLead(r, now)
	if lead.ID == "" {
		if p.NewID != nil {
			lead.ID = p.NewID()
		} else {
			lead.ID = uuid.NewString()
		}
	}
	lead.Source = p.Source
	if lead.Source == "" {
		lead.Source = domain.SourceApollo
	}
	return lead, nil
}
