// Package stats computes grouped counts over a set of cleaned leads.
package stats

import "leadsync-engine/internal/domain"

const (
	BucketUnknown  = "Unknown"
	Bucket1to10    = "1-10"
	Bucket11to50   = "11-50"
	Bucket51to200  = "51-200"
	Bucket201to500 = "201-500"
	Bucket500Plus  = "500+"
)

// SizeBuckets lists the bucket labels in ascending order.
var SizeBuckets = []string{BucketUnknown, Bucket1to10, Bucket11to50, Bucket51to200, Bucket201to500, Bucket500Plus}

type Stats struct {
	Total        int            `json:"total"`
	Contacted    int            `json:"contacted"`
	NotContacted int            `json:"notContacted"`
	ByIndustry   map[string]int `json:"byIndustry"`
	ByTitle      map[string]int `json:"byTitle"`
	BySize       map[string]int `json:"bySize"`
}

// SizeBucket maps a head count to exactly one bucket label.
// Negative counts are treated as unknown.
func SizeBucket(employees int) string {
	switch {
	case employees <= 0:
		return BucketUnknown
	case employees <= 10:
		return Bucket1to10
	case employees <= 50:
		return Bucket11to50
	case employees <= 200:
		return Bucket51to200
	case employees <= 500:
		return Bucket201to500
	default:
		return Bucket500Plus
	}
}

func Aggregate(leads []domain.Lead) Stats {
	s := Stats{
		ByIndustry: make(map[string]int),
		ByTitle:    make(map[string]int),
		BySize:     make(map[string]int),
	}

	for _, l := range leads {
		s.Total++
		if l.Contacted {
			s.Contacted++
		} else {
			s.NotContacted++
		}

		industry := l.Industry
		if industry == "" {
			industry = BucketUnknown
		}
		s.ByIndustry[industry]++

		title := l.Title
		if title == "" {
			title = BucketUnknown
		}
		s.ByTitle[title]++

		s.BySize[SizeBucket(l.Employees)]++
	}
	return s
}
