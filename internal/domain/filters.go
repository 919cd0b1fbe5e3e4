package domain

const MaxPerPage = 100

// Filters is every search option the engine understands.
type Filters struct {
	Titles      []string `yaml:"titles" json:"titles"`
	EmployeeMin int      `yaml:"employee_min" json:"employeeMin"`
	EmployeeMax int      `yaml:"employee_max" json:"employeeMax"`
	Industries  []string `yaml:"industries" json:"industries"`
	Locations   []string `yaml:"locations" json:"locations"`
	FoundedYear int      `yaml:"founded_year" json:"foundedYear"`
	RevenueMin  int64    `yaml:"revenue_min" json:"revenueMin"`
	RevenueMax  int64    `yaml:"revenue_max" json:"revenueMax"`
	Page        int      `yaml:"page" json:"page"`
	PerPage     int      `yaml:"per_page" json:"perPage"`
}

// Clamped returns a copy with page >= 1 and per-page in [1, MaxPerPage].
func (f Filters) Clamped() Filters {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage <= 0 {
		f.PerPage = 25
	}
	if f.PerPage > MaxPerPage {
		f.PerPage = MaxPerPage
	}
	if f.EmployeeMin < 0 {
		f.EmployeeMin = 0
	}
	if f.EmployeeMax < 0 {
		f.EmployeeMax = 0
	}
	return f
}

// Settings are the runtime knobs a user can change through the API.
// Zero values fall back to the YAML config.
type Settings struct {
	Filters         Filters `json:"filters"`
	CacheTTLSeconds int     `json:"cacheTtlSeconds"`
	AutoRefresh     bool    `json:"autoRefresh"`
	StrictDedup     bool    `json:"strictDedup"`
}
