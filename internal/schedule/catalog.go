package schedule

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"preptracker/internal/model"
)

var (
	ErrInvalidHorizon = errors.New("invalid horizon: end date is before start date")
	ErrEmptyCatalog   = errors.New("empty catalog: no task is produced across the horizon")
	ErrInvalidCatalog = errors.New("invalid catalog")
)

//go:embed default_catalog.yaml
var defaultCatalogYAML []byte

// Template declares how one category emits tasks.
type Template struct {
	Category model.Category `yaml:"category"`
	// Days holds weekday tokens: mon..sun, full weekday names, daily, weekdays, weekends.
	Days          []string       `yaml:"days"`
	PerDay        int            `yaml:"per_day"`
	Priority      int            `yaml:"priority"`
	PhasePriority map[string]int `yaml:"phase_priority"`
	Descriptions  []string       `yaml:"descriptions"`
}

// PhaseRange maps an inclusive range of week numbers to a phase name.
type PhaseRange struct {
	Name     string `yaml:"name"`
	FromWeek int    `yaml:"from_week"`
	ToWeek   int    `yaml:"to_week"`
}

// Catalog is the declarative schedule configuration. Template order is the
// order tasks appear within a single date.
type Catalog struct {
	Templates []Template   `yaml:"templates"`
	Phases    []PhaseRange `yaml:"phases"`
}

// DefaultCatalog returns the built-in preparation catalog.
func DefaultCatalog() (Catalog, error) {
	return ParseCatalog(defaultCatalogYAML)
}

// LoadCatalog reads a catalog from a YAML file.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// PhaseFor resolves the phase containing week.
func (c Catalog) PhaseFor(week int) (string, bool) {
	for _, p := range c.Phases {
		if week >= p.FromWeek && week <= p.ToWeek {
			return p.Name, true
		}
	}
	return "", false
}

// Validate checks templates and requires the phase table to be ordered,
// contiguous from week 1 and free of overlaps.
func (c Catalog) Validate() error {
	for i, t := range c.Templates {
		if _, err := t.compile(); err != nil {
			return fmt.Errorf("%w: template %d (%s): %v", ErrInvalidCatalog, i, t.Category, err)
		}
	}

	if len(c.Phases) == 0 {
		return fmt.Errorf("%w: phase table is empty", ErrInvalidCatalog)
	}
	next := 1
	for _, p := range c.Phases {
		if p.Name == "" {
			return fmt.Errorf("%w: phase starting at week %d has no name", ErrInvalidCatalog, p.FromWeek)
		}
		if p.FromWeek != next {
			return fmt.Errorf("%w: phase %q starts at week %d, expected %d", ErrInvalidCatalog, p.Name, p.FromWeek, next)
		}
		if p.ToWeek < p.FromWeek {
			return fmt.Errorf("%w: phase %q ends before it starts", ErrInvalidCatalog, p.Name)
		}
		next = p.ToWeek + 1
	}
	return nil
}

// lastWeek is the highest week number covered by the phase table.
func (c Catalog) lastWeek() int {
	if len(c.Phases) == 0 {
		return 0
	}
	return c.Phases[len(c.Phases)-1].ToWeek
}

type compiledTemplate struct {
	category      model.Category
	days          [7]bool
	perDay        int
	priority      int
	phasePriority map[string]int
	descriptions  []string
}

func (t Template) compile() (compiledTemplate, error) {
	ct := compiledTemplate{
		category:      t.Category,
		perDay:        t.PerDay,
		priority:      t.Priority,
		phasePriority: t.PhasePriority,
		descriptions:  t.Descriptions,
	}
	if !t.Category.Valid() {
		return ct, fmt.Errorf("unknown category %q", t.Category)
	}
	if len(t.Descriptions) == 0 {
		return ct, errors.New("description pool is empty")
	}
	if ct.perDay == 0 {
		ct.perDay = 1
	}
	if ct.perDay < 0 {
		return ct, fmt.Errorf("per_day %d is negative", t.PerDay)
	}
	if ct.priority == 0 {
		ct.priority = 1
	}
	if !validPriority(ct.priority) {
		return ct, fmt.Errorf("priority %d out of range 1..3", ct.priority)
	}
	for phase, p := range t.PhasePriority {
		if !validPriority(p) {
			return ct, fmt.Errorf("priority %d for phase %q out of range 1..3", p, phase)
		}
	}
	if len(t.Days) == 0 {
		return ct, errors.New("no days declared")
	}
	for _, token := range t.Days {
		if err := markDays(&ct.days, token); err != nil {
			return ct, err
		}
	}
	return ct, nil
}

func (ct compiledTemplate) priorityFor(phase string) int {
	if p, ok := ct.phasePriority[phase]; ok {
		return p
	}
	return ct.priority
}

func validPriority(p int) bool {
	return p >= 1 && p <= 3
}

var weekdayTokens = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

func markDays(days *[7]bool, token string) error {
	token = strings.ToLower(strings.TrimSpace(token))
	switch token {
	case "daily":
		for i := range days {
			days[i] = true
		}
	case "weekdays":
		for d := time.Monday; d <= time.Friday; d++ {
			days[d] = true
		}
	case "weekends":
		days[time.Saturday] = true
		days[time.Sunday] = true
	default:
		wd, ok := weekdayTokens[token]
		if !ok {
			return fmt.Errorf("unknown day %q", token)
		}
		days[wd] = true
	}
	return nil
}
