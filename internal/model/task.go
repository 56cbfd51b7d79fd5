package model

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of a task's calendar date.
const DateLayout = "2006-01-02"

type Category string

const (
	CategoryDSA     Category = "DSA"
	CategoryProject Category = "PROJECT"
	CategoryLearn   Category = "LEARN"
	CategoryOps     Category = "OPS"
	CategoryApply   Category = "APPLY"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

// Descriptor carries the presentation attributes of an enum value.
type Descriptor struct {
	Label string `json:"label"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

// Categories is the closed category set in declaration order.
var Categories = []Category{
	CategoryDSA,
	CategoryProject,
	CategoryLearn,
	CategoryOps,
	CategoryApply,
}

// CategoryDescriptors is the single table consulted for category labels.
// Adding a category means adding it here and to Categories.
var CategoryDescriptors = map[Category]Descriptor{
	CategoryDSA:     {Label: "Data Structures & Algorithms", Color: "blue", Icon: "code"},
	CategoryProject: {Label: "Projects", Color: "green", Icon: "briefcase"},
	CategoryLearn:   {Label: "Learning", Color: "magenta", Icon: "book"},
	CategoryOps:     {Label: "DevOps", Color: "yellow", Icon: "server"},
	CategoryApply:   {Label: "Applications", Color: "red", Icon: "send"},
}

var Statuses = []Status{
	StatusPending,
	StatusInProgress,
	StatusCompleted,
}

var StatusDescriptors = map[Status]Descriptor{
	StatusPending:    {Label: "Pending", Color: "white", Icon: "circle"},
	StatusInProgress: {Label: "In Progress", Color: "yellow", Icon: "play"},
	StatusCompleted:  {Label: "Completed", Color: "green", Icon: "check"},
}

func (c Category) Valid() bool {
	_, ok := CategoryDescriptors[c]
	return ok
}

func (c Category) Descriptor() Descriptor {
	return CategoryDescriptors[c]
}

func (s Status) Valid() bool {
	_, ok := StatusDescriptors[s]
	return ok
}

func (s Status) Descriptor() Descriptor {
	return StatusDescriptors[s]
}

// ParseCategory accepts a category name in any case.
func ParseCategory(raw string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(raw)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", raw)
	}
	return c, nil
}

// ParseDate parses a YYYY-MM-DD calendar date into UTC midnight.
func ParseDate(raw string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed date %q: %w", raw, err)
	}
	return d, nil
}

// Day truncates t to its calendar date in t's location and returns it as UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TaskDraft is a generated task before it is assigned an identity.
type TaskDraft struct {
	Date        string   `json:"date"`
	Category    Category `json:"category"`
	Description string   `json:"description"`
	Priority    int      `json:"priority"`
	WeekNumber  int      `json:"week_number"`
	Phase       string   `json:"phase"`
}

type Task struct {
	ID          string     `json:"id"`
	Date        string     `json:"date"`
	Category    Category   `json:"category"`
	Description string     `json:"description"`
	Priority    int        `json:"priority"`
	WeekNumber  int        `json:"week_number"`
	Phase       string     `json:"phase"`
	Status      Status     `json:"status"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	// Seq is the generation order; it keeps catalog order within a date.
	Seq int `json:"-"`
}

// NewTask materializes a draft as a PENDING task.
func NewTask(id string, d TaskDraft, createdAt time.Time) Task {
	return Task{
		ID:          id,
		Date:        d.Date,
		Category:    d.Category,
		Description: d.Description,
		Priority:    d.Priority,
		WeekNumber:  d.WeekNumber,
		Phase:       d.Phase,
		Status:      StatusPending,
		CreatedAt:   createdAt,
	}
}

// TaskFilter narrows a task listing. Zero fields do not filter.
type TaskFilter struct {
	Category Category
	Status   Status
	Date     string
	Week     int
	From     string
	To       string
}

// Matches reports whether t passes every set field of f.
func (f TaskFilter) Matches(t Task) bool {
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Date != "" && t.Date != f.Date {
		return false
	}
	if f.Week != 0 && t.WeekNumber != f.Week {
		return false
	}
	if f.From != "" && t.Date < f.From {
		return false
	}
	if f.To != "" && t.Date > f.To {
		return false
	}
	return true
}

// Horizon is the inclusive date range a schedule covers.
type Horizon struct {
	Start time.Time
	End   time.Time
}

func NewHorizon(start, end string) (Horizon, error) {
	s, err := ParseDate(start)
	if err != nil {
		return Horizon{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return Horizon{}, err
	}
	return Horizon{Start: s, End: e}, nil
}

// Contains reports whether the calendar date of t lies within the horizon.
func (h Horizon) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(h.Start) && !d.After(h.End)
}

// Fingerprint identifies the horizon when checking whether it has been generated.
func (h Horizon) Fingerprint() string {
	return h.Start.Format(DateLayout) + ".." + h.End.Format(DateLayout)
}

// Less orders tasks by date, then by generation order.
func Less(a, b Task) bool {
	if a.Date != b.Date {
		return a.Date < b.Date
	}
	return a.Seq < b.Seq
}

// Days returns the number of calendar days in the horizon, or 0 if it is inverted.
func (h Horizon) Days() int {
	if h.End.Before(h.Start) {
		return 0
	}
	return int(h.End.Sub(h.Start).Hours()/24) + 1
}
