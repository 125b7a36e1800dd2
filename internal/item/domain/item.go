package domain

import (
	"strings"
	"time"
)

// Section is the priority bucket an item is filed under
type Section string

const (
	SectionNow      Section = "now"
	SectionThisWeek Section = "this-week"
	SectionWatching Section = "watching"
	SectionHorizon  Section = "horizon"
	SectionSomeday  Section = "someday"
)

// Sections lists every bucket in display order
var Sections = []Section{SectionNow, SectionThisWeek, SectionWatching, SectionHorizon, SectionSomeday}

// ItemType describes what kind of thing was captured
type ItemType string

const (
	TypeTask      ItemType = "task"
	TypeNote      ItemType = "note"
	TypeReference ItemType = "reference"
	TypeDelegated ItemType = "delegated"
	TypeRead      ItemType = "read"
)

var itemTypes = []ItemType{TypeTask, TypeNote, TypeReference, TypeDelegated, TypeRead}

// Effort is a rough size estimate, mostly meaningful for tasks
type Effort string

const (
	EffortLow    Effort = "low"
	EffortMedium Effort = "medium"
	EffortHigh   Effort = "high"
)

var efforts = []Effort{EffortLow, EffortMedium, EffortHigh}

// Context tags an item as work, personal or both
type Context string

const (
	ContextWork     Context = "work"
	ContextPersonal Context = "personal"
	ContextBoth     Context = "both"
)

// contextCycle is the rotation applied by CycleContext
var contextCycle = []Context{ContextWork, ContextPersonal, ContextBoth}

func (s Section) Valid() bool  { return oneOf(s, Sections) }
func (t ItemType) Valid() bool { return oneOf(t, itemTypes) }
func (e Effort) Valid() bool   { return oneOf(e, efforts) }
func (c Context) Valid() bool  { return oneOf(c, contextCycle) }

// Label is the human name of a section, used in capture acknowledgments
func (s Section) Label() string {
	switch s {
	case SectionNow:
		return "Now"
	case SectionThisWeek:
		return "This Week"
	case SectionWatching:
		return "Watching"
	case SectionHorizon:
		return "Horizon"
	case SectionSomeday:
		return "Someday / Read"
	}
	return string(s)
}

// Next returns the context that follows c in the work → personal → both rotation
func (c Context) Next() Context {
	for i, v := range contextCycle {
		if v == c {
			return contextCycle[(i+1)%len(contextCycle)]
		}
	}
	return contextCycle[0]
}

func ParseSection(v string) (Section, error) {
	s := Section(v)
	if !s.Valid() {
		return "", invalidEnum("section", v)
	}
	return s, nil
}

func ParseItemType(v string) (ItemType, error) {
	t := ItemType(v)
	if !t.Valid() {
		return "", invalidEnum("type", v)
	}
	return t, nil
}

func ParseEffort(v string) (Effort, error) {
	e := Effort(v)
	if !e.Valid() {
		return "", invalidEnum("effort", v)
	}
	return e, nil
}

func ParseContext(v string) (Context, error) {
	c := Context(v)
	if !c.Valid() {
		return "", invalidEnum("context", v)
	}
	return c, nil
}

func oneOf[T comparable](v T, set []T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// Item is a captured note, task or forwarded email after classification
type Item struct {
	ID          string     `json:"id"`
	Raw         string     `json:"raw"`
	Title       string     `json:"title"`
	Notes       *string    `json:"notes,omitempty"`
	Section     Section    `json:"section"`
	Type        ItemType   `json:"type"`
	Effort      *Effort    `json:"effort,omitempty"`
	Context     Context    `json:"context"`
	DelegatedTo *string    `json:"delegatedTo,omitempty"`
	DueDate     *Date      `json:"dueDate,omitempty"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// ProcessedItem is the draft produced by classification
type ProcessedItem struct {
	Title       string   `json:"title"`
	Notes       *string  `json:"notes,omitempty"`
	Section     Section  `json:"section"`
	Type        ItemType `json:"type"`
	Effort      *Effort  `json:"effort,omitempty"`
	Context     Context  `json:"context"`
	DelegatedTo *string  `json:"delegatedTo,omitempty"`
	DueDate     *Date    `json:"dueDate,omitempty"`
}

// NewItem completes a classification draft into a fresh, uncompleted item.
// now is truncated to millisecond precision.
func NewItem(id, raw string, draft ProcessedItem, now time.Time) Item {
	now = Timestamp(now)
	return Item{
		ID:          id,
		Raw:         raw,
		Title:       draft.Title,
		Notes:       draft.Notes,
		Section:     draft.Section,
		Type:        draft.Type,
		Effort:      draft.Effort,
		Context:     draft.Context,
		DelegatedTo: draft.DelegatedTo,
		DueDate:     draft.DueDate,
		Completed:   false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Validate checks the closed enumerations and the completion invariant
func (i Item) Validate() error {
	if strings.TrimSpace(i.ID) == "" {
		return &ValidationError{Field: "id", Message: "id is required"}
	}
	if !i.Section.Valid() {
		return invalidEnum("section", string(i.Section))
	}
	if !i.Type.Valid() {
		return invalidEnum("type", string(i.Type))
	}
	if !i.Context.Valid() {
		return invalidEnum("context", string(i.Context))
	}
	if i.Effort != nil && !i.Effort.Valid() {
		return invalidEnum("effort", string(*i.Effort))
	}
	if i.Completed != (i.CompletedAt != nil) {
		return &ValidationError{Field: "completedAt", Message: "completedAt must be set exactly when completed"}
	}
	return nil
}

// Active returns the items that are not completed, preserving order
func Active(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if !it.Completed {
			out = append(out, it)
		}
	}
	return out
}

// Timestamp normalizes t to UTC with millisecond precision
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// StringPtr returns nil for an empty string
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
