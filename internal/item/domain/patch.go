package domain

import (
	"strings"
	"time"
)

// Patch is a partial update to an item. Nil fields are left untouched.
// Notes uses the empty string to clear the value. CompletedAt is only
// consulted when Completed is set.
type Patch struct {
	Title       *string
	Notes       *string
	Section     *Section
	Context     *Context
	Completed   *bool
	CompletedAt *time.Time
	UpdatedAt   time.Time
}

// Apply returns item with the patch applied
func (p Patch) Apply(item Item) Item {
	if p.Title != nil {
		item.Title = *p.Title
	}
	if p.Notes != nil {
		item.Notes = StringPtr(*p.Notes)
	}
	if p.Section != nil {
		item.Section = *p.Section
	}
	if p.Context != nil {
		item.Context = *p.Context
	}
	if p.Completed != nil {
		item.Completed = *p.Completed
		item.CompletedAt = nil
		if *p.Completed && p.CompletedAt != nil {
			t := *p.CompletedAt
			item.CompletedAt = &t
		}
	}
	if !p.UpdatedAt.IsZero() {
		item.UpdatedAt = p.UpdatedAt
	}
	return item
}

// Move places an item in a section. Moving to the current section still
// refreshes UpdatedAt.
func Move(section Section, now time.Time) (Patch, error) {
	if !section.Valid() {
		return Patch{}, invalidEnum("section", string(section))
	}
	return Patch{Section: &section, UpdatedAt: Timestamp(now)}, nil
}

// ChangeContext sets an explicit context
func ChangeContext(ctx Context, now time.Time) (Patch, error) {
	if !ctx.Valid() {
		return Patch{}, invalidEnum("context", string(ctx))
	}
	return Patch{Context: &ctx, UpdatedAt: Timestamp(now)}, nil
}

// CycleContext advances the item's context one step in the rotation
func CycleContext(item Item, now time.Time) Patch {
	next := item.Context.Next()
	return Patch{Context: &next, UpdatedAt: Timestamp(now)}
}

// ToggleCompletion flips Completed and sets or clears CompletedAt
func ToggleCompletion(item Item, now time.Time) Patch {
	now = Timestamp(now)
	completed := !item.Completed
	p := Patch{Completed: &completed, UpdatedAt: now}
	if completed {
		p.CompletedAt = &now
	}
	return p
}

// Edit replaces title and notes. A blank title is rejected; blank notes clear
// the field.
func Edit(title, notes string, now time.Time) (Patch, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Patch{}, &ValidationError{Field: "title", Message: "title must not be empty"}
	}
	return Patch{Title: &title, Notes: &notes, UpdatedAt: Timestamp(now)}, nil
}
