package repository

import (
	"fmt"
	"time"

	"triage-backend/internal/item/domain"
)

// ItemRow is the storage shape of an item. Optional fields are pointers and
// map to SQL NULL.
type ItemRow struct {
	ID          string  `gorm:"primaryKey;type:varchar(64)"`
	Raw         string  `gorm:"not null"`
	Title       string  `gorm:"not null"`
	Notes       *string
	Section     string  `gorm:"type:varchar(16);index;not null"`
	Type        string  `gorm:"type:varchar(16);not null"`
	Effort      *string `gorm:"type:varchar(8)"`
	Context     string  `gorm:"type:varchar(8);not null"`
	DelegatedTo *string
	DueDate     *string `gorm:"type:varchar(10)"`
	Completed   bool    `gorm:"not null;default:false"`
	CompletedAt *time.Time
	CreatedAt   time.Time `gorm:"autoCreateTime:false;index"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime:false"`
}

func (ItemRow) TableName() string {
	return "items"
}

// ToRow converts an item to its storage shape
func ToRow(item domain.Item) ItemRow {
	row := ItemRow{
		ID:          item.ID,
		Raw:         item.Raw,
		Title:       item.Title,
		Notes:       item.Notes,
		Section:     string(item.Section),
		Type:        string(item.Type),
		Context:     string(item.Context),
		DelegatedTo: item.DelegatedTo,
		Completed:   item.Completed,
		CompletedAt: item.CompletedAt,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
	if item.Effort != nil {
		e := string(*item.Effort)
		row.Effort = &e
	}
	if item.DueDate != nil {
		d := item.DueDate.String()
		row.DueDate = &d
	}
	return row
}

// FromRow converts a stored row back to an item, rejecting values outside
// the enumerations or a malformed due date.
func FromRow(row ItemRow) (domain.Item, error) {
	section, err := domain.ParseSection(row.Section)
	if err != nil {
		return domain.Item{}, fmt.Errorf("row %s: %w", row.ID, err)
	}
	typ, err := domain.ParseItemType(row.Type)
	if err != nil {
		return domain.Item{}, fmt.Errorf("row %s: %w", row.ID, err)
	}
	ctx, err := domain.ParseContext(row.Context)
	if err != nil {
		return domain.Item{}, fmt.Errorf("row %s: %w", row.ID, err)
	}

	item := domain.Item{
		ID:          row.ID,
		Raw:         row.Raw,
		Title:       row.Title,
		Notes:       row.Notes,
		Section:     section,
		Type:        typ,
		Context:     ctx,
		DelegatedTo: row.DelegatedTo,
		Completed:   row.Completed,
		CompletedAt: utcPtr(row.CompletedAt),
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
	if row.Effort != nil {
		e, err := domain.ParseEffort(*row.Effort)
		if err != nil {
			return domain.Item{}, fmt.Errorf("row %s: %w", row.ID, err)
		}
		item.Effort = &e
	}
	if row.DueDate != nil {
		d, err := domain.ParseDate(*row.DueDate)
		if err != nil {
			return domain.Item{}, fmt.Errorf("row %s: %w", row.ID, err)
		}
		item.DueDate = &d
	}
	return item, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// patchColumns maps a patch onto the columns it touches
func patchColumns(p domain.Patch) map[string]interface{} {
	cols := map[string]interface{}{}
	if p.Title != nil {
		cols["title"] = *p.Title
	}
	if p.Notes != nil {
		cols["notes"] = domain.StringPtr(*p.Notes)
	}
	if p.Section != nil {
		cols["section"] = string(*p.Section)
	}
	if p.Context != nil {
		cols["context"] = string(*p.Context)
	}
	if p.Completed != nil {
		cols["completed"] = *p.Completed
		if *p.Completed && p.CompletedAt != nil {
			cols["completed_at"] = *p.CompletedAt
		} else {
			cols["completed_at"] = nil
		}
	}
	if !p.UpdatedAt.IsZero() {
		cols["updated_at"] = p.UpdatedAt
	}
	return cols
}
