package domain

import "time"

// Briefing is the cached daily summary for one device and calendar day
type Briefing struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	DeviceID  string    `json:"device_id" gorm:"uniqueIndex:idx_briefing_device_date;not null"`
	Date      string    `json:"date" gorm:"type:varchar(10);uniqueIndex:idx_briefing_device_date;not null"`
	Text      string    `json:"text" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Briefing) TableName() string {
	return "briefings"
}
