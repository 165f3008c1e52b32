package models

import "time"

// MetadataRow is one photo record in the SQL metadata backend.
// It corresponds to the 'photo_metadata' table.
type MetadataRow struct {
	PhotoID   string    `gorm:"primaryKey;column:photo_id"`
	Value     []byte    `gorm:"not null"` // JSON encoded Photo
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

// TableName explicitly sets the table name for GORM.
func (MetadataRow) TableName() string {
	return "photo_metadata"
}
