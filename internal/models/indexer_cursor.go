package models

import "time"

// IndexerCursor is the single watermark row per event stream. LastVersion is
// advanced only inside the same transaction that commits the batch it covers.
type IndexerCursor struct {
	Stream        string     `gorm:"primaryKey;type:text"`
	LastVersion   int64      `gorm:"type:bigint;not null;default:0"`
	LastSuccessAt *time.Time `gorm:"type:timestamptz"`
	UpdatedAt     time.Time  `gorm:"type:timestamptz;autoUpdateTime"`
}

func (IndexerCursor) TableName() string {
	return "indexer_cursors"
}
