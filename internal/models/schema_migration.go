package models

import "time"

type SchemaMigration struct {
	Version   string    `gorm:"primaryKey;type:text"`
	AppliedAt time.Time `gorm:"type:timestamptz;not null"`
}

func (SchemaMigration) TableName() string {
	return "schema_migrations"
}
