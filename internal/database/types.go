package database

import "time"

// Statistics database model. Only one row (ID 1) exists.
type Statistics struct {
	ID               uint      `gorm:"primaryKey" json:"-"`
	FilesCompressed  int64     `gorm:"not null;default:0" json:"files_compressed"`
	BytesIn          int64     `gorm:"not null;default:0" json:"bytes_in"`
	BytesOut         int64     `gorm:"not null;default:0" json:"bytes_out"`
	BytesSaved       int64     `gorm:"not null;default:0" json:"bytes_saved"`
	NativeRuns       int64     `gorm:"not null;default:0" json:"native_runs"`
	FallbackRuns     int64     `gorm:"not null;default:0" json:"fallback_runs"`
	UnchangedResults int64     `gorm:"not null;default:0" json:"unchanged_results"`
	CreatedAt        time.Time `json:"-"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName keeps the table name stable regardless of gorm's pluralizer.
func (Statistics) TableName() string {
	return "statistics"
}

// AverageRatio returns the mean percentage saved over all recorded files.
func (s *Statistics) AverageRatio() float64 {
	if s.BytesIn == 0 {
		return 0
	}
	return float64(s.BytesSaved) / float64(s.BytesIn) * 100
}
