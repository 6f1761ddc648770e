package history

import (
	"context"
	"time"

	"github.com/dailyyoga/objsync/db"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CacheSnapshot is one snapshot line in MySQL
type CacheSnapshot struct {
	ID          uint64          `gorm:"primaryKey;autoIncrement"`
	Cache       string          `gorm:"size:64;not null;index:idx_cache_at,priority:1"`
	At          time.Time       `gorm:"not null;index:idx_cache_at,priority:2"`
	TypeName    string          `gorm:"column:type_name;size:128;not null"`
	Entries     int             `gorm:"not null"`
	Referers    int             `gorm:"not null"`
	AvgReferers decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	OldestAgeMs int64           `gorm:"not null"`
}

// TableName implements gorm's tabler
func (CacheSnapshot) TableName() string { return "objsync_cache_snapshots" }

func snapshotModels(s Snapshot) []CacheSnapshot {
	rows := make([]CacheSnapshot, len(s.Lines))
	for i, line := range s.Lines {
		rows[i] = CacheSnapshot{
			Cache:       s.Cache,
			At:          s.At.UTC(),
			TypeName:    line.Type,
			Entries:     line.Entries,
			Referers:    line.Referers,
			AvgReferers: line.AvgReferers,
		}
		if line.Type == AllTypes {
			rows[i].OldestAgeMs = s.OldestAge.Milliseconds()
		}
	}
	return rows
}

// MySQLRecorder stores snapshot lines through GORM
type MySQLRecorder struct {
	db *gorm.DB
}

// NewMySQLRecorder creates the snapshot table if needed
func NewMySQLRecorder(ctx context.Context, database db.Database) (*MySQLRecorder, error) {
	gdb, err := database.DB()
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, &CacheSnapshot{}); err != nil {
		return nil, err
	}
	return &MySQLRecorder{db: gdb}, nil
}

func (r *MySQLRecorder) Name() string { return "mysql" }

func (r *MySQLRecorder) Record(ctx context.Context, s Snapshot) error {
	rows := snapshotModels(s)
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func (r *MySQLRecorder) Prune(ctx context.Context, cache string, before time.Time) error {
	return r.db.WithContext(ctx).
		Where("cache = ? AND at < ?", cache, before.UTC()).
		Delete(&CacheSnapshot{}).Error
}
