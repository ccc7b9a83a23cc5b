package catalog

import (
	"fmt"
	"log"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// TileFootprint is the persisted form of a Footprint. The sqlite catalog
// holds static dataset metadata only; job state is never written here.
type TileFootprint struct {
	Id     uint   `gorm:"primaryKey;autoIncrement"`
	Path   string `gorm:"uniqueIndex;not null"`
	Left   float64
	Bottom float64
	Right  float64
	Top    float64
}

func (TileFootprint) TableName() string {
	return "tile_footprints"
}

func OpenDB(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("opening catalog database %s: %w", path, err)
	}

	if err := GetMigrator(db).Migrate(); err != nil {
		return nil, fmt.Errorf("migrating catalog database %s: %w", path, err)
	}

	return db, nil
}

func GetMigrator(db *gorm.DB) *gormigrate.Gormigrate {
	migrator := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "0",
			Migrate: func(txn *gorm.DB) error {
				return txn.AutoMigrate(&TileFootprint{})
			},
			Rollback: func(txn *gorm.DB) error {
				return txn.Migrator().DropTable(&TileFootprint{})
			},
		},
	})

	migrator.InitSchema(func(txn *gorm.DB) error {
		// Run by the migrator when no previous migration is detected, so a
		// fresh database skips straight to the latest schema.
		log.Println("clean catalog database detected, running full schema initialization")

		return txn.AutoMigrate(&TileFootprint{})
	})

	return migrator
}

// UpsertFootprint inserts or replaces the footprint for a tile path, so
// re-running an ingest over the same directory is idempotent.
func UpsertFootprint(db *gorm.DB, fp Footprint) error {
	record := TileFootprint{
		Path:   fp.Path,
		Left:   fp.Left,
		Bottom: fp.Bottom,
		Right:  fp.Right,
		Top:    fp.Top,
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"left", "bottom", "right", "top"}),
	}).Create(&record).Error
}

func LoadFootprints(db *gorm.DB) ([]Footprint, error) {
	var records []TileFootprint
	if err := db.Order("path").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("loading tile footprints: %w", err)
	}

	footprints := make([]Footprint, len(records))
	for i, r := range records {
		footprints[i] = Footprint{
			Path:   r.Path,
			Extent: Extent{Left: r.Left, Bottom: r.Bottom, Right: r.Right, Top: r.Top},
		}
	}
	return footprints, nil
}
