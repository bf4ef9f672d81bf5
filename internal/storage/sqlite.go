package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"constella/internal/fingerprint"
	"constella/internal/model"
	"constella/internal/store"
)

const postingBatchSize = 1000

type songRow struct {
	ID     uint32 `gorm:"primaryKey;autoIncrement:false"`
	Name   string
	Artist string
}

func (songRow) TableName() string { return "songs" }

type postingRow struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	F1         uint32 `gorm:"index:idx_key,priority:1"`
	F2         uint32 `gorm:"index:idx_key,priority:2"`
	DT         uint32 `gorm:"index:idx_key,priority:3"`
	SongID     uint32
	AnchorTime uint32
}

func (postingRow) TableName() string { return "postings" }

type metaRow struct {
	Key   string `gorm:"primaryKey"`
	Value string
}

func (metaRow) TableName() string { return "meta" }

// SQLite persists snapshots in a single relational database file. The meta
// table carries the schema version and pipeline parameters; posting insertion
// order is preserved via the autoincrement primary key.
type SQLite struct {
	db    *gorm.DB
	sqlDB *sql.DB
}

// NewSQLite opens (or creates) the database at path and migrates the schema.
func NewSQLite(path string) (*SQLite, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&songRow{}, &postingRow{}, &metaRow{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &SQLite{db: db, sqlDB: sqlDB}, nil
}

func (s *SQLite) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *SQLite) Save(st *store.Store, catalog model.Catalog, cfg fingerprint.Config) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{"postings", "songs", "meta"} {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("clearing %s: %w", table, err)
			}
		}

		meta := []metaRow{
			{Key: "schema_version", Value: strconv.Itoa(SchemaVersion)},
			{Key: "params", Value: paramString(cfg)},
		}
		if err := tx.Create(&meta).Error; err != nil {
			return fmt.Errorf("writing meta: %w", err)
		}

		if len(catalog) > 0 {
			songs := make([]songRow, len(catalog))
			for i, song := range catalog {
				songs[i] = songRow{ID: song.ID, Name: song.Name, Artist: song.Artist}
			}
			if err := tx.Create(&songs).Error; err != nil {
				return fmt.Errorf("writing songs: %w", err)
			}
		}

		batch := make([]postingRow, 0, postingBatchSize)
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			if err := tx.Create(&batch).Error; err != nil {
				return fmt.Errorf("writing postings: %w", err)
			}
			batch = batch[:0]
			return nil
		}
		err := st.Walk(func(k fingerprint.Key, postings []model.Posting) error {
			for _, p := range postings {
				batch = append(batch, postingRow{
					F1: k.F1, F2: k.F2, DT: k.DT,
					SongID: p.SongID, AnchorTime: p.AnchorTime,
				})
				if len(batch) == postingBatchSize {
					if err := flush(); err != nil {
						return err
					}
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		return flush()
	})
}

func (s *SQLite) Load(cfg fingerprint.Config) (*store.Store, model.Catalog, error) {
	var version metaRow
	err := s.db.Where("key = ?", "schema_version").First(&version).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// fresh database
		return store.New(), nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading schema version: %w", err)
	}
	if version.Value != strconv.Itoa(SchemaVersion) {
		return nil, nil, fmt.Errorf("%w: schema version %s, want %d", ErrIncompatibleSnapshot, version.Value, SchemaVersion)
	}

	var params metaRow
	if err := s.db.Where("key = ?", "params").First(&params).Error; err != nil {
		return nil, nil, fmt.Errorf("reading params: %w", err)
	}
	if params.Value != paramString(cfg) {
		return nil, nil, fmt.Errorf("%w: snapshot params %q, running %q", ErrIncompatibleSnapshot, params.Value, paramString(cfg))
	}

	var songs []songRow
	if err := s.db.Order("id").Find(&songs).Error; err != nil {
		return nil, nil, fmt.Errorf("reading songs: %w", err)
	}
	catalog := make(model.Catalog, len(songs))
	for i, row := range songs {
		if row.ID != uint32(i) {
			return nil, nil, fmt.Errorf("%w: song IDs are not dense (row %d has ID %d)", ErrIncompatibleSnapshot, i, row.ID)
		}
		catalog[i] = model.Song{ID: row.ID, Name: row.Name, Artist: row.Artist}
	}

	st := store.New()
	var rows []postingRow
	result := s.db.Order("id").FindInBatches(&rows, postingBatchSize, func(_ *gorm.DB, _ int) error {
		for _, row := range rows {
			st.Append(
				fingerprint.Key{F1: row.F1, F2: row.F2, DT: row.DT},
				model.Posting{SongID: row.SongID, AnchorTime: row.AnchorTime},
			)
		}
		return nil
	})
	if result.Error != nil {
		return nil, nil, fmt.Errorf("reading postings: %w", result.Error)
	}
	return st, catalog, nil
}
