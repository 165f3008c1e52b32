package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/camden-git/photogallery/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLStore keeps photo records in a single GORM managed table.
type SQLStore struct {
	DB *gorm.DB
}

// NewSQLStore migrates the photo_metadata table and returns a store on top of it.
func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(&models.MetadataRow{}); err != nil {
		return nil, fmt.Errorf("GORM AutoMigrate of photo_metadata failed: %w", err)
	}
	return &SQLStore{DB: db}, nil
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, error) {
	var row models.MetadataRow
	err := s.DB.WithContext(ctx).Where("photo_id = ?", key).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("metadata %q: %w", key, ErrKeyNotFound)
		}
		return nil, fmt.Errorf("failed to read metadata %q: %w", key, err)
	}
	return row.Value, nil
}

// Put inserts or replaces the row for key in one statement.
func (s *SQLStore) Put(ctx context.Context, key string, value []byte) error {
	row := models.MetadataRow{PhotoID: key, Value: value}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "photo_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to write metadata %q: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	err := s.DB.WithContext(ctx).Where("photo_id = ?", key).Delete(&models.MetadataRow{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete metadata %q: %w", key, err)
	}
	return nil
}

// Keys returns keys in insertion order.
func (s *SQLStore) Keys(ctx context.Context) ([]string, error) {
	keys := []string{}
	err := s.DB.WithContext(ctx).Model(&models.MetadataRow{}).Order("created_at, photo_id").Pluck("photo_id", &keys).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list metadata keys: %w", err)
	}
	return keys, nil
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB from GORM: %w", err)
	}
	return sqlDB.Close()
}
