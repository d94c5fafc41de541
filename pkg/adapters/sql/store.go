// Package sql provides a Storage backed by any database GORM can talk to.
// Conditional writes are a single UPDATE filtered on the expected eTag, so the
// database itself arbitrates concurrent writers.
package sql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/palaver/pkg/domain"
	"github.com/aretw0/palaver/pkg/ports"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Record is the row layout of the state table.
type Record struct {
	StateKey  string `gorm:"column:state_key;primaryKey;size:512"`
	ETag      string `gorm:"column:e_tag;size:64;not null"`
	Data      string `gorm:"column:data;type:text;not null"`
	UpdatedAt time.Time
}

// TableName implements gorm's Tabler.
func (Record) TableName() string { return "palaver_state" }

// Store implements ports.Storage on top of a *gorm.DB.
type Store struct {
	db *gorm.DB
}

// New wraps db and migrates the state table.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("sql: db is nil: %w", domain.ErrMissingArgument)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("sql: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Read loads the rows for the given keys.
func (s *Store) Read(ctx context.Context, keys []string) (map[string]*ports.StoreItem, error) {
	out := make(map[string]*ports.StoreItem, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	var rows []Record
	if err := s.db.WithContext(ctx).Where("state_key IN ?", keys).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("sql: read: %w", err)
	}

	for _, row := range rows {
		item := &ports.StoreItem{ETag: row.ETag, Data: map[string]any{}}
		if err := json.Unmarshal([]byte(row.Data), &item.Data); err != nil {
			return nil, fmt.Errorf("sql: decode %q: %w", row.StateKey, err)
		}
		out[row.StateKey] = item
	}
	return out, nil
}

// Write applies the changes in one transaction.
func (s *Store) Write(ctx context.Context, changes map[string]*ports.StoreItem) error {
	if len(changes) == 0 {
		return nil
	}

	issued := make(map[string]string, len(changes))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for key, item := range changes {
			if item == nil {
				return fmt.Errorf("sql: nil item for %q: %w", key, domain.ErrMissingArgument)
			}
			data := item.Data
			if data == nil {
				data = map[string]any{}
			}
			raw, err := json.Marshal(data)
			if err != nil {
				return fmt.Errorf("sql: encode %q: %w", key, err)
			}

			row := Record{StateKey: key, ETag: uuid.NewString(), Data: string(raw), UpdatedAt: time.Now().UTC()}

			if item.ETag == "" || item.ETag == ports.ETagAny {
				err := tx.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "state_key"}},
					DoUpdates: clause.AssignmentColumns([]string{"e_tag", "data", "updated_at"}),
				}).Create(&row).Error
				if err != nil {
					return fmt.Errorf("sql: upsert %q: %w", key, err)
				}
			} else {
				res := tx.Model(&Record{}).
					Where("state_key = ? AND e_tag = ?", key, item.ETag).
					Updates(map[string]any{"e_tag": row.ETag, "data": row.Data, "updated_at": row.UpdatedAt})
				if res.Error != nil {
					return fmt.Errorf("sql: update %q: %w", key, res.Error)
				}
				if res.RowsAffected == 0 {
					return &domain.ConflictError{Key: key, Expected: item.ETag}
				}
			}
			issued[key] = row.ETag
		}
		return nil
	})
	if err != nil {
		return err
	}

	for key, etag := range issued {
		changes[key].ETag = etag
	}
	return nil
}

// Delete removes the rows for the given keys.
func (s *Store) Delete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Where("state_key IN ?", keys).Delete(&Record{}).Error; err != nil {
		return fmt.Errorf("sql: delete: %w", err)
	}
	return nil
}

// List returns every stored key in order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.db.WithContext(ctx).Model(&Record{}).Order("state_key").Pluck("state_key", &keys).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("sql: list: %w", err)
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}
