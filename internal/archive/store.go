// Package archive 为每局已记录的对局保留一份持久化的SQL副本，
// 以便Redis丢失数据后重建。
package archive

import (
	"context"
	"errors"
	"fmt"

	"github.com/SlpAus/dragon-duel-backend/internal/platform/metadata"
	"github.com/SlpAus/dragon-duel-backend/internal/record"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store 读写已归档的对局。
type Store struct {
	db *gorm.DB
}

// NewStore 包装 db。
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate 创建归档表和元数据表。
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&Game{}); err != nil {
		return fmt.Errorf("migrate archive table: %w", err)
	}
	return metadata.Migrate(s.db)
}

// Save 插入记录，忽略已归档的ID。
// 对局一经记录就不可变，以第一份副本为准。
func (s *Store) Save(ctx context.Context, recs ...record.GameRecord) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	rows := make([]Game, len(recs))
	for i, r := range recs {
		rows[i] = fromRecord(r)
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows)
	if res.Error != nil {
		return 0, fmt.Errorf("archive games: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Get 返回一局已归档的对局。
func (s *Store) Get(ctx context.Context, gameID int64) (record.GameRecord, error) {
	var g Game
	err := s.db.WithContext(ctx).First(&g, "game_id = ?", gameID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return record.GameRecord{}, record.ErrGameNotFound
	}
	if err != nil {
		return record.GameRecord{}, fmt.Errorf("load archived game %d: %w", gameID, err)
	}
	return g.Record(), nil
}

// All 按ID顺序返回所有已归档的对局。
func (s *Store) All(ctx context.Context) ([]record.GameRecord, error) {
	var rows []Game
	if err := s.db.WithContext(ctx).Order("game_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load archive: %w", err)
	}
	out := make([]record.GameRecord, len(rows))
	for i, g := range rows {
		out[i] = g.Record()
	}
	return out, nil
}

// Missing 返回 ids 中尚未归档的部分。
func (s *Store) Missing(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var have []int64
	if err := s.db.WithContext(ctx).Model(&Game{}).Where("game_id IN ?", ids).Pluck("game_id", &have).Error; err != nil {
		return nil, fmt.Errorf("check archive: %w", err)
	}
	seen := make(map[int64]bool, len(have))
	for _, id := range have {
		seen[id] = true
	}
	var missing []int64
	for _, id := range ids {
		if !seen[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// Count 返回已归档的对局数。
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Game{}).Count(&n).Error
	return n, err
}

// DB 暴露数据库句柄，供元数据检查点使用。
func (s *Store) DB() *gorm.DB {
	return s.db
}
