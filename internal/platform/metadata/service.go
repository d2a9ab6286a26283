package metadata

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetValue 返回 key 对应的值，从未设置过时返回 ""。
func GetValue(ctx context.Context, db *gorm.DB, key string) (string, error) {
	var meta Metadata
	err := db.WithContext(ctx).Where("key = ?", key).First(&meta).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return meta.Value, nil
}

// SetValue 插入或更新 key。
func SetValue(ctx context.Context, db *gorm.DB, key, value string) error {
	meta := Metadata{Key: key, Value: value}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&meta).Error
}

// GetInt64 将 key 的值解析为整数，默认为0。
func GetInt64(ctx context.Context, db *gorm.DB, key string) (int64, error) {
	v, err := GetValue(ctx, db, key)
	if err != nil {
		return 0, err
	}
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse metadata %q: %w", key, err)
	}
	return n, nil
}

// SetInt64 将 n 保存到 key 下。
func SetInt64(ctx context.Context, db *gorm.DB, key string, n int64) error {
	return SetValue(ctx, db, key, strconv.FormatInt(n, 10))
}
