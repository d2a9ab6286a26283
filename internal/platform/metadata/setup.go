package metadata

import (
	"fmt"

	"gorm.io/gorm"
)

// Migrate 创建元数据表。
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Metadata{}); err != nil {
		return fmt.Errorf("migrate metadata table: %w", err)
	}
	return nil
}
