package metadata

import "time"

// Metadata 是保存进程检查点的键值行。
type Metadata struct {
	Key       string `gorm:"primaryKey;type:varchar(255)"`
	Value     string `gorm:"type:varchar(255)"`
	UpdatedAt time.Time
}

// TableName 固定表名，不受gorm命名策略影响。
func (Metadata) TableName() string {
	return "metadata"
}
