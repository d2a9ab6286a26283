package combatant

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// TemplateStore 从Redis读取角色模板，
// 哈希不存在或Redis不可达时回退到内置默认值。
type TemplateStore struct {
	rdb    redis.UniversalClient
	logger *zap.Logger
}

// NewTemplateStore 组装模板存储。rdb 为 nil 时始终使用默认值。
func NewTemplateStore(rdb redis.UniversalClient, logger *zap.Logger) *TemplateStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemplateStore{rdb: rdb, logger: logger}
}

// Load 返回 id 对应的模板。
func (s *TemplateStore) Load(ctx context.Context, id string) Template {
	def, _ := DefaultTemplate(id)
	if s.rdb == nil {
		return def
	}

	fields, err := s.rdb.HGetAll(ctx, TemplateKey(id)).Result()
	if err != nil {
		s.logger.Warn("character template unavailable, using default", zap.String("character", id), zap.Error(err))
		return def
	}
	if len(fields) == 0 {
		return def
	}
	return mergeTemplate(def, fields)
}

func mergeTemplate(t Template, fields map[string]string) Template {
	if v := fields[fieldName]; v != "" {
		t.Name = v
	}
	if v, err := strconv.Atoi(fields[fieldBaseHP]); err == nil && v > 0 {
		t.BaseHP = v
	}
	for i, key := range []string{fieldSkill1Name, fieldSkill2Name, fieldSkill3Name} {
		if v := fields[key]; v != "" {
			t.SkillNames[i] = v
		}
	}
	return t
}

// Seed 写入默认模板，不覆盖已自定义的字段。
func (s *TemplateStore) Seed(ctx context.Context) error {
	if s.rdb == nil {
		return nil
	}
	pipe := s.rdb.Pipeline()
	for _, id := range []string{DragonID, PersonID} {
		t, _ := DefaultTemplate(id)
		key := TemplateKey(id)
		pipe.HSetNX(ctx, key, fieldName, t.Name)
		pipe.HSetNX(ctx, key, fieldBaseHP, t.BaseHP)
		pipe.HSetNX(ctx, key, fieldSkill1Name, t.SkillNames[0])
		pipe.HSetNX(ctx, key, fieldSkill2Name, t.SkillNames[1])
		pipe.HSetNX(ctx, key, fieldSkill3Name, t.SkillNames[2])
	}
	_, err := pipe.Exec(ctx)
	return err
}
