package query

import (
	"context"
	"errors"
	"strings"

	"github.com/SlpAus/dragon-duel-backend/internal/record"
	"github.com/redis/go-redis/v9"
)

var errUnexpectedReply = errors.New("query: unexpected aggregate reply")

// EnsureIndex 为对局哈希创建搜索索引。
// 服务器没有搜索模块时返回 false，且不报错。
func EnsureIndex(ctx context.Context, rdb redis.UniversalClient) (bool, error) {
	err := rdb.Do(ctx,
		"FT.CREATE", record.GameIndexName, "ON", "HASH", "PREFIX", 1, record.GameKeyPrefix,
		"SCHEMA",
		"player_name", "TEXT",
		"winner", "TAG",
		"difficulty", "TAG",
		"total_rounds", "NUMERIC", "SORTABLE",
		"d_damage", "NUMERIC",
		"d_heal", "NUMERIC",
		"d_crit", "NUMERIC",
		"p_damage", "NUMERIC",
		"p_heal", "NUMERIC",
		"p_crit", "NUMERIC",
	).Err()
	switch {
	case err == nil:
		return true, nil
	case strings.Contains(strings.ToLower(err.Error()), "index already exists"):
		return true, nil
	case isUnknownCommand(err):
		return false, nil
	default:
		return false, err
	}
}

func isUnknownCommand(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unknown command") || strings.Contains(msg, "not supported")
}
