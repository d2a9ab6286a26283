// Package query 提供已记录对局的只读视图。
// 回合引擎从不调用本包。
package query

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/SlpAus/dragon-duel-backend/internal/eventlog"
	"github.com/SlpAus/dragon-duel-backend/internal/platform/logging"
	"github.com/SlpAus/dragon-duel-backend/internal/record"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultRecent      = 20
	DefaultTopK        = 5
	DefaultStandings   = 10
	maxListLimit       = 100
	summaryFlightGroup = "summary"
	summaryTimeout     = 5 * time.Second
)

// Archive 是Redis中记录过期后用于查询的持久化副本。
type Archive interface {
	Get(ctx context.Context, gameID int64) (record.GameRecord, error)
}

// Service 负责所有读请求。
type Service struct {
	rdb     redis.UniversalClient
	archive Archive
	flight  singleflight.Group
	logger  *zap.Logger
}

// NewService 组装查询服务。archive 可为 nil。
func NewService(rdb redis.UniversalClient, archive Archive, logger *zap.Logger) *Service {
	return &Service{rdb: rdb, archive: archive, logger: logging.OrNop(logger).Named("query")}
}

func clampLimit(n, def int) int {
	if n <= 0 {
		return def
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}

// GetGame 获取单条记录，Redis中没有时回退到归档。
func (s *Service) GetGame(ctx context.Context, gameID int64) (record.GameRecord, error) {
	cmd := s.rdb.HGetAll(ctx, record.GameKey(gameID))
	fields, err := cmd.Result()
	if err == nil && len(fields) > 0 {
		var rec record.GameRecord
		if err := cmd.Scan(&rec); err != nil {
			return record.GameRecord{}, fmt.Errorf("decode game %d: %w", gameID, err)
		}
		return rec, nil
	}
	if err != nil {
		s.logger.Warn("redis lookup failed, trying archive", zap.Int64("game_id", gameID), zap.Error(err))
	}
	if s.archive == nil {
		if err != nil {
			return record.GameRecord{}, fmt.Errorf("%w: %v", record.ErrStoreUnavailable, err)
		}
		return record.GameRecord{}, record.ErrGameNotFound
	}
	return s.archive.Get(ctx, gameID)
}

// RecentGames 返回最多 n 条记录，最新的在前。已过期的记录会被跳过。
func (s *Service) RecentGames(ctx context.Context, n int) ([]record.GameRecord, error) {
	n = clampLimit(n, DefaultRecent)
	ids, err := s.rdb.LRange(ctx, record.GameListKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read recent games: %w", err)
	}
	return s.loadRecords(ctx, ids)
}

func (s *Service) loadRecords(ctx context.Context, ids []string) ([]record.GameRecord, error) {
	if len(ids) == 0 {
		return []record.GameRecord{}, nil
	}
	pipe := s.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, record.GameKeyPrefix+id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("load game records: %w", err)
	}

	out := make([]record.GameRecord, 0, len(ids))
	for i, cmd := range cmds {
		if len(cmd.Val()) == 0 {
			continue
		}
		var rec record.GameRecord
		if err := cmd.Scan(&rec); err != nil {
			s.logger.Warn("skipping undecodable record", zap.String("game_id", ids[i]), zap.Error(err))
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Replay 按顺序返回一局的事件日志。
func (s *Service) Replay(ctx context.Context, gameID int64) ([]eventlog.Event, error) {
	return eventlog.Replay(ctx, s.rdb, gameID)
}

// Leaderboard 返回最多 k 条按分数降序排列的条目。
// 分数相同时按对局ID升序，较早的对局排在前面，多次调用结果顺序一致。
func (s *Service) Leaderboard(ctx context.Context, board Board, k int) ([]LeaderboardEntry, error) {
	key, err := board.key()
	if err != nil {
		return nil, err
	}
	k = clampLimit(k, DefaultTopK)

	top, err := s.rdb.ZRevRangeWithScores(ctx, key, 0, int64(k-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard %s: %w", board, err)
	}
	if len(top) == k {
		// 与最后一名同分的成员在Redis中可能排在它之后
		cutoff := top[k-1].Score
		bound := strconv.FormatFloat(cutoff, 'f', -1, 64)
		tied, err := s.rdb.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{Min: bound, Max: bound}).Result()
		if err != nil {
			return nil, fmt.Errorf("read leaderboard ties %s: %w", board, err)
		}
		merged := make([]redis.Z, 0, len(top)+len(tied))
		for _, z := range top {
			if z.Score > cutoff {
				merged = append(merged, z)
			}
		}
		top = append(merged, tied...)
	}

	entries := make([]LeaderboardEntry, 0, len(top))
	for _, z := range top {
		member, _ := z.Member.(string)
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			s.logger.Warn("skipping malformed leaderboard member", zap.String("member", member))
			continue
		}
		entries = append(entries, LeaderboardEntry{GameID: id, Score: z.Score})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].GameID < entries[j].GameID
	})
	if len(entries) > k {
		entries = entries[:k]
	}

	if err := s.attachNames(ctx, entries); err != nil {
		s.logger.Warn("leaderboard names unavailable", zap.Error(err))
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

func (s *Service) attachNames(ctx context.Context, entries []LeaderboardEntry) error {
	if len(entries) == 0 {
		return nil
	}
	pipe := s.rdb.Pipeline()
	cmds := make([]*redis.StringCmd, len(entries))
	for i, e := range entries {
		cmds[i] = pipe.HGet(ctx, record.GameKey(e.GameID), "player_name")
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	for i, cmd := range cmds {
		entries[i].PlayerName = cmd.Val()
	}
	return nil
}

// PlayerStandings 扫描最近对局索引，
// 依次按胜场、胜率和名字对玩家排名。
func (s *Service) PlayerStandings(ctx context.Context, limit int) ([]PlayerStanding, error) {
	limit = clampLimit(limit, DefaultStandings)
	ids, err := s.rdb.LRange(ctx, record.GameListKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("scan game list: %w", err)
	}

	pipe := s.rdb.Pipeline()
	cmds := make([]*redis.SliceCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HMGet(ctx, record.GameKeyPrefix+id, "player_name", "winner")
	}
	if len(ids) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("load players: %w", err)
		}
	}

	byName := make(map[string]*PlayerStanding)
	for _, cmd := range cmds {
		vals := cmd.Val()
		name, _ := vals[0].(string)
		winner, _ := vals[1].(string)
		if name == "" {
			continue
		}
		p, ok := byName[name]
		if !ok {
			p = &PlayerStanding{PlayerName: name}
			byName[name] = p
		}
		p.Games++
		switch record.Winner(winner) {
		case record.WinnerPlayer:
			p.Wins++
		case record.WinnerOpponent:
			p.Losses++
		case record.WinnerDraw:
			p.Draws++
		}
	}

	out := make([]PlayerStanding, 0, len(byName))
	for _, p := range byName {
		p.WinRate = round1(float64(p.Wins) / float64(p.Games) * 100)
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Wins != out[j].Wins {
			return out[i].Wins > out[j].Wins
		}
		if out[i].WinRate != out[j].WinRate {
			return out[i].WinRate > out[j].WinRate
		}
		return out[i].PlayerName < out[j].PlayerName
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Summary 读取全局计数器。并发调用方共享同一次读取，
// 这次读取不受任何单个调用方取消的影响。
func (s *Service) Summary(ctx context.Context) (GlobalStats, error) {
	ch := s.flight.DoChan(summaryFlightGroup, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), summaryTimeout)
		defer cancel()
		return s.readSummary(fctx)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return GlobalStats{}, res.Err
		}
		return res.Val.(GlobalStats), nil
	case <-ctx.Done():
		return GlobalStats{}, ctx.Err()
	}
}

func (s *Service) readSummary(ctx context.Context) (GlobalStats, error) {
	var (
		stats  GlobalStats
		wins   map[string]string
		rounds int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.rdb.Get(gctx, record.TotalGamesKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		stats.TotalGames = n
		return nil
	})
	g.Go(func() error {
		var err error
		wins, err = s.rdb.HGetAll(gctx, record.WinsKey).Result()
		return err
	})
	g.Go(func() error {
		n, err := s.rdb.HGet(gctx, record.TotalRoundsKey, "sum").Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		rounds = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return GlobalStats{}, fmt.Errorf("read global stats: %w", err)
	}

	parse := func(k string) int64 {
		n, _ := strconv.ParseInt(wins[k], 10, 64)
		return n
	}
	stats.PlayerWins = parse(string(record.WinnerPlayer))
	stats.OpponentWins = parse(string(record.WinnerOpponent))
	stats.Draws = parse(string(record.WinnerDraw))
	stats.TotalRounds = rounds
	if stats.TotalGames > 0 {
		total := float64(stats.TotalGames)
		stats.PlayerWinRate = round1(float64(stats.PlayerWins) / total * 100)
		stats.OpponentWinRate = round1(float64(stats.OpponentWins) / total * 100)
		stats.AverageRounds = round1(float64(rounds) / total)
	}
	return stats, nil
}

// CharacterStats 按难度汇总伤害、治疗和暴击。
func (s *Service) CharacterStats(ctx context.Context, mode AggregateMode) (CharacterStats, error) {
	switch mode {
	case ModeScan:
		return s.scanStats(ctx)
	case ModeIndex:
		return s.indexStats(ctx)
	default:
		stats, err := s.indexStats(ctx)
		if err == nil {
			return stats, nil
		}
		s.logger.Debug("search index unavailable, scanning", zap.Error(err))
		return s.scanStats(ctx)
	}
}

func (s *Service) scanStats(ctx context.Context) (CharacterStats, error) {
	ids, err := s.rdb.LRange(ctx, record.GameListKey, 0, -1).Result()
	if err != nil {
		return CharacterStats{}, fmt.Errorf("scan game list: %w", err)
	}
	recs, err := s.loadRecords(ctx, ids)
	if err != nil {
		return CharacterStats{}, err
	}
	groups := make(map[string]*sums)
	for _, r := range recs {
		g, ok := groups[r.Difficulty]
		if !ok {
			g = &sums{}
			groups[r.Difficulty] = g
		}
		g.add(r)
	}
	return CharacterStats{Mode: ModeScan, Groups: finish(groups)}, nil
}

func (s *Service) indexStats(ctx context.Context) (CharacterStats, error) {
	reply, err := s.rdb.Do(ctx, aggregateArgs()...).Result()
	if err != nil {
		return CharacterStats{}, fmt.Errorf("aggregate %s: %w", record.GameIndexName, err)
	}
	groups, err := parseAggregateReply(reply)
	if err != nil {
		return CharacterStats{}, err
	}
	return CharacterStats{Mode: ModeIndex, Groups: finish(groups)}, nil
}
