package query

import (
	"errors"

	"github.com/SlpAus/dragon-duel-backend/internal/record"
)

// ErrUnknownBoard 在排行榜名称不属于两个索引时返回。
var ErrUnknownBoard = errors.New("query: unknown leaderboard")

// Board 是排行索引的名称。
type Board string

const (
	BoardLongestRounds Board = "longest_rounds"
	BoardMaxDamage     Board = "max_damage"
)

func (b Board) key() (string, error) {
	switch b {
	case BoardLongestRounds:
		return record.LongestRoundsKey, nil
	case BoardMaxDamage:
		return record.MaxDamageKey, nil
	default:
		return "", ErrUnknownBoard
	}
}

// LeaderboardEntry 是一条排行记录。
type LeaderboardEntry struct {
	Rank       int     `json:"rank"`
	GameID     int64   `json:"game_id"`
	Score      float64 `json:"score"`
	PlayerName string  `json:"player_name,omitempty"`
}

// PlayerStanding 汇总一名玩家的所有已记录对局。
type PlayerStanding struct {
	PlayerName string  `json:"player_name"`
	Games      int     `json:"games"`
	Wins       int     `json:"wins"`
	Losses     int     `json:"losses"`
	Draws      int     `json:"draws"`
	WinRate    float64 `json:"win_rate"`
}

// GlobalStats 是网关维护的全局计数器。
type GlobalStats struct {
	TotalGames      int64   `json:"total_games"`
	PlayerWins      int64   `json:"player_wins"`
	OpponentWins    int64   `json:"opponent_wins"`
	Draws           int64   `json:"draws"`
	TotalRounds     int64   `json:"total_rounds"`
	PlayerWinRate   float64 `json:"player_win_rate"`
	OpponentWinRate float64 `json:"opponent_win_rate"`
	AverageRounds   float64 `json:"average_rounds"`
}

// AggregateMode 选择 CharacterStats 的计算方式。
type AggregateMode string

const (
	// ModeAuto 先尝试搜索索引，失败时回退到扫描。
	ModeAuto  AggregateMode = "auto"
	ModeScan  AggregateMode = "scan"
	ModeIndex AggregateMode = "index"
)

// SideTotals 是一组对局中某一方的累计值。
type SideTotals struct {
	Damage  int64   `json:"total_damage"`
	Healing int64   `json:"total_healing"`
	Crits   int64   `json:"total_crits"`
	AvgDmg  float64 `json:"avg_damage"`
	AvgHeal float64 `json:"avg_healing"`
	AvgCrit float64 `json:"avg_crits"`
}

// GroupStats 覆盖某一难度下的所有对局。
type GroupStats struct {
	Difficulty string     `json:"difficulty"`
	Games      int64      `json:"games"`
	Rounds     int64      `json:"total_rounds"`
	AvgRounds  float64    `json:"avg_rounds"`
	Dragon     SideTotals `json:"dragon"`
	Person     SideTotals `json:"person"`
}

// CharacterStats 是 CharacterStats 查询的结果。
type CharacterStats struct {
	Mode   AggregateMode `json:"mode"`
	Groups []GroupStats  `json:"groups"`
}
