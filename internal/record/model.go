package record

import (
	"errors"
	"strconv"
	"time"

	"github.com/SlpAus/dragon-duel-backend/internal/combatant"
)

var (
	// ErrStoreUnavailable 表示Redis无法连接或已被标记为不可用。
	ErrStoreUnavailable = errors.New("record: store unavailable")
	// ErrConflictExceededRetries 表示所有乐观锁尝试均被中止。
	ErrConflictExceededRetries = errors.New("record: conflict exceeded retries")
	// ErrGameNotFound 在查询未知ID时返回。
	ErrGameNotFound = errors.New("record: game not found")
)

// Winner 表示获胜的一方，或平局。
type Winner string

const (
	WinnerNone     Winner = ""
	WinnerPlayer   Winner = "player"
	WinnerOpponent Winner = "opponent"
	WinnerDraw     Winner = "draw"
)

// GameResult 是战斗结束时回合引擎交出的结果。
type GameResult struct {
	GameID      int64
	PlayerName  string
	Difficulty  combatant.Difficulty
	Winner      Winner
	TotalRounds int
	Dragon      combatant.Stats
	Person      combatant.Stats
	FinishedAt  time.Time
}

// GameRecord 是保存在 game:{id} 下的扁平哈希。
type GameRecord struct {
	GameID       int64  `redis:"game_id" json:"game_id"`
	Timestamp    string `redis:"timestamp" json:"timestamp"`
	TotalRounds  int    `redis:"total_rounds" json:"total_rounds"`
	Winner       string `redis:"winner" json:"winner"`
	PlayerName   string `redis:"player_name" json:"player_name"`
	Difficulty   string `redis:"difficulty" json:"difficulty"`
	DragonDamage int    `redis:"d_damage" json:"d_damage"`
	DragonHeal   int    `redis:"d_heal" json:"d_heal"`
	DragonCrit   int    `redis:"d_crit" json:"d_crit"`
	DragonHP     int    `redis:"d_hp" json:"d_hp"`
	PersonDamage int    `redis:"p_damage" json:"p_damage"`
	PersonHeal   int    `redis:"p_heal" json:"p_heal"`
	PersonCrit   int    `redis:"p_crit" json:"p_crit"`
	PersonHP     int    `redis:"p_hp" json:"p_hp"`
}

// NewGameRecord 将结果展平，并按 loc 格式化时间戳。
func NewGameRecord(r GameResult, loc *time.Location) GameRecord {
	if loc == nil {
		loc = time.UTC
	}
	return GameRecord{
		GameID:       r.GameID,
		Timestamp:    r.FinishedAt.In(loc).Format(time.RFC3339),
		TotalRounds:  r.TotalRounds,
		Winner:       string(r.Winner),
		PlayerName:   r.PlayerName,
		Difficulty:   string(r.Difficulty),
		DragonDamage: r.Dragon.TotalDamageDealt,
		DragonHeal:   r.Dragon.TotalHealing,
		DragonCrit:   r.Dragon.CriticalHits,
		DragonHP:     r.Dragon.FinalHP,
		PersonDamage: r.Person.TotalDamageDealt,
		PersonHeal:   r.Person.TotalHealing,
		PersonCrit:   r.Person.CriticalHits,
		PersonHP:     r.Person.FinalHP,
	}
}

// Fields 返回用于 HSET 的哈希字段。
func (g GameRecord) Fields() map[string]interface{} {
	return map[string]interface{}{
		"game_id":      strconv.FormatInt(g.GameID, 10),
		"timestamp":    g.Timestamp,
		"total_rounds": g.TotalRounds,
		"winner":       g.Winner,
		"player_name":  g.PlayerName,
		"difficulty":   g.Difficulty,
		"d_damage":     g.DragonDamage,
		"d_heal":       g.DragonHeal,
		"d_crit":       g.DragonCrit,
		"d_hp":         g.DragonHP,
		"p_damage":     g.PersonDamage,
		"p_heal":       g.PersonHeal,
		"p_crit":       g.PersonCrit,
		"p_hp":         g.PersonHP,
	}
}

// Notification 在每局提交成功后发布一次。
type Notification struct {
	Event       string          `json:"event"`
	GameID      int64           `json:"game_id"`
	Timestamp   string          `json:"timestamp"`
	Winner      string          `json:"winner"`
	TotalRounds int             `json:"total_rounds"`
	PlayerName  string          `json:"player_name"`
	DragonStats combatant.Stats `json:"dragon_stats"`
	PersonStats combatant.Stats `json:"person_stats"`
}

// EventGameCompleted 是唯一的通知类型。
const EventGameCompleted = "game_completed"

// NewNotification 为 r 构造通知内容。
func NewNotification(r GameResult, loc *time.Location) Notification {
	if loc == nil {
		loc = time.UTC
	}
	return Notification{
		Event:       EventGameCompleted,
		GameID:      r.GameID,
		Timestamp:   r.FinishedAt.In(loc).Format(time.RFC3339),
		Winner:      string(r.Winner),
		TotalRounds: r.TotalRounds,
		PlayerName:  r.PlayerName,
		DragonStats: r.Dragon,
		PersonStats: r.Person,
	}
}
