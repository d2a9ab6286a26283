package record

import "fmt"

// 单局提交时写入的Redis键
const (
	GameListKey         = "game:list"
	GameIDCounterKey    = "game:id:counter"
	WinsKey             = "stats:wins"
	TotalRoundsKey      = "stats:total_rounds"
	TotalGamesKey       = "stats:total_games"
	LongestRoundsKey    = "leaderboard:longest_rounds"
	MaxDamageKey        = "leaderboard:max_damage:person"
	NotificationChannel = "channel:game_notifications"
	GameIndexName       = "idx:games"
	GameKeyPrefix       = "game:"
)

// GameKey 是保存一局已结束对局的扁平哈希。
func GameKey(gameID int64) string {
	return fmt.Sprintf("%s%d", GameKeyPrefix, gameID)
}

// DerivedKeys 在存储丢失数据后从归档重建。
var DerivedKeys = []string{GameListKey, WinsKey, TotalRoundsKey, TotalGamesKey, LongestRoundsKey, MaxDamageKey}
