package archive

import (
	"time"

	"github.com/SlpAus/dragon-duel-backend/internal/record"
)

// Game 是已记录对局的持久化副本。
type Game struct {
	GameID       int64  `gorm:"primaryKey;autoIncrement:false"`
	Timestamp    string `gorm:"type:varchar(40)"`
	TotalRounds  int
	Winner       string `gorm:"type:varchar(16);index"`
	PlayerName   string `gorm:"type:varchar(64);index"`
	Difficulty   string `gorm:"type:varchar(16)"`
	DragonDamage int
	DragonHeal   int
	DragonCrit   int
	DragonHP     int
	PersonDamage int
	PersonHeal   int
	PersonCrit   int
	PersonHP     int
	ArchivedAt   time.Time `gorm:"autoCreateTime"`
}

// TableName 固定表名。
func (Game) TableName() string {
	return "archived_games"
}

func fromRecord(r record.GameRecord) Game {
	return Game{
		GameID:       r.GameID,
		Timestamp:    r.Timestamp,
		TotalRounds:  r.TotalRounds,
		Winner:       r.Winner,
		PlayerName:   r.PlayerName,
		Difficulty:   r.Difficulty,
		DragonDamage: r.DragonDamage,
		DragonHeal:   r.DragonHeal,
		DragonCrit:   r.DragonCrit,
		DragonHP:     r.DragonHP,
		PersonDamage: r.PersonDamage,
		PersonHeal:   r.PersonHeal,
		PersonCrit:   r.PersonCrit,
		PersonHP:     r.PersonHP,
	}
}

// Record 转换回Redis中的结构。
func (g Game) Record() record.GameRecord {
	return record.GameRecord{
		GameID:       g.GameID,
		Timestamp:    g.Timestamp,
		TotalRounds:  g.TotalRounds,
		Winner:       g.Winner,
		PlayerName:   g.PlayerName,
		Difficulty:   g.Difficulty,
		DragonDamage: g.DragonDamage,
		DragonHeal:   g.DragonHeal,
		DragonCrit:   g.DragonCrit,
		DragonHP:     g.DragonHP,
		PersonDamage: g.PersonDamage,
		PersonHeal:   g.PersonHeal,
		PersonCrit:   g.PersonCrit,
		PersonHP:     g.PersonHP,
	}
}
