package battle

import (
	"errors"

	"github.com/SlpAus/dragon-duel-backend/internal/combatant"
	"github.com/SlpAus/dragon-duel-backend/internal/eventlog"
	"github.com/SlpAus/dragon-duel-backend/internal/record"
)

var (
	// ErrInvalidAction 拒绝未知或冷却中的手动技能，以及不带任何动作的回合请求。
	// 会话状态保持不变。
	ErrInvalidAction = errors.New("battle: invalid action")
	// ErrGameOver 在对已结束的战斗行动时返回。
	ErrGameOver = errors.New("battle: game is over")
	// ErrSessionNotFound 表示ID未知或会话已被移除。
	ErrSessionNotFound = errors.New("battle: session not found")
	// ErrDuplicateGameID 表示计数器发出的ID已被一场进行中的战斗占用。
	ErrDuplicateGameID = errors.New("battle: game id already in use")
	// ErrIllegalTransition 表示回合引擎存在bug。
	ErrIllegalTransition = errors.New("battle: illegal phase transition")
)

// Phase 是回合引擎的状态。
type Phase string

const (
	PhasePlayerTurn   Phase = "player_turn"
	PhaseAnimating    Phase = "animating"
	PhaseOpponentTurn Phase = "opponent_turn"
	PhaseGameOver     Phase = "game_over"
)

var transitions = map[Phase][]Phase{
	PhasePlayerTurn:   {PhaseAnimating},
	PhaseAnimating:    {PhaseOpponentTurn, PhasePlayerTurn, PhaseGameOver},
	PhaseOpponentTurn: {PhaseAnimating},
	PhaseGameOver:     nil,
}

func canTransition(from, to Phase) bool {
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// 事件中使用的阵营标识。actor 字段则是战斗者的名字。
const (
	SidePerson = combatant.PersonID
	SideDragon = combatant.DragonID
)

// TurnInput 驱动一个回合。ManualSkill 优先于 AutoPlay，两者必须设置其一。
type TurnInput struct {
	ManualSkill *int `json:"manualSkillID,omitempty"`
	AutoPlay    bool `json:"autoPlay"`
}

// Snapshot 是每次调用后返回给调用方的状态。
type Snapshot struct {
	GameID              int64                     `json:"gameID"`
	Phase               Phase                     `json:"phase"`
	Round               int                       `json:"round"`
	DragonHP            int                       `json:"dragonHP"`
	DragonMaxHP         int                       `json:"dragonMaxHP"`
	PersonHP            int                       `json:"personHP"`
	PersonMaxHP         int                       `json:"personMaxHP"`
	Cooldowns           map[combatant.SkillID]int `json:"cooldowns"`
	TurnEvents          []eventlog.Event          `json:"turnEvents"`
	GameOver            bool                      `json:"gameOver"`
	Winner              record.Winner             `json:"winner,omitempty"`
	MaxConsecutiveCrits int                       `json:"maxConsecutiveCrits"`
	Recorded            bool                      `json:"recorded"`
	CommitStatus        string                    `json:"commitStatus,omitempty"`
}
