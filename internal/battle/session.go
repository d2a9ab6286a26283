package battle

import (
	"fmt"
	"sync"
	"time"

	"github.com/SlpAus/dragon-duel-backend/internal/ai"
	"github.com/SlpAus/dragon-duel-backend/internal/combatant"
	"github.com/SlpAus/dragon-duel-backend/internal/eventlog"
	"github.com/SlpAus/dragon-duel-backend/internal/record"
)

// EventSink 接收每个已结算的动作。实现不得阻塞。
type EventSink interface {
	Record(gameID int64, ev eventlog.Event) bool
}

type discardSink struct{}

func (discardSink) Record(int64, eventlog.Event) bool { return true }

// playerUltimateLockout 让玩家的大招在开局几个回合内不可用
const playerUltimateLockout = 2

// Session 是玩家角色与AI巨龙之间的一场战斗。
// 它不是并发安全的，由 Registry 串行化访问。
type Session struct {
	mu sync.Mutex

	ID         int64
	PlayerName string
	Difficulty combatant.Difficulty
	StartedAt  time.Time

	turn        int
	phase       Phase
	winner      record.Winner
	endedRound  int
	finishedAt  time.Time
	person      *combatant.Combatant
	dragon      *combatant.Combatant
	rng         combatant.Roller
	now         func() time.Time
	sink        EventSink
	critStreak  int
	maxCritRun  int
	commit      *record.CommitResult
	pendingSave bool
}

// SessionConfig 包含开启一场战斗所需的全部参数。
type SessionConfig struct {
	ID         int64
	PlayerName string
	Difficulty combatant.Difficulty
	Person     combatant.Template
	Dragon     combatant.Template
	Roller     combatant.Roller
	Sink       EventSink
	Now        func() time.Time
}

// NewSession 按难度的血量修正生成双方战斗者。
// 玩家角色始终以普通难度作战。
func NewSession(cfg SessionConfig) *Session {
	if cfg.Sink == nil {
		cfg.Sink = discardSink{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	playerOffset, opponentOffset := cfg.Difficulty.HPOffsets()

	person := cfg.Person.Spawn(combatant.Normal, playerOffset)
	person.Cooldowns[combatant.SkillUltimate] = playerUltimateLockout

	return &Session{
		ID:         cfg.ID,
		PlayerName: cfg.PlayerName,
		Difficulty: cfg.Difficulty,
		StartedAt:  cfg.Now(),
		turn:       1,
		phase:      PhasePlayerTurn,
		person:     person,
		dragon:     cfg.Dragon.Spawn(cfg.Difficulty, opponentOffset),
		rng:        cfg.Roller,
		now:        cfg.Now,
		sink:       cfg.Sink,
	}
}

func (s *Session) transition(to Phase) error {
	if !canTransition(s.phase, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s.phase, to)
	}
	s.phase = to
	return nil
}

// IsOver 判断战斗是否已结束。
func (s *Session) IsOver() bool {
	return s.phase == PhaseGameOver
}

// ProcessTurn 结算一个完整回合：玩家先行动，双方都存活时巨龙再行动。
// 无效的手动输入会在任何状态改变之前被拒绝。
func (s *Session) ProcessTurn(in TurnInput) (Snapshot, error) {
	if s.phase == PhaseGameOver {
		return s.snapshot(nil), ErrGameOver
	}

	skill, err := s.playerSkill(in)
	if err != nil {
		return s.snapshot(nil), err
	}

	var events []eventlog.Event
	if err := s.transition(PhaseAnimating); err != nil {
		return s.snapshot(nil), err
	}
	ev, err := s.act(SidePerson, s.person, s.dragon, skill)
	if err != nil {
		return s.snapshot(nil), err
	}
	events = append(events, ev)
	s.trackCrits(ev)

	if s.person.Alive() && s.dragon.Alive() {
		if err := s.transition(PhaseOpponentTurn); err != nil {
			return s.snapshot(events), err
		}
		choice := ai.ChooseSkill(s.dragon, s.person, s.Difficulty, s.rng)
		if !s.dragon.Ready(choice) {
			choice = combatant.SkillBasic
		}
		if err := s.transition(PhaseAnimating); err != nil {
			return s.snapshot(events), err
		}
		ev, err := s.act(SideDragon, s.dragon, s.person, choice)
		if err != nil {
			return s.snapshot(events), err
		}
		events = append(events, ev)
	}

	round := s.turn
	s.endCycle()

	if !s.person.Alive() || !s.dragon.Alive() {
		s.endedRound = round
		s.winner = s.decideWinner()
		s.finishedAt = s.now()
		if err := s.transition(PhaseGameOver); err != nil {
			return s.snapshot(events), err
		}
		return s.snapshot(events), nil
	}
	if err := s.transition(PhasePlayerTurn); err != nil {
		return s.snapshot(events), err
	}
	return s.snapshot(events), nil
}

func (s *Session) playerSkill(in TurnInput) (combatant.SkillID, error) {
	if in.ManualSkill != nil {
		skill := combatant.SkillID(*in.ManualSkill)
		if !skill.Valid() {
			return 0, fmt.Errorf("%w: unknown skill %d", ErrInvalidAction, *in.ManualSkill)
		}
		if !s.person.Ready(skill) {
			return 0, fmt.Errorf("%w: %s on cooldown for %d more round(s)",
				ErrInvalidAction, skill, s.person.Cooldowns[skill])
		}
		return skill, nil
	}
	if in.AutoPlay {
		return ai.ChooseAutoPlay(s.person, s.dragon, s.rng), nil
	}
	return 0, fmt.Errorf("%w: no skill chosen", ErrInvalidAction)
}

func (s *Session) act(side string, self, target *combatant.Combatant, skill combatant.SkillID) (eventlog.Event, error) {
	out, err := self.ResolveSkill(skill, target, s.rng)
	if err != nil {
		return eventlog.Event{}, fmt.Errorf("%w: %v", ErrInvalidAction, err)
	}
	ev := eventlog.Event{
		Turn:      s.turn,
		Actor:     self.Name,
		Side:      side,
		Action:    out.Action,
		Value:     out.Value,
		Detail:    out.Detail,
		Critical:  out.Critical,
		Timestamp: s.now(),
	}
	s.sink.Record(s.ID, ev)
	return ev, nil
}

// endCycle 结束一个回合：回合数加一，冷却各减一
func (s *Session) endCycle() {
	s.turn++
	s.person.DecrementCooldowns()
	s.dragon.DecrementCooldowns()
}

func (s *Session) trackCrits(ev eventlog.Event) {
	if ev.Critical {
		s.critStreak++
		if s.critStreak > s.maxCritRun {
			s.maxCritRun = s.critStreak
		}
		return
	}
	if ev.Action != combatant.SkillHeal.String() {
		s.critStreak = 0
	}
}

func (s *Session) decideWinner() record.Winner {
	switch {
	case !s.person.Alive() && !s.dragon.Alive():
		return record.WinnerDraw
	case !s.person.Alive():
		return record.WinnerOpponent
	case !s.dragon.Alive():
		return record.WinnerPlayer
	default:
		return record.WinnerNone
	}
}

// Result 是交给持久化网关的结果。
// 战斗仍在进行时 ok 为 false。
func (s *Session) Result() (record.GameResult, bool) {
	if s.phase != PhaseGameOver {
		return record.GameResult{}, false
	}
	return record.GameResult{
		GameID:      s.ID,
		PlayerName:  s.PlayerName,
		Difficulty:  s.Difficulty,
		Winner:      s.winner,
		TotalRounds: s.endedRound,
		Dragon:      s.dragon.Stats(),
		Person:      s.person.Stats(),
		FinishedAt:  s.finishedAt,
	}, true
}

// Snapshot 返回不含回合事件的当前状态。
func (s *Session) Snapshot() Snapshot {
	return s.snapshot(nil)
}

func (s *Session) snapshot(events []eventlog.Event) Snapshot {
	if events == nil {
		events = []eventlog.Event{}
	}
	snap := Snapshot{
		GameID:              s.ID,
		Phase:               s.phase,
		Round:               s.turn,
		DragonHP:            s.dragon.DisplayHP(),
		DragonMaxHP:         s.dragon.InitialHP,
		PersonHP:            s.person.DisplayHP(),
		PersonMaxHP:         s.person.InitialHP,
		Cooldowns:           s.person.CooldownView(),
		TurnEvents:          events,
		GameOver:            s.phase == PhaseGameOver,
		Winner:              s.winner,
		MaxConsecutiveCrits: s.maxCritRun,
	}
	if s.commit != nil {
		snap.Recorded = s.commit.Settled()
		snap.CommitStatus = s.commit.Status.String()
	}
	return snap
}

func (s *Session) setCommit(res record.CommitResult) {
	s.commit = &res
	s.pendingSave = !res.Settled()
}
