package combatant

import (
	"errors"
	"fmt"
)

// SkillID 标识每个战斗者都拥有的三个技能之一。
type SkillID int

const (
	SkillBasic    SkillID = 1
	SkillHeal     SkillID = 2
	SkillUltimate SkillID = 3
)

// AllSkills 按槽位顺序列出所有技能。
var AllSkills = []SkillID{SkillBasic, SkillHeal, SkillUltimate}

// ErrUnknownSkill 在技能ID不在 1..3 范围内时返回。
var ErrUnknownSkill = errors.New("unknown skill")

// Valid 判断 s 是否对应一个真实的技能槽位。
func (s SkillID) Valid() bool {
	return s >= SkillBasic && s <= SkillUltimate
}

// String 返回写入事件日志的动作名称。
func (s SkillID) String() string {
	switch s {
	case SkillBasic:
		return "Basic Attack"
	case SkillHeal:
		return "Heal"
	case SkillUltimate:
		return "Ultimate"
	default:
		return fmt.Sprintf("Skill(%d)", int(s))
	}
}

// Difficulty 是一场战斗的难度等级。
// 它决定AI策略、AI一方的暴击加成以及双方的初始血量。
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Normal Difficulty = "normal"
	Hard   Difficulty = "hard"
)

// ParseDifficulty 将未知或空的输入映射为 Normal。
func ParseDifficulty(s string) Difficulty {
	switch Difficulty(s) {
	case Easy, Hard:
		return Difficulty(s)
	default:
		return Normal
	}
}

// CritBonus 是暴击判定时叠加的百分点修正。
func (d Difficulty) CritBonus() int {
	switch d {
	case Easy:
		return -5
	case Hard:
		return 5
	default:
		return 0
	}
}

// HPOffsets 返回玩家一方和对手一方的初始血量修正。
func (d Difficulty) HPOffsets() (player, opponent int) {
	switch d {
	case Easy:
		return 2, -2
	case Hard:
		return -2, 3
	default:
		return 0, 0
	}
}

// Roller 是战斗者所需的随机源，*math/rand.Rand 即满足该接口。
type Roller interface {
	Intn(n int) int
	Float64() float64
}

// ActionOutcome 描述一次技能结算的结果。
type ActionOutcome struct {
	Skill    SkillID `json:"skill"`
	Action   string  `json:"action"`
	Value    int     `json:"value"`
	Critical bool    `json:"critical"`
	Detail   string  `json:"detail"`
}

// Stats 是随已结束对局一起保存的只读统计投影。
type Stats struct {
	Name             string `json:"name"`
	FinalHP          int    `json:"final_hp"`
	TotalDamageDealt int    `json:"total_damage_dealt"`
	TotalHealing     int    `json:"total_healing"`
	Skill1Used       int    `json:"skill1_used"`
	Skill2Used       int    `json:"skill2_used"`
	Skill3Used       int    `json:"skill3_used"`
	CriticalHits     int    `json:"critical_hits"`
}

// Combatant 是战斗中的一方。
// HP 保存原始值，可能低于零，由 DisplayHP 和 Stats 负责截断。
type Combatant struct {
	Name          string
	HP            int
	InitialHP     int
	Cooldowns     map[SkillID]int
	MaxCooldowns  map[SkillID]int
	Tier          Difficulty
	CritRateBonus int

	TotalDamageDealt int
	TotalHealing     int
	CriticalHits     int
	SkillUses        map[SkillID]int
}

// New 创建一个满血且所有技能就绪的战斗者。
func New(name string, hp int, tier Difficulty) *Combatant {
	return &Combatant{
		Name:          name,
		HP:            hp,
		InitialHP:     hp,
		Cooldowns:     map[SkillID]int{SkillBasic: 0, SkillHeal: 0, SkillUltimate: 0},
		MaxCooldowns:  map[SkillID]int{SkillBasic: 0, SkillHeal: 2, SkillUltimate: 5},
		Tier:          tier,
		CritRateBonus: tier.CritBonus(),
		SkillUses:     map[SkillID]int{},
	}
}

// Alive 判断 hp > 0。
func (c *Combatant) Alive() bool {
	return c.HP > 0
}

// DisplayHP 返回截断到零的 HP。
func (c *Combatant) DisplayHP() int {
	if c.HP < 0 {
		return 0
	}
	return c.HP
}

// HPRatio 是当前血量与初始血量之比。
func (c *Combatant) HPRatio() float64 {
	if c.InitialHP <= 0 {
		return 0
	}
	return float64(c.HP) / float64(c.InitialHP)
}

// Ready 判断技能是否已冷却完毕。
func (c *Combatant) Ready(skill SkillID) bool {
	return c.Cooldowns[skill] == 0
}

// ReadySkills 按槽位顺序返回当前可用的技能。
func (c *Combatant) ReadySkills() []SkillID {
	ready := make([]SkillID, 0, len(AllSkills))
	for _, s := range AllSkills {
		if c.Ready(s) {
			ready = append(ready, s)
		}
	}
	return ready
}

// CooldownView 为调用方复制一份冷却表。
func (c *Combatant) CooldownView() map[SkillID]int {
	out := make(map[SkillID]int, len(c.Cooldowns))
	for k, v := range c.Cooldowns {
		out[k] = v
	}
	return out
}

// DecrementCooldowns 将所有进行中的冷却减一。
func (c *Combatant) DecrementCooldowns() {
	for skill, left := range c.Cooldowns {
		if left > 0 {
			c.Cooldowns[skill] = left - 1
		}
	}
}

// Stats 对累计计数器做快照。
func (c *Combatant) Stats() Stats {
	return Stats{
		Name:             c.Name,
		FinalHP:          c.DisplayHP(),
		TotalDamageDealt: c.TotalDamageDealt,
		TotalHealing:     c.TotalHealing,
		Skill1Used:       c.SkillUses[SkillBasic],
		Skill2Used:       c.SkillUses[SkillHeal],
		Skill3Used:       c.SkillUses[SkillUltimate],
		CriticalHits:     c.CriticalHits,
	}
}
