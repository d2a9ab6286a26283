// Package ai 为无人操控的战斗者选择技能。
//
// 每种策略都只依赖双方战斗者和随机源，可以脱离战斗单独测试。
package ai

import (
	"github.com/SlpAus/dragon-duel-backend/internal/combatant"
)

// Strategy 为 self 选择下一个技能。
type Strategy func(self, opponent *combatant.Combatant, r combatant.Roller) combatant.SkillID

var strategies = map[combatant.Difficulty]Strategy{
	combatant.Easy:   easy,
	combatant.Normal: normal,
	combatant.Hard:   hard,
}

// For 返回对应难度的对手策略，默认为 normal。
func For(tier combatant.Difficulty) Strategy {
	if s, ok := strategies[tier]; ok {
		return s
	}
	return normal
}

// ChooseSkill 执行对应难度的对手策略。
// easy 和 normal 不考虑冷却，由调用方回退为普通攻击。
func ChooseSkill(self, opponent *combatant.Combatant, tier combatant.Difficulty, r combatant.Roller) combatant.SkillID {
	return For(tier)(self, opponent, r)
}

// 70% 普通攻击，25% 治疗，5% 大招
func easy(_, _ *combatant.Combatant, r combatant.Roller) combatant.SkillID {
	roll := r.Float64()
	switch {
	case roll < 0.70:
		return combatant.SkillBasic
	case roll < 0.95:
		return combatant.SkillHeal
	default:
		return combatant.SkillUltimate
	}
}

func normal(self, _ *combatant.Combatant, r combatant.Roller) combatant.SkillID {
	roll := r.Float64()
	switch {
	case roll > 0.3:
		return combatant.SkillBasic
	case roll > 0.1 || self.HP == 1:
		return combatant.SkillHeal
	default:
		return combatant.SkillUltimate
	}
}

// hard 会参考双方血量。
// 每条规则独立掷骰，未命中时进入下一条规则。
func hard(self, opponent *combatant.Combatant, r combatant.Roller) combatant.SkillID {
	healReady := self.Ready(combatant.SkillHeal)
	ultReady := self.Ready(combatant.SkillUltimate)

	if self.HP < 8 && healReady && r.Float64() < 0.8 {
		return combatant.SkillHeal
	}
	if opponent.HP <= 6 && ultReady && r.Float64() < 0.7 {
		return combatant.SkillUltimate
	}
	if opponent.HP > 6 && opponent.HP <= 12 && ultReady && r.Float64() < 0.4 {
		return combatant.SkillUltimate
	}

	basicShare, healShare := 0.50, 0.75
	if self.HP > 12 {
		basicShare, healShare = 0.60, 0.70
	}
	roll := r.Float64()
	switch {
	case roll < basicShare:
		return combatant.SkillBasic
	case roll < healShare && healReady:
		return combatant.SkillHeal
	case ultReady:
		return combatant.SkillUltimate
	default:
		return combatant.SkillBasic
	}
}

const (
	autoHealBelow     = 0.4
	autoFinisherBelow = 0.5
)

// ChooseAutoPlay 在玩家请求自动战斗时代为操作玩家一方。
// 只考虑已就绪的技能。
func ChooseAutoPlay(self, opponent *combatant.Combatant, r combatant.Roller) combatant.SkillID {
	if self.HPRatio() < autoHealBelow && self.Ready(combatant.SkillHeal) {
		return combatant.SkillHeal
	}
	if opponent.HPRatio() <= autoFinisherBelow && self.Ready(combatant.SkillUltimate) {
		return combatant.SkillUltimate
	}

	var offensive []combatant.SkillID
	for _, s := range self.ReadySkills() {
		if s != combatant.SkillHeal {
			offensive = append(offensive, s)
		}
	}
	if len(offensive) == 0 {
		return combatant.SkillBasic
	}
	return offensive[r.Intn(len(offensive))]
}
