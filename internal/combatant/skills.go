package combatant

const (
	baseCritChance = 10
	minCritChance  = 1
	maxCritChance  = 50

	basicDamage        = 2
	basicCritDamage    = 4
	healAmount         = 4
	ultimateDamage     = 5
	ultimateCritDamage = 10
)

// CritChance 是叠加难度加成后的实际暴击率。
func (c *Combatant) CritChance() int {
	chance := baseCritChance + c.CritRateBonus
	if chance < minCritChance {
		return minCritChance
	}
	if chance > maxCritChance {
		return maxCritChance
	}
	return chance
}

// rollCritical 掷出 1..100 并与实际暴击率比较
func (c *Combatant) rollCritical(r Roller) bool {
	return r.Intn(100)+1 <= c.CritChance()
}

// ResolveSkill 对 opponent 释放 skill。
// 它不检查冷却，技能能否使用由回合引擎决定。
func (c *Combatant) ResolveSkill(skill SkillID, opponent *Combatant, r Roller) (ActionOutcome, error) {
	if !skill.Valid() {
		return ActionOutcome{}, ErrUnknownSkill
	}

	if cd := c.MaxCooldowns[skill]; cd > 0 {
		c.Cooldowns[skill] = cd
	}
	c.SkillUses[skill]++

	out := ActionOutcome{Skill: skill, Action: skill.String()}
	switch skill {
	case SkillBasic:
		out.Value, out.Critical = basicDamage, false
		if c.rollCritical(r) {
			out.Value, out.Critical, out.Detail = basicCritDamage, true, "Critical Hit!"
		}
		c.dealDamage(opponent, out)
	case SkillHeal:
		applied := healAmount
		if room := c.InitialHP - c.HP; applied > room {
			applied = room
		}
		if applied < 0 {
			applied = 0
		}
		c.HP += applied
		c.TotalHealing += applied
		out.Value, out.Detail = applied, "Recovered HP"
	case SkillUltimate:
		out.Value = ultimateDamage
		if c.rollCritical(r) {
			out.Value, out.Critical, out.Detail = ultimateCritDamage, true, "Critical Ultimate!"
		}
		c.dealDamage(opponent, out)
	}
	return out, nil
}

func (c *Combatant) dealDamage(opponent *Combatant, out ActionOutcome) {
	opponent.HP -= out.Value
	c.TotalDamageDealt += out.Value
	if out.Critical {
		c.CriticalHits++
	}
}
