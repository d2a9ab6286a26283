package ai

import (
	"testing"

	"github.com/SlpAus/dragon-duel-backend/internal/combatant"
	"github.com/SlpAus/dragon-duel-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
)

func pair(selfHP, oppHP int) (*combatant.Combatant, *combatant.Combatant) {
	self := combatant.New("self", 20, combatant.Normal)
	opp := combatant.New("opp", 20, combatant.Normal)
	self.HP, opp.HP = selfHP, oppHP
	return self, opp
}

func TestEasyDistribution(t *testing.T) {
	cases := map[float64]combatant.SkillID{
		0.00: combatant.SkillBasic,
		0.69: combatant.SkillBasic,
		0.70: combatant.SkillHeal,
		0.94: combatant.SkillHeal,
		0.95: combatant.SkillUltimate,
	}
	self, opp := pair(20, 20)
	self.Cooldowns[combatant.SkillUltimate] = 5 // easy ignores cooldowns
	for roll, want := range cases {
		got := ChooseSkill(self, opp, combatant.Easy, testutil.NewScriptedRoller(nil, []float64{roll}))
		assert.Equal(t, want, got, "roll %v", roll)
	}
}

func TestNormalPolicy(t *testing.T) {
	self, opp := pair(20, 20)
	roll := func(v float64) combatant.Roller { return testutil.NewScriptedRoller(nil, []float64{v}) }

	assert.Equal(t, combatant.SkillBasic, ChooseSkill(self, opp, combatant.Normal, roll(0.31)))
	assert.Equal(t, combatant.SkillHeal, ChooseSkill(self, opp, combatant.Normal, roll(0.3)))
	assert.Equal(t, combatant.SkillHeal, ChooseSkill(self, opp, combatant.Normal, roll(0.11)))
	assert.Equal(t, combatant.SkillUltimate, ChooseSkill(self, opp, combatant.Normal, roll(0.1)))

	self.HP = 1
	assert.Equal(t, combatant.SkillHeal, ChooseSkill(self, opp, combatant.Normal, roll(0.05)))
}

func TestHardPolicy(t *testing.T) {
	t.Run("low health heals", func(t *testing.T) {
		self, opp := pair(7, 20)
		r := testutil.NewScriptedRoller(nil, []float64{0.79})
		assert.Equal(t, combatant.SkillHeal, ChooseSkill(self, opp, combatant.Hard, r))
	})

	t.Run("missed heal roll falls through to finisher", func(t *testing.T) {
		self, opp := pair(7, 6)
		r := testutil.NewScriptedRoller(nil, []float64{0.9, 0.69})
		assert.Equal(t, combatant.SkillUltimate, ChooseSkill(self, opp, combatant.Hard, r))
	})

	t.Run("heal on cooldown skips the heal rule without rolling", func(t *testing.T) {
		self, opp := pair(7, 6)
		self.Cooldowns[combatant.SkillHeal] = 1
		r := testutil.NewScriptedRoller(nil, []float64{0.5})
		assert.Equal(t, combatant.SkillUltimate, ChooseSkill(self, opp, combatant.Hard, r))
	})

	t.Run("mid health opponent", func(t *testing.T) {
		self, opp := pair(10, 12)
		r := testutil.NewScriptedRoller(nil, []float64{0.39})
		assert.Equal(t, combatant.SkillUltimate, ChooseSkill(self, opp, combatant.Hard, r))
	})

	t.Run("healthy weighted roll", func(t *testing.T) {
		self, opp := pair(15, 20)
		roll := func(v float64) combatant.Roller { return testutil.NewScriptedRoller(nil, []float64{v}) }
		assert.Equal(t, combatant.SkillBasic, ChooseSkill(self, opp, combatant.Hard, roll(0.59)))
		assert.Equal(t, combatant.SkillHeal, ChooseSkill(self, opp, combatant.Hard, roll(0.65)))
		assert.Equal(t, combatant.SkillUltimate, ChooseSkill(self, opp, combatant.Hard, roll(0.9)))

		self.Cooldowns[combatant.SkillUltimate] = 2
		assert.Equal(t, combatant.SkillBasic, ChooseSkill(self, opp, combatant.Hard, roll(0.9)))
	})

	t.Run("default weighted roll", func(t *testing.T) {
		self, opp := pair(10, 20)
		roll := func(v float64) combatant.Roller { return testutil.NewScriptedRoller(nil, []float64{v}) }
		assert.Equal(t, combatant.SkillBasic, ChooseSkill(self, opp, combatant.Hard, roll(0.49)))
		assert.Equal(t, combatant.SkillHeal, ChooseSkill(self, opp, combatant.Hard, roll(0.74)))
		assert.Equal(t, combatant.SkillUltimate, ChooseSkill(self, opp, combatant.Hard, roll(0.8)))

		self.Cooldowns[combatant.SkillHeal] = 1
		assert.Equal(t, combatant.SkillUltimate, ChooseSkill(self, opp, combatant.Hard, roll(0.6)))
	})
}

func TestHardNeverPicksSkillsOnCooldown(t *testing.T) {
	for selfHP := 1; selfHP <= 20; selfHP++ {
		for oppHP := 1; oppHP <= 20; oppHP++ {
			self, opp := pair(selfHP, oppHP)
			self.Cooldowns[combatant.SkillHeal] = 1
			self.Cooldowns[combatant.SkillUltimate] = 3
			for _, roll := range []float64{0, 0.35, 0.65, 0.72, 0.99} {
				r := testutil.NewScriptedRoller(nil, []float64{roll, roll, roll, roll})
				assert.Equal(t, combatant.SkillBasic, ChooseSkill(self, opp, combatant.Hard, r))
			}
		}
	}
}

func TestUnknownTierUsesNormal(t *testing.T) {
	self, opp := pair(20, 20)
	r := testutil.NewScriptedRoller(nil, []float64{0.05})
	assert.Equal(t, combatant.SkillUltimate, ChooseSkill(self, opp, combatant.Difficulty("mythic"), r))
}

func TestChooseAutoPlay(t *testing.T) {
	t.Run("heals when low", func(t *testing.T) {
		self, opp := pair(7, 20)
		assert.Equal(t, combatant.SkillHeal, ChooseAutoPlay(self, opp, testutil.NoCrits()))
	})

	t.Run("finisher when opponent low", func(t *testing.T) {
		self, opp := pair(20, 10)
		assert.Equal(t, combatant.SkillUltimate, ChooseAutoPlay(self, opp, testutil.NoCrits()))
	})

	t.Run("uniform among ready offensive skills", func(t *testing.T) {
		self, opp := pair(20, 20)
		assert.Equal(t, combatant.SkillBasic, ChooseAutoPlay(self, opp, testutil.NewScriptedRoller([]int{0}, nil)))
		assert.Equal(t, combatant.SkillUltimate, ChooseAutoPlay(self, opp, testutil.NewScriptedRoller([]int{1}, nil)))
	})

	t.Run("only ready skills", func(t *testing.T) {
		self, opp := pair(5, 5)
		self.Cooldowns[combatant.SkillHeal] = 2
		self.Cooldowns[combatant.SkillUltimate] = 4
		assert.Equal(t, combatant.SkillBasic, ChooseAutoPlay(self, opp, testutil.NoCrits()))
	})
}
