package combatant

// 角色模板ID。玩家一方始终是 person。
const (
	DragonID = "dragon"
	PersonID = "person"
)

const defaultBaseHP = 20

// Template 是角色的静态描述。
type Template struct {
	ID         string
	Name       string
	BaseHP     int
	SkillNames [3]string
}

// DefaultTemplate 返回 id 对应的内置模板。
func DefaultTemplate(id string) (Template, bool) {
	switch id {
	case DragonID:
		return Template{
			ID:         DragonID,
			Name:       "Dragon King",
			BaseHP:     defaultBaseHP,
			SkillNames: [3]string{"Flame Roar", "Heal", "Dragon Breath"},
		}, true
	case PersonID:
		return Template{
			ID:         PersonID,
			Name:       "Hero",
			BaseHP:     defaultBaseHP,
			SkillNames: [3]string{"Light Slash", "Heal", "Victory Strike"},
		}, true
	default:
		return Template{}, false
	}
}

// Spawn 根据模板创建战斗者，当前血量和初始血量都加上 hpOffset。
func (t Template) Spawn(tier Difficulty, hpOffset int) *Combatant {
	hp := t.BaseHP
	if hp <= 0 {
		hp = defaultBaseHP
	}
	return New(t.Name, hp+hpOffset, tier)
}
