package combatant

import "fmt"

// TemplateKeyPrefix 是角色模板哈希的键前缀。
const TemplateKeyPrefix = "character:"

// TemplateKey 是保存角色模板的哈希键。
func TemplateKey(id string) string {
	return fmt.Sprintf("%s%s", TemplateKeyPrefix, id)
}

const (
	fieldName       = "name"
	fieldBaseHP     = "base_hp"
	fieldSkill1Name = "skill1_name"
	fieldSkill2Name = "skill2_name"
	fieldSkill3Name = "skill3_name"
)
