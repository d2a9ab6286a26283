package query

import (
	"math"
	"sort"
	"strconv"

	"github.com/SlpAus/dragon-duel-backend/internal/record"
)

// sums 是两种聚合方式共同产出的原始汇总
type sums struct {
	games, rounds         int64
	dDamage, dHeal, dCrit int64
	pDamage, pHeal, pCrit int64
}

func (s *sums) add(r record.GameRecord) {
	s.games++
	s.rounds += int64(r.TotalRounds)
	s.dDamage += int64(r.DragonDamage)
	s.dHeal += int64(r.DragonHeal)
	s.dCrit += int64(r.DragonCrit)
	s.pDamage += int64(r.PersonDamage)
	s.pHeal += int64(r.PersonHeal)
	s.pCrit += int64(r.PersonCrit)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func avg(total, games int64) float64 {
	if games == 0 {
		return 0
	}
	return round1(float64(total) / float64(games))
}

func side(damage, heal, crit, games int64) SideTotals {
	return SideTotals{
		Damage:  damage,
		Healing: heal,
		Crits:   crit,
		AvgDmg:  avg(damage, games),
		AvgHeal: avg(heal, games),
		AvgCrit: avg(crit, games),
	}
}

// finish 将按难度的汇总转换为排好序的分组
func finish(groups map[string]*sums) []GroupStats {
	out := make([]GroupStats, 0, len(groups))
	for difficulty, s := range groups {
		out = append(out, GroupStats{
			Difficulty: difficulty,
			Games:      s.games,
			Rounds:     s.rounds,
			AvgRounds:  avg(s.rounds, s.games),
			Dragon:     side(s.dDamage, s.dHeal, s.dCrit, s.games),
			Person:     side(s.pDamage, s.pHeal, s.pCrit, s.games),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Difficulty < out[j].Difficulty })
	return out
}

// aggregateArgs 构造与扫描结果相同的 FT.AGGREGATE 调用
func aggregateArgs() []interface{} {
	args := []interface{}{"FT.AGGREGATE", record.GameIndexName, "*",
		"GROUPBY", 1, "@difficulty",
		"REDUCE", "COUNT", 0, "AS", "games",
	}
	for _, field := range []string{"total_rounds", "d_damage", "d_heal", "d_crit", "p_damage", "p_heal", "p_crit"} {
		args = append(args, "REDUCE", "SUM", 1, "@"+field, "AS", field)
	}
	return args
}

// parseAggregateReply 解析 RESP2 格式的 FT.AGGREGATE 回复：
// 第一个元素是数量，之后每个元素是扁平的 [field, value, ...] 行
func parseAggregateReply(reply interface{}) (map[string]*sums, error) {
	rows, ok := reply.([]interface{})
	if !ok {
		return nil, errUnexpectedReply
	}
	groups := make(map[string]*sums)
	for _, raw := range rows[min(1, len(rows)):] {
		row, ok := raw.([]interface{})
		if !ok || len(row)%2 != 0 {
			return nil, errUnexpectedReply
		}
		fields := make(map[string]string, len(row)/2)
		for i := 0; i < len(row); i += 2 {
			k, _ := row[i].(string)
			v, _ := row[i+1].(string)
			fields[k] = v
		}
		num := func(k string) int64 {
			f, _ := strconv.ParseFloat(fields[k], 64)
			return int64(math.Round(f))
		}
		groups[fields["difficulty"]] = &sums{
			games:   num("games"),
			rounds:  num("total_rounds"),
			dDamage: num("d_damage"),
			dHeal:   num("d_heal"),
			dCrit:   num("d_crit"),
			pDamage: num("p_damage"),
			pHeal:   num("p_heal"),
			pCrit:   num("p_crit"),
		}
	}
	return groups, nil
}
