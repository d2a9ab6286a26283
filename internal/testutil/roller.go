package testutil

import "sync"

// ScriptedRoller 按预设顺序返回随机数，使战斗结果完全确定。
//
// 预设用完后，Intn 返回 n-1（最大值，永远不会暴击），Float64 返回 0.5。
type ScriptedRoller struct {
	mu     sync.Mutex
	ints   []int
	floats []float64
}

// NewScriptedRoller 返回一个 Intn 依次取 ints、Float64 依次取 floats 的随机源。
func NewScriptedRoller(ints []int, floats []float64) *ScriptedRoller {
	return &ScriptedRoller{ints: ints, floats: floats}
}

// NoCrits 永远不会暴击，浮点数始终为 0.5。
func NoCrits() *ScriptedRoller {
	return &ScriptedRoller{}
}

// Intn 取出下一个预设整数，并限制在 [0, n) 内。
func (r *ScriptedRoller) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ints) == 0 {
		return n - 1
	}
	v := r.ints[0]
	r.ints = r.ints[1:]
	if v >= n {
		v = n - 1
	}
	if v < 0 {
		v = 0
	}
	return v
}

// Float64 取出下一个预设浮点数。
func (r *ScriptedRoller) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.floats) == 0 {
		return 0.5
	}
	v := r.floats[0]
	r.floats = r.floats[1:]
	return v
}

// Remaining 返回尚未使用的预设数量。
func (r *ScriptedRoller) Remaining() (ints, floats int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ints), len(r.floats)
}
