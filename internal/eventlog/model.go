package eventlog

import (
	"fmt"
	"strconv"
	"time"
)

// Event 是战斗中一次已结算的动作。
type Event struct {
	Turn      int       `json:"turn"`
	Actor     string    `json:"actor"`
	Side      string    `json:"side"`
	Action    string    `json:"action"`
	Value     int       `json:"value"`
	Detail    string    `json:"detail"`
	Critical  bool      `json:"critical"`
	Timestamp time.Time `json:"timestamp"`
}

// StreamKey 是每局限长日志的键。
func StreamKey(gameID int64) string {
	return fmt.Sprintf("game:%d:stream", gameID)
}

func (e Event) values() map[string]interface{} {
	return map[string]interface{}{
		"turn":      e.Turn,
		"actor":     e.Actor,
		"side":      e.Side,
		"action":    e.Action,
		"value":     e.Value,
		"detail":    e.Detail,
		"critical":  strconv.FormatBool(e.Critical),
		"timestamp": e.Timestamp.Format(time.RFC3339Nano),
	}
}

func decodeEvent(values map[string]interface{}) (Event, error) {
	str := func(k string) string {
		s, _ := values[k].(string)
		return s
	}

	var ev Event
	var err error
	if ev.Turn, err = strconv.Atoi(str("turn")); err != nil {
		return Event{}, fmt.Errorf("turn: %w", err)
	}
	if ev.Value, err = strconv.Atoi(str("value")); err != nil {
		return Event{}, fmt.Errorf("value: %w", err)
	}
	ev.Actor = str("actor")
	ev.Side = str("side")
	ev.Action = str("action")
	ev.Detail = str("detail")
	ev.Critical, _ = strconv.ParseBool(str("critical"))
	if ts := str("timestamp"); ts != "" {
		if ev.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return Event{}, fmt.Errorf("timestamp: %w", err)
		}
	}
	return ev, nil
}
