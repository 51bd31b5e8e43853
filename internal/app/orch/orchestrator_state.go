package orch

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/dkeye/relay/internal/app"
	"github.com/dkeye/relay/internal/core"
	"github.com/rs/zerolog/log"
)

const endedField = "ended"

// updateState relays c's payload to every other member of its session.
// A truthy "ended" field is replaced with the server clock first and the
// stamped value is echoed back to c.
func (o *Orchestrator) updateState(c *core.Client, data json.RawMessage) error {
	s := c.Session()
	if s == nil {
		return ErrNotInSession
	}

	payload, ended, stamped := o.stampEnded(data)
	if stamped {
		o.send(s, c, core.KindUpdateState, core.Ended{Ended: ended})
	}

	relay := core.PeerState{State: payload, Peer: c.ID()}
	for _, m := range s.Members() {
		if m == c {
			continue
		}
		o.send(s, m, core.KindUpdateState, relay)
	}
	return nil
}

// stampEnded replaces the value of a truthy top-level "ended" with the
// server clock. Only that value's bytes change; key order, spacing and
// other members are kept as sent. With duplicate keys the last one wins,
// matching how receivers parse the object.
func (o *Orchestrator) stampEnded(data json.RawMessage) (json.RawMessage, int64, bool) {
	start, end, ok := lastMember(data, endedField)
	if !ok || !truthy(data[start:end]) {
		return data, 0, false
	}

	ts := o.Now().UnixMilli()
	out := make([]byte, 0, len(data)+16)
	out = append(out, data[:start]...)
	out = strconv.AppendInt(out, ts, 10)
	out = append(out, data[end:]...)
	return out, ts, true
}

// lastMember locates the value of the last top-level member named key in a
// JSON object. Non-objects and malformed input report not found.
func lastMember(data []byte, key string) (start, end int, found bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return 0, 0, false
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return 0, 0, false
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return 0, 0, false
		}
		name, _ := tok.(string)
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return 0, 0, false
		}
		if name == key {
			end = int(dec.InputOffset())
			start = end - len(v)
			found = true
		}
	}
	if _, err := dec.Token(); err != nil {
		return 0, 0, false
	}
	return start, end, found
}

// truthy follows the loose client convention: false, null, 0 and "" are
// falsy, every other value is truthy.
func truthy(raw json.RawMessage) bool {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	default:
		return true
	}
}

// send never blocks. A full outbound queue is handed to the Policy.
func (o *Orchestrator) send(s *core.Session, m *core.Client, k core.Kind, data any) {
	err := m.Send(k, data)
	switch {
	case err == nil:
	case errors.Is(err, core.ErrBackpressure):
		o.onBackpressure(s, m)
	case errors.Is(err, core.ErrClosed):
		log.Debug().Str("module", "orch").Str("client", string(m.ID())).Str("type", k.String()).Msg("send to closed client skipped")
	default:
		log.Error().Err(err).Str("module", "orch").Str("client", string(m.ID())).Str("type", k.String()).Msg("send failed")
	}
}

func (o *Orchestrator) onBackpressure(s *core.Session, m *core.Client) {
	action := app.NoAction
	if o.Policy != nil {
		action = o.Policy.OnBackPressure(s, m)
	}
	log.Warn().Str("module", "orch").Str("client", string(m.ID())).Str("session", string(s.ID())).Stringer("action", action).Msg("backpressure")

	switch action {
	case app.KickMember:
		o.Metrics.Kick()
		m.Close()
		o.enqueue(disconnectEvent{client: m})
	case app.DropFrame, app.NoAction:
	}
}
