package app

import (
	"testing"

	"github.com/dkeye/relay/internal/core"
	"github.com/dkeye/relay/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopConn struct{}

func (nopConn) TrySend(core.Frame) error { return nil }
func (nopConn) Close()                   {}

func TestRegistry_CreateGetRemove(t *testing.T) {
	r := NewRegistry(nil)

	s, err := r.Create("s1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionID("s1"), s.ID())

	got, ok := r.Get("s1")
	require.True(t, ok)
	assert.Same(t, s, got)

	_, err = r.Create("s1")
	assert.ErrorIs(t, err, ErrSessionExists)
	assert.Equal(t, 1, r.Len())

	assert.True(t, r.Remove(s))
	assert.False(t, r.Remove(s))
	_, ok = r.Get("s1")
	assert.False(t, ok)
}

func TestRegistry_RemoveIgnoresReplacedSession(t *testing.T) {
	r := NewRegistry(nil)
	old, err := r.Create("s1")
	require.NoError(t, err)
	require.True(t, r.Remove(old))

	fresh, err := r.Create("s1")
	require.NoError(t, err)
	assert.NotSame(t, old, fresh)

	assert.False(t, r.Remove(old))
	_, ok := r.Get("s1")
	assert.True(t, ok)
}

func TestRegistry_List(t *testing.T) {
	r := NewRegistry(nil)
	b, _ := r.Create("b")
	_, _ = r.Create("a")

	owner := core.NewClient("o", nopConn{})
	require.NoError(t, b.Join(owner, true))

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, domain.SessionID("a"), list[0].ID)
	assert.Equal(t, core.SessionInfo{ID: "b", Owner: "o", Members: []domain.ClientID{"o"}}, list[1])
}

func TestRegistry_Metrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	r := NewRegistry(m)

	s, _ := r.Create("s1")
	_, _ = r.Create("s2")
	assert.Equal(t, float64(2), testutil.ToFloat64(m.sessions))

	r.Remove(s)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.sessions))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SetClients(3)
		m.Envelope(core.KindUpdateState)
		m.Cascade()
		m.Kick()
		m.setSessions(1)
	})
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.Envelope(core.KindUpdateState)
	m.Envelope(core.KindUpdateState)
	m.Envelope(core.KindUnknown)
	m.Cascade()
	m.Kick()
	m.SetClients(4)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.envelopes.WithLabelValues("update-state")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.envelopes.WithLabelValues("unknown")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.cascades))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.kicks))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.clients))
}

func TestSimplePolicy(t *testing.T) {
	var p Policy = SimplePolicy{}
	assert.Equal(t, KickMember, p.OnBackPressure(nil, nil))
	assert.Equal(t, "kick", KickMember.String())
	assert.Equal(t, "drop", DropFrame.String())
	assert.Equal(t, "none", NoAction.String())
}
