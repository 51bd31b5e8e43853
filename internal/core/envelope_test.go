package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"session-create", KindSessionCreate},
		{"session-created", KindSessionCreated},
		{"session-join", KindSessionJoin},
		{"session-state", KindSessionState},
		{"session-destroyed", KindSessionDestroyed},
		{"update-state", KindUpdateState},
		{"unknown", KindUnknown},
		{"", KindUnknown},
		{"SESSION-CREATE", KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseKind(tt.in))
		})
	}
}

func TestDecodeEnvelope(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"type":"session-join","data":{"id":"abc"}}`))
	require.NoError(t, err)
	assert.Equal(t, KindSessionJoin, env.Kind)

	var p SessionJoin
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "abc", string(p.ID))

	env, err = DecodeEnvelope([]byte(`{"type":"dance"}`))
	require.NoError(t, err)
	assert.Equal(t, KindUnknown, env.Kind)
	assert.Equal(t, "dance", env.Type)
	assert.Empty(t, env.Data)

	_, err = DecodeEnvelope([]byte("not json"))
	assert.ErrorIs(t, err, ErrBadEnvelope)
}

func TestDecodeEnvelope_InvalidUTF8(t *testing.T) {
	for _, raw := range []string{
		"{\"type\":\"update-state\",\"data\":{\"n\":\"\xff\xfe\"}}",
		"{\"type\":\"session-join\",\"data\":{\"id\":\"\xc3\"}}",
	} {
		_, err := DecodeEnvelope([]byte(raw))
		assert.ErrorIs(t, err, ErrBadEnvelope)
	}

	env, err := DecodeEnvelope([]byte(`{"type":"update-state","data":{"n":"héllo ✓"}}`))
	require.NoError(t, err)
	assert.Equal(t, KindUpdateState, env.Kind)
}

func TestEncodeEnvelope(t *testing.T) {
	f, err := EncodeEnvelope(KindSessionDestroyed, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"session-destroyed"}`, string(f))

	f, err = EncodeEnvelope(KindSessionCreated, SessionCreated{ID: "s1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"session-created","data":{"id":"s1"}}`, string(f))

	_, err = EncodeEnvelope(KindUnknown, nil)
	assert.ErrorIs(t, err, ErrBadEnvelope)
}

func TestClient_SendAndClose(t *testing.T) {
	c, fc := newTestClient("a")

	require.NoError(t, c.Send(KindSessionCreated, SessionCreated{ID: "s1"}))
	require.Len(t, fc.frames, 1)
	assert.JSONEq(t, `{"type":"session-created","data":{"id":"s1"}}`, string(fc.frames[0]))

	fc.err = ErrBackpressure
	assert.ErrorIs(t, c.Send(KindSessionDestroyed, nil), ErrBackpressure)

	c.Close()
	c.Close()
	assert.Equal(t, 1, fc.closes)
}

func TestClient_Depart(t *testing.T) {
	c, _ := newTestClient("a")
	assert.False(t, c.Departed())
	assert.True(t, c.Depart())
	assert.False(t, c.Depart())
	assert.True(t, c.Departed())
}
