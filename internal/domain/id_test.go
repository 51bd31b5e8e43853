package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID_Unique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := NewID()
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestNewID_IsUUID(t *testing.T) {
	_, err := uuid.Parse(NewID())
	assert.NoError(t, err)
}

func TestNewClientAndSessionID(t *testing.T) {
	gen := func() string { return "fixed" }

	assert.Equal(t, ClientID("fixed"), NewClientID(gen))
	assert.Equal(t, SessionID("fixed"), NewSessionID(gen))

	assert.NotEmpty(t, NewClientID(nil))
	assert.NotEmpty(t, NewSessionID(nil))
}
