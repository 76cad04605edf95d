package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectionManager_AddAndGet(t *testing.T) {
	cm := NewConnectionManager()

	cm.Add("conn-1", nil, ConnInfo{Role: RolePlayer, Phone: "712345678"})

	_, ok := cm.Get("conn-1")
	assert.True(t, ok)

	info, ok := cm.Info("conn-1")
	assert.True(t, ok)
	assert.Equal(t, RolePlayer, info.Role)
	assert.Equal(t, "712345678", info.Phone)

	assert.Equal(t, 1, cm.Count())
}

func TestConnectionManager_Remove(t *testing.T) {
	cm := NewConnectionManager()

	cm.Add("conn-1", nil, ConnInfo{Role: RolePlayer})
	cm.Remove("conn-1")

	_, ok := cm.Get("conn-1")
	assert.False(t, ok)
	_, ok = cm.Info("conn-1")
	assert.False(t, ok)
	assert.Equal(t, 0, cm.Count())

	// Removing twice is a no-op
	cm.Remove("conn-1")
}

func TestConnectionManager_Admins(t *testing.T) {
	cm := NewConnectionManager()

	cm.Add("admin-1", nil, ConnInfo{Role: RoleAdmin})
	cm.Add("player-1", nil, ConnInfo{Role: RolePlayer, Phone: "712345678"})
	cm.Add("admin-2", nil, ConnInfo{Role: RoleAdmin})

	admins := cm.Admins()
	assert.Len(t, admins, 2)
	for _, entry := range admins {
		assert.Equal(t, RoleAdmin, entry.Info.Role)
	}

	assert.Len(t, cm.All(), 3)
}

func TestConnectionManager_Sessions(t *testing.T) {
	cm := NewConnectionManager()

	cm.Add("conn-1", nil, ConnInfo{Role: RolePlayer})
	cm.Add("conn-2", nil, ConnInfo{Role: RolePlayer})

	// Unknown IDs are skipped
	entries := cm.Sessions([]string{"conn-2", "conn-missing"})
	assert.Len(t, entries, 1)
	assert.Equal(t, "conn-2", entries[0].ID)
}
