package server

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vahub-messaging/internal/domain"
)

func testClient(userID uuid.UUID, role domain.Role, clientID string) *Client {
	return &Client{userID: userID, role: role, clientID: clientID, send: make(chan []byte, 1)}
}

func TestRegistryFirstAndLastSocket(t *testing.T) {
	r := NewRegistry()
	userID := uuid.New()
	phone := testClient(userID, domain.RoleVA, "phone")
	laptop := testClient(userID, domain.RoleVA, "laptop")

	assert.True(t, r.Add(phone))
	assert.False(t, r.Add(laptop))
	assert.True(t, r.IsOnline(userID))
	assert.Equal(t, 2, r.SocketCount(userID))

	last, ok := r.Remove(phone)
	require.True(t, ok)
	assert.False(t, last)
	assert.True(t, r.IsOnline(userID))

	last, ok = r.Remove(laptop)
	require.True(t, ok)
	assert.True(t, last)
	assert.False(t, r.IsOnline(userID))
}

func TestRegistryRemoveUnknownSocket(t *testing.T) {
	r := NewRegistry()
	stranger := testClient(uuid.New(), domain.RoleBusiness, "ghost")

	last, ok := r.Remove(stranger)
	assert.False(t, ok)
	assert.False(t, last)

	// removing the same socket twice reports unknown the second time
	known := testClient(uuid.New(), domain.RoleVA, "real")
	r.Add(known)
	_, ok = r.Remove(known)
	require.True(t, ok)
	_, ok = r.Remove(known)
	assert.False(t, ok)
}

func TestRegistryAdminRoom(t *testing.T) {
	r := NewRegistry()
	adminID := uuid.New()
	r.Add(testClient(uuid.New(), domain.RoleVA, "va-socket"))
	adminPhone := testClient(adminID, domain.RoleAdmin, "admin-phone")
	adminDesk := testClient(adminID, domain.RoleAdmin, "admin-desk")
	r.Add(adminPhone)
	r.Add(adminDesk)

	assert.Len(t, r.AdminSockets(), 2)

	// the room follows the last socket out
	r.Remove(adminPhone)
	assert.Len(t, r.AdminSockets(), 1)
	r.Remove(adminDesk)
	assert.Empty(t, r.AdminSockets())
}

func TestRegistryTotals(t *testing.T) {
	r := NewRegistry()
	a, b := uuid.New(), uuid.New()
	r.Add(testClient(a, domain.RoleVA, "a1"))
	r.Add(testClient(a, domain.RoleVA, "a2"))
	r.Add(testClient(b, domain.RoleBusiness, "b1"))

	users, sockets := r.Totals()
	assert.Equal(t, 2, users)
	assert.Equal(t, 3, sockets)
	assert.Len(t, r.All(), 3)
	assert.Len(t, r.SocketsFor(a), 2)
}
