package server

import (
	"sync"

	"github.com/coder/websocket"
)

const (
	RoleAdmin  = "admin"
	RolePlayer = "player"
)

// ConnInfo describes what a live connection is bound to.
type ConnInfo struct {
	Role  string
	Phone string
	Trial bool
}

// ConnEntry is a point-in-time view of one connection, safe to use for
// writes after the manager's lock has been released.
type ConnEntry struct {
	ID   string
	Conn *websocket.Conn
	Info ConnInfo
}

type ConnectionManager struct {
	connections map[string]*websocket.Conn // connectionID -> socket
	info        map[string]ConnInfo        // connectionID -> binding
	mu          sync.RWMutex
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*websocket.Conn),
		info:        make(map[string]ConnInfo),
	}
}

func (cm *ConnectionManager) Add(id string, conn *websocket.Conn, info ConnInfo) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.connections[id] = conn
	cm.info[id] = info
}

func (cm *ConnectionManager) Remove(id string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.connections, id)
	delete(cm.info, id)
}

func (cm *ConnectionManager) Get(id string) (*websocket.Conn, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	conn, ok := cm.connections[id]
	return conn, ok
}

func (cm *ConnectionManager) Info(id string) (ConnInfo, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	info, ok := cm.info[id]
	return info, ok
}

// All snapshots every live connection.
func (cm *ConnectionManager) All() []ConnEntry {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	entries := make([]ConnEntry, 0, len(cm.connections))
	for id, conn := range cm.connections {
		entries = append(entries, ConnEntry{ID: id, Conn: conn, Info: cm.info[id]})
	}
	return entries
}

// Admins snapshots the admin connections only.
func (cm *ConnectionManager) Admins() []ConnEntry {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	var entries []ConnEntry
	for id, conn := range cm.connections {
		if cm.info[id].Role == RoleAdmin {
			entries = append(entries, ConnEntry{ID: id, Conn: conn, Info: cm.info[id]})
		}
	}
	return entries
}

// Sessions snapshots the given connection IDs, skipping ones gone away.
func (cm *ConnectionManager) Sessions(ids []string) []ConnEntry {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	var entries []ConnEntry
	for _, id := range ids {
		if conn, ok := cm.connections[id]; ok {
			entries = append(entries, ConnEntry{ID: id, Conn: conn, Info: cm.info[id]})
		}
	}
	return entries
}

func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}
