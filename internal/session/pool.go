// internal/session/pool.go
package session

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ErrNoSessionAvailable means every registered bot is offline or busy.
var ErrNoSessionAvailable = errors.New("session: no unassigned session available")

// Pool tracks every bot session and which lobby each one serves. A
// session serves at most one lobby at a time; kill or completion hands
// it back to the unassigned set.
type Pool struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Controller
	byLobby  map[uuid.UUID]uuid.UUID // lobby id -> session id
}

// NewPool returns an empty session pool.
func NewPool() *Pool {
	return &Pool{
		sessions: make(map[uuid.UUID]*Controller),
		byLobby:  make(map[uuid.UUID]uuid.UUID),
	}
}

// Add registers a session with the pool.
func (p *Pool) Add(c *Controller) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[c.ID] = c
}

// Remove discards a session entirely (e.g. after ErrSessionUnusable).
func (p *Pool) Remove(id uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.sessions[id]; ok {
		delete(p.byLobby, c.LobbyID())
		delete(p.sessions, id)
	}
}

// Acquire binds a free online session to lobbyID and returns it.
func (p *Pool) Acquire(lobbyID uuid.UUID) (*Controller, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.sessions {
		if c.State() == ConnOnline && !p.assignedLocked(c.ID) {
			p.byLobby[lobbyID] = c.ID
			return c, nil
		}
	}
	return nil, ErrNoSessionAvailable
}

func (p *Pool) assignedLocked(sessionID uuid.UUID) bool {
	for _, id := range p.byLobby {
		if id == sessionID {
			return true
		}
	}
	return false
}

// ForLobby returns the session bound to lobbyID, if any.
func (p *Pool) ForLobby(lobbyID uuid.UUID) (*Controller, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.byLobby[lobbyID]
	if !ok {
		return nil, false
	}
	c, ok := p.sessions[id]
	return c, ok
}

// Release unbinds whatever session serves lobbyID and returns it to the
// unassigned set. A no-op when the lobby has no session.
func (p *Pool) Release(lobbyID uuid.UUID) {
	p.mu.Lock()
	id, ok := p.byLobby[lobbyID]
	if ok {
		delete(p.byLobby, lobbyID)
	}
	c := p.sessions[id]
	p.mu.Unlock()

	if ok && c != nil {
		c.Unbind()
		log.Debugf("session %s released from lobby %s", id, lobbyID)
	}
}

// Size reports how many sessions the pool holds.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}
