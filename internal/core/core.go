// internal/core/core.go

// Package core is the orchestration backbone: the single authority over
// every league instance and its lobbies. All externally triggered work
// (user actions, timers, session callbacks) funnels through one FIFO
// event queue drained strictly one handler at a time, so no two state
// mutations ever interleave. Handlers run to completion, including
// their persistence and network round-trips, before the next begins.
// The instance collection is touched only from inside drained handlers;
// readers outside the path get copies routed through the same queue.
package core

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/soloqueue/inhouse/internal/lobby"
	"github.com/soloqueue/inhouse/internal/models"
	"github.com/soloqueue/inhouse/internal/session"
)

// Instance is one league's live matchmaking context: active lobbies,
// the waiting queue, and the ban list. Owned exclusively by the Core.
type Instance struct {
	League  models.League
	Lobbies map[uuid.UUID]*lobby.Lobby
	Queue   []*models.Participant
	Bans    map[string]models.Ban
}

// Core owns all instances and serializes every mutation through its
// event queue.
type Core struct {
	qmu      sync.Mutex
	queue    []func()
	draining bool

	// instances is handler-only state; no lock needed beyond the queue
	// gate. timers has its own lock because AfterFunc callbacks race
	// with re-arming.
	instances map[uuid.UUID]*Instance

	tmu    sync.Mutex
	timers map[uuid.UUID]*time.Timer

	store    Store
	notifier Notifier
	sessions *session.Pool

	// challengeCaptains pins the two challengers as captains for
	// challenge lobbies, keyed by lobby id. Handler-only.
	challengeCaptains map[uuid.UUID][2]string

	rng      *rand.Rand
	lobbySeq int
}

// New builds a Core around its collaborators.
func New(store Store, notifier Notifier, sessions *session.Pool) *Core {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Core{
		instances:         make(map[uuid.UUID]*Instance),
		timers:            make(map[uuid.UUID]*time.Timer),
		store:             store,
		notifier:          notifier,
		sessions:          sessions,
		challengeCaptains: make(map[uuid.UUID][2]string),
		rng:               rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// QueueEvent appends a handler to the ordered queue and drains. The
// boolean gate guarantees at most one handler in flight; handlers that
// enqueue further events see them run after everything already queued.
func (c *Core) QueueEvent(handler func()) {
	c.qmu.Lock()
	c.queue = append(c.queue, handler)
	if c.draining {
		c.qmu.Unlock()
		return
	}
	c.draining = true
	for len(c.queue) > 0 {
		next := c.queue[0]
		c.queue = c.queue[1:]
		c.qmu.Unlock()
		c.run(next)
		c.qmu.Lock()
	}
	c.draining = false
	c.qmu.Unlock()
}

// run executes one handler, absorbing panics so a broken side effect
// can never stall the queue.
func (c *Core) run(handler func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("core: event handler panicked: %v", r)
		}
	}()
	handler()
}

// Load rebuilds the in-memory instances from persisted records. Called
// once at startup before any event flows; a failure here is fatal to
// the process.
func (c *Core) Load(ctx context.Context) error {
	leagues, err := c.store.Leagues(ctx)
	if err != nil {
		return fmt.Errorf("core: load leagues: %w", err)
	}
	for _, lg := range leagues {
		inst := &Instance{
			League:  lg,
			Lobbies: make(map[uuid.UUID]*lobby.Lobby),
			Bans:    make(map[string]models.Ban),
		}
		entries, err := c.store.QueueEntries(ctx, lg.ID)
		if err != nil {
			return fmt.Errorf("core: load queue for %s: %w", lg.Name, err)
		}
		for i := range entries {
			inst.Queue = append(inst.Queue, &entries[i])
		}
		bans, err := c.store.Bans(ctx, lg.ID)
		if err != nil {
			return fmt.Errorf("core: load bans for %s: %w", lg.Name, err)
		}
		for _, b := range bans {
			inst.Bans[b.ParticipantID] = b
		}
		c.instances[lg.ID] = inst
		log.Infof("core: loaded league %s (%d queued, %d bans)", lg.Name, len(inst.Queue), len(bans))
	}

	// Roster seats and session bindings do not survive a restart, so a
	// lobby that was live at shutdown cannot resume. Mark the orphaned
	// rows terminal instead of leaving them open forever.
	orphans, err := c.store.OpenLobbies(ctx)
	if err != nil {
		return fmt.Errorf("core: load open lobbies: %w", err)
	}
	for _, rec := range orphans {
		if err := c.store.MarkLobbyKilled(ctx, rec); err != nil {
			return fmt.Errorf("core: kill orphaned lobby %s: %w", rec.Name, err)
		}
		log.Warnf("core: killed orphaned lobby %s (was %s)", rec.Name, rec.State)
	}
	return nil
}

// AddLeague registers a new league instance (administrative creation).
func (c *Core) AddLeague(league models.League) error {
	return c.do(func() error {
		c.instances[league.ID] = &Instance{
			League:  league,
			Lobbies: make(map[uuid.UUID]*lobby.Lobby),
			Bans:    make(map[string]models.Ban),
		}
		if err := c.store.InsertLeague(context.Background(), league); err != nil {
			log.Errorf("core: persist league %s: %v", league.Name, err)
		}
		return nil
	})
}

// instance looks up a league instance. Handlers only.
func (c *Core) instance(leagueID uuid.UUID) *Instance {
	return c.instances[leagueID]
}

// findLobby locates a lobby across instances. Handlers only.
func (c *Core) findLobby(lobbyID uuid.UUID) (*Instance, *lobby.Lobby) {
	for _, inst := range c.instances {
		if l, ok := inst.Lobbies[lobbyID]; ok {
			return inst, l
		}
	}
	return nil, nil
}

// armReadyTimer registers the ready-check timeout for a lobby. Re-
// arming for the same lobby always clears the previous timer first, so
// a lobby has at most one pending timeout. The fired timer enqueues a
// guarded transition, making a late fire a safe no-op.
func (c *Core) armReadyTimer(leagueID, lobbyID uuid.UUID, deadline time.Time) {
	c.tmu.Lock()
	defer c.tmu.Unlock()
	if existing, ok := c.timers[lobbyID]; ok {
		existing.Stop()
		delete(c.timers, lobbyID)
	}
	d := time.Until(deadline)
	if d < 0 {
		d = 0
	}
	c.timers[lobbyID] = time.AfterFunc(d, func() {
		c.QueueEvent(func() {
			c.handleReadyTimeout(leagueID, lobbyID)
		})
	})
}

// clearReadyTimer cancels any pending timeout for the lobby.
func (c *Core) clearReadyTimer(lobbyID uuid.UUID) {
	c.tmu.Lock()
	defer c.tmu.Unlock()
	if t, ok := c.timers[lobbyID]; ok {
		t.Stop()
		delete(c.timers, lobbyID)
	}
}

// persistLobby upserts the lobby record, logging and swallowing any
// failure so persistence trouble can't stall the queue.
func (c *Core) persistLobby(l *lobby.Lobby) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.store.UpsertLobby(ctx, l.Record()); err != nil {
		log.Errorf("core: persist lobby %s: %v", l.Name, err)
	}
}

// notify fans one event out to the notification collaborator. Fire and
// forget: a panicking notifier is logged, never propagated.
func (c *Core) notify(n Notification) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("core: notifier panicked on %s: %v", n.Type, r)
		}
	}()
	c.notifier.Notify(n)
}

func (c *Core) notifyLobby(t NotifyType, l *lobby.Lobby, p *models.Participant, extra map[string]interface{}) {
	snap := l.Snapshot()
	c.notify(Notification{
		Type:        t,
		LeagueID:    l.LeagueID,
		Lobby:       &snap,
		Participant: p,
		Extra:       extra,
	})
}

// nextLobbyName mints a unique human-readable lobby name.
func (c *Core) nextLobbyName(inst *Instance) string {
	c.lobbySeq++
	return fmt.Sprintf("%s-%d", inst.League.Name, c.lobbySeq)
}

// LobbySnapshots returns copies of a league's active lobbies for
// display, routed through the event queue like every other access.
func (c *Core) LobbySnapshots(leagueID uuid.UUID) []lobby.Snapshot {
	var out []lobby.Snapshot
	c.do(func() error {
		inst := c.instance(leagueID)
		if inst == nil {
			return nil
		}
		for _, l := range inst.Lobbies {
			out = append(out, l.Snapshot())
		}
		return nil
	})
	return out
}

// QueueSnapshot returns a copy of a league's waiting queue.
func (c *Core) QueueSnapshot(leagueID uuid.UUID) []models.Participant {
	var out []models.Participant
	c.do(func() error {
		inst := c.instance(leagueID)
		if inst == nil {
			return nil
		}
		for _, p := range inst.Queue {
			out = append(out, *p)
		}
		return nil
	})
	return out
}

// Leagues returns the registered league records.
func (c *Core) Leagues() []models.League {
	var out []models.League
	c.do(func() error {
		for _, inst := range c.instances {
			out = append(out, inst.League)
		}
		return nil
	})
	return out
}
