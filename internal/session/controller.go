// internal/session/controller.go

// Package session owns the bot connections to the external game network.
// A Controller drives exactly one connection through its lifecycle,
// keeps the remote roster cache, and reconciles it against the roster
// the orchestrator expects. Nothing outside this package touches the
// roster cache directly; changes surface only as emitted events.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/soloqueue/inhouse/internal/cmdq"
	"github.com/soloqueue/inhouse/internal/gamenet"
	"github.com/soloqueue/inhouse/internal/models"
)

// ConnState tracks where the connection is in its lifecycle.
type ConnState string

const (
	ConnOffline    ConnState = "offline"
	ConnConnecting ConnState = "connecting"
	ConnOnline     ConnState = "online"
	ConnInSession  ConnState = "in_session"
)

// EventType enumerates membership events the controller raises.
type EventType string

const (
	EventMemberJoined EventType = "member_joined"
	EventMemberLeft   EventType = "member_left"
	EventSlotChanged  EventType = "slot_changed"
	// EventRosterReady fires once each time the actual roster comes to
	// satisfy every concrete expectation.
	EventRosterReady EventType = "roster_ready"
	// EventConnectionLost fires when the network connection dies.
	EventConnectionLost EventType = "connection_lost"
)

// Event is one membership or lifecycle change. Member and Prev are set
// for the membership event types only.
type Event struct {
	Type   EventType
	Member gamenet.Member
	Prev   models.Team
}

// ErrSessionUnusable is the hard failure after retry exhaustion; the
// caller must discard this controller and build a fresh one.
var ErrSessionUnusable = errors.New("session: connection retries exhausted")

// ErrBadConnState guards commands issued in the wrong lifecycle state.
var ErrBadConnState = errors.New("session: invalid connection state")

const stageAttempts = 3

// Controller manages one bot connection. All outbound lobby commands
// flow through its rate-limited queue so configuration changes can
// never race the connect/authenticate handshake.
type Controller struct {
	ID      uuid.UUID
	Account string

	client gamenet.Client
	cmds   *cmdq.Queue

	mu       sync.Mutex
	state    ConnState
	roster   map[string]gamenet.Member
	expected map[string]expectation
	wasReady bool
	lobbyID  uuid.UUID

	// onEvent receives membership events from the watch goroutine;
	// typically it enqueues into the orchestration core.
	onEvent func(Event)
}

// NewController wraps a transport client. rateLimit paces outbound
// commands; backoff is the blocked-retry base unit.
func NewController(account string, client gamenet.Client, rateLimit, backoff time.Duration) *Controller {
	c := &Controller{
		ID:       uuid.New(),
		Account:  account,
		client:   client,
		cmds:     cmdq.New(rateLimit, backoff),
		state:    ConnOffline,
		roster:   make(map[string]gamenet.Member),
		expected: make(map[string]expectation),
	}
	c.cmds.Block() // released once the handshake completes
	return c
}

// OnEvent registers the event sink. Replacing it mid-flight is safe;
// the core re-registers on every lobby binding.
func (c *Controller) OnEvent(fn func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvent = fn
}

// State returns the current connection state.
func (c *Controller) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LobbyID returns the lobby this session is bound to, or uuid.Nil.
func (c *Controller) LobbyID() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lobbyID
}

// Dial runs the connect → authenticate → ready handshake. Each
// sub-stage gets stageAttempts tries; a failed attempt closes the
// transport and retries the same stage. Exhaustion returns
// ErrSessionUnusable and leaves the controller offline.
func (c *Controller) Dial(ctx context.Context) error {
	c.setState(ConnConnecting)

	stages := []struct {
		name string
		run  func(context.Context) error
	}{
		{"connect", c.client.Connect},
		{"authenticate", c.client.Authenticate},
		{"ready", c.client.WaitReady},
	}
	for _, stage := range stages {
		if err := c.runStage(ctx, stage.name, stage.run); err != nil {
			c.setState(ConnOffline)
			return err
		}
	}

	c.setState(ConnOnline)
	go c.watch()
	c.cmds.Release()
	log.Infof("session %s: bot %s online", c.ID, c.Account)
	return nil
}

func (c *Controller) runStage(ctx context.Context, name string, run func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= stageAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = run(ctx)
		if lastErr == nil {
			return nil
		}
		log.Warnf("session %s: stage %s attempt %d/%d failed: %v",
			c.ID, name, attempt, stageAttempts, lastErr)
		// A failed attempt closes the transport before the same stage
		// is retried; post-connect stages first re-dial.
		c.client.Close()
		if name != "connect" && attempt < stageAttempts {
			if err := c.client.Connect(ctx); err != nil {
				lastErr = err
			}
		}
	}
	return fmt.Errorf("%w: stage %s: %v", ErrSessionUnusable, name, lastErr)
}

// HostLobby launches a practice lobby on the connection and binds this
// session to lobbyID. Requires the connection online and unbound.
func (c *Controller) HostLobby(ctx context.Context, lobbyID uuid.UUID, cfg gamenet.LobbyConfig) error {
	c.mu.Lock()
	if c.state != ConnOnline {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: HostLobby in %s", ErrBadConnState, state)
	}
	c.mu.Unlock()

	if err := c.client.LaunchLobby(ctx, cfg); err != nil {
		return err
	}

	c.mu.Lock()
	c.state = ConnInSession
	c.lobbyID = lobbyID
	c.roster = make(map[string]gamenet.Member)
	c.expected = make(map[string]expectation)
	c.wasReady = false
	c.mu.Unlock()

	// Launch only creates the room; game mode and pick settings apply
	// through the paced command queue like any other change.
	c.Configure(cfg)
	log.Infof("session %s: hosting lobby %s (%s)", c.ID, cfg.Name, lobbyID)
	return nil
}

// JoinLobby enters an already-created room and binds this session to
// lobbyID. Used when a replacement session takes over a live lobby
// whose previous host dropped.
func (c *Controller) JoinLobby(ctx context.Context, lobbyID uuid.UUID, name, password string) error {
	c.mu.Lock()
	if c.state != ConnOnline {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: JoinLobby in %s", ErrBadConnState, state)
	}
	c.mu.Unlock()

	if err := c.client.JoinLobby(ctx, name, password); err != nil {
		return err
	}

	c.mu.Lock()
	c.state = ConnInSession
	c.lobbyID = lobbyID
	c.roster = make(map[string]gamenet.Member)
	c.expected = make(map[string]expectation)
	c.wasReady = false
	c.mu.Unlock()
	log.Infof("session %s: joined lobby %s (%s)", c.ID, name, lobbyID)
	return nil
}

// Invite schedules an invite command for the participant.
func (c *Controller) Invite(participantID string) {
	c.schedule("invite", func(ctx context.Context) error {
		return c.client.Invite(ctx, participantID)
	})
}

// Kick schedules removal of the participant from the remote lobby.
func (c *Controller) Kick(participantID string) {
	c.schedule("kick", func(ctx context.Context) error {
		return c.client.Kick(ctx, participantID)
	})
}

// Configure schedules a lobby reconfiguration.
func (c *Controller) Configure(cfg gamenet.LobbyConfig) {
	c.schedule("configure", func(ctx context.Context) error {
		return c.client.Configure(ctx, cfg)
	})
}

// FlipSides schedules a team-side swap.
func (c *Controller) FlipSides() {
	c.schedule("flip_sides", func(ctx context.Context) error {
		return c.client.FlipSides(ctx)
	})
}

func (c *Controller) schedule(name string, run func(context.Context) error) {
	c.cmds.Schedule(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := run(ctx); err != nil {
			log.Warnf("session %s: command %s failed: %v", c.ID, name, err)
		}
	})
}

// StartMatch asks the network to launch the game, returning the match
// id. Called once the roster is reconciled; bypasses the command queue
// because the caller needs the reply synchronously.
func (c *Controller) StartMatch(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.state != ConnInSession {
		state := c.state
		c.mu.Unlock()
		return "", fmt.Errorf("%w: StartMatch in %s", ErrBadConnState, state)
	}
	c.mu.Unlock()
	return c.client.StartMatch(ctx)
}

// Expect records that participantID should end up on team. Pass nil for
// the pending marker (anticipated, slot unknown).
func (c *Controller) Expect(participantID string, team *models.Team) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expected[participantID] = expectation{Team: team}
}

// IsLobbyReady reports whether the actual roster satisfies every
// concrete expectation. An empty cache is trivially ready.
func (c *Controller) IsLobbyReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return rosterSatisfies(c.expected, c.roster)
}

// Roster returns a copy of the last roster snapshot.
func (c *Controller) Roster() []gamenet.Member {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]gamenet.Member, 0, len(c.roster))
	for _, m := range c.roster {
		out = append(out, m)
	}
	return out
}

// watch consumes roster snapshots until the connection dies.
func (c *Controller) watch() {
	snaps := c.client.Snapshots()
	if snaps == nil {
		return
	}
	for snap := range snaps {
		c.applySnapshot(snap)
	}
	// Channel closed: the connection is gone. Hold any not-yet-sent
	// commands; the pool decides whether to redial or discard.
	c.cmds.Block()
	c.setState(ConnOffline)
	c.emit(Event{Type: EventConnectionLost})
	log.Warnf("session %s: connection to game network lost", c.ID)
}

// applySnapshot diffs the update against the cached roster and raises
// one event per joined/left member and per slot change, then an edge-
// triggered roster_ready when expectations become satisfied.
func (c *Controller) applySnapshot(snap gamenet.RosterSnapshot) {
	next := make(map[string]gamenet.Member, len(snap.Members))
	for _, m := range snap.Members {
		next[m.ID] = m
	}

	c.mu.Lock()
	diff := DiffRosters(c.roster, next)
	c.roster = next
	ready := rosterSatisfies(c.expected, c.roster)
	readyEdge := ready && !c.wasReady
	c.wasReady = ready
	c.mu.Unlock()

	for _, m := range diff.Joined {
		c.emit(Event{Type: EventMemberJoined, Member: m})
	}
	for _, m := range diff.Left {
		c.emit(Event{Type: EventMemberLeft, Member: m})
	}
	for _, ch := range diff.Changed {
		c.emit(Event{Type: EventSlotChanged, Member: ch.Member, Prev: ch.Prev})
	}
	if readyEdge {
		c.emit(Event{Type: EventRosterReady})
	}
}

func (c *Controller) emit(ev Event) {
	c.mu.Lock()
	fn := c.onEvent
	c.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

func (c *Controller) setState(s ConnState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

// Unbind detaches the session from its lobby and leaves the remote
// practice lobby, returning the connection to plain online state.
func (c *Controller) Unbind() {
	c.mu.Lock()
	if c.state != ConnInSession {
		c.mu.Unlock()
		return
	}
	c.state = ConnOnline
	c.lobbyID = uuid.Nil
	c.expected = make(map[string]expectation)
	c.wasReady = false
	c.mu.Unlock()

	c.cmds.Clear()
	c.schedule("leave_lobby", func(ctx context.Context) error {
		return c.client.LeaveLobby(ctx)
	})
}

// Close tears the connection down entirely.
func (c *Controller) Close() {
	c.cmds.Clear()
	c.cmds.Block()
	if err := c.client.Close(); err != nil {
		log.Debugf("session %s: close: %v", c.ID, err)
	}
	c.setState(ConnOffline)
}
