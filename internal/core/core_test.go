// internal/core/core_test.go
package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soloqueue/inhouse/internal/gamenet"
	"github.com/soloqueue/inhouse/internal/lobby"
	"github.com/soloqueue/inhouse/internal/models"
	"github.com/soloqueue/inhouse/internal/session"
)

// memStore is an in-memory Store collaborator.
type memStore struct {
	mu       sync.Mutex
	leagues  []models.League
	lobbies  map[uuid.UUID]models.LobbyRecord
	archived []models.MatchRecord
	queues   map[uuid.UUID]map[string]models.Participant
	bans     map[uuid.UUID][]models.Ban
}

func newMemStore() *memStore {
	return &memStore{
		lobbies: make(map[uuid.UUID]models.LobbyRecord),
		queues:  make(map[uuid.UUID]map[string]models.Participant),
		bans:    make(map[uuid.UUID][]models.Ban),
	}
}

func (s *memStore) Leagues(ctx context.Context) ([]models.League, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.League{}, s.leagues...), nil
}

func (s *memStore) InsertLeague(ctx context.Context, league models.League) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leagues = append(s.leagues, league)
	return nil
}

func (s *memStore) UpsertLobby(ctx context.Context, rec models.LobbyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lobbies[rec.ID] = rec
	return nil
}

func (s *memStore) OpenLobbies(ctx context.Context) ([]models.LobbyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.LobbyRecord
	for _, rec := range s.lobbies {
		if !rec.State.Terminal() {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *memStore) MarkLobbyKilled(ctx context.Context, rec models.LobbyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.lobbies[rec.ID]
	stored.State = models.StateKilled
	s.lobbies[rec.ID] = stored
	return nil
}

func (s *memStore) ArchiveMatch(ctx context.Context, rec models.MatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archived = append(s.archived, rec)
	return nil
}

func (s *memStore) QueueEntries(ctx context.Context, leagueID uuid.UUID) ([]models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Participant
	for _, p := range s.queues[leagueID] {
		out = append(out, p)
	}
	return out, nil
}

func (s *memStore) SaveQueueEntry(ctx context.Context, leagueID uuid.UUID, p models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queues[leagueID] == nil {
		s.queues[leagueID] = make(map[string]models.Participant)
	}
	s.queues[leagueID][p.ID] = p
	return nil
}

func (s *memStore) DeleteQueueEntry(ctx context.Context, leagueID uuid.UUID, participantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.queues[leagueID], participantID)
	return nil
}

func (s *memStore) Bans(ctx context.Context, leagueID uuid.UUID) ([]models.Ban, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Ban{}, s.bans[leagueID]...), nil
}

func (s *memStore) UpsertBan(ctx context.Context, leagueID uuid.UUID, ban models.Ban) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bans[leagueID] = append(s.bans[leagueID], ban)
	return nil
}

// memNotifier records every fan-out event.
type memNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (n *memNotifier) Notify(notification Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
}

func (n *memNotifier) count(t NotifyType) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	var c int
	for _, s := range n.sent {
		if s.Type == t {
			c++
		}
	}
	return c
}

func (n *memNotifier) last(t NotifyType) *Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].Type == t {
			out := n.sent[i]
			return &out
		}
	}
	return nil
}

// stubClient is a happy-path gamenet.Client for bot-assignment flows.
type stubClient struct {
	snaps   chan gamenet.RosterSnapshot
	matchID string
}

func newStubClient() *stubClient {
	return &stubClient{snaps: make(chan gamenet.RosterSnapshot, 16), matchID: "net-match-1"}
}

func (f *stubClient) Connect(ctx context.Context) error                              { return nil }
func (f *stubClient) Authenticate(ctx context.Context) error                         { return nil }
func (f *stubClient) WaitReady(ctx context.Context) error                            { return nil }
func (f *stubClient) LaunchLobby(ctx context.Context, cfg gamenet.LobbyConfig) error { return nil }
func (f *stubClient) JoinLobby(ctx context.Context, name, password string) error     { return nil }
func (f *stubClient) LeaveLobby(ctx context.Context) error                           { return nil }
func (f *stubClient) Invite(ctx context.Context, id string) error                    { return nil }
func (f *stubClient) Kick(ctx context.Context, id string) error                      { return nil }
func (f *stubClient) Configure(ctx context.Context, cfg gamenet.LobbyConfig) error   { return nil }
func (f *stubClient) FlipSides(ctx context.Context) error                            { return nil }
func (f *stubClient) StartMatch(ctx context.Context) (string, error)                 { return f.matchID, nil }
func (f *stubClient) Snapshots() <-chan gamenet.RosterSnapshot                       { return f.snaps }
func (f *stubClient) Close() error                                                   { return nil }

func newTestCore(t *testing.T, qt models.QueueType, cfg models.LeagueConfig) (*Core, *memStore, *memNotifier, models.League) {
	t.Helper()
	store := newMemStore()
	notifier := &memNotifier{}
	c := New(store, notifier, session.NewPool())
	league := models.League{
		ID:         uuid.New(),
		GuildID:    "guild-1",
		Name:       "testleague",
		QueueType:  qt,
		RosterSize: 10,
		Config:     cfg,
	}
	require.NoError(t, c.AddLeague(league))
	return c, store, notifier, league
}

func joinAll(t *testing.T, c *Core, leagueID uuid.UUID, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		p := models.Participant{ID: fmt.Sprintf("p%d", i), Name: fmt.Sprintf("player%d", i), Rating: 1000 + i*100}
		require.NoError(t, c.JoinQueue(leagueID, p))
	}
}

func onlyLobby(t *testing.T, c *Core, leagueID uuid.UUID) lobby.Snapshot {
	t.Helper()
	snaps := c.LobbySnapshots(leagueID)
	require.Len(t, snaps, 1)
	return snaps[0]
}

func TestQueueEventStrictFIFO(t *testing.T) {
	c := New(newMemStore(), nil, session.NewPool())

	var order []string
	c.QueueEvent(func() {
		order = append(order, "A")
		// Work enqueued mid-drain goes to the back, behind B and C.
		c.QueueEvent(func() { order = append(order, "A1") })
		c.QueueEvent(func() { order = append(order, "A2") })
	})
	c.QueueEvent(func() { order = append(order, "B") })
	c.QueueEvent(func() { order = append(order, "C") })

	// The first QueueEvent call drained everything synchronously.
	assert.Equal(t, []string{"A", "A1", "A2", "B", "C"}, order)
}

// explodingStore panics on queue writes once armed.
type explodingStore struct {
	*memStore
	armed bool
}

func (s *explodingStore) SaveQueueEntry(ctx context.Context, leagueID uuid.UUID, p models.Participant) error {
	if s.armed {
		panic("store exploded")
	}
	return s.memStore.SaveQueueEntry(ctx, leagueID, p)
}

func TestOperationReturnsAfterStorePanic(t *testing.T) {
	store := &explodingStore{memStore: newMemStore()}
	c := New(store, nil, session.NewPool())
	league := models.League{ID: uuid.New(), GuildID: "guild-1", Name: "testleague", QueueType: models.QueueAutoBalance, RosterSize: 10}
	require.NoError(t, c.AddLeague(league))

	store.armed = true
	errCh := make(chan error, 1)
	go func() { errCh <- c.JoinQueue(league.ID, models.Participant{ID: "p0"}) }()
	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("JoinQueue never returned after a panicking store write")
	}

	// The queue keeps draining afterwards.
	store.armed = false
	require.NoError(t, c.JoinQueue(league.ID, models.Participant{ID: "p1"}))
}

func TestLoadKillsOrphanedLobbies(t *testing.T) {
	store := newMemStore()
	league := models.League{ID: uuid.New(), GuildID: "guild-1", Name: "testleague", QueueType: models.QueueAutoBalance, RosterSize: 10}
	store.leagues = append(store.leagues, league)
	orphan := models.LobbyRecord{ID: uuid.New(), LeagueID: league.ID, Name: "inhouse-1", State: models.StateBotAssigned, QueueType: models.QueueAutoBalance}
	done := models.LobbyRecord{ID: uuid.New(), LeagueID: league.ID, Name: "inhouse-0", State: models.StateCompleted, QueueType: models.QueueAutoBalance}
	store.lobbies[orphan.ID] = orphan
	store.lobbies[done.ID] = done

	c := New(store, nil, session.NewPool())
	require.NoError(t, c.Load(context.Background()))

	// Live rows cannot resume across a restart and get marked terminal;
	// already-terminal rows stay untouched.
	assert.Equal(t, models.StateKilled, store.lobbies[orphan.ID].State)
	assert.Equal(t, models.StateCompleted, store.lobbies[done.ID].State)
	assert.Empty(t, c.LobbySnapshots(league.ID))
}

func TestTenthJoinStartsReadyCheck(t *testing.T) {
	c, _, notifier, league := newTestCore(t, models.QueueAutoBalance, models.LeagueConfig{})

	joinAll(t, c, league.ID, 9)
	assert.Empty(t, c.LobbySnapshots(league.ID))
	assert.Equal(t, 9, notifier.count(NotifyQueueJoined))

	before := time.Now()
	require.NoError(t, c.JoinQueue(league.ID, models.Participant{ID: "p9", Rating: 1900}))

	snap := onlyLobby(t, c, league.ID)
	assert.Equal(t, models.StateCheckingReady, snap.State)
	assert.Empty(t, c.QueueSnapshot(league.ID))

	started := notifier.last(NotifyReadyCheckStarted)
	require.NotNil(t, started)
	deadline, ok := started.Extra["deadline"].(time.Time)
	require.True(t, ok)
	// Default ready-check window is 5000 ms.
	assert.WithinDuration(t, before.Add(5*time.Second), deadline, 500*time.Millisecond)
}

func TestAllReadyAutoBalancesToWaitingForBot(t *testing.T) {
	c, _, notifier, league := newTestCore(t, models.QueueAutoBalance, models.LeagueConfig{})
	joinAll(t, c, league.ID, 10)

	snap := onlyLobby(t, c, league.ID)
	for i := 0; i < 10; i++ {
		require.NoError(t, c.ConfirmReady(snap.ID, fmt.Sprintf("p%d", i)))
	}

	snap = onlyLobby(t, c, league.ID)
	assert.Equal(t, models.StateWaitingForBot, snap.State)
	assert.Equal(t, 1, notifier.count(NotifyPlayersReady))

	var blue, red int
	for _, p := range snap.Roster {
		switch p.Team {
		case models.TeamBlue:
			blue++
		case models.TeamRed:
			red++
		}
	}
	assert.Equal(t, 5, blue)
	assert.Equal(t, 5, red)
}

func TestReadyCheckTimeoutEvictsAndEmitsOnce(t *testing.T) {
	cfg := models.LeagueConfig{ReadyCheckTimeout: time.Nanosecond}
	c, _, notifier, league := newTestCore(t, models.QueueAutoBalance, cfg)
	joinAll(t, c, league.ID, 10)

	// Nobody readies; the near-zero deadline fires immediately.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if notifier.count(NotifyReadyCheckFailed) > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, 1, notifier.count(NotifyReadyCheckFailed))

	snap := onlyLobby(t, c, league.ID)
	assert.Equal(t, models.StateWaitingForQueue, snap.State)
	assert.Empty(t, snap.Roster, "all ten were unready and evicted")
	assert.Empty(t, c.QueueSnapshot(league.ID), "evicted players do not requeue")

	// Give any stray duplicate timer a chance to misfire.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, notifier.count(NotifyReadyCheckFailed))
}

func TestLateReadyAfterTimeoutIsNoop(t *testing.T) {
	cfg := models.LeagueConfig{ReadyCheckTimeout: time.Nanosecond}
	c, _, notifier, league := newTestCore(t, models.QueueAutoBalance, cfg)
	joinAll(t, c, league.ID, 10)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if notifier.count(NotifyReadyCheckFailed) > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	snap := onlyLobby(t, c, league.ID)
	err := c.ConfirmReady(snap.ID, "p0")
	assert.ErrorIs(t, err, lobby.ErrStaleTransition)
}

func TestDraftFlowThroughCore(t *testing.T) {
	c, _, notifier, league := newTestCore(t, models.QueueDraft, models.LeagueConfig{})
	joinAll(t, c, league.ID, 10)

	snap := onlyLobby(t, c, league.ID)
	for i := 0; i < 10; i++ {
		require.NoError(t, c.ConfirmReady(snap.ID, fmt.Sprintf("p%d", i)))
	}

	selection := notifier.last(NotifySelectionStarted)
	require.NotNil(t, selection)
	holder := selection.Extra["priorityHolder"].(string)

	snap = onlyLobby(t, c, league.ID)
	assert.Equal(t, models.StateSelectionPriority, snap.State)

	// Only the priority holder decides first pick.
	other := snap.CaptainBlue
	if other == holder {
		other = snap.CaptainRed
	}
	assert.Error(t, c.ChooseFirstPick(snap.ID, other, other))
	require.NoError(t, c.ChooseFirstPick(snap.ID, holder, holder))
	require.NoError(t, c.StartDraft(snap.ID))

	snap = onlyLobby(t, c, league.ID)
	assert.Equal(t, models.StateDraftingPlayers, snap.State)
	assert.Equal(t, 1, notifier.count(NotifyDraftTurn))

	// Captains alternate: the holder picks first. Picking the other
	// captain is rejected and advances nothing.
	err := c.DraftPick(snap.ID, holder, other)
	assert.ErrorIs(t, err, lobby.ErrCannotDraftCaptain)
	assert.Equal(t, 0, notifier.count(NotifyPlayerDrafted))

	// Draft everyone alternately.
	var free []string
	for _, p := range snap.Roster {
		if p.ID != snap.CaptainBlue && p.ID != snap.CaptainRed {
			free = append(free, p.ID)
		}
	}
	require.Len(t, free, 8)
	picker := holder
	for _, target := range free {
		require.NoError(t, c.DraftPick(snap.ID, picker, target))
		if picker == holder {
			picker = other
		} else {
			picker = holder
		}
	}

	snap = onlyLobby(t, c, league.ID)
	assert.Equal(t, models.StateWaitingForBot, snap.State)
	assert.Equal(t, 8, notifier.count(NotifyPlayerDrafted))
}

func TestChallengeLobbyLifecycle(t *testing.T) {
	c, _, notifier, league := newTestCore(t, models.QueueAutoBalance, models.LeagueConfig{})

	// One challenger is already waiting in the queue when they accept.
	ch1 := models.Participant{ID: "ch1", Name: "alpha", Rating: 1500}
	ch2 := models.Participant{ID: "ch2", Name: "bravo", Rating: 1400}
	require.NoError(t, c.JoinQueue(league.ID, ch1))
	require.NoError(t, c.AcceptChallenge(league.ID, ch1, ch2))

	// Accepting pulled ch1 out of the queue: a participant holds a seat
	// or a queue spot, never both.
	assert.Empty(t, c.QueueSnapshot(league.ID))
	snap := onlyLobby(t, c, league.ID)
	assert.Equal(t, models.QueueChallenge, snap.QueueType)
	assert.Len(t, snap.Roster, 2)

	// Eight more joins fill the lobby and start the ready check.
	joinAll(t, c, league.ID, 8)
	snap = onlyLobby(t, c, league.ID)
	assert.Equal(t, models.StateCheckingReady, snap.State)
	assert.Len(t, snap.Roster, 10)
	assert.Empty(t, c.QueueSnapshot(league.ID))

	for _, p := range snap.Roster {
		require.NoError(t, c.ConfirmReady(snap.ID, p.ID))
	}

	// Challenge lobbies always draft, with the challengers pinned as
	// captains regardless of rating.
	snap = onlyLobby(t, c, league.ID)
	assert.Equal(t, models.StateSelectionPriority, snap.State)
	assert.Equal(t, "ch1", snap.CaptainBlue)
	assert.Equal(t, "ch2", snap.CaptainRed)

	selection := notifier.last(NotifySelectionStarted)
	require.NotNil(t, selection)
	holder := selection.Extra["priorityHolder"].(string)
	assert.Contains(t, []string{"ch1", "ch2"}, holder)
	other := "ch2"
	if holder == "ch2" {
		other = "ch1"
	}

	require.NoError(t, c.ChooseFirstPick(snap.ID, holder, holder))
	require.NoError(t, c.StartDraft(snap.ID))

	picker := holder
	for _, p := range snap.Roster {
		if p.ID == "ch1" || p.ID == "ch2" {
			continue
		}
		require.NoError(t, c.DraftPick(snap.ID, picker, p.ID))
		if picker == holder {
			picker = other
		} else {
			picker = holder
		}
	}

	snap = onlyLobby(t, c, league.ID)
	assert.Equal(t, models.StateWaitingForBot, snap.State)
}

func TestAcceptChallengeRejectsSeatedChallenger(t *testing.T) {
	c, _, _, league := newTestCore(t, models.QueueAutoBalance, models.LeagueConfig{})

	require.NoError(t, c.AcceptChallenge(league.ID,
		models.Participant{ID: "ch1"}, models.Participant{ID: "ch2"}))

	// A challenger already seated cannot open a second lobby.
	err := c.AcceptChallenge(league.ID,
		models.Participant{ID: "ch1"}, models.Participant{ID: "ch3"})
	assert.ErrorIs(t, err, ErrAlreadyQueued)
	assert.Len(t, c.LobbySnapshots(league.ID), 1)
}

func TestBannedParticipantCannotQueue(t *testing.T) {
	c, _, notifier, league := newTestCore(t, models.QueueAutoBalance, models.LeagueConfig{})

	ban := models.Ban{ParticipantID: "p0", Reason: "abandon", Expires: time.Now().Add(time.Hour)}
	require.NoError(t, c.BanParticipant(league.ID, ban))

	err := c.JoinQueue(league.ID, models.Participant{ID: "p0"})
	assert.ErrorIs(t, err, ErrBanned)
	assert.Empty(t, c.QueueSnapshot(league.ID))
	assert.GreaterOrEqual(t, notifier.count(NotifyQueueBanned), 1)

	// Expired bans do not block.
	require.NoError(t, c.BanParticipant(league.ID, models.Ban{
		ParticipantID: "p1", Expires: time.Now().Add(-time.Minute),
	}))
	assert.NoError(t, c.JoinQueue(league.ID, models.Participant{ID: "p1"}))
}

func TestDuplicateQueueJoinRejected(t *testing.T) {
	c, _, _, league := newTestCore(t, models.QueueAutoBalance, models.LeagueConfig{})
	require.NoError(t, c.JoinQueue(league.ID, models.Participant{ID: "p0"}))
	assert.ErrorIs(t, c.JoinQueue(league.ID, models.Participant{ID: "p0"}), ErrAlreadyQueued)
}

func TestKillLobbyRemovesFromActiveSet(t *testing.T) {
	c, _, notifier, league := newTestCore(t, models.QueueAutoBalance, models.LeagueConfig{})
	joinAll(t, c, league.ID, 10)

	snap := onlyLobby(t, c, league.ID)
	require.NoError(t, c.KillLobby(snap.ID))
	assert.Empty(t, c.LobbySnapshots(league.ID))
	assert.Equal(t, 1, notifier.count(NotifyLobbyKilled))

	// Killing again is unknown-lobby: it is already gone.
	assert.ErrorIs(t, c.KillLobby(snap.ID), ErrUnknownLobby)
}

func TestGuildLeaveKillsHostLobby(t *testing.T) {
	c, _, notifier, league := newTestCore(t, models.QueueAutoBalance, models.LeagueConfig{})
	joinAll(t, c, league.ID, 10)

	require.NoError(t, c.GuildLeave(league.ID, "p3"))
	assert.Empty(t, c.LobbySnapshots(league.ID))
	assert.Equal(t, 1, notifier.count(NotifyLobbyKilled))
}

func TestBotAssignmentAndMatchLifecycle(t *testing.T) {
	c, store, notifier, league := newTestCore(t, models.QueueAutoBalance, models.LeagueConfig{})

	stub := newStubClient()
	sess := session.NewController("bot1", stub, time.Millisecond, time.Millisecond)
	require.NoError(t, sess.Dial(context.Background()))
	pool := c.sessions
	pool.Add(sess)

	joinAll(t, c, league.ID, 10)
	snap := onlyLobby(t, c, league.ID)
	for i := 0; i < 10; i++ {
		require.NoError(t, c.ConfirmReady(snap.ID, fmt.Sprintf("p%d", i)))
	}

	snap = onlyLobby(t, c, league.ID)
	require.Equal(t, models.StateBotAssigned, snap.State)
	assert.Equal(t, 1, notifier.count(NotifyBotAssigned))

	// The remote roster fills to expectation; the session reports
	// readiness and the core launches the match.
	var members []gamenet.Member
	for _, p := range snap.Roster {
		members = append(members, gamenet.Member{ID: p.ID, Name: p.Name, Team: p.Team})
	}
	stub.snaps <- gamenet.RosterSnapshot{Members: members}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap = onlyLobby(t, c, league.ID)
		if snap.State == models.StateMatchInProgress {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, models.StateMatchInProgress, snap.State)
	assert.Equal(t, "net-match-1", snap.MatchID)
	assert.Equal(t, 1, notifier.count(NotifyMatchStarted))

	require.NoError(t, c.CompleteMatch(snap.ID, models.TeamBlue))
	assert.Empty(t, c.LobbySnapshots(league.ID))
	assert.Equal(t, 1, notifier.count(NotifyMatchEnded))

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.archived, 1)
	assert.Equal(t, "net-match-1", store.archived[0].MatchID)
	assert.Len(t, store.archived[0].BluePlayer, 5)
	assert.Len(t, store.archived[0].RedPlayer, 5)
}

// countingClient tallies the room-setup calls a session makes.
type countingClient struct {
	*stubClient
	mu       sync.Mutex
	launches int
	joins    int
	flips    int
}

func (f *countingClient) LaunchLobby(ctx context.Context, cfg gamenet.LobbyConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.launches++
	return nil
}

func (f *countingClient) JoinLobby(ctx context.Context, name, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joins++
	return nil
}

func (f *countingClient) FlipSides(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flips++
	return nil
}

func (f *countingClient) counts() (launches, joins, flips int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.launches, f.joins, f.flips
}

func TestReplacementSessionRejoinsWithoutReflip(t *testing.T) {
	c, _, notifier, league := newTestCore(t, models.QueueDraft, models.LeagueConfig{})

	first := &countingClient{stubClient: newStubClient()}
	sess1 := session.NewController("bot1", first, time.Millisecond, time.Millisecond)
	require.NoError(t, sess1.Dial(context.Background()))
	c.sessions.Add(sess1)

	joinAll(t, c, league.ID, 10)
	snap := onlyLobby(t, c, league.ID)
	for i := 0; i < 10; i++ {
		require.NoError(t, c.ConfirmReady(snap.ID, fmt.Sprintf("p%d", i)))
	}

	selection := notifier.last(NotifySelectionStarted)
	require.NotNil(t, selection)
	holder := selection.Extra["priorityHolder"].(string)
	snap = onlyLobby(t, c, league.ID)

	// Hand first pick to the red captain so hosting has to flip sides.
	require.NoError(t, c.ChooseFirstPick(snap.ID, holder, snap.CaptainRed))
	require.NoError(t, c.StartDraft(snap.ID))

	var free []string
	for _, p := range snap.Roster {
		if p.ID != snap.CaptainBlue && p.ID != snap.CaptainRed {
			free = append(free, p.ID)
		}
	}
	picker, next := snap.CaptainRed, snap.CaptainBlue
	for _, target := range free {
		require.NoError(t, c.DraftPick(snap.ID, picker, target))
		picker, next = next, picker
	}

	snap = onlyLobby(t, c, league.ID)
	require.Equal(t, models.StateBotAssigned, snap.State)
	launches, joins, flips := first.counts()
	assert.Equal(t, 1, launches)
	assert.Equal(t, 0, joins)
	assert.Equal(t, 1, flips)

	// The hosting session dies; the lobby falls back to waiting.
	close(first.snaps)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap = onlyLobby(t, c, league.ID)
		if snap.State == models.StateWaitingForBot {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, models.StateWaitingForBot, snap.State)

	// The replacement takes over the existing room rather than hosting
	// a fresh one, and leaves the side orientation alone.
	second := &countingClient{stubClient: newStubClient()}
	sess2 := session.NewController("bot2", second, time.Millisecond, time.Millisecond)
	require.NoError(t, sess2.Dial(context.Background()))
	c.sessions.Add(sess2)
	require.NoError(t, c.AssignBot(snap.ID))

	launches, joins, flips = second.counts()
	assert.Equal(t, 0, launches)
	assert.Equal(t, 1, joins)
	assert.Equal(t, 0, flips)
}
