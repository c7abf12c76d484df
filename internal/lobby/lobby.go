// internal/lobby/lobby.go

// Package lobby implements the per-lobby state machine. A Lobby is not
// self-locking: it is owned by the orchestration core and mutated only
// from inside a drained event, so at most one transition ever runs at a
// time. Every transition is guarded by the expected current state; a
// mismatch is reported as ErrStaleTransition and callers treat it as a
// logged no-op, which makes duplicate or late event delivery harmless.
package lobby

import (
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/soloqueue/inhouse/internal/draft"
	"github.com/soloqueue/inhouse/internal/models"
)

var (
	// ErrStaleTransition means the lobby is no longer in a state the
	// request expected. Never fatal.
	ErrStaleTransition = errors.New("lobby: stale transition request")

	ErrRosterFull         = errors.New("lobby: roster is full")
	ErrAlreadyInRoster    = errors.New("lobby: participant already in roster")
	ErrNotInRoster        = errors.New("lobby: participant not in roster")
	ErrNotACaptain        = errors.New("lobby: participant is not a captain")
	ErrNotYourTurn        = errors.New("lobby: not this captain's pick")
	ErrCannotDraftCaptain = errors.New("lobby: cannot draft a captain")
	ErrAlreadyDrafted     = errors.New("lobby: participant already drafted")
	ErrSelectionUndecided = errors.New("lobby: first pick not decided")
)

// Lobby is one match attempt from queue fill to completion or kill.
type Lobby struct {
	ID         uuid.UUID
	LeagueID   uuid.UUID
	Name       string
	State      models.LobbyState
	QueueType  models.QueueType
	RosterSize int

	Roster []*models.Participant

	CaptainBlue      string
	CaptainRed       string
	PriorityHolder   string
	FirstPickCaptain string
	DraftOrder       []models.Team
	DraftPos         int

	ReadyDeadline time.Time
	SessionID     uuid.UUID
	MatchID       string

	Password string
	GameMode string

	CreatedAt time.Time
}

// New creates a lobby in the new state; Open moves it into the queue-
// filling phase.
func New(leagueID uuid.UUID, name string, qt models.QueueType, rosterSize int) *Lobby {
	return &Lobby{
		ID:         uuid.New(),
		LeagueID:   leagueID,
		Name:       name,
		State:      models.StateNew,
		QueueType:  qt,
		RosterSize: rosterSize,
		GameMode:   "captains",
		CreatedAt:  time.Now(),
	}
}

// require checks the expected-state guard shared by every transition.
func (l *Lobby) require(expected ...models.LobbyState) error {
	for _, s := range expected {
		if l.State == s {
			return nil
		}
	}
	log.Debugf("lobby %s: transition requested in %s, wanted one of %v", l.Name, l.State, expected)
	return ErrStaleTransition
}

// Open admits the lobby to the queue-filling phase.
func (l *Lobby) Open() error {
	if err := l.require(models.StateNew); err != nil {
		return err
	}
	l.State = models.StateWaitingForQueue
	return nil
}

// AddParticipant seats a player in the next free slot, unassigned and
// unready.
func (l *Lobby) AddParticipant(p *models.Participant) error {
	if err := l.require(models.StateWaitingForQueue); err != nil {
		return err
	}
	if len(l.Roster) >= l.RosterSize {
		return ErrRosterFull
	}
	if l.Participant(p.ID) != nil {
		return ErrAlreadyInRoster
	}
	p.Team = models.TeamNone
	p.Ready = false
	l.Roster = append(l.Roster, p)
	return nil
}

// Full reports whether every roster slot is taken.
func (l *Lobby) Full() bool {
	return len(l.Roster) >= l.RosterSize
}

// Participant returns the rostered player with the given identity, or nil.
func (l *Lobby) Participant(id string) *models.Participant {
	for _, p := range l.Roster {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// StartReadyCheck begins the timed confirmation phase. All ready flags
// are reset; deadline is the wall-clock cutoff.
func (l *Lobby) StartReadyCheck(deadline time.Time) error {
	if err := l.require(models.StateWaitingForQueue); err != nil {
		return err
	}
	for _, p := range l.Roster {
		p.Ready = false
	}
	l.ReadyDeadline = deadline
	l.State = models.StateCheckingReady
	return nil
}

// ConfirmReady flags one participant ready and reports whether the
// whole roster is now confirmed. Order of confirmations never matters.
func (l *Lobby) ConfirmReady(participantID string) (allReady bool, err error) {
	if err := l.require(models.StateCheckingReady); err != nil {
		return false, err
	}
	p := l.Participant(participantID)
	if p == nil {
		return false, ErrNotInRoster
	}
	p.Ready = true
	return l.AllReady(), nil
}

// AllReady reports whether every roster slot has confirmed.
func (l *Lobby) AllReady() bool {
	if !l.Full() {
		return false
	}
	for _, p := range l.Roster {
		if !p.Ready {
			return false
		}
	}
	return true
}

// Unready returns the participants who have not confirmed.
func (l *Lobby) Unready() []*models.Participant {
	var out []*models.Participant
	for _, p := range l.Roster {
		if !p.Ready {
			out = append(out, p)
		}
	}
	return out
}

// FailReadyCheck handles deadline expiry: unready participants are
// evicted, the survivors keep their seats with their flags reset, and
// the lobby returns to the queue-filling phase. Returns the evicted.
func (l *Lobby) FailReadyCheck() ([]*models.Participant, error) {
	if err := l.require(models.StateCheckingReady); err != nil {
		return nil, err
	}
	evicted := l.Unready()
	kept := l.Roster[:0:0]
	for _, p := range l.Roster {
		if p.Ready {
			p.Ready = false
			kept = append(kept, p)
		}
	}
	l.Roster = kept
	l.ReadyDeadline = time.Time{}
	l.State = models.StateWaitingForQueue
	return evicted, nil
}

// BeginSelection seats the captains and enters the selection-priority
// phase. Draft queues only; auto-balance lobbies use AssignBalancedTeams.
func (l *Lobby) BeginSelection(captainBlue, captainRed string) error {
	if err := l.require(models.StateCheckingReady); err != nil {
		return err
	}
	cb := l.Participant(captainBlue)
	cr := l.Participant(captainRed)
	if cb == nil || cr == nil {
		return ErrNotInRoster
	}
	cb.Team = models.TeamBlue
	cr.Team = models.TeamRed
	l.CaptainBlue = captainBlue
	l.CaptainRed = captainRed
	l.State = models.StateSelectionPriority
	return nil
}

// IsCaptain reports whether the participant captains either team.
func (l *Lobby) IsCaptain(id string) bool {
	return id != "" && (id == l.CaptainBlue || id == l.CaptainRed)
}

// CaptainTeam returns the team a captain leads, or TeamNone.
func (l *Lobby) CaptainTeam(id string) models.Team {
	if !l.IsCaptain(id) {
		return models.TeamNone
	}
	if id == l.CaptainBlue {
		return models.TeamBlue
	}
	return models.TeamRed
}

// SetPriority records the coin-flip winner, the first of the three
// binary selection choices.
func (l *Lobby) SetPriority(captainID string) error {
	if err := l.require(models.StateSelectionPriority); err != nil {
		return err
	}
	if !l.IsCaptain(captainID) {
		return ErrNotACaptain
	}
	l.PriorityHolder = captainID
	return nil
}

// ChooseFirstPick records which captain drafts first, the second
// binary choice.
func (l *Lobby) ChooseFirstPick(captainID string) error {
	if err := l.require(models.StateSelectionPriority); err != nil {
		return err
	}
	if !l.IsCaptain(captainID) {
		return ErrNotACaptain
	}
	l.FirstPickCaptain = captainID
	return nil
}

// SwapSides flips captains and their assigned seats between blue and
// red, the third binary choice. The first-pick holder keeps first pick
// on their new side.
func (l *Lobby) SwapSides() error {
	if err := l.require(models.StateSelectionPriority); err != nil {
		return err
	}
	l.CaptainBlue, l.CaptainRed = l.CaptainRed, l.CaptainBlue
	for _, p := range l.Roster {
		p.Team = p.Team.Opposite()
	}
	return nil
}

// BeginDraft freezes the pick sequence and enters the drafting phase.
func (l *Lobby) BeginDraft() error {
	if err := l.require(models.StateSelectionPriority); err != nil {
		return err
	}
	if l.FirstPickCaptain == "" {
		return ErrSelectionUndecided
	}
	l.DraftOrder = draft.Order(l.RosterSize, l.CaptainTeam(l.FirstPickCaptain))
	l.DraftPos = 0
	l.State = models.StateDraftingPlayers
	return nil
}

// CurrentPickTeam returns which side picks at the current draft step,
// or TeamNone once the order is exhausted.
func (l *Lobby) CurrentPickTeam() models.Team {
	if l.State != models.StateDraftingPlayers || l.DraftPos >= len(l.DraftOrder) {
		return models.TeamNone
	}
	return l.DraftOrder[l.DraftPos]
}

// DraftPick applies one captain's pick. Rejected picks (wrong turn,
// captain target, already-drafted target) leave the roster, the draft
// pointer, and the state untouched. The final pick fills both teams and
// moves the lobby to waiting_for_bot.
func (l *Lobby) DraftPick(captainID, targetID string) error {
	if err := l.require(models.StateDraftingPlayers); err != nil {
		return err
	}
	if !l.IsCaptain(captainID) {
		return ErrNotACaptain
	}
	turn := l.CurrentPickTeam()
	if l.CaptainTeam(captainID) != turn {
		return ErrNotYourTurn
	}
	target := l.Participant(targetID)
	if target == nil {
		return ErrNotInRoster
	}
	if l.IsCaptain(targetID) {
		return ErrCannotDraftCaptain
	}
	if target.Team != models.TeamNone {
		return ErrAlreadyDrafted
	}

	target.Team = turn
	l.DraftPos++
	if l.DraftPos >= len(l.DraftOrder) {
		l.State = models.StateWaitingForBot
	}
	return nil
}

// AssignBalancedTeams applies an auto-balance split and skips straight
// from the completed ready check to waiting_for_bot.
func (l *Lobby) AssignBalancedTeams(blue, red []*models.Participant) error {
	if err := l.require(models.StateCheckingReady); err != nil {
		return err
	}
	for _, p := range blue {
		if rp := l.Participant(p.ID); rp != nil {
			rp.Team = models.TeamBlue
		}
	}
	for _, p := range red {
		if rp := l.Participant(p.ID); rp != nil {
			rp.Team = models.TeamRed
		}
	}
	l.State = models.StateWaitingForBot
	return nil
}

// AssignSession binds an external session to the lobby.
func (l *Lobby) AssignSession(sessionID uuid.UUID) error {
	if err := l.require(models.StateWaitingForBot); err != nil {
		return err
	}
	l.SessionID = sessionID
	l.State = models.StateBotAssigned
	return nil
}

// ReleaseSession unbinds a dead session before launch, dropping the
// lobby back to waiting for a bot.
func (l *Lobby) ReleaseSession() error {
	if err := l.require(models.StateBotAssigned); err != nil {
		return err
	}
	l.SessionID = uuid.Nil
	l.State = models.StateWaitingForBot
	return nil
}

// ConfirmLaunch records the network match id once the external session
// reports the game underway.
func (l *Lobby) ConfirmLaunch(matchID string) error {
	if err := l.require(models.StateBotAssigned); err != nil {
		return err
	}
	l.MatchID = matchID
	l.State = models.StateMatchInProgress
	return nil
}

// Complete ends the lobby after the external match-end signal.
func (l *Lobby) Complete() error {
	if err := l.require(models.StateMatchInProgress); err != nil {
		return err
	}
	l.State = models.StateCompleted
	return nil
}

// Kill terminates the lobby from any non-terminal state.
func (l *Lobby) Kill() error {
	if l.State.Terminal() {
		return ErrStaleTransition
	}
	l.State = models.StateKilled
	return nil
}

// Team returns the rostered players on one side.
func (l *Lobby) Team(team models.Team) []*models.Participant {
	var out []*models.Participant
	for _, p := range l.Roster {
		if p.Team == team {
			out = append(out, p)
		}
	}
	return out
}

// Record flattens the lobby to its persisted shape.
func (l *Lobby) Record() models.LobbyRecord {
	return models.LobbyRecord{
		ID:            l.ID,
		LeagueID:      l.LeagueID,
		Name:          l.Name,
		State:         l.State,
		QueueType:     l.QueueType,
		CaptainBlue:   l.CaptainBlue,
		CaptainRed:    l.CaptainRed,
		MatchID:       l.MatchID,
		ReadyDeadline: l.ReadyDeadline,
		CreatedAt:     l.CreatedAt,
	}
}

// Snapshot is an immutable copy handed to notification consumers and
// display readers outside the orchestration path.
type Snapshot struct {
	ID          uuid.UUID            `json:"id"`
	LeagueID    uuid.UUID            `json:"leagueId"`
	Name        string               `json:"name"`
	State       models.LobbyState    `json:"state"`
	QueueType   models.QueueType     `json:"queueType"`
	Roster      []models.Participant `json:"roster"`
	CaptainBlue string               `json:"captainBlue,omitempty"`
	CaptainRed  string               `json:"captainRed,omitempty"`
	MatchID     string               `json:"matchId,omitempty"`
}

// Snapshot copies the lobby's externally visible state.
func (l *Lobby) Snapshot() Snapshot {
	roster := make([]models.Participant, len(l.Roster))
	for i, p := range l.Roster {
		roster[i] = *p
	}
	return Snapshot{
		ID:          l.ID,
		LeagueID:    l.LeagueID,
		Name:        l.Name,
		State:       l.State,
		QueueType:   l.QueueType,
		Roster:      roster,
		CaptainBlue: l.CaptainBlue,
		CaptainRed:  l.CaptainRed,
		MatchID:     l.MatchID,
	}
}
