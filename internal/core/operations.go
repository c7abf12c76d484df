// internal/core/operations.go

package core

// The public operations. Each external entry point funnels through
// QueueEvent via do(), which blocks the caller until its handler has
// drained and hands back the validation result. Timer and session
// callbacks enqueue fire-and-forget handlers instead; their stale
// deliveries die quietly against the state guards.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/soloqueue/inhouse/internal/draft"
	"github.com/soloqueue/inhouse/internal/gamenet"
	"github.com/soloqueue/inhouse/internal/lobby"
	"github.com/soloqueue/inhouse/internal/models"
	"github.com/soloqueue/inhouse/internal/session"
)

var (
	ErrUnknownLeague = errors.New("core: unknown league")
	ErrUnknownLobby  = errors.New("core: unknown lobby")
	ErrAlreadyQueued = errors.New("core: participant already queued or in a lobby")
	ErrBanned        = errors.New("core: participant is banned from this queue")
	ErrNotQueued     = errors.New("core: participant is not in the queue")
)

// do runs fn on the event queue and returns its result to the caller.
// Must not be called from inside a handler. A panicking fn still hands
// the caller an error; only the broken operation is lost, never the
// goroutine waiting on it.
func (c *Core) do(fn func() error) error {
	ch := make(chan error, 1)
	c.QueueEvent(func() {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("core: operation panicked: %v", r)
				ch <- fmt.Errorf("core: internal error: %v", r)
			}
		}()
		ch <- fn()
	})
	return <-ch
}

// JoinQueue adds a participant to a league's waiting queue. Filling the
// queue to the roster size spawns (or tops up) a lobby and starts its
// ready check.
func (c *Core) JoinQueue(leagueID uuid.UUID, p models.Participant) error {
	return c.do(func() error {
		inst := c.instance(leagueID)
		if inst == nil {
			return ErrUnknownLeague
		}
		now := time.Now()
		if ban, ok := inst.Bans[p.ID]; ok && ban.Active(now) {
			c.notify(Notification{
				Type: NotifyQueueBanned, LeagueID: leagueID, Participant: &p,
				Extra: map[string]interface{}{"expires": ban.Expires},
			})
			return ErrBanned
		}
		if c.participantQueuedOrSeated(inst, p.ID) {
			return ErrAlreadyQueued
		}

		joined := p
		inst.Queue = append(inst.Queue, &joined)
		if err := c.store.SaveQueueEntry(context.Background(), leagueID, joined); err != nil {
			log.Errorf("core: persist queue entry %s: %v", joined.ID, err)
		}
		c.notify(Notification{Type: NotifyQueueJoined, LeagueID: leagueID, Participant: &joined})

		c.fillLobbies(inst)
		return nil
	})
}

// LeaveQueue removes a participant from the waiting queue.
func (c *Core) LeaveQueue(leagueID uuid.UUID, participantID string) error {
	return c.do(func() error {
		inst := c.instance(leagueID)
		if inst == nil {
			return ErrUnknownLeague
		}
		if !c.removeFromQueue(inst, participantID) {
			return ErrNotQueued
		}
		p := &models.Participant{ID: participantID}
		c.notify(Notification{Type: NotifyQueueLeft, LeagueID: leagueID, Participant: p})
		return nil
	})
}

// AcceptChallenge creates a challenge lobby with the two challengers
// pre-seated and pinned as captains; the rest fills from the queue. A
// challenger already seated in another lobby cannot accept; one still
// in the waiting queue is pulled out of it, so nobody holds both a
// seat and a queue spot.
func (c *Core) AcceptChallenge(leagueID uuid.UUID, challenger, challenged models.Participant) error {
	return c.do(func() error {
		inst := c.instance(leagueID)
		if inst == nil {
			return ErrUnknownLeague
		}
		for _, id := range []string{challenger.ID, challenged.ID} {
			if c.participantSeated(inst, id) {
				return ErrAlreadyQueued
			}
		}
		c.removeFromQueue(inst, challenger.ID)
		c.removeFromQueue(inst, challenged.ID)
		l := lobby.New(leagueID, c.nextLobbyName(inst), models.QueueChallenge, inst.League.RosterSize)
		if err := l.Open(); err != nil {
			return err
		}
		a, b := challenger, challenged
		if err := l.AddParticipant(&a); err != nil {
			return err
		}
		if err := l.AddParticipant(&b); err != nil {
			return err
		}
		inst.Lobbies[l.ID] = l
		c.challengeCaptains[l.ID] = [2]string{a.ID, b.ID}
		c.persistLobby(l)
		c.fillLobbies(inst)
		return nil
	})
}

// ConfirmReady records one ready confirmation; the final confirmation
// before the deadline advances the lobby.
func (c *Core) ConfirmReady(lobbyID uuid.UUID, participantID string) error {
	return c.do(func() error {
		inst, l := c.findLobby(lobbyID)
		if l == nil {
			return ErrUnknownLobby
		}
		all, err := l.ConfirmReady(participantID)
		if err != nil {
			return err
		}
		if !all {
			return nil
		}

		c.clearReadyTimer(l.ID)
		c.notifyLobby(NotifyPlayersReady, l, nil, nil)

		if l.QueueType.Drafted() {
			c.beginSelection(inst, l)
		} else {
			blue, red := draft.Balance(l.Roster)
			if err := l.AssignBalancedTeams(blue, red); err != nil {
				return err
			}
			c.tryAssignBot(inst, l)
		}
		c.persistLobby(l)
		return nil
	})
}

// beginSelection seats captains and rolls selection priority.
func (c *Core) beginSelection(inst *Instance, l *lobby.Lobby) {
	var blueID, redID string
	pinned, isChallenge := c.challengeCaptains[l.ID]
	if isChallenge {
		blueID, redID = pinned[0], pinned[1]
	} else {
		blue, red := draft.Captains(l.Roster, inst.League.Config.CaptainRatingThreshold)
		if blue == nil || red == nil {
			log.Errorf("core: lobby %s has no eligible captains", l.Name)
			return
		}
		blueID, redID = blue.ID, red.ID
	}
	if err := l.BeginSelection(blueID, redID); err != nil {
		log.Warnf("core: begin selection for %s: %v", l.Name, err)
		return
	}

	// Coin flip for selection priority.
	winner := blueID
	if c.rng.Intn(2) == 1 {
		winner = redID
	}
	if err := l.SetPriority(winner); err != nil {
		log.Warnf("core: set priority for %s: %v", l.Name, err)
		return
	}
	c.notifyLobby(NotifySelectionStarted, l, l.Participant(winner), map[string]interface{}{
		"priorityHolder": winner,
	})
}

// ChooseFirstPick records which captain drafts first. Only the
// selection-priority holder may decide.
func (c *Core) ChooseFirstPick(lobbyID uuid.UUID, requesterID, firstPickCaptainID string) error {
	return c.do(func() error {
		_, l := c.findLobby(lobbyID)
		if l == nil {
			return ErrUnknownLobby
		}
		if requesterID != l.PriorityHolder {
			return lobby.ErrNotACaptain
		}
		return l.ChooseFirstPick(firstPickCaptainID)
	})
}

// SwapSides flips the captains' sides during selection. The captain who
// did not take first pick holds the side choice.
func (c *Core) SwapSides(lobbyID uuid.UUID, requesterID string) error {
	return c.do(func() error {
		_, l := c.findLobby(lobbyID)
		if l == nil {
			return ErrUnknownLobby
		}
		if !l.IsCaptain(requesterID) || requesterID == l.FirstPickCaptain {
			return lobby.ErrNotACaptain
		}
		return l.SwapSides()
	})
}

// StartDraft locks the selection choices and opens drafting. A first
// pick left undecided defaults to the priority holder.
func (c *Core) StartDraft(lobbyID uuid.UUID) error {
	return c.do(func() error {
		_, l := c.findLobby(lobbyID)
		if l == nil {
			return ErrUnknownLobby
		}
		if l.FirstPickCaptain == "" && l.PriorityHolder != "" {
			if err := l.ChooseFirstPick(l.PriorityHolder); err != nil {
				return err
			}
		}
		if err := l.BeginDraft(); err != nil {
			return err
		}
		c.persistLobby(l)
		c.notifyLobby(NotifyDraftTurn, l, c.currentCaptain(l), map[string]interface{}{
			"step": l.DraftPos,
		})
		return nil
	})
}

// DraftPick applies one captain's pick. Rejections leave everything in
// place and surface to the caller for a declinable response.
func (c *Core) DraftPick(lobbyID uuid.UUID, captainID, targetID string) error {
	return c.do(func() error {
		inst, l := c.findLobby(lobbyID)
		if l == nil {
			return ErrUnknownLobby
		}
		if err := l.DraftPick(captainID, targetID); err != nil {
			return err
		}
		c.persistLobby(l)
		c.notifyLobby(NotifyPlayerDrafted, l, l.Participant(targetID), map[string]interface{}{
			"captain": captainID,
		})
		if l.State == models.StateWaitingForBot {
			c.tryAssignBot(inst, l)
		} else {
			c.notifyLobby(NotifyDraftTurn, l, c.currentCaptain(l), map[string]interface{}{
				"step": l.DraftPos,
			})
		}
		return nil
	})
}

func (c *Core) currentCaptain(l *lobby.Lobby) *models.Participant {
	switch l.CurrentPickTeam() {
	case models.TeamBlue:
		return l.Participant(l.CaptainBlue)
	case models.TeamRed:
		return l.Participant(l.CaptainRed)
	}
	return nil
}

// AssignBot manually binds a free session to a waiting lobby.
func (c *Core) AssignBot(lobbyID uuid.UUID) error {
	return c.do(func() error {
		inst, l := c.findLobby(lobbyID)
		if l == nil {
			return ErrUnknownLobby
		}
		return c.tryAssignBot(inst, l)
	})
}

// tryAssignBot acquires an unassigned session, launches the practice
// lobby on it, primes the expected roster and invites. Finding no free
// session leaves the lobby in waiting_for_bot.
func (c *Core) tryAssignBot(inst *Instance, l *lobby.Lobby) error {
	if l.State != models.StateWaitingForBot {
		return lobby.ErrStaleTransition
	}
	sess, err := c.sessions.Acquire(l.ID)
	if err != nil {
		log.Infof("core: lobby %s waiting, no session free", l.Name)
		return err
	}

	leagueID, lobbyID := l.LeagueID, l.ID
	sess.OnEvent(func(ev session.Event) {
		c.QueueEvent(func() {
			c.handleSessionEvent(leagueID, lobbyID, ev)
		})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	rejoined := false
	if l.Password != "" {
		// A previous session already created the room; take it over
		// instead of hosting a duplicate.
		if err := sess.JoinLobby(ctx, l.ID, l.Name, l.Password); err != nil {
			log.Warnf("core: rejoin room %s: %v", l.Name, err)
		} else {
			rejoined = true
		}
	}
	if !rejoined {
		l.Password = uuid.NewString()[:8]
		cfg := gamenet.LobbyConfig{
			Name:      l.Name,
			Password:  l.Password,
			GameMode:  l.GameMode,
			FirstPick: l.CaptainTeam(l.FirstPickCaptain),
		}
		if err := sess.HostLobby(ctx, l.ID, cfg); err != nil {
			log.Errorf("core: host lobby %s on session %s: %v", l.Name, sess.ID, err)
			c.sessions.Release(l.ID)
			return err
		}
		// The gateway seats the host's side as blue; flip when the
		// first-pick captain drafted onto red. A rejoined room keeps
		// whatever orientation the previous host already set.
		if l.CaptainTeam(l.FirstPickCaptain) == models.TeamRed {
			sess.FlipSides()
		}
	}

	for _, p := range l.Roster {
		team := p.Team
		sess.Expect(p.ID, &team)
		sess.Invite(p.ID)
	}

	if err := l.AssignSession(sess.ID); err != nil {
		return err
	}
	c.persistLobby(l)
	c.notifyLobby(NotifyBotAssigned, l, nil, map[string]interface{}{
		"session": sess.ID.String(),
	})
	return nil
}

// CompleteMatch handles the external match-end signal.
func (c *Core) CompleteMatch(lobbyID uuid.UUID, winner models.Team) error {
	return c.do(func() error {
		inst, l := c.findLobby(lobbyID)
		if l == nil {
			return ErrUnknownLobby
		}
		if err := l.Complete(); err != nil {
			return err
		}
		c.clearReadyTimer(l.ID)
		c.sessions.Release(l.ID)

		rec := models.MatchRecord{
			MatchID:    l.MatchID,
			LobbyID:    l.ID,
			LeagueID:   l.LeagueID,
			Winner:     winner,
			BluePlayer: participantIDs(l.Team(models.TeamBlue)),
			RedPlayer:  participantIDs(l.Team(models.TeamRed)),
			StartedAt:  l.CreatedAt,
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.store.ArchiveMatch(ctx, rec); err != nil {
			log.Errorf("core: archive match %s: %v", l.MatchID, err)
		}
		c.persistLobby(l)
		c.notifyLobby(NotifyMatchEnded, l, nil, map[string]interface{}{
			"winner": winner,
		})
		c.removeLobby(inst, l.ID)
		return nil
	})
}

// KillLobby terminates a lobby from any non-terminal state and hands
// its session (if any) back to the pool.
func (c *Core) KillLobby(lobbyID uuid.UUID) error {
	return c.do(func() error {
		inst, l := c.findLobby(lobbyID)
		if l == nil {
			return ErrUnknownLobby
		}
		return c.killLobby(inst, l)
	})
}

func (c *Core) killLobby(inst *Instance, l *lobby.Lobby) error {
	if err := l.Kill(); err != nil {
		return err
	}
	c.clearReadyTimer(l.ID)
	c.sessions.Release(l.ID)
	c.persistLobby(l)
	log.Infof("core: killed %s", Describe(l.Snapshot()))
	c.notifyLobby(NotifyLobbyKilled, l, nil, nil)
	c.removeLobby(inst, l.ID)
	return nil
}

// GuildLeave handles a participant leaving the community: they are
// pulled from the queue and any lobby holding them is killed.
func (c *Core) GuildLeave(leagueID uuid.UUID, participantID string) error {
	return c.do(func() error {
		inst := c.instance(leagueID)
		if inst == nil {
			return ErrUnknownLeague
		}
		c.removeFromQueue(inst, participantID)
		for _, l := range instLobbies(inst) {
			if l.Participant(participantID) != nil {
				if err := c.killLobby(inst, l); err != nil && !errors.Is(err, lobby.ErrStaleTransition) {
					log.Warnf("core: kill lobby %s on guild leave: %v", l.Name, err)
				}
			}
		}
		return nil
	})
}

// BanParticipant records a queue ban and ejects the player from the
// waiting queue.
func (c *Core) BanParticipant(leagueID uuid.UUID, ban models.Ban) error {
	return c.do(func() error {
		inst := c.instance(leagueID)
		if inst == nil {
			return ErrUnknownLeague
		}
		inst.Bans[ban.ParticipantID] = ban
		if err := c.store.UpsertBan(context.Background(), leagueID, ban); err != nil {
			log.Errorf("core: persist ban for %s: %v", ban.ParticipantID, err)
		}
		c.removeFromQueue(inst, ban.ParticipantID)
		c.notify(Notification{
			Type: NotifyQueueBanned, LeagueID: leagueID,
			Participant: &models.Participant{ID: ban.ParticipantID},
			Extra:       map[string]interface{}{"expires": ban.Expires},
		})
		return nil
	})
}

// handleReadyTimeout is the armed timer's landing point. The state
// guard absorbs timers that fire after the lobby already advanced.
func (c *Core) handleReadyTimeout(leagueID, lobbyID uuid.UUID) {
	inst := c.instance(leagueID)
	if inst == nil {
		return
	}
	l := instLobby(inst, lobbyID)
	if l == nil {
		return
	}
	evicted, err := l.FailReadyCheck()
	if err != nil {
		// Ready check already resolved; late fire, nothing to do.
		return
	}
	c.clearReadyTimer(l.ID)
	c.persistLobby(l)
	c.notifyLobby(NotifyReadyCheckFailed, l, nil, map[string]interface{}{
		"evicted": participantIDs(evicted),
	})
	for _, p := range evicted {
		c.removeFromQueue(inst, p.ID)
	}
	c.fillLobbies(inst)
}

// handleSessionEvent reconciles session-controller events against the
// bound lobby.
func (c *Core) handleSessionEvent(leagueID, lobbyID uuid.UUID, ev session.Event) {
	inst := c.instance(leagueID)
	if inst == nil {
		return
	}
	l := instLobby(inst, lobbyID)
	if l == nil {
		return
	}
	sess, ok := c.sessions.ForLobby(lobbyID)
	if !ok {
		return
	}

	switch ev.Type {
	case session.EventMemberJoined:
		if l.Participant(ev.Member.ID) == nil {
			log.Infof("core: kicking uninvited member %s from %s", ev.Member.ID, l.Name)
			sess.Kick(ev.Member.ID)
		}
	case session.EventMemberLeft:
		if l.Participant(ev.Member.ID) != nil && l.State == models.StateBotAssigned {
			// Seat expected but vacated: nudge them back in.
			sess.Invite(ev.Member.ID)
		}
	case session.EventSlotChanged:
		log.Debugf("core: %s moved %s -> %s in %s", ev.Member.ID, ev.Prev, ev.Member.Team, l.Name)
	case session.EventRosterReady:
		if l.State != models.StateBotAssigned {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		matchID, err := sess.StartMatch(ctx)
		if err != nil {
			log.Errorf("core: start match for %s: %v", l.Name, err)
			return
		}
		if err := l.ConfirmLaunch(matchID); err != nil {
			return
		}
		c.persistLobby(l)
		c.notifyLobby(NotifyMatchStarted, l, nil, map[string]interface{}{
			"matchId": matchID,
		})
	case session.EventConnectionLost:
		log.Warnf("core: session for lobby %s lost its connection", l.Name)
		c.sessions.Release(lobbyID)
		c.sessions.Remove(sess.ID)
		if err := l.ReleaseSession(); err == nil {
			c.persistLobby(l)
			c.tryAssignBot(inst, l)
		}
	}
}

// fillLobbies seats waiting players into open lobbies, creating a new
// lobby when the queue alone can fill one, and starts the ready check
// on every lobby that fills.
func (c *Core) fillLobbies(inst *Instance) {
	for {
		open := c.openLobby(inst)
		if open == nil {
			if len(inst.Queue) < inst.League.RosterSize {
				return
			}
			l := lobby.New(inst.League.ID, c.nextLobbyName(inst), inst.League.QueueType, inst.League.RosterSize)
			if err := l.Open(); err != nil {
				log.Errorf("core: open lobby %s: %v", l.Name, err)
				return
			}
			inst.Lobbies[l.ID] = l
			open = l
		}

		for len(inst.Queue) > 0 && !open.Full() {
			p := inst.Queue[0]
			inst.Queue = inst.Queue[1:]
			if err := open.AddParticipant(p); err != nil {
				// Already holds a seat somewhere; the entry is stale.
				// Drop it rather than leave it blocking the queue head.
				log.Warnf("core: dropping queue entry %s, cannot seat in %s: %v", p.ID, open.Name, err)
			}
			if err := c.store.DeleteQueueEntry(context.Background(), inst.League.ID, p.ID); err != nil {
				log.Errorf("core: delete queue entry %s: %v", p.ID, err)
			}
		}

		if !open.Full() {
			c.persistLobby(open)
			return
		}

		deadline := time.Now().Add(inst.League.Config.ReadyTimeout())
		if err := open.StartReadyCheck(deadline); err != nil {
			log.Warnf("core: start ready check for %s: %v", open.Name, err)
			return
		}
		c.armReadyTimer(inst.League.ID, open.ID, deadline)
		c.persistLobby(open)
		c.notifyLobby(NotifyReadyCheckStarted, open, nil, map[string]interface{}{
			"deadline": deadline,
		})
	}
}

// openLobby finds a lobby still filling its roster.
func (c *Core) openLobby(inst *Instance) *lobby.Lobby {
	for _, l := range instLobbies(inst) {
		if l.State == models.StateWaitingForQueue && !l.Full() {
			return l
		}
	}
	return nil
}

func (c *Core) participantQueuedOrSeated(inst *Instance, id string) bool {
	for _, q := range inst.Queue {
		if q.ID == id {
			return true
		}
	}
	return c.participantSeated(inst, id)
}

func (c *Core) participantSeated(inst *Instance, id string) bool {
	for _, l := range instLobbies(inst) {
		if l.Participant(id) != nil {
			return true
		}
	}
	return false
}

func (c *Core) removeFromQueue(inst *Instance, id string) bool {
	for i, q := range inst.Queue {
		if q.ID == id {
			inst.Queue = append(inst.Queue[:i], inst.Queue[i+1:]...)
			if err := c.store.DeleteQueueEntry(context.Background(), inst.League.ID, id); err != nil {
				log.Errorf("core: delete queue entry %s: %v", id, err)
			}
			return true
		}
	}
	return false
}

func (c *Core) removeLobby(inst *Instance, lobbyID uuid.UUID) {
	delete(inst.Lobbies, lobbyID)
	delete(c.challengeCaptains, lobbyID)
}

func instLobby(inst *Instance, lobbyID uuid.UUID) *lobby.Lobby {
	return inst.Lobbies[lobbyID]
}

// instLobbies copies the map values so handlers can delete while
// iterating.
func instLobbies(inst *Instance) []*lobby.Lobby {
	out := make([]*lobby.Lobby, 0, len(inst.Lobbies))
	for _, l := range inst.Lobbies {
		out = append(out, l)
	}
	return out
}

func participantIDs(ps []*models.Participant) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

// Describe returns a short operator-facing summary of a lobby.
func Describe(s lobby.Snapshot) string {
	return fmt.Sprintf("%s [%s] %d players", s.Name, s.State, len(s.Roster))
}
