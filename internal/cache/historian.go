// internal/cache/historian.go
package cache

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/soloqueue/inhouse/internal/core"
)

// Historian mirrors every core notification onto the Redis transition
// queue and then hands it to the next notifier in the chain. Publish
// failures are logged and swallowed; the historian is an audit trail,
// never a gate on lobby progress.
type Historian struct {
	Next core.Notifier
}

func NewHistorian(next core.Notifier) *Historian {
	if next == nil {
		next = core.NopNotifier{}
	}
	return &Historian{Next: next}
}

func (h *Historian) Notify(n core.Notification) {
	rec := TransitionRecord{
		Event:     string(n.Type),
		LeagueID:  n.LeagueID,
		Extra:     n.Extra,
		Timestamp: time.Now().UnixMilli(),
	}
	if n.Lobby != nil {
		rec.LobbyID = n.Lobby.ID
		rec.LobbyState = string(n.Lobby.State)
	}
	if n.Participant != nil {
		rec.ParticipantID = n.Participant.ID
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := PublishTransition(ctx, rec); err != nil {
		log.Warnf("historian: publish %s: %v", n.Type, err)
	}

	h.Next.Notify(n)
}
