// internal/session/roster.go
package session

import (
	"github.com/soloqueue/inhouse/internal/gamenet"
	"github.com/soloqueue/inhouse/internal/models"
)

// SlotChange records a member who stayed in the lobby but moved team.
type SlotChange struct {
	Member gamenet.Member
	Prev   models.Team
}

// RosterDiff is the reconciliation of two roster snapshots. The three
// sets are disjoint; membership is keyed on participant ID, never on
// struct identity.
type RosterDiff struct {
	Joined  []gamenet.Member
	Left    []gamenet.Member
	Changed []SlotChange
}

// DiffRosters reconciles the previous snapshot against the current one.
func DiffRosters(before, after map[string]gamenet.Member) RosterDiff {
	var d RosterDiff
	for id, m := range after {
		prev, ok := before[id]
		if !ok {
			d.Joined = append(d.Joined, m)
			continue
		}
		if prev.Team != m.Team || prev.Slot != m.Slot {
			d.Changed = append(d.Changed, SlotChange{Member: m, Prev: prev.Team})
		}
	}
	for id, m := range before {
		if _, ok := after[id]; !ok {
			d.Left = append(d.Left, m)
		}
	}
	return d
}

// expectation is one entry in the expected-roster cache. A nil Team is
// the pending marker: the participant is anticipated but their slot is
// not yet known, which satisfies any actual placement vacuously. A
// non-nil Team (including TeamNone) must match the actual roster
// exactly, so an unmet TeamNone expectation still blocks readiness.
type expectation struct {
	Team *models.Team
}

// rosterSatisfies reports whether every concrete expectation is present
// in actual with a matching team. An empty expected cache is trivially
// satisfied.
func rosterSatisfies(expected map[string]expectation, actual map[string]gamenet.Member) bool {
	for id, exp := range expected {
		if exp.Team == nil {
			continue
		}
		m, ok := actual[id]
		if !ok || m.Team != *exp.Team {
			return false
		}
	}
	return true
}
