// internal/draft/draft.go

// Package draft holds the pure matchmaking policy functions: captain
// eligibility, draft order generation, and the auto-balance split.
package draft

import (
	"sort"

	"github.com/soloqueue/inhouse/internal/models"
)

// Captains picks the two highest-rated eligible participants as
// captains, blue first. When fewer than two meet the threshold the
// threshold is ignored and the top two are taken anyway.
func Captains(players []*models.Participant, ratingThreshold int) (blue, red *models.Participant) {
	sorted := make([]*models.Participant, len(players))
	copy(sorted, players)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Rating > sorted[j].Rating
	})

	eligible := sorted[:0:0]
	for _, p := range sorted {
		if p.Rating >= ratingThreshold {
			eligible = append(eligible, p)
		}
	}
	if len(eligible) < 2 {
		eligible = sorted
	}
	if len(eligible) < 2 {
		return nil, nil
	}
	return eligible[0], eligible[1]
}

// Order produces the pick sequence for a drafted lobby: one entry per
// non-captain roster slot, alternating between the captains starting
// with firstPick.
func Order(rosterSize int, firstPick models.Team) []models.Team {
	if firstPick == models.TeamNone {
		firstPick = models.TeamBlue
	}
	steps := rosterSize - 2
	if steps < 0 {
		steps = 0
	}
	order := make([]models.Team, steps)
	team := firstPick
	for i := range order {
		order[i] = team
		team = team.Opposite()
	}
	return order
}

// Balance splits players into two teams minimizing the rating-sum gap
// with a greedy descent: highest rated first, each onto the lighter
// team. Ties go blue. Input order is not mutated.
func Balance(players []*models.Participant) (blue, red []*models.Participant) {
	sorted := make([]*models.Participant, len(players))
	copy(sorted, players)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Rating > sorted[j].Rating
	})

	half := len(players) / 2
	var blueSum, redSum int
	for _, p := range sorted {
		takeBlue := blueSum <= redSum
		if len(blue) >= half {
			takeBlue = false
		} else if len(red) >= len(players)-half {
			takeBlue = true
		}
		if takeBlue {
			blue = append(blue, p)
			blueSum += p.Rating
		} else {
			red = append(red, p)
			redSum += p.Rating
		}
	}
	return blue, red
}
