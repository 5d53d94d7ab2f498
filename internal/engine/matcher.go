package engine

import "github.com/alanyoungcy/spreadbot/internal/domain"

// Match pairs an opportunity with the strategy that accepted it. The strategy
// travels with the match so downstream sizing can honor its per-trade cap.
type Match struct {
	Opportunity domain.Opportunity
	Strategy    domain.Strategy
}

// MatchOpportunities filters opportunities against a user's active strategies.
// Each opportunity is tested against the strategies in order and paired with
// the first one that accepts it. Output preserves the input opportunity order.
//
// A strategy accepts an opportunity when the profit percentage meets its
// minimum, both venues are on its exchange allowlist, and the opportunity
// reports either no volume figure or a positive one.
func MatchOpportunities(opps []domain.Opportunity, strategies []domain.Strategy) []Match {
	active := make([]domain.Strategy, 0, len(strategies))
	for _, st := range strategies {
		if st.Active {
			active = append(active, st)
		}
	}
	if len(active) == 0 {
		return nil
	}

	var matches []Match
	for _, opp := range opps {
		for _, st := range active {
			if !accepts(st, opp) {
				continue
			}
			matches = append(matches, Match{Opportunity: opp, Strategy: st})
			break
		}
	}
	return matches
}

func accepts(st domain.Strategy, opp domain.Opportunity) bool {
	if opp.ProfitPct < st.MinProfitPct {
		return false
	}
	if !st.AllowsExchange(opp.BuyExchange) || !st.AllowsExchange(opp.SellExchange) {
		return false
	}
	// Volume zero means the feed did not report depth; only a reported
	// non-positive depth disqualifies.
	if opp.Volume < 0 {
		return false
	}
	return true
}
