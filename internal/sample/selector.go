// Package sample deterministically picks a small regime-stratified subset
// of changed products for manual review.
package sample

import (
	"github.com/merchware/repricer/internal/engine"
	"github.com/merchware/repricer/pkg/model"
)

// regimePriority fixes the order in which per-regime quotas are taken.
var regimePriority = []model.Regime{
	model.RegimeStandard,
	model.RegimeLowMargin,
	model.RegimeUsed,
}

// Select takes a fixed per-regime quota in priority order, then backfills
// from the remaining changed pool in first-encounter order until target is
// reached or the pool is exhausted. It never exceeds target and is fully
// deterministic.
func Select(results []engine.Result, target int) []engine.Result {
	if target <= 0 {
		return nil
	}

	changed := make([]engine.Result, 0, len(results))
	for _, r := range results {
		if !r.Excluded && r.NeedsChange {
			changed = append(changed, r)
		}
	}
	if len(changed) <= target {
		return changed
	}

	quota := (target + len(regimePriority) - 1) / len(regimePriority)
	taken := make(map[string]struct{}, target)
	out := make([]engine.Result, 0, target)

	for _, regime := range regimePriority {
		n := 0
		for _, r := range changed {
			if len(out) == target || n == quota {
				break
			}
			if r.Regime != regime {
				continue
			}
			out = append(out, r)
			taken[r.Product.ID] = struct{}{}
			n++
		}
	}

	for _, r := range changed {
		if len(out) == target {
			break
		}
		if _, dup := taken[r.Product.ID]; dup {
			continue
		}
		out = append(out, r)
		taken[r.Product.ID] = struct{}{}
	}
	return out
}
