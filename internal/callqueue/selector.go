package callqueue

import (
	"sort"

	"github.com/dennisdiepolder/monti/callrouter/internal/types"
)

// Select returns the eligible queues for a call, best first. Inactive and
// full queues are never returned. Precedence is emergency for critical
// urgency, then vip for platinum callers, then the queue matching the call
// type, then general. Within one tier the shortest queue wins, then the
// lower ID.
func Select(cc types.CallContext, queues []types.CallQueue) []types.CallQueue {
	var tiers []types.QueueType
	if cc.Urgency == types.UrgencyCritical {
		tiers = append(tiers, types.QueueEmergency)
	}
	if cc.Caller.Tier == types.TierPlatinum {
		tiers = append(tiers, types.QueueVIP)
	}
	if qt, ok := queueTypeFor(cc.CallType); ok {
		tiers = append(tiers, qt)
	}
	tiers = append(tiers, types.QueueGeneral)

	seen := make(map[types.QueueType]bool, len(tiers))
	var out []types.CallQueue
	for _, qt := range tiers {
		if seen[qt] {
			continue
		}
		seen[qt] = true
		out = append(out, eligible(queues, qt)...)
	}
	return out
}

// SelectOne returns the single best queue for a call
func SelectOne(cc types.CallContext, queues []types.CallQueue) (types.CallQueue, bool) {
	candidates := Select(cc, queues)
	if len(candidates) == 0 {
		return types.CallQueue{}, false
	}
	return candidates[0], true
}

func eligible(queues []types.CallQueue, qt types.QueueType) []types.CallQueue {
	var out []types.CallQueue
	for _, q := range queues {
		if q.Type == qt && q.IsActive && !q.Full() {
			out = append(out, q)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i].Calls) != len(out[j].Calls) {
			return len(out[i].Calls) < len(out[j].Calls)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func queueTypeFor(ct types.CallType) (types.QueueType, bool) {
	switch ct {
	case types.CallTypeSales:
		return types.QueueSales, true
	case types.CallTypeSupport:
		return types.QueueSupport, true
	case types.CallTypeEmergency:
		return types.QueueEmergency, true
	case types.CallTypeGeneral:
		return types.QueueGeneral, true
	}
	return "", false
}
