// Package metricvector implements the lexicographic MetricVector comparison
// BGP best-path selection is built on.
package metricvector

import (
	"math"
	"sort"

	"github.com/lsdecision/decision/state"
)

// Outcome is the result of comparing two MetricVectors.
type Outcome int

const (
	// Winner: the left-hand vector strictly wins.
	Winner Outcome = iota
	// TieWinner: the left-hand vector wins only via tie-breaker entities;
	// the loser still belongs in the ECMP winning set.
	TieWinner
	// Tie: no entity could order the two vectors.
	Tie
	// TieLooser: the left-hand vector loses only via tie-breaker entities;
	// it still belongs in the ECMP winning set.
	TieLooser
	// Looser: the left-hand vector strictly loses and is discarded.
	Looser
	// Error: the vectors are not comparable (mismatched entity shape).
	Error
)

// OwnedEntityType is reserved for the engine's own synthetic IGP-cost
// entity; no advertiser may carry it.
const OwnedEntityType = state.EntityIgpCost

// HasOwnedEntity reports whether v carries an entity the engine reserves
// for itself, meaning the candidate must be rejected outright.
func HasOwnedEntity(v *state.MetricVector) bool {
	if v == nil {
		return false
	}
	for _, e := range v.Entities {
		if e.Type == OwnedEntityType {
			return true
		}
	}
	return false
}

// IgpCostPriority is the reserved priority for the synthetic IGP-cost
// entity. Entities compare most-significant-first in descending priority
// order, so the minimum priority makes the IGP distance the last resort:
// it only orders candidates still tied after every advertiser-supplied
// entity has been compared.
const IgpCostPriority int32 = math.MinInt32

// WithIgpCost returns a copy of v with a synthetic OPENR_IGP_COST entity
// appended, used when bgpUseIgpMetric is enabled. The metric is negated so
// that the ordinary higher-wins comparison prefers the lower IGP distance.
func WithIgpCost(v *state.MetricVector, igpMetric uint32) *state.MetricVector {
	out := &state.MetricVector{Entities: make([]state.MetricEntity, len(v.Entities), len(v.Entities)+1)}
	copy(out.Entities, v.Entities)
	out.Entities = append(out.Entities, state.MetricEntity{
		Type:       state.EntityIgpCost,
		Priority:   IgpCostPriority,
		Op:         state.OpWinIfNotPresent,
		TieBreaker: false,
		Metric:     []int64{-int64(igpMetric)},
	})
	return out
}

// sortedEntities returns v's entities in descending priority order, the
// order the lexicographic walk consumes them in.
func sortedEntities(v *state.MetricVector) []state.MetricEntity {
	out := make([]state.MetricEntity, len(v.Entities))
	copy(out, v.Entities)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

func isDecisive(o Outcome) bool {
	return o == Winner || o == Looser || o == Error
}

// maybeUpdate folds one entity's verdict into the running result: decisive
// verdicts always stick, tie-breaker verdicts only fill in while the result
// is still an open tie.
func maybeUpdate(result *Outcome, update Outcome) {
	if isDecisive(update) || *result == Tie {
		*result = update
	}
}

func negate(o Outcome) Outcome {
	switch o {
	case Winner:
		return Looser
	case TieWinner:
		return TieLooser
	case TieLooser:
		return TieWinner
	case Looser:
		return Winner
	default:
		return o
	}
}

// compareMetrics compares one entity's metric slice component-wise, higher
// wins. A tie-breaker entity can only produce a tie-scoped verdict.
func compareMetrics(a, b []int64, tieBreaker bool) Outcome {
	if len(a) != len(b) {
		return Error
	}
	for i := range a {
		if a[i] == b[i] {
			continue
		}
		if tieBreaker {
			if a[i] > b[i] {
				return TieWinner
			}
			return TieLooser
		}
		if a[i] > b[i] {
			return Winner
		}
		return Looser
	}
	return Tie
}

// resultForLoner scores an entity present on only one side, per its Op.
func resultForLoner(e state.MetricEntity) Outcome {
	switch e.Op {
	case state.OpWinIfPresent:
		if e.TieBreaker {
			return TieWinner
		}
		return Winner
	case state.OpWinIfNotPresent:
		if e.TieBreaker {
			return TieLooser
		}
		return Looser
	}
	return Tie
}

// CompareMetricVectors walks both vectors' entities most-significant-first
// (descending priority) and returns the lexicographic outcome of comparing
// `a` against `b`. Entities present on only one side are resolved via that
// entity's Op: WinIfPresent lets the carrying side win, WinIfNotPresent
// lets the side lacking the entity win (used for the synthetic IGP-cost
// entity so a candidate without a computable distance never loses to one
// that has it). TieBreaker entities order candidates without knocking the
// loser out of the ECMP winning set, and a later decisive entity overrides
// an earlier tie-breaker verdict.
func CompareMetricVectors(a, b *state.MetricVector) Outcome {
	if a == nil || b == nil {
		return Error
	}
	ea := sortedEntities(a)
	eb := sortedEntities(b)

	result := Tie
	i, j := 0, 0
	for !isDecisive(result) && (i < len(ea) || j < len(eb)) {
		switch {
		case j >= len(eb) || (i < len(ea) && ea[i].Priority > eb[j].Priority):
			maybeUpdate(&result, resultForLoner(ea[i]))
			i++
		case i >= len(ea) || eb[j].Priority > ea[i].Priority:
			maybeUpdate(&result, negate(resultForLoner(eb[j])))
			j++
		default:
			if ea[i].TieBreaker != eb[j].TieBreaker {
				return Error
			}
			maybeUpdate(&result, compareMetrics(ea[i].Metric, eb[j].Metric, ea[i].TieBreaker))
			i++
			j++
		}
	}
	return result
}
