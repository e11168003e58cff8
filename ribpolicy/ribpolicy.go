// Package ribpolicy implements the single active, TTL-scoped RibPolicy
// (§4.5): per-prefix next-hop reweighting applied to every publish while
// the policy is active.
package ribpolicy

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/lsdecision/decision/state"
)

// ErrorKind classifies why a policy was rejected.
type ErrorKind int

const (
	KindDisabled ErrorKind = iota
	KindStale
	KindInvalid
)

// PolicyError is returned when a policy is rejected: RIB policy disabled,
// a stale policy, or an invalid one. Expiry is reported by Expired, not as
// a PolicyError.
type PolicyError struct {
	Kind ErrorKind
	Msg  string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("ribpolicy: %s", e.Msg)
}

// WeightAction rewrites a matched unicast entry's next-hop weights:
// defaultWeight applies to any next-hop whose area has no explicit
// override in perAreaWeight.
type WeightAction struct {
	DefaultWeight uint32
	PerAreaWeight map[state.Area]uint32
}

func (a WeightAction) weightFor(area state.Area) uint32 {
	if w, ok := a.PerAreaWeight[area]; ok {
		return w
	}
	return a.DefaultWeight
}

// Statement is one matcher/action pair, applied in list order.
type Statement struct {
	Matcher []netip.Prefix
	Action  WeightAction
}

func (s Statement) matches(p netip.Prefix) bool {
	for _, m := range s.Matcher {
		if m == p {
			return true
		}
	}
	return false
}

// Policy is the single active RibPolicy: a TTL and an ordered statement
// list.
type Policy struct {
	Statements []Statement
	expiry     time.Time
}

// Accept validates a candidate policy's TTL against `now` and its
// statements, returning the installable Policy with its absolute expiry
// recorded.
func Accept(statements []Statement, ttlRemaining time.Duration, now time.Time) (*Policy, error) {
	if ttlRemaining <= 0 {
		return nil, &PolicyError{Kind: KindStale, Msg: "ttlRemaining is non-positive"}
	}
	for i, stmt := range statements {
		if len(stmt.Matcher) == 0 {
			return nil, &PolicyError{Kind: KindInvalid, Msg: fmt.Sprintf("statement %d has an empty matcher", i)}
		}
	}
	return &Policy{Statements: statements, expiry: now.Add(ttlRemaining)}, nil
}

// Expired reports whether the policy's TTL has elapsed as of `now`.
func (p *Policy) Expired(now time.Time) bool {
	if p == nil {
		return true
	}
	return !now.Before(p.expiry)
}

// Expiry returns the policy's absolute expiry time.
func (p *Policy) Expiry() time.Time {
	return p.expiry
}

// Apply rewrites every matching unicast entry's next-hop weights in
// statement order; next-hops reweighted to 0 are removed, and an entry left
// with no next-hops at all is dropped from the result entirely.
func Apply(policy *Policy, routes map[netip.Prefix]*state.UnicastRoute) map[netip.Prefix]*state.UnicastRoute {
	if policy == nil {
		return routes
	}
	out := make(map[netip.Prefix]*state.UnicastRoute, len(routes))
	for prefix, route := range routes {
		rewritten := applyToRoute(policy, prefix, route)
		if rewritten != nil {
			out[prefix] = rewritten
		}
	}
	return out
}

func applyToRoute(policy *Policy, prefix netip.Prefix, route *state.UnicastRoute) *state.UnicastRoute {
	nhs := route.Nexthops.Slice()
	matched := false
	for _, stmt := range policy.Statements {
		if !stmt.matches(prefix) {
			continue
		}
		matched = true
		for i := range nhs {
			nhs[i].Weight = stmt.Action.weightFor(nhs[i].Area)
		}
	}
	if !matched {
		return route
	}

	newSet := state.NewNextHopSet()
	for _, nh := range nhs {
		if nh.Weight == 0 {
			continue
		}
		newSet.Add(nh)
	}
	if newSet.Len() == 0 {
		return nil
	}

	out := *route
	out.Nexthops = newSet
	return &out
}
