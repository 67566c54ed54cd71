package routing

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

var (
	ErrEmptyPool        = errors.New("routing: agent pool is empty")
	ErrNoAgentAvailable = errors.New("routing: no agent line available")
)

// Selector picks the agent for each new bridge.
//
// Priority:
//  1) Active operator pin
//  2) Weighted random selection among agents with a free line
//
// Return a selection only. No side effects beyond the line slot: every
// successful Pick holds one slot on the guard, released with Release
// when the agent leg ends.

type Selector struct {
	Agents []Agent
	Guard  LineGuard
	Pins   *PinEngine

	RNG *rand.Rand
}

func NewSelector(agents []Agent, guard LineGuard, rng *rand.Rand) *Selector {
	if guard == nil {
		guard = NoopGuard{}
	}
	return &Selector{Agents: agents, Guard: guard, RNG: rng}
}

func (s *Selector) Pick(ctx context.Context) (Selection, error) {
	// 1) Operator pin
	if s.Pins != nil {
		agent, ok, err := s.Pins.Decide(ctx)
		if err != nil {
			return Selection{}, err
		}
		if ok {
			acquired, err := s.Guard.Acquire(ctx, agent.URI)
			if err != nil {
				return Selection{}, err
			}
			if acquired {
				return Selection{Agent: agent, Reason: ReasonPinned}, nil
			}
			// Pinned agent is at capacity. Fall through to the pool so the
			// customer still reaches someone.
		}
	}

	// 2) Weighted selection. Agents at capacity drop out and the pick
	// repeats over the remainder.
	candidates := make([]Agent, len(s.Agents))
	copy(candidates, s.Agents)

	for len(candidates) > 0 {
		i, ok := s.pickWeighted(candidates)
		if !ok {
			break
		}

		agent := candidates[i]
		acquired, err := s.Guard.Acquire(ctx, agent.URI)
		if err != nil {
			return Selection{}, err
		}
		if acquired {
			return Selection{Agent: agent, Reason: ReasonWeighted}, nil
		}
		candidates = append(candidates[:i], candidates[i+1:]...)
	}
	return Selection{}, ErrNoAgentAvailable
}

// Release frees the line slot held by a selection.
func (s *Selector) Release(ctx context.Context, agent Agent) error {
	return s.Guard.Release(ctx, agent.URI)
}

func (s *Selector) pickWeighted(candidates []Agent) (int, bool) {
	var total int
	for _, a := range candidates {
		if a.Weight <= 0 {
			continue
		}
		total += a.Weight
	}
	if total <= 0 {
		return 0, false
	}

	rng := s.RNG
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	r := rng.Intn(total) // 0..total-1

	var acc int
	for i, a := range candidates {
		if a.Weight <= 0 {
			continue
		}
		acc += a.Weight
		if r < acc {
			return i, true
		}
	}
	return 0, false
}
