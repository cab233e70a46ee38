package orchestration

import (
	"strings"
)

// State is the explicit tag of the plan/queue state machine. Modelling
// the machine as one enumerable tag instead of a combination of boolean
// flags removes a whole class of inconsistent-flag bugs in the
// queue/approval interplay.
type State string

const (
	// StateIdle: no plan, empty queue. Initial and terminal.
	StateIdle State = "IDLE"
	// StatePlanned: a plan exists and the queue is non-empty, not yet
	// waiting on the user.
	StatePlanned State = "PLANNED"
	// StateAwaitingApproval: a step completed with work remaining; the
	// next step will not fire without an explicit yes.
	StateAwaitingApproval State = "AWAITING_APPROVAL"
	// StateAdvancing: transient; approval granted, the next automatic
	// request is being issued.
	StateAdvancing State = "ADVANCING"
)

// validTransitions enumerates every legal state change.
var validTransitions = map[State][]State{
	StateIdle:             {StatePlanned},
	StatePlanned:          {StateAwaitingApproval, StateIdle, StatePlanned},
	StateAwaitingApproval: {StateAdvancing, StateIdle, StatePlanned},
	StateAdvancing:        {StateAwaitingApproval, StateIdle, StatePlanned},
}

// canTransition reports whether moving from one state to another is legal
func canTransition(from, to State) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// affirmativeTokens is the explicit, testable set of replies that count
// as approval while awaiting one. Kept as an enumeration so localization
// can extend it without touching control flow. Anything else declines.
var affirmativeTokens = []string{
	"yes",
	"y",
	"yep",
	"yeah",
	"ok",
	"okay",
	"proceed",
	"continue",
	"go ahead",
	"go",
	"approve",
	"approved",
	"sure",
	"do it",
}

// isAffirmative reports whether a user reply approves the pending step.
// Matching is case-insensitive and ignores surrounding whitespace and
// trailing punctuation.
func isAffirmative(input string) bool {
	normalized := strings.ToLower(strings.TrimSpace(input))
	normalized = strings.TrimRight(normalized, ".!?,")
	normalized = strings.TrimSpace(normalized)

	for _, token := range affirmativeTokens {
		if normalized == token {
			return true
		}
	}
	return false
}
