package wallet

import "fmt"

// State is a step of the initialization state machine. Transitions only
// move forward; StateFailed is reachable from every non-terminal state.
type State int

const (
	StateStart State = iota
	StateEntropyFetched
	StateEntropyMixed
	// StateMnemonicDerived is only visited by development deployments.
	StateMnemonicDerived
	StateKeyDerived
	StateSeedSealed
	StateKeySealed
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateStart:           "START",
	StateEntropyFetched:  "ENTROPY_FETCHED",
	StateEntropyMixed:    "ENTROPY_MIXED",
	StateMnemonicDerived: "MNEMONIC_DERIVED",
	StateKeyDerived:      "KEY_DERIVED",
	StateSeedSealed:      "SEED_SEALED",
	StateKeySealed:       "KEY_SEALED",
	StateDone:            "DONE",
	StateFailed:          "FAILED",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no transition can leave s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
