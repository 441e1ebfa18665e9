package statemachine

import (
	"errors"
	"malu-taxi-api/models"
)

// Transition defines a valid verification-status change and who can perform it
type Transition struct {
	From  models.VerificationStatus
	To    models.VerificationStatus
	Actor string // "scorer", "admin"
}

// validTransitions is the authoritative state machine definition. A fresh
// scoring attempt replaces whatever came before, so the scorer may move a
// driver out of any status; the admin override may always approve or
// reject.
var validTransitions = func() []Transition {
	statuses := []models.VerificationStatus{
		models.VerificationPending,
		models.VerificationProbableReal,
		models.VerificationProbableFake,
		models.VerificationManualReview,
	}
	var ts []Transition
	for _, from := range statuses {
		// Scorer verdicts, plus the pending fallback when the scorer
		// is unreachable or errors out.
		ts = append(ts,
			Transition{From: from, To: models.VerificationPending, Actor: "scorer"},
			Transition{From: from, To: models.VerificationProbableReal, Actor: "scorer"},
			Transition{From: from, To: models.VerificationProbableFake, Actor: "scorer"},
			Transition{From: from, To: models.VerificationManualReview, Actor: "scorer"},
		)
		// Admin can approve or reject regardless of current status.
		ts = append(ts,
			Transition{From: from, To: models.VerificationProbableReal, Actor: "admin"},
			Transition{From: from, To: models.VerificationProbableFake, Actor: "admin"},
		)
	}
	return ts
}()

// transitionKey is used to look up valid transitions quickly
type transitionKey struct {
	From  models.VerificationStatus
	To    models.VerificationStatus
	Actor string
}

// Build a lookup map for O(1) validation
var transitionMap = func() map[transitionKey]bool {
	m := make(map[transitionKey]bool)
	for _, t := range validTransitions {
		m[transitionKey{t.From, t.To, t.Actor}] = true
	}
	return m
}()

// ValidTransitionsFrom returns all valid next states from a given state
func ValidTransitionsFrom(status models.VerificationStatus) []models.VerificationStatus {
	var nexts []models.VerificationStatus
	seen := map[models.VerificationStatus]bool{}
	for _, t := range validTransitions {
		if t.From == status && !seen[t.To] {
			nexts = append(nexts, t.To)
			seen[t.To] = true
		}
	}
	return nexts
}

// CanTransition checks if a given actor can move from one state to another
func CanTransition(from, to models.VerificationStatus, actor string) error {
	key := transitionKey{From: from, To: to, Actor: actor}
	if transitionMap[key] {
		return nil
	}
	return errors.New(
		"invalid transition: " + string(from) + " → " + string(to) +
			" is not allowed for actor '" + actor + "'",
	)
}

// VerifiedAfter reports whether documents count as verified once a
// transition lands on the given status. Only probable_real verifies;
// every other landing status clears the flag except pending fallbacks,
// which leave it to the caller.
func VerifiedAfter(to models.VerificationStatus) bool {
	return to == models.VerificationProbableReal
}

// GetAllTransitions returns the full state machine for documentation
func GetAllTransitions() []Transition {
	return validTransitions
}
