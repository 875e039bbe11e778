// Package policy holds the authorization rules for every entity and action. Every
// predicate is a pure function of the principal and a snapshot loaded by the caller;
// nothing here performs I/O or reads global state.
package policy

import "github.com/noah-isme/classroom-gate-api/internal/models"

// Action is the operation being authorized.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	// ActionGrade is the grading form of a submission update.
	ActionGrade Action = "grade"
)

// Decision is the outcome of a policy check.
type Decision bool

const (
	Deny  Decision = false
	Allow Decision = true
)

func (d Decision) String() string {
	if d {
		return "allow"
	}
	return "deny"
}

func decide(ok bool) Decision { return Decision(ok) }

// Snapshot is the minimal entity state a rule needs. The set of implementations is closed.
type Snapshot interface {
	decide(p models.Principal, action Action) Decision
}

// Evaluate routes to the predicate for the snapshot's entity. Unknown roles and actions deny.
func Evaluate(p models.Principal, action Action, snapshot Snapshot) Decision {
	if snapshot == nil || p.ID == "" || !p.Role.Valid() {
		return Deny
	}
	return snapshot.decide(p, action)
}
