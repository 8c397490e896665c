// Package incidents implements the cashier incident escalation workflow:
// reported, notified, confirmed, paid.
package incidents

import (
	"time"

	"github.com/agrohub/agrohub/internal/shared"
)

// Status is the incident workflow state.
type Status string

const (
	StatusReported  Status = "reported"
	StatusNotified  Status = "notified"
	StatusConfirmed Status = "confirmed"
	StatusPaid      Status = "paid"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusReported, StatusNotified, StatusConfirmed, StatusPaid:
		return true
	}
	return false
}

// Action is a transition request.
type Action string

const (
	ActionNotify  Action = "notify"
	ActionConfirm Action = "confirm"
	ActionPay     Action = "pay"
)

// DefaultAmount is the bonus recorded when a report gives none.
const DefaultAmount = 50.00

type transition struct {
	from  Status
	to    Status
	roles []shared.Role
}

var transitions = map[Action]transition{
	ActionNotify:  {from: StatusReported, to: StatusNotified, roles: []shared.Role{shared.RoleManager, shared.RoleAdmin}},
	ActionConfirm: {from: StatusNotified, to: StatusConfirmed, roles: []shared.Role{shared.RoleMonitor, shared.RoleManager, shared.RoleAdmin}},
	ActionPay:     {from: StatusConfirmed, to: StatusPaid, roles: []shared.Role{shared.RoleHR, shared.RoleAdmin}},
}

var order = []Status{StatusReported, StatusNotified, StatusConfirmed, StatusPaid}

func rank(s Status) int {
	for i, o := range order {
		if o == s {
			return i
		}
	}
	return -1
}

// Before lists the statuses a move to target may start from. Strict allows
// only the immediate predecessor.
func Before(target Status, strict bool) []Status {
	r := rank(target)
	if r <= 0 {
		return nil
	}
	if strict {
		return []Status{order[r-1]}
	}
	return append([]Status(nil), order[:r]...)
}

// Next validates action for a caller with role against the current status
// and returns the target status.
//
// Without strict, earlier states may be skipped, so hr can pay a reported
// incident directly. Strict enforces reported, notified, confirmed, paid in
// order. Either way the workflow only moves forward: paid is terminal and a
// move that does not advance is rejected with ErrConflict. An empty current
// checks role and action only.
func Next(current Status, action Action, role shared.Role, strict bool) (Status, error) {
	tr, ok := transitions[action]
	if !ok {
		return "", shared.Invalid("action", "unknown action "+string(action))
	}
	if !role.In(tr.roles...) {
		return "", shared.NewError(shared.ErrPermissionDenied, "role %s may not %s incidents", role, action)
	}
	if current == "" {
		return tr.to, nil
	}
	if current == StatusPaid {
		return "", shared.NewError(shared.ErrConflict, "incident is already paid")
	}
	if strict && current != tr.from {
		return "", shared.NewError(shared.ErrConflict, "cannot %s an incident in status %s", action, current)
	}
	if rank(current) >= rank(tr.to) {
		return "", shared.NewError(shared.ErrConflict, "cannot %s an incident in status %s", action, current)
	}
	return tr.to, nil
}

// Incident is a cashier receipt discrepancy report.
type Incident struct {
	ID           int64      `json:"id"`
	ReporterID   int64      `json:"reporter_id"`
	ReporterName string     `json:"reporter_name,omitempty"`
	Amount       float64    `json:"amount"`
	Reason       string     `json:"reason"`
	Evidence     []byte     `json:"evidence,omitempty"`
	Status       Status     `json:"status"`
	NotifiedBy   *int64     `json:"notified_by"`
	NotifiedAt   *time.Time `json:"notified_at"`
	ConfirmedBy  *int64     `json:"confirmed_by"`
	ConfirmedAt  *time.Time `json:"confirmed_at"`
	PaidBy       *int64     `json:"paid_by"`
	PaidAt       *time.Time `json:"paid_at"`
	PaidAmount   *float64   `json:"paid_amount"`
	CreatedAt    time.Time  `json:"created_at"`
}

// CreateInput is the report payload.
type CreateInput struct {
	Amount   *float64 `json:"amount" validate:"omitempty,gt=0"`
	Reason   string   `json:"reason" validate:"required,max=2000"`
	Evidence []byte   `json:"evidence" validate:"max=5242880"`
}

// TransitionInput is the transition payload.
type TransitionInput struct {
	IncidentID int64    `json:"incident_id"`
	Action     Action   `json:"action"`
	PaidAmount *float64 `json:"paid_amount"`
}

// ListFilter narrows a list request. ReporterID zero means every reporter.
type ListFilter struct {
	ReporterID int64
	Status     Status
	Limit      int
	Offset     int
}

// Change is a status update stamped with the acting user.
type Change struct {
	ID         int64
	From       Status
	To         Status
	ActorID    int64
	At         time.Time
	PaidAmount *float64
	// Strict requires the stored status to be the immediate predecessor of
	// To. Otherwise any earlier status matches.
	Strict bool
}
