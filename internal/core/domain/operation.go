package domain

import "time"

// OperationKind classifies an entry in the operations audit trail.
type OperationKind string

const (
	OpLogin         OperationKind = "login"
	OpLogout        OperationKind = "logout"
	OpTwoFactorPass OperationKind = "twofactor_pass"
	OpTwoFactorFail OperationKind = "twofactor_fail"
	OpCreditAdjust  OperationKind = "credit_adjust"
)

// Operation is a single audit-trail entry. Amount is only meaningful for
// credit adjustments.
type Operation struct {
	ID         string        `json:"id"`
	IdentityID string        `json:"identity_id"`
	Kind       OperationKind `json:"kind"`
	Amount     int64         `json:"amount,omitempty"`
	Actor      string        `json:"actor,omitempty"`
	Note       string        `json:"note,omitempty"`
	At         time.Time     `json:"at"`
}
