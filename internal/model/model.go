// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Usage rules shared by the gate, the auth flow and the guest store.
const (
	GuestLimit      = 3     // successful rewrites a guest may perform
	GuestHistoryCap = 5     // most recent guest records kept
	MinTextLength   = 50    // provider minimum, in characters
	MaxTextLength   = 20000 // request ceiling, in characters
	SignupCredits   = 100   // balance seeded on registration
)

// Tokens collects issued access tokens.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // access token expiry (for diagnostics)
}

// User represents an account stored on the server.
type User struct {
	ID        uuid.UUID // PK
	Email     string    // unique
	PwdHash   []byte    // Argon2id(password, SaltAuth)
	SaltAuth  []byte    // per-user auth salt
	CreatedAt time.Time
}

// OwnerKind tells whose history a record belongs to.
type OwnerKind string

const (
	OwnerGuest      OwnerKind = "guest"
	OwnerRegistered OwnerKind = "registered"
)

// RewriteRecord is one completed humanization. Records are never mutated.
type RewriteRecord struct {
	ID            int64     // server-assigned; zero for guest records
	UserID        uuid.UUID // uuid.Nil for guest records
	OriginalText  string
	RewrittenText string
	CreatedAt     time.Time
	Owner         OwnerKind
}

// Identity is the caller of a request: either a registered user or a guest device.
type Identity struct {
	UserID  uuid.UUID
	GuestID string
}

// IsRegistered reports whether the identity carries an authenticated user.
func (i Identity) IsRegistered() bool { return i.UserID != uuid.Nil }

// IsAnonymous reports whether neither a user nor a guest handle is known.
func (i Identity) IsAnonymous() bool { return i.UserID == uuid.Nil && i.GuestID == "" }

// UsageState is the allowance snapshot for one identity.
type UsageState struct {
	Owner         OwnerKind
	GuestUsed     int64
	GuestLimit    int64
	CreditBalance int64
	Plan          Plan
}

// GuestUsage builds the state for a guest that performed used rewrites.
func GuestUsage(used int64) UsageState {
	return UsageState{Owner: OwnerGuest, GuestUsed: used, GuestLimit: GuestLimit, Plan: PlanFree}
}

// RegisteredUsage builds the state for a registered balance.
func RegisteredUsage(balance int64) UsageState {
	return UsageState{Owner: OwnerRegistered, CreditBalance: balance, Plan: PlanForBalance(balance)}
}

// JobStatus is the lifecycle of one provider job.
type JobStatus string

const (
	JobSubmitted  JobStatus = "submitted"
	JobProcessing JobStatus = "processing"
	JobComplete   JobStatus = "complete"
	JobFailed     JobStatus = "failed"
)

// PendingJob is the transient state of one submit+poll cycle. Never persisted.
type PendingJob struct {
	ID      string
	Attempt int
	Status  JobStatus
}
