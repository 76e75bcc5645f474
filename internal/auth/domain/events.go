package domain

// Event is a business-significant occurrence emitted by an aggregate and
// dispatched after the surrounding use case completes.
type Event interface {
	EventName() string
}

// Recorder collects events emitted by a single aggregate instance. Each
// aggregate owns its buffer exclusively; buffers are never shared across
// instances or at the type level.
type Recorder struct {
	events []Event
}

// Record appends an event to the aggregate's buffer.
func (r *Recorder) Record(e Event) {
	r.events = append(r.events, e)
}

// Release hands the buffered events to the caller and clears the buffer.
func (r *Recorder) Release() []Event {
	out := r.events
	r.events = nil
	return out
}

type UserRegistered struct {
	UserID string
	Email  string
}

func (UserRegistered) EventName() string { return "user.registered" }

type UserActivated struct{ UserID string }

func (UserActivated) EventName() string { return "user.activated" }

type UserDeactivated struct{ UserID string }

func (UserDeactivated) EventName() string { return "user.deactivated" }

type UserVerified struct{ UserID string }

func (UserVerified) EventName() string { return "user.verified" }

type UserUnverified struct{ UserID string }

func (UserUnverified) EventName() string { return "user.unverified" }

type UserEmailChanged struct {
	UserID   string
	OldEmail string
	NewEmail string
}

func (UserEmailChanged) EventName() string { return "user.email_changed" }

type PasswordChanged struct{ UserID string }

func (PasswordChanged) EventName() string { return "user.password_changed" }

type MFAEnabled struct{ UserID string }

func (MFAEnabled) EventName() string { return "user.mfa_enabled" }

type MFADisabled struct{ UserID string }

func (MFADisabled) EventName() string { return "user.mfa_disabled" }

type RoleAssignmentAdded struct {
	UserID       string
	RoleID       string
	AssignmentID string
}

func (RoleAssignmentAdded) EventName() string { return "user.role_assigned" }

type RoleAssignmentRemoved struct {
	UserID       string
	AssignmentID string
}

func (RoleAssignmentRemoved) EventName() string { return "user.role_unassigned" }

type SessionCreated struct {
	SessionID string
	UserID    string
	ClientID  string
	Method    AuthenticationMethod
}

func (SessionCreated) EventName() string { return "session.created" }

type SessionRevoked struct {
	SessionID string
	UserID    string
}

func (SessionRevoked) EventName() string { return "session.revoked" }
