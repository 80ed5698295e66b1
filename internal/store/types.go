// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import "time"

// --- Claim types ---

// ClaimStatus is stored and transmitted verbatim as one of the literals below.
type ClaimStatus string

const (
	StatusDraft            ClaimStatus = "DRAFT"
	StatusUnderAgentReview ClaimStatus = "UNDER_AGENT_REVIEW"
	StatusPendingApproval  ClaimStatus = "PENDING_APPROVAL"
	StatusNeedsMoreInfo    ClaimStatus = "NEEDS_MORE_INFO"
	StatusApproved         ClaimStatus = "APPROVED"
	StatusRejected         ClaimStatus = "REJECTED"
)

// Terminal reports whether no further transition can leave s.
func (s ClaimStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Valid reports whether s is one of the six known statuses.
func (s ClaimStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusUnderAgentReview, StatusPendingApproval,
		StatusNeedsMoreInfo, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// RiskLevel is empty until the claim has been assessed.
type RiskLevel string

const (
	RiskUnset  RiskLevel = ""
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

type ClaimType string

const (
	ClaimTypeHealth   ClaimType = "HEALTH"
	ClaimTypeAuto     ClaimType = "AUTO"
	ClaimTypeProperty ClaimType = "PROPERTY"
)

func (t ClaimType) Valid() bool {
	return t == ClaimTypeHealth || t == ClaimTypeAuto || t == ClaimTypeProperty
}

// InterruptReason explains why a claim is waiting on a human.
type InterruptReason struct {
	RiskLevel RiskLevel `json:"risk_level"`
	Summary   string    `json:"summary"`
}

// ClaimMetadata holds at most one outstanding interrupt. InterruptID is
// non-empty exactly while the claim is PENDING_APPROVAL.
type ClaimMetadata struct {
	InterruptID     string            `json:"interrupt_id,omitempty"`
	InterruptReason *InterruptReason  `json:"interrupt_reason,omitempty"`
	Attributes      map[string]string `json:"attributes,omitempty"`
}

// Claim is the unit of work tracked through the lifecycle.
type Claim struct {
	ID                 string
	OwnerID            string
	PolicyNumber       string
	Type               ClaimType
	Amount             float64
	Description        string
	IncidentDate       *time.Time
	DocumentsUploaded  bool
	Status             ClaimStatus
	RiskLevel          RiskLevel
	FraudRiskScore     float64
	Metadata           ClaimMetadata
	AssignedApproverID string
	Version            int64
	SubmittedAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ClaimFilter narrows claim listings. Zero values match everything.
type ClaimFilter struct {
	OwnerID string
	Status  ClaimStatus
	ListOpts
}

// --- Checkpoint types ---

// DecisionAction is the human outcome that resolves a checkpoint.
type DecisionAction string

const (
	ActionApprove     DecisionAction = "APPROVE"
	ActionReject      DecisionAction = "REJECT"
	ActionRequestInfo DecisionAction = "REQUEST_INFO"
)

func (a DecisionAction) Valid() bool {
	return a == ActionApprove || a == ActionReject || a == ActionRequestInfo
}

// Checkpoint is a durable suspension point of a review session.
// ResolvedAt moves from nil to set exactly once.
type Checkpoint struct {
	ID           string
	ClaimID      string
	ToolName     string
	Continuation []byte
	CreatedAt    time.Time
	ExpiresAt    *time.Time
	ResolvedAt   *time.Time
	Outcome      DecisionAction
}

// Resolved reports whether the checkpoint has been decided.
func (c *Checkpoint) Resolved() bool {
	return c.ResolvedAt != nil
}

// Decision is immutable once written.
type Decision struct {
	ID           string
	ClaimID      string
	CheckpointID string
	ApproverID   string
	Action       DecisionAction
	Reason       string
	CreatedAt    time.Time
}

// --- Conversation types ---

// SenderKind identifies who wrote a message.
type SenderKind string

const (
	SenderUser     SenderKind = "USER"
	SenderAgent    SenderKind = "AGENT"
	SenderApprover SenderKind = "APPROVER"
)

// Message is append-only. An empty ClaimID places it in the general
// conversation.
type Message struct {
	ID      string
	Seq     int64
	ClaimID string
	// ParticipantID is the user whose general conversation holds the
	// message. Empty for claim messages.
	ParticipantID string
	SenderKind    SenderKind
	SenderID      string
	Content       string
	Payload       map[string]any
	CreatedAt     time.Time
}

// SessionStatus represents the lifecycle state of a per-claim review session.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusSuspended SessionStatus = "suspended"
	SessionStatusClosed    SessionStatus = "closed"
)

// Session is the persisted context of the review session for one claim.
// Position is the sequence of the last conversation message it has seen.
type Session struct {
	ClaimID     string
	Position    int64
	PendingTool string
	Status      SessionStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// --- Audit types ---

// AuditStatus is the outcome of a single tool invocation.
type AuditStatus string

const (
	AuditStatusOK        AuditStatus = "ok"
	AuditStatusSuspended AuditStatus = "suspended"
	AuditStatusResumed   AuditStatus = "resumed"
	AuditStatusFailed    AuditStatus = "failed"
)

// AgentAuditEntry records one tool invocation.
type AgentAuditEntry struct {
	ID        string
	Seq       int64
	ClaimID   string
	ToolName  string
	Input     map[string]any
	Output    map[string]any
	Status    AuditStatus
	Error     string
	Attempt   int
	CreatedAt time.Time
}

// Transition records one committed status change.
type Transition struct {
	ID        string
	Seq       int64
	ClaimID   string
	From      ClaimStatus
	To        ClaimStatus
	Trigger   string
	ActorID   string
	Reason    string
	CreatedAt time.Time
}

// --- Identity types ---

// Role grants access to claim operations.
type Role string

const (
	RoleUser     Role = "USER"
	RoleApprover Role = "APPROVER"
	RoleAdmin    Role = "ADMIN"
	RoleAgent    Role = "AGENT"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleApprover, RoleAdmin, RoleAgent:
		return true
	}
	return false
}

// User is a known principal.
type User struct {
	ID        string
	Name      string
	Role      Role
	CreatedAt time.Time
}

// ListOpts provides pagination parameters for list operations.
type ListOpts struct {
	Limit  int
	Offset int
}
