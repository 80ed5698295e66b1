// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package claims is the role-checked surface over the claim lifecycle:
// drafting, submission into automated review, human decisions and the
// read-only projections.
package claims

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sigil-dev/claimsgate/internal/agent"
	"github.com/sigil-dev/claimsgate/internal/audit"
	"github.com/sigil-dev/claimsgate/internal/identity"
	"github.com/sigil-dev/claimsgate/internal/lifecycle"
	"github.com/sigil-dev/claimsgate/internal/scanner"
	"github.com/sigil-dev/claimsgate/internal/store"
	"github.com/sigil-dev/claimsgate/internal/summary"
	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

// Draft carries the claimant-editable fields.
type Draft struct {
	PolicyNumber      string
	Type              store.ClaimType
	Amount            float64
	Description       string
	IncidentDate      *time.Time
	DocumentsUploaded bool
}

// SubmitResult is the claim after submission ran as far as it could.
type SubmitResult struct {
	Claim   *store.Claim
	Outcome *agent.Outcome
}

// Exchange is a posted message and the agent's reply to it. Agent is nil
// for approver notes on a claim.
type Exchange struct {
	User  *store.Message
	Agent *store.Message
}

// ReplyErrorText is the agent reply stored when no reply could be written.
const ReplyErrorText = "I encountered an error while processing your request. Please try again later."

// Config holds dependencies for New.
type Config struct {
	Runtime *agent.Runtime
	// Scanner screens descriptions and messages. Nil disables screening.
	Scanner *scanner.Scanner
	// InputMode is what happens to text with matches; default flag.
	InputMode scanner.Mode
	// Replier answers conversation messages; default summary.Template.
	Replier summary.Replier
	Logger  *slog.Logger
	Clock   func() time.Time
}

type Service struct {
	store     store.Store
	rt        *agent.Runtime
	audit     *audit.Log
	scanner   *scanner.Scanner
	inputMode scanner.Mode
	replier   summary.Replier
	logger    *slog.Logger
	clock     func() time.Time
}

func New(cfg Config) (*Service, error) {
	if cfg.Runtime == nil {
		return nil, cgerr.New(cgerr.CodeServerConfigInvalid, "claims service needs an agent runtime")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.InputMode == "" {
		cfg.InputMode = scanner.ModeFlag
	}
	if cfg.Replier == nil {
		cfg.Replier = summary.Template{}
	}
	if !cfg.InputMode.Valid() {
		return nil, cgerr.Errorf(cgerr.CodeServerConfigInvalid, "unknown scanner input mode %q", cfg.InputMode)
	}
	return &Service{
		store:     cfg.Runtime.Store,
		rt:        cfg.Runtime,
		audit:     audit.New(cfg.Runtime.Store),
		scanner:   cfg.Scanner,
		inputMode: cfg.InputMode,
		replier:   cfg.Replier,
		logger:    cfg.Logger,
		clock:     cfg.Clock,
	}, nil
}

// Create stores a new DRAFT claim owned by p.
func (s *Service) Create(ctx context.Context, p *identity.Principal, d Draft) (*store.Claim, error) {
	if err := identity.RequireRole(p, store.RoleUser); err != nil {
		return nil, err
	}
	if err := checkDraft(&d); err != nil {
		return nil, err
	}
	desc, err := s.screen(ctx, "description", "", d.Description)
	if err != nil {
		return nil, err
	}
	d.Description = desc

	c := &store.Claim{
		ID:      uuid.NewString(),
		OwnerID: p.ID,
		Status:  store.StatusDraft,
	}
	applyDraft(c, d)
	c.CreatedAt = s.clock()
	if err := s.store.Claims().Create(ctx, c); err != nil {
		return nil, store.Coded(err, "", cgerr.CodeStoreConflict, "creating claim", cgerr.FieldClaimID(c.ID))
	}

	s.logger.InfoContext(ctx, "claim created", slog.String("claim_id", c.ID), slog.String("owner_id", p.ID))
	return c, nil
}

// Update replaces the editable fields of a DRAFT or NEEDS_MORE_INFO claim.
// A non-zero version must match the stored one.
func (s *Service) Update(ctx context.Context, p *identity.Principal, id string, d Draft, version int64) (*store.Claim, error) {
	if err := checkDraft(&d); err != nil {
		return nil, err
	}
	unlock := s.rt.Locks.Lock(id)
	defer unlock()

	c, err := s.owned(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if c.Status != store.StatusDraft && c.Status != store.StatusNeedsMoreInfo {
		return nil, cgerr.New(cgerr.CodeClaimTransitionIllegal, "claim can only be edited in DRAFT or NEEDS_MORE_INFO",
			cgerr.FieldClaimID(id), cgerr.FieldStatus(string(c.Status)))
	}
	if version != 0 && version != c.Version {
		return nil, cgerr.New(cgerr.CodeClaimUpdateConflict, "claim was modified concurrently",
			cgerr.FieldClaimID(id), cgerr.Field("expected_version", version), cgerr.Field("version", c.Version))
	}
	if d.Description, err = s.screen(ctx, "description", id, d.Description); err != nil {
		return nil, err
	}

	applyDraft(c, d)
	if err := s.store.Claims().Update(ctx, c); err != nil {
		return nil, claimErr(err, id)
	}
	return c, nil
}

// Submit sends a claim into automated review and runs it synchronously up
// to APPROVED or a checkpoint. From NEEDS_MORE_INFO it resubmits, appending
// info to the conversation first when given.
func (s *Service) Submit(ctx context.Context, p *identity.Principal, id, info string) (*SubmitResult, error) {
	if err := identity.RequireRole(p, store.RoleUser); err != nil {
		return nil, err
	}

	unlock := s.rt.Locks.Lock(id)
	defer unlock()

	c, err := s.owned(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if info, err = s.screen(ctx, "info", id, info); err != nil {
		return nil, err
	}

	switch c.Status {
	case store.StatusDraft:
		if err := checkSubmittable(c); err != nil {
			return nil, err
		}
		if err := s.submit(ctx, p, c, info); err != nil {
			return nil, err
		}
	case store.StatusNeedsMoreInfo:
		if err := s.note(ctx, p, id, info); err != nil {
			return nil, err
		}
	case store.StatusUnderAgentReview:
		// A previous review run failed before reaching a decision point.
		if _, err := s.store.Checkpoints().Open(ctx, id); !errors.Is(err, store.ErrNotFound) {
			if err != nil {
				return nil, store.Coded(err, "", "", "looking up open checkpoint", cgerr.FieldClaimID(id))
			}
			return nil, cgerr.New(cgerr.CodeClaimTransitionIllegal, "claim is already awaiting approval",
				cgerr.FieldClaimID(id))
		}
	default:
		return nil, cgerr.New(cgerr.CodeClaimTransitionIllegal, "cannot submit a claim in status "+string(c.Status),
			cgerr.FieldClaimID(id), cgerr.FieldStatus(string(c.Status)),
			cgerr.Field("trigger", string(lifecycle.TriggerSubmit)))
	}

	out, err := s.rt.Reviewer.Review(ctx, id)
	if err != nil {
		s.logger.WarnContext(ctx, "automated review failed",
			slog.String("claim_id", id),
			slog.Any("error", err),
		)
		return nil, err
	}

	c, err = s.store.Claims().Get(ctx, id)
	if err != nil {
		return nil, claimErr(err, id)
	}
	return &SubmitResult{Claim: c, Outcome: out}, nil
}

func (s *Service) submit(ctx context.Context, p *identity.Principal, c *store.Claim, info string) error {
	return s.store.WithTx(ctx, func(tx store.Tx) error {
		now := s.clock()
		tr, err := lifecycle.Apply(c, lifecycle.Event{Trigger: lifecycle.TriggerSubmit, Actor: p.Actor()}, now)
		if err != nil {
			return err
		}
		c.SubmittedAt = &now
		if err := tx.Claims().Update(ctx, c); err != nil {
			return claimErr(err, c.ID)
		}
		if err := tx.Transitions().Append(ctx, tr); err != nil {
			return store.Coded(err, "", "", "recording transition", cgerr.FieldClaimID(c.ID))
		}
		if strings.TrimSpace(info) == "" {
			return nil
		}
		return tx.Messages().Append(ctx, s.message(p, c.ID, info))
	})
}

func (s *Service) note(ctx context.Context, p *identity.Principal, claimID, info string) error {
	if strings.TrimSpace(info) == "" {
		return nil
	}
	return s.rt.Conversations.Append(ctx, s.message(p, claimID, info))
}

func (s *Service) message(p *identity.Principal, claimID, content string) *store.Message {
	kind := store.SenderUser
	if p.Decider() {
		kind = store.SenderApprover
	}
	msg := &store.Message{
		ID:         uuid.NewString(),
		ClaimID:    claimID,
		SenderKind: kind,
		SenderID:   p.ID,
		Content:    strings.TrimSpace(content),
		CreatedAt:  s.clock(),
	}
	if claimID == "" {
		msg.ParticipantID = p.ID
	}
	return msg
}

// Approve resolves the claim's checkpoint with APPROVE.
func (s *Service) Approve(ctx context.Context, p *identity.Principal, claimID string) (*agent.ResolveResult, error) {
	return s.decide(ctx, p, claimID, store.ActionApprove, "")
}

// Reject resolves the claim's checkpoint with REJECT. reason is required.
func (s *Service) Reject(ctx context.Context, p *identity.Principal, claimID, reason string) (*agent.ResolveResult, error) {
	return s.decide(ctx, p, claimID, store.ActionReject, reason)
}

// RequestInfo resolves the claim's checkpoint asking the claimant for more
// information. question is required.
func (s *Service) RequestInfo(ctx context.Context, p *identity.Principal, claimID, question string) (*agent.ResolveResult, error) {
	return s.decide(ctx, p, claimID, store.ActionRequestInfo, question)
}

func (s *Service) decide(ctx context.Context, p *identity.Principal, claimID string, action store.DecisionAction, reason string) (*agent.ResolveResult, error) {
	if err := identity.RequireRole(p, store.RoleApprover, store.RoleAdmin); err != nil {
		return nil, err
	}
	if action != store.ActionApprove && strings.TrimSpace(reason) == "" {
		return nil, cgerr.New(cgerr.CodeClaimValidateInvalid, "a reason is required",
			cgerr.FieldClaimID(claimID), cgerr.Field("action", string(action)))
	}

	c, err := s.store.Claims().Get(ctx, claimID)
	if err != nil {
		return nil, claimErr(err, claimID)
	}

	// The latest checkpoint, resolved or not: a second decision on an
	// already decided claim reports AlreadyResolved rather than a bad status.
	cp, err := s.store.Checkpoints().Latest(ctx, claimID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, cgerr.New(cgerr.CodeClaimTransitionIllegal, "claim has no approval checkpoint",
			cgerr.FieldClaimID(claimID), cgerr.FieldStatus(string(c.Status)))
	}
	if err != nil {
		return nil, store.Coded(err, "", "", "looking up checkpoint", cgerr.FieldClaimID(claimID))
	}

	res, err := s.rt.Interrupts.Resolve(ctx, cp.ID, agent.Resolution{
		Action: action,
		Reason: reason,
		Actor:  p.Actor(),
	})
	if err != nil {
		return nil, cgerr.With(err, cgerr.FieldClaimID(claimID), cgerr.FieldStatus(string(c.Status)))
	}
	return res, nil
}

// Get returns a claim. Claimants see only their own.
func (s *Service) Get(ctx context.Context, p *identity.Principal, id string) (*store.Claim, error) {
	return s.visible(ctx, p, id)
}

// List returns claims visible to p, newest first.
func (s *Service) List(ctx context.Context, p *identity.Principal, f store.ClaimFilter) ([]*store.Claim, error) {
	if err := identity.RequireRole(p, store.RoleUser, store.RoleApprover, store.RoleAdmin); err != nil {
		return nil, err
	}
	if p.Role == store.RoleUser {
		f.OwnerID = p.ID
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, cgerr.New(cgerr.CodeClaimValidateInvalid, "unknown status "+string(f.Status))
	}
	list, err := s.store.Claims().List(ctx, f)
	if err != nil {
		return nil, store.Coded(err, "", "", "listing claims")
	}
	return list, nil
}

// Messages returns a claim's conversation or, when claimID is empty, p's
// own general conversation.
func (s *Service) Messages(ctx context.Context, p *identity.Principal, claimID string) ([]*store.Message, error) {
	if claimID == "" {
		if err := identity.RequireRole(p, store.RoleUser, store.RoleApprover, store.RoleAdmin); err != nil {
			return nil, err
		}
		return s.rt.Conversations.General(ctx, p.ID)
	}
	if _, err := s.visible(ctx, p, claimID); err != nil {
		return nil, err
	}
	return s.rt.Conversations.History(ctx, claimID)
}

// PostMessage appends a message from p to a claim's conversation or, with
// an empty claimID, to p's general conversation, and stores the agent's
// reply. Approver notes on a claim get no reply.
func (s *Service) PostMessage(ctx context.Context, p *identity.Principal, claimID, content string) (*Exchange, error) {
	if strings.TrimSpace(content) == "" {
		return nil, cgerr.New(cgerr.CodeClaimValidateInvalid, "message content is empty")
	}
	var c *store.Claim
	if claimID == "" {
		if err := identity.RequireRole(p, store.RoleUser, store.RoleApprover, store.RoleAdmin); err != nil {
			return nil, err
		}
	} else {
		var err error
		if c, err = s.visible(ctx, p, claimID); err != nil {
			return nil, err
		}
	}

	content, err := s.screen(ctx, "content", claimID, content)
	if err != nil {
		return nil, err
	}
	history, err := s.Messages(ctx, p, claimID)
	if err != nil {
		return nil, err
	}

	msg := s.message(p, claimID, content)
	if err := s.rt.Conversations.Append(ctx, msg); err != nil {
		return nil, err
	}
	ex := &Exchange{User: msg}
	if c != nil && msg.SenderKind != store.SenderUser {
		return ex, nil
	}

	reply := &store.Message{
		ID:            uuid.NewString(),
		ClaimID:       claimID,
		ParticipantID: msg.ParticipantID,
		SenderKind:    store.SenderAgent,
		SenderID:      lifecycle.AgentActor.ID,
		Content:       s.reply(ctx, p, c, history, msg.Content),
		Payload:       map[string]any{"type": "reply", "in_reply_to": msg.ID},
		CreatedAt:     s.clock(),
	}
	if err := s.rt.Conversations.Append(ctx, reply); err != nil {
		return nil, err
	}
	ex.Agent = reply
	return ex, nil
}

func (s *Service) reply(ctx context.Context, p *identity.Principal, c *store.Claim, history []*store.Message, content string) string {
	if len(history) > summary.MaxReplyHistory {
		history = history[len(history)-summary.MaxReplyHistory:]
	}
	in := summary.ReplyInput{History: history, Message: content}

	var err error
	switch {
	case c != nil:
		in.Claim = c
		in.Missing = agent.MissingFields(c)
	case p.Decider():
		in.Decider = true
		in.Claims, err = s.store.Claims().List(ctx, store.ClaimFilter{
			Status:   store.StatusPendingApproval,
			ListOpts: store.ListOpts{Limit: summary.MaxReplyClaims},
		})
	default:
		in.Claims, err = s.store.Claims().List(ctx, store.ClaimFilter{
			OwnerID:  p.ID,
			ListOpts: store.ListOpts{Limit: summary.MaxReplyClaims},
		})
	}

	var text, claimID string
	if c != nil {
		claimID = c.ID
	}
	if err == nil {
		text, err = s.replier.Reply(ctx, in)
	}
	if err != nil || strings.TrimSpace(text) == "" {
		s.logger.ErrorContext(ctx, "writing conversation reply",
			slog.String("claim_id", claimID),
			slog.String("user_id", p.ID),
			slog.Any("error", err),
		)
		return ReplyErrorText
	}
	return text
}

// Decisions lists the human decisions on a claim.
func (s *Service) Decisions(ctx context.Context, p *identity.Principal, claimID string) ([]*store.Decision, error) {
	if _, err := s.visible(ctx, p, claimID); err != nil {
		return nil, err
	}
	ds, err := s.store.Decisions().ListByClaim(ctx, claimID)
	if err != nil {
		return nil, store.Coded(err, "", "", "listing decisions", cgerr.FieldClaimID(claimID))
	}
	return ds, nil
}

// Trail returns the full audit trail. Admin only.
func (s *Service) Trail(ctx context.Context, p *identity.Principal, claimID string) (*audit.Trail, error) {
	if err := identity.RequireRole(p, store.RoleAdmin); err != nil {
		return nil, err
	}
	return s.audit.Trail(ctx, claimID)
}

// Verify replays the audit trail. Admin only.
func (s *Service) Verify(ctx context.Context, p *identity.Principal, claimID string) (*audit.Report, error) {
	if err := identity.RequireRole(p, store.RoleAdmin); err != nil {
		return nil, err
	}
	return s.audit.Verify(ctx, claimID)
}

// PendingApprovals lists open checkpoints for deciders.
func (s *Service) PendingApprovals(ctx context.Context, p *identity.Principal, opts store.ListOpts) ([]agent.PendingApproval, error) {
	if err := identity.RequireRole(p, store.RoleApprover, store.RoleAdmin); err != nil {
		return nil, err
	}
	return s.rt.Interrupts.Pending(ctx, opts)
}

func (s *Service) owned(ctx context.Context, p *identity.Principal, id string) (*store.Claim, error) {
	if p == nil {
		return nil, cgerr.New(cgerr.CodeServerAuthUnauthorized, "authentication required")
	}
	c, err := s.store.Claims().Get(ctx, id)
	if err != nil {
		return nil, claimErr(err, id)
	}
	if c.OwnerID != p.ID {
		return nil, cgerr.New(cgerr.CodeClaimAccessForbidden, "only the claim owner can do this",
			cgerr.FieldClaimID(id), cgerr.FieldUserID(p.ID))
	}
	return c, nil
}

func (s *Service) visible(ctx context.Context, p *identity.Principal, id string) (*store.Claim, error) {
	if err := identity.RequireRole(p, store.RoleUser, store.RoleApprover, store.RoleAdmin); err != nil {
		return nil, err
	}
	c, err := s.store.Claims().Get(ctx, id)
	if err != nil {
		return nil, claimErr(err, id)
	}
	if p.Role == store.RoleUser && c.OwnerID != p.ID {
		return nil, cgerr.New(cgerr.CodeClaimAccessForbidden, "claim belongs to another user",
			cgerr.FieldClaimID(id), cgerr.FieldUserID(p.ID))
	}
	return c, nil
}

func claimErr(err error, id string) error {
	return store.Coded(err, cgerr.CodeClaimGetNotFound, cgerr.CodeClaimUpdateConflict, "claim "+id,
		cgerr.FieldClaimID(id))
}
