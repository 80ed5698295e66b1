// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sigil-dev/claimsgate/internal/agent"
	"github.com/sigil-dev/claimsgate/internal/audit"
	"github.com/sigil-dev/claimsgate/internal/claims"
	"github.com/sigil-dev/claimsgate/internal/identity"
	"github.com/sigil-dev/claimsgate/internal/store"
)

// ClaimService is the claim operations the routes expose. *claims.Service
// implements it.
type ClaimService interface {
	Create(ctx context.Context, p *identity.Principal, d claims.Draft) (*store.Claim, error)
	Update(ctx context.Context, p *identity.Principal, id string, d claims.Draft, version int64) (*store.Claim, error)
	Submit(ctx context.Context, p *identity.Principal, id, info string) (*claims.SubmitResult, error)
	Approve(ctx context.Context, p *identity.Principal, claimID string) (*agent.ResolveResult, error)
	Reject(ctx context.Context, p *identity.Principal, claimID, reason string) (*agent.ResolveResult, error)
	RequestInfo(ctx context.Context, p *identity.Principal, claimID, question string) (*agent.ResolveResult, error)
	Get(ctx context.Context, p *identity.Principal, id string) (*store.Claim, error)
	List(ctx context.Context, p *identity.Principal, f store.ClaimFilter) ([]*store.Claim, error)
	Messages(ctx context.Context, p *identity.Principal, claimID string) ([]*store.Message, error)
	PostMessage(ctx context.Context, p *identity.Principal, claimID, content string) (*claims.Exchange, error)
	Decisions(ctx context.Context, p *identity.Principal, claimID string) ([]*store.Decision, error)
	Trail(ctx context.Context, p *identity.Principal, claimID string) (*audit.Trail, error)
	Verify(ctx context.Context, p *identity.Principal, claimID string) (*audit.Report, error)
	PendingApprovals(ctx context.Context, p *identity.Principal, opts store.ListOpts) ([]agent.PendingApproval, error)
}

var _ ClaimService = (*claims.Service)(nil)

func (s *Server) registerRoutes() {
	bearer := []map[string][]string{{"bearer": {}}}
	reg := func(op huma.Operation) huma.Operation {
		op.Security = bearer
		return op
	}

	huma.Register(s.api, reg(huma.Operation{
		OperationID: "whoami",
		Method:      http.MethodGet,
		Path:        "/api/v1/me",
		Summary:     "Show the authenticated principal",
		Tags:        []string{"system"},
	}), s.handleWhoAmI)

	huma.Register(s.api, reg(huma.Operation{
		OperationID:   "create-claim",
		Method:        http.MethodPost,
		Path:          "/api/v1/claims",
		Summary:       "Create a draft claim",
		Tags:          []string{"claims"},
		DefaultStatus: http.StatusCreated,
	}), s.handleCreateClaim)

	huma.Register(s.api, reg(huma.Operation{
		OperationID: "list-claims",
		Method:      http.MethodGet,
		Path:        "/api/v1/claims",
		Summary:     "List claims visible to the caller",
		Tags:        []string{"claims"},
	}), s.handleListClaims)

	huma.Register(s.api, reg(huma.Operation{
		OperationID: "get-claim",
		Method:      http.MethodGet,
		Path:        "/api/v1/claims/{id}",
		Summary:     "Get a claim",
		Tags:        []string{"claims"},
	}), s.handleGetClaim)

	huma.Register(s.api, reg(huma.Operation{
		OperationID: "update-claim",
		Method:      http.MethodPut,
		Path:        "/api/v1/claims/{id}",
		Summary:     "Edit a draft or a claim that needs more information",
		Tags:        []string{"claims"},
	}), s.handleUpdateClaim)

	huma.Register(s.api, reg(huma.Operation{
		OperationID: "submit-claim",
		Method:      http.MethodPost,
		Path:        "/api/v1/claims/{id}/submit",
		Summary:     "Submit or resubmit a claim for review",
		Description: "Runs the automated review before responding. The claim ends APPROVED or PENDING_APPROVAL.",
		Tags:        []string{"claims"},
	}), s.handleSubmitClaim)

	huma.Register(s.api, reg(huma.Operation{
		OperationID: "approve-claim",
		Method:      http.MethodPut,
		Path:        "/api/v1/claims/{id}/approve",
		Summary:     "Approve a pending claim",
		Tags:        []string{"decisions"},
	}), s.handleApprove)

	huma.Register(s.api, reg(huma.Operation{
		OperationID: "reject-claim",
		Method:      http.MethodPut,
		Path:        "/api/v1/claims/{id}/reject",
		Summary:     "Reject a pending claim",
		Tags:        []string{"decisions"},
	}), s.handleReject)

	huma.Register(s.api, reg(huma.Operation{
		OperationID: "request-claim-info",
		Method:      http.MethodPut,
		Path:        "/api/v1/claims/{id}/request-info",
		Summary:     "Ask the claimant for more information",
		Tags:        []string{"decisions"},
	}), s.handleRequestInfo)

	huma.Register(s.api, reg(huma.Operation{
		OperationID: "list-claim-messages",
		Method:      http.MethodGet,
		Path:        "/api/v1/claims/{id}/messages",
		Summary:     "Conversation of a claim",
		Tags:        []string{"messages"},
	}), s.handleClaimMessages)

	huma.Register(s.api, reg(huma.Operation{
		OperationID: "list-claim-decisions",
		Method:      http.MethodGet,
		Path:        "/api/v1/claims/{id}/decisions",
		Summary:     "Human decisions on a claim",
		Tags:        []string{"decisions"},
	}), s.handleClaimDecisions)

	huma.Register(s.api, reg(huma.Operation{
		OperationID: "get-claim-audit",
		Method:      http.MethodGet,
		Path:        "/api/v1/claims/{id}/audit",
		Summary:     "Audit trail and replay report (admin)",
		Tags:        []string{"audit"},
	}), s.handleClaimAudit)

	huma.Register(s.api, reg(huma.Operation{
		OperationID: "list-pending-approvals",
		Method:      http.MethodGet,
		Path:        "/api/v1/approvals/pending",
		Summary:     "Claims waiting for a decision",
		Tags:        []string{"decisions"},
	}), s.handlePending)

	huma.Register(s.api, reg(huma.Operation{
		OperationID: "list-messages",
		Method:      http.MethodGet,
		Path:        "/api/v1/messages",
		Summary:     "Caller's general conversation, or a claim's with claim_id",
		Tags:        []string{"messages"},
	}), s.handleListMessages)

	huma.Register(s.api, reg(huma.Operation{
		OperationID:   "post-message",
		Method:        http.MethodPost,
		Path:          "/api/v1/messages",
		Summary:       "Post to the general conversation or a claim's and get the agent reply",
		Tags:          []string{"messages"},
		DefaultStatus: http.StatusCreated,
	}), s.handlePostMessage)
}

// --- Request/Response types for huma ---

type claimIDInput struct {
	ID string `path:"id" doc:"Claim ID"`
}

type claimOutput struct {
	Body ClaimView
}

type whoAmIOutput struct {
	Body struct {
		ID   string `json:"id"`
		Name string `json:"name,omitempty"`
		Role string `json:"role"`
	}
}

type createClaimInput struct {
	Body ClaimFields
}

type listClaimsInput struct {
	Status string `query:"status" doc:"Only claims in this status"`
	Owner  string `query:"owner" doc:"Only claims of this owner (deciders only)"`
	Limit  int    `query:"limit" minimum:"0" maximum:"500" doc:"Page size, default 100"`
	Offset int    `query:"offset" minimum:"0"`
}

type listClaimsOutput struct {
	Body struct {
		Claims []ClaimView `json:"claims"`
	}
}

type updateClaimInput struct {
	ID   string `path:"id"`
	Body struct {
		ClaimFields
		Version int64 `json:"version,omitempty" doc:"Expected version; 0 skips the check"`
	}
}

type submitClaimInput struct {
	ID   string `path:"id"`
	Body struct {
		Info string `json:"info,omitempty" doc:"Note for the reviewer, appended to the conversation"`
	}
}

type submitClaimOutput struct {
	Body struct {
		Claim   ClaimView    `json:"claim"`
		Outcome *OutcomeView `json:"outcome,omitempty"`
	}
}

type reasonInput struct {
	ID   string `path:"id"`
	Body struct {
		Reason string `json:"reason,omitempty" doc:"Required"`
	}
}

type questionInput struct {
	ID   string `path:"id"`
	Body struct {
		Question string `json:"question,omitempty" doc:"Required"`
	}
}

type decisionOutput struct {
	Body struct {
		Claim    ClaimView    `json:"claim"`
		Decision DecisionView `json:"decision"`
	}
}

type messagesOutput struct {
	Body struct {
		Messages []MessageView `json:"messages"`
	}
}

type decisionsOutput struct {
	Body struct {
		Decisions []DecisionView `json:"decisions"`
	}
}

type auditOutput struct {
	Body struct {
		Trail  *audit.Trail  `json:"trail"`
		Report *audit.Report `json:"report"`
	}
}

type pendingInput struct {
	Limit  int `query:"limit" minimum:"0" maximum:"500"`
	Offset int `query:"offset" minimum:"0"`
}

type pendingOutput struct {
	Body struct {
		Pending []PendingView `json:"pending"`
	}
}

type listMessagesInput struct {
	ClaimID string `query:"claim_id" doc:"Claim conversation; omit for the general one"`
}

type postMessageInput struct {
	Body struct {
		ClaimID string `json:"claim_id,omitempty"`
		Content string `json:"content,omitempty"`
	}
}

type exchangeOutput struct {
	Body struct {
		UserMessage  MessageView  `json:"user_message"`
		AgentMessage *MessageView `json:"agent_message,omitempty"`
	}
}

// --- Handlers ---

func (s *Server) handleWhoAmI(ctx context.Context, _ *struct{}) (*whoAmIOutput, error) {
	p := identity.FromContext(ctx)
	if err := identity.RequireRole(p, store.RoleUser, store.RoleApprover, store.RoleAdmin); err != nil {
		return nil, toAPIError(err)
	}
	out := &whoAmIOutput{}
	out.Body.ID, out.Body.Name, out.Body.Role = p.ID, p.Name, string(p.Role)
	return out, nil
}

func (s *Server) handleCreateClaim(ctx context.Context, in *createClaimInput) (*claimOutput, error) {
	d, err := in.Body.draft()
	if err != nil {
		return nil, toAPIError(err)
	}
	c, err := s.claims.Create(ctx, identity.FromContext(ctx), d)
	if err != nil {
		return nil, toAPIError(err)
	}
	return &claimOutput{Body: claimView(c)}, nil
}

func (s *Server) handleListClaims(ctx context.Context, in *listClaimsInput) (*listClaimsOutput, error) {
	list, err := s.claims.List(ctx, identity.FromContext(ctx), store.ClaimFilter{
		OwnerID:  in.Owner,
		Status:   store.ClaimStatus(in.Status),
		ListOpts: store.ListOpts{Limit: in.Limit, Offset: in.Offset},
	})
	if err != nil {
		return nil, toAPIError(err)
	}
	out := &listClaimsOutput{}
	out.Body.Claims = claimViews(list)
	return out, nil
}

func (s *Server) handleGetClaim(ctx context.Context, in *claimIDInput) (*claimOutput, error) {
	c, err := s.claims.Get(ctx, identity.FromContext(ctx), in.ID)
	if err != nil {
		return nil, toAPIError(err)
	}
	return &claimOutput{Body: claimView(c)}, nil
}

func (s *Server) handleUpdateClaim(ctx context.Context, in *updateClaimInput) (*claimOutput, error) {
	d, err := in.Body.draft()
	if err != nil {
		return nil, toAPIError(err)
	}
	c, err := s.claims.Update(ctx, identity.FromContext(ctx), in.ID, d, in.Body.Version)
	if err != nil {
		return nil, toAPIError(err)
	}
	return &claimOutput{Body: claimView(c)}, nil
}

func (s *Server) handleSubmitClaim(ctx context.Context, in *submitClaimInput) (*submitClaimOutput, error) {
	res, err := s.claims.Submit(ctx, identity.FromContext(ctx), in.ID, in.Body.Info)
	if err != nil {
		return nil, toAPIError(err)
	}
	out := &submitClaimOutput{}
	out.Body.Claim = claimView(res.Claim)
	out.Body.Outcome = outcomeView(res.Outcome)
	return out, nil
}

func (s *Server) handleApprove(ctx context.Context, in *claimIDInput) (*decisionOutput, error) {
	res, err := s.claims.Approve(ctx, identity.FromContext(ctx), in.ID)
	return decided(res, err)
}

func (s *Server) handleReject(ctx context.Context, in *reasonInput) (*decisionOutput, error) {
	res, err := s.claims.Reject(ctx, identity.FromContext(ctx), in.ID, in.Body.Reason)
	return decided(res, err)
}

func (s *Server) handleRequestInfo(ctx context.Context, in *questionInput) (*decisionOutput, error) {
	res, err := s.claims.RequestInfo(ctx, identity.FromContext(ctx), in.ID, in.Body.Question)
	return decided(res, err)
}

func decided(res *agent.ResolveResult, err error) (*decisionOutput, error) {
	if err != nil {
		return nil, toAPIError(err)
	}
	out := &decisionOutput{}
	out.Body.Claim = claimView(res.Claim)
	out.Body.Decision = decisionView(res.Decision)
	return out, nil
}

func (s *Server) handleClaimMessages(ctx context.Context, in *claimIDInput) (*messagesOutput, error) {
	return s.messages(ctx, in.ID)
}

func (s *Server) handleListMessages(ctx context.Context, in *listMessagesInput) (*messagesOutput, error) {
	return s.messages(ctx, in.ClaimID)
}

func (s *Server) messages(ctx context.Context, claimID string) (*messagesOutput, error) {
	msgs, err := s.claims.Messages(ctx, identity.FromContext(ctx), claimID)
	if err != nil {
		return nil, toAPIError(err)
	}
	out := &messagesOutput{}
	out.Body.Messages = make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		out.Body.Messages = append(out.Body.Messages, messageView(m))
	}
	return out, nil
}

func (s *Server) handlePostMessage(ctx context.Context, in *postMessageInput) (*exchangeOutput, error) {
	ex, err := s.claims.PostMessage(ctx, identity.FromContext(ctx), in.Body.ClaimID, in.Body.Content)
	if err != nil {
		return nil, toAPIError(err)
	}
	out := &exchangeOutput{}
	out.Body.UserMessage = messageView(ex.User)
	if ex.Agent != nil {
		v := messageView(ex.Agent)
		out.Body.AgentMessage = &v
	}
	return out, nil
}

func (s *Server) handleClaimDecisions(ctx context.Context, in *claimIDInput) (*decisionsOutput, error) {
	ds, err := s.claims.Decisions(ctx, identity.FromContext(ctx), in.ID)
	if err != nil {
		return nil, toAPIError(err)
	}
	out := &decisionsOutput{}
	out.Body.Decisions = make([]DecisionView, 0, len(ds))
	for _, d := range ds {
		out.Body.Decisions = append(out.Body.Decisions, decisionView(d))
	}
	return out, nil
}

func (s *Server) handleClaimAudit(ctx context.Context, in *claimIDInput) (*auditOutput, error) {
	p := identity.FromContext(ctx)
	trail, err := s.claims.Trail(ctx, p, in.ID)
	if err != nil {
		return nil, toAPIError(err)
	}
	report, err := s.claims.Verify(ctx, p, in.ID)
	if err != nil {
		return nil, toAPIError(err)
	}
	out := &auditOutput{}
	out.Body.Trail = trail
	out.Body.Report = report
	return out, nil
}

func (s *Server) handlePending(ctx context.Context, in *pendingInput) (*pendingOutput, error) {
	pending, err := s.claims.PendingApprovals(ctx, identity.FromContext(ctx), store.ListOpts{Limit: in.Limit, Offset: in.Offset})
	if err != nil {
		return nil, toAPIError(err)
	}
	out := &pendingOutput{}
	out.Body.Pending = make([]PendingView, 0, len(pending))
	for _, p := range pending {
		out.Body.Pending = append(out.Body.Pending, pendingView(p))
	}
	return out, nil
}
