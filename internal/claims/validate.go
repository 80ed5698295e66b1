// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package claims

import (
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/sigil-dev/claimsgate/internal/store"
	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

// ValidationError lists malformed fields. Missing optional details are left
// to the review, which escalates incomplete claims.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, k := range slices.Sorted(maps.Keys(e.Fields)) {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid claim: " + strings.Join(parts, "; ")
}

// checkDraft normalizes d and rejects values that are malformed whatever
// the claim status.
func checkDraft(d *Draft) error {
	d.Type = store.ClaimType(strings.ToUpper(strings.TrimSpace(string(d.Type))))

	fields := map[string]string{}
	if d.Type != "" && !d.Type.Valid() {
		fields["claim_type"] = "must be HEALTH, AUTO or PROPERTY"
	}
	if d.Amount < 0 || math.IsNaN(d.Amount) || math.IsInf(d.Amount, 0) {
		fields["claim_amount"] = "must be a non-negative number"
	}
	if len(d.Description) > 10_000 {
		fields["description"] = "must be at most 10000 characters"
	}
	return validationErr(fields)
}

// checkSubmittable is the minimum a claim needs before review: a type and a
// positive amount. The claim stays DRAFT otherwise.
func checkSubmittable(c *store.Claim) error {
	fields := map[string]string{}
	if !c.Type.Valid() {
		fields["claim_type"] = "is required"
	}
	if c.Amount <= 0 {
		fields["claim_amount"] = "must be greater than zero"
	}
	return validationErr(fields, cgerr.FieldClaimID(c.ID))
}

func validationErr(fields map[string]string, attrs ...cgerr.Attr) error {
	if len(fields) == 0 {
		return nil
	}
	ve := &ValidationError{Fields: fields}
	attrs = append(attrs, cgerr.Field("fields", fields))
	return cgerr.Wrap(ve, cgerr.CodeClaimValidateInvalid, "claim validation failed", attrs...)
}

func applyDraft(c *store.Claim, d Draft) {
	c.PolicyNumber = strings.TrimSpace(d.PolicyNumber)
	c.Type = d.Type
	c.Amount = d.Amount
	c.Description = strings.TrimSpace(d.Description)
	c.IncidentDate = d.IncidentDate
	c.DocumentsUploaded = d.DocumentsUploaded
}
