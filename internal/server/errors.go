// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"encoding/json"
	"net/http"

	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

// APIError is the body of every error response. It implements
// huma.StatusError so handlers can return it directly.
type APIError struct {
	Status  int            `json:"status" doc:"HTTP status code"`
	Code    string         `json:"code" doc:"Machine-readable error code"`
	Message string         `json:"message" doc:"Human-readable description"`
	Fields  map[string]any `json:"fields,omitempty" doc:"Structured context such as claim_id"`
}

func (e *APIError) Error() string { return e.Message }

func (e *APIError) GetStatus() int { return e.Status }

// toAPIError maps a coded error to its HTTP form.
func toAPIError(err error) *APIError {
	code := cgerr.CodeOf(err)
	if code == "" {
		code = cgerr.CodeServerInternalFailure
	}
	status := cgerr.HTTPStatus(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		msg = http.StatusText(status)
	}
	return &APIError{
		Status:  status,
		Code:    string(code),
		Message: msg,
		Fields:  publicFields(cgerr.FieldsOf(err)),
	}
}

var exposedFields = []string{"claim_id", "checkpoint_id", "from_status", "to_status", "trigger", "status", "outcome", "fields", "action", "tool", "field", "rules"}

func publicFields(all map[string]any) map[string]any {
	out := map[string]any{}
	for _, k := range exposedFields {
		if v, ok := all[k]; ok {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// writeError renders err outside of huma, for middleware.
func writeError(w http.ResponseWriter, err error) {
	apiErr := toAPIError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	_ = json.NewEncoder(w).Encode(apiErr)
}
