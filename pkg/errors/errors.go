// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeClaimGetNotFound         Code = "claim.get.not_found"
	CodeClaimValidateInvalid     Code = "claim.validate.invalid"
	CodeClaimTransitionIllegal   Code = "claim.transition.illegal"
	CodeClaimTransitionForbidden Code = "claim.transition.forbidden"
	CodeClaimUpdateConflict      Code = "claim.update.conflict"
	CodeClaimAccessForbidden     Code = "claim.access.forbidden"

	CodeCheckpointNotFound        Code = "interrupt.checkpoint.not_found"
	CodeCheckpointDuplicate       Code = "interrupt.checkpoint.duplicate"
	CodeCheckpointAlreadyResolved Code = "interrupt.checkpoint.already_resolved"
	CodeContinuationDecodeInvalid Code = "interrupt.continuation.decode.invalid_format"
	CodeSessionGetNotFound        Code = "interrupt.session.not_found"

	CodeAgentToolExecutionFailure Code = "agent.tool.execution_failure"
	CodeAgentToolNotFound         Code = "agent.tool.not_found"
	CodeAgentToolInputInvalid     Code = "agent.tool.input.invalid_input"
	CodeAgentToolTimeout          Code = "agent.tool.timeout"

	CodeAuditReplayInvalid Code = "audit.replay.invalid"
	CodeAuditDigestFailure Code = "audit.digest.failure"

	CodeStoreDatabaseFailure    Code = "store.database.failure"
	CodeStoreBackendUnsupported Code = "store.backend.unsupported"
	CodeStoreConflict           Code = "store.conflict"
	CodeStoreInvalidInput       Code = "store.invalid_input"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeSummaryUpstreamFailure Code = "summary.upstream.failure"
	CodeSummaryProviderInvalid Code = "summary.provider.invalid"

	CodeSecretResolveFailure Code = "secret.resolve.failure"
	CodeSecretStoreFailure   Code = "secret.store.failure"
	CodeSecretNotFound       Code = "secret.get.not_found"
	CodeSecretRefInvalid     Code = "secret.ref.invalid"

	CodeScannerRuleInvalid    Code = "scanner.rule.invalid"
	CodeScannerContentInvalid Code = "scanner.content.invalid"

	CodeServerRequestInvalid   Code = "server.request.invalid"
	CodeServerAuthUnauthorized Code = "server.auth.unauthorized"
	CodeServerAuthForbidden    Code = "server.auth.forbidden"
	CodeServerInternalFailure  Code = "server.internal.failure"
	CodeServerEntityNotFound   Code = "server.entity.not_found"
	CodeServerConfigInvalid    Code = "server.config.invalid"
	CodeServerStartFailure     Code = "server.start.failure"
	CodeServerShutdownFailure  Code = "server.shutdown.failure"

	CodeCLIGatewayNotRunning Code = "cli.gateway.not_running"
	CodeCLIRequestFailure    Code = "cli.request.failure"
	CodeCLIResponseInvalid   Code = "cli.response.invalid"
	CodeCLISetupFailure      Code = "cli.setup.failure"
	CodeCLIInputInvalid      Code = "cli.input.invalid"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// FieldValue creates a structured error field.
func FieldValue(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// Field is kept as the primary helper for terse callsites.
func Field(key string, value any) Attr {
	return FieldValue(key, value)
}

func FieldClaimID(value string) Attr {
	return Field("claim_id", value)
}

func FieldCheckpointID(value string) Attr {
	return Field("checkpoint_id", value)
}

func FieldUserID(value string) Attr {
	return Field("user_id", value)
}

func FieldTool(value string) Attr {
	return Field("tool", value)
}

func FieldStatus(value string) Attr {
	return Field("status", value)
}

func FieldProvider(value string) Attr {
	return Field("provider", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeServerInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

// CodeOf returns the innermost code on the chain.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsConflict(err error) bool {
	switch CodeOf(err) {
	case CodeClaimTransitionIllegal, CodeCheckpointDuplicate, CodeCheckpointAlreadyResolved:
		return true
	}
	return reason(CodeOf(err)) == "conflict"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func IsUnauthorized(err error) bool {
	r := reason(CodeOf(err))
	return r == "unauthorized" || r == "forbidden" || r == "denied"
}

func IsTimeout(err error) bool {
	return reason(CodeOf(err)) == "timeout"
}

func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	return strings.Contains(string(code), "upstream") && reason(code) == "failure"
}

// IsIllegalTransition reports a status change outside the lifecycle table.
func IsIllegalTransition(err error) bool {
	return HasCode(err, CodeClaimTransitionIllegal)
}

func IsDuplicateCheckpoint(err error) bool {
	return HasCode(err, CodeCheckpointDuplicate)
}

func IsAlreadyResolved(err error) bool {
	return HasCode(err, CodeCheckpointAlreadyResolved)
}

func IsAgentExecution(err error) bool {
	return HasCode(err, CodeAgentToolExecutionFailure) || HasCode(err, CodeAgentToolTimeout)
}

func IsPersistence(err error) bool {
	return HasCode(err, CodeStoreDatabaseFailure)
}

func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsConflict(err):
		return http.StatusConflict
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsUnauthorized(err):
		if reason(CodeOf(err)) == "forbidden" || reason(CodeOf(err)) == "denied" {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case IsTimeout(err):
		return http.StatusGatewayTimeout
	case IsUpstreamFailure(err), HasCode(err, CodeAgentToolExecutionFailure):
		return http.StatusBadGateway
	case IsPersistence(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	return oops.Code(CodeServerInternalFailure).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
