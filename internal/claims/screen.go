// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package claims

import (
	"context"
	"log/slog"

	"github.com/sigil-dev/claimsgate/internal/scanner"
	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

// screen runs user-supplied text through the input rules before it reaches
// the store or the reviewing agent.
func (s *Service) screen(ctx context.Context, field, claimID, text string) (string, error) {
	if s.scanner == nil || text == "" {
		return text, nil
	}
	res, err := s.scanner.Scan(scanner.StageInput, text)
	if err != nil {
		return "", err
	}
	if !res.Threat() {
		return text, nil
	}

	s.logger.WarnContext(ctx, "suspicious claim input",
		slog.String("field", field),
		slog.String("claim_id", claimID),
		slog.Any("rules", res.Rules()),
		slog.String("mode", string(s.inputMode)),
	)
	out, err := scanner.Apply(s.inputMode, text, res)
	if err != nil {
		return "", cgerr.With(err, cgerr.Field("field", field), cgerr.FieldClaimID(claimID))
	}
	return out, nil
}
