// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sigil-dev/claimsgate/internal/store"
)

var _ store.MessageStore = (*MessageStore)(nil)

// MessageStore implements store.MessageStore. seq gives a total order that
// does not depend on clock resolution.
type MessageStore struct {
	q querier
}

func (s *MessageStore) Append(ctx context.Context, msg *store.Message) error {
	if msg.ID == "" || msg.SenderKind == "" {
		return fmt.Errorf("appending message: id and sender required: %w", store.ErrInvalidInput)
	}
	if (msg.ClaimID == "") == (msg.ParticipantID == "") {
		return fmt.Errorf("appending message %s: exactly one of claim and participant required: %w", msg.ID, store.ErrInvalidInput)
	}

	payload, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("marshalling message payload: %w", err)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	var claimID sql.NullString
	if msg.ClaimID != "" {
		claimID = sql.NullString{String: msg.ClaimID, Valid: true}
	}

	const q = `INSERT INTO messages (id, claim_id, participant_id, sender_kind, sender_id, content, payload, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := s.q.ExecContext(ctx, q,
		msg.ID,
		claimID,
		msg.ParticipantID,
		string(msg.SenderKind),
		msg.SenderID,
		msg.Content,
		string(payload),
		formatTime(msg.CreatedAt),
	)
	if err != nil {
		return dbErr("appending message "+msg.ID, err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return dbErr("reading message sequence", err)
	}
	msg.Seq = seq
	return nil
}

const messageCols = `seq, id, claim_id, participant_id, sender_kind, sender_id, content, payload, created_at`

// List returns the full history of claimID, oldest first.
func (s *MessageStore) List(ctx context.Context, claimID string) ([]*store.Message, error) {
	if claimID == "" {
		return nil, fmt.Errorf("listing messages: claim id required: %w", store.ErrInvalidInput)
	}
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+messageCols+` FROM messages WHERE claim_id = ? ORDER BY seq ASC`, claimID)
	if err != nil {
		return nil, dbErr("listing messages", err)
	}
	return scanMessages(rows)
}

// ListGeneral returns participantID's general conversation, oldest first.
func (s *MessageStore) ListGeneral(ctx context.Context, participantID string) ([]*store.Message, error) {
	if participantID == "" {
		return nil, fmt.Errorf("listing general messages: participant required: %w", store.ErrInvalidInput)
	}
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+messageCols+` FROM messages WHERE claim_id IS NULL AND participant_id = ? ORDER BY seq ASC`,
		participantID)
	if err != nil {
		return nil, dbErr("listing general messages", err)
	}
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]*store.Message, error) {
	defer rows.Close()

	var msgs []*store.Message
	for rows.Next() {
		var (
			msg                      store.Message
			claim                    sql.NullString
			sender, payload, created string
		)
		if err := rows.Scan(&msg.Seq, &msg.ID, &claim, &msg.ParticipantID, &sender, &msg.SenderID,
			&msg.Content, &payload, &created); err != nil {
			return nil, dbErr("scanning message row", err)
		}
		msg.ClaimID = claim.String
		msg.SenderKind = store.SenderKind(sender)
		msg.CreatedAt = parseTime(created)
		if payload != "" && payload != "{}" && payload != "null" {
			if err := json.Unmarshal([]byte(payload), &msg.Payload); err != nil {
				return nil, fmt.Errorf("unmarshalling message payload: %w", err)
			}
		}
		msgs = append(msgs, &msg)
	}
	return msgs, rows.Err()
}
