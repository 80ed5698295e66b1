// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package summary

import (
	"context"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

const defaultAnthropicModel = "claude-sonnet-4-5"

// Anthropic writes summaries with the Anthropic Messages API.
type Anthropic struct {
	client anthropicsdk.Client
	model  string
}

func NewAnthropic(cfg Config) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, cgerr.New(cgerr.CodeSummaryProviderInvalid, "anthropic: missing api_key in config",
			cgerr.FieldProvider(ProviderAnthropic))
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(1),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	return &Anthropic{client: anthropicsdk.NewClient(opts...), model: model}, nil
}

func (a *Anthropic) Name() string { return ProviderAnthropic }

func (a *Anthropic) Summarize(ctx context.Context, in Input) (string, error) {
	return a.generate(ctx, systemPrompt, prompt(in))
}

func (a *Anthropic) Reply(ctx context.Context, in ReplyInput) (string, error) {
	return a.generate(ctx, replySystemPrompt, replyPrompt(in))
}

func (a *Anthropic) generate(ctx context.Context, system, user string) (string, error) {
	msg, err := a.client.Messages.New(ctx, anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(a.model),
		MaxTokens: 512,
		System:    []anthropicsdk.TextBlockParam{{Text: system}},
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(user)),
		},
		Temperature: anthropicsdk.Float(0.2),
	})
	if err != nil {
		return "", cgerr.Wrapf(err, cgerr.CodeSummaryUpstreamFailure, "anthropic: generating message")
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}
