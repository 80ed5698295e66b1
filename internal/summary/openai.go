// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package summary

import (
	"context"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

const defaultOpenAIModel = "gpt-4.1-mini"

// OpenAI writes summaries with the OpenAI Chat Completions API.
type OpenAI struct {
	client openaisdk.Client
	model  string
}

func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, cgerr.New(cgerr.CodeSummaryProviderInvalid, "openai: missing api_key in config",
			cgerr.FieldProvider(ProviderOpenAI))
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
		model = defaultOpenAIModel
	}
	return &OpenAI{client: openaisdk.NewClient(opts...), model: model}, nil
}

func (o *OpenAI) Name() string { return ProviderOpenAI }

func (o *OpenAI) Summarize(ctx context.Context, in Input) (string, error) {
	return o.generate(ctx, systemPrompt, prompt(in))
}

func (o *OpenAI) Reply(ctx context.Context, in ReplyInput) (string, error) {
	return o.generate(ctx, replySystemPrompt, replyPrompt(in))
}

func (o *OpenAI) generate(ctx context.Context, system, user string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: shared.ChatModel(o.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(system),
			openaisdk.UserMessage(user),
		},
		MaxCompletionTokens: param.NewOpt(int64(512)),
		Temperature:         param.NewOpt(0.2),
	})
	if err != nil {
		return "", cgerr.Wrapf(err, cgerr.CodeSummaryUpstreamFailure, "openai: generating completion")
	}
	if len(resp.Choices) == 0 {
		return "", cgerr.New(cgerr.CodeSummaryUpstreamFailure, "openai: empty response",
			cgerr.FieldProvider(ProviderOpenAI))
	}
	return resp.Choices[0].Message.Content, nil
}
