// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package summary

import (
	"context"

	"google.golang.org/genai"

	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

const defaultGeminiModel = "gemini-2.5-flash"

// Gemini writes summaries with the Google Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(cfg Config) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, cgerr.New(cgerr.CodeSummaryProviderInvalid, "google: missing api_key in config",
			cgerr.FieldProvider(ProviderGoogle))
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, cgerr.Wrapf(err, cgerr.CodeSummaryUpstreamFailure, "google: creating client")
	}

	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Name() string { return ProviderGoogle }

func (g *Gemini) Summarize(ctx context.Context, in Input) (string, error) {
	return g.generate(ctx, systemPrompt, prompt(in))
}

func (g *Gemini) Reply(ctx context.Context, in ReplyInput) (string, error) {
	return g.generate(ctx, replySystemPrompt, replyPrompt(in))
}

func (g *Gemini) generate(ctx context.Context, system, user string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(user), &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.2),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		},
	})
	if err != nil {
		return "", cgerr.Wrapf(err, cgerr.CodeSummaryUpstreamFailure, "google: generating content")
	}
	return resp.Text(), nil
}
