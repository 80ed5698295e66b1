// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

// ErrGatewayNotRunning indicates the gateway refused the connection.
var ErrGatewayNotRunning = errors.New("gateway is not running (connection refused)")

// defaultHTTPClient is used by every gateway command. Submissions run the
// automated review inline, hence the generous timeout.
var defaultHTTPClient = &http.Client{
	Timeout: 2 * time.Minute,
}

// gatewayClient provides HTTP access to a running claimsgate gateway.
type gatewayClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// newGatewayClient creates a client for addr, which may be host:port or a
// full URL.
func newGatewayClient(addr, token string) *gatewayClient {
	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &gatewayClient{
		baseURL: strings.TrimRight(base, "/"),
		token:   token,
		http:    defaultHTTPClient,
	}
}

// apiError mirrors the gateway's error body.
type apiError struct {
	Status  int            `json:"status"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields"`
}

func (c *gatewayClient) getJSON(ctx context.Context, path string, dest any) error {
	return c.do(ctx, http.MethodGet, path, nil, dest)
}

func (c *gatewayClient) postJSON(ctx context.Context, path string, body, dest any) error {
	return c.do(ctx, http.MethodPost, path, body, dest)
}

func (c *gatewayClient) putJSON(ctx context.Context, path string, body, dest any) error {
	return c.do(ctx, http.MethodPut, path, body, dest)
}

// do sends body as JSON and decodes a 2xx response into dest. Gateway
// errors come back as cli.request.failure carrying the server's code.
func (c *gatewayClient) do(ctx context.Context, method, path string, body, dest any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return cgerr.Wrap(err, cgerr.CodeCLIInputInvalid, "encoding request")
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return cgerr.Wrap(err, cgerr.CodeCLIInputInvalid, "building request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isDialError(err) {
			return cgerr.Wrap(ErrGatewayNotRunning, cgerr.CodeCLIGatewayNotRunning, "contacting "+c.baseURL)
		}
		return cgerr.Errorf(cgerr.CodeCLIRequestFailure, "request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			return cgerr.New(cgerr.CodeCLIRequestFailure,
				fmt.Sprintf("gateway returned %d (%s): %s", resp.StatusCode, apiErr.Code, apiErr.Message),
				cgerr.Field("http_status", resp.StatusCode), cgerr.Field("code", apiErr.Code))
		}
		return cgerr.New(cgerr.CodeCLIRequestFailure,
			fmt.Sprintf("gateway returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))),
			cgerr.Field("http_status", resp.StatusCode))
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return cgerr.Errorf(cgerr.CodeCLIResponseInvalid, "invalid response: %w", err)
	}
	return nil
}

// isDialError returns true if err is a net dial error (connection refused, etc.).
func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}
