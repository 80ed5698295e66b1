// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sigil-dev/claimsgate/internal/server"
	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

func main() {
	outPath := "api/openapi/claimsgate.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	spec, err := generateSpec(strings.HasSuffix(outPath, ".yaml") || strings.HasSuffix(outPath, ".yml"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI document written to %s\n", outPath)
}

// stubClaims satisfies server.ClaimService for route registration only.
// Handlers are never invoked during generation.
type stubClaims struct {
	server.ClaimService
}

// generateSpec renders the OpenAPI document huma derives from the route
// types, as JSON or YAML.
func generateSpec(asYAML bool) ([]byte, error) {
	srv, err := server.New(server.Config{
		ListenAddr: "127.0.0.1:0",
		Claims:     stubClaims{},
	})
	if err != nil {
		return nil, cgerr.Wrap(err, cgerr.CodeCLISetupFailure, "creating server")
	}
	defer func() { _ = srv.Close() }()

	doc := srv.API().OpenAPI()
	if !asYAML {
		return doc.MarshalJSON()
	}

	// Round-trip through JSON so the YAML keeps the OpenAPI field names.
	raw, err := doc.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var tree any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}
	return yaml.Marshal(tree)
}
