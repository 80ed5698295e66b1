// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	err := NewRootCmd().Execute()
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	if errors.Is(err, ErrGatewayNotRunning) {
		fmt.Fprintln(os.Stderr, "Start it with `claimsgate start` or point --addr at a running gateway.")
	}
	os.Exit(1)
}
