// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check whether the assistant service is up",
	Run:   runHealth,
}

func runHealth(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := newServiceClient(serverBaseURL())
	if err := client.Health(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "UNHEALTHY: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("OK: service at %s is healthy\n", serverBaseURL())
}
