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
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	serviceBinary string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the assistant service in the foreground",
		Long: `Launches the assistant-service binary and streams its output.
Configuration passes through the environment (ASSISTANT_PORT,
ASSISTANT_DATA_DIR, OLLAMA_BASE_URL, ...). Ctrl-C shuts the service
down gracefully.`,
		Run: runServe,
	}
)

func init() {
	serveCmd.Flags().StringVar(&serviceBinary, "binary", "assistant-service",
		"path to the service binary")
}

func runServe(cmd *cobra.Command, args []string) {
	path, err := exec.LookPath(serviceBinary)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service binary %q not found: %v\n", serviceBinary, err)
		fmt.Fprintln(os.Stderr, "Build it from services/orchestrator or pass --binary.")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting assistant service", "binary", path)

	proc := exec.CommandContext(ctx, path)
	proc.Stdout = os.Stdout
	proc.Stderr = os.Stderr
	proc.Env = os.Environ()
	// Give the service its own signal first so it can flush stores.
	proc.Cancel = func() error {
		return proc.Process.Signal(syscall.SIGTERM)
	}

	if err := proc.Run(); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("assistant service stopped")
}
