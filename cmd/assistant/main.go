// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command assistant is the terminal client for the assistant service:
// an interactive chat loop, one-shot corrections, and a supervisor for
// running the service itself.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/htwebz/assistant/pkg/logging"
)

var (
	serverURL string
	verbose   bool

	logger *logging.Logger

	rootCmd = &cobra.Command{
		Use:   "assistant",
		Short: "A CLI for the conversational assistant service",
		Long: `Assistant is a terminal client for the conversational assistant.
It chats against a running service, submits corrections the assistant
learns from, and can supervise the service process itself.`,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "",
		"service base URL (defaults to $ASSISTANT_SERVER_URL or http://localhost:12310)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"show candidate sources and confidences")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		level := logging.LevelInfo
		if verbose {
			level = logging.LevelDebug
		}
		logger = logging.New(logging.Config{
			Level:   level,
			LogDir:  os.Getenv("ASSISTANT_LOG_DIR"),
			Service: "cli",
		})
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Close()
		}
	}

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(teachCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
}

// serverBaseURL resolves the service address: flag, then env, then the
// default local port.
func serverBaseURL() string {
	if serverURL != "" {
		return serverURL
	}
	if url := os.Getenv("ASSISTANT_SERVER_URL"); url != "" {
		return url
	}
	return "http://localhost:12310"
}
