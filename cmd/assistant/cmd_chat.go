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
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/htwebz/assistant/pkg/ux"
	"github.com/htwebz/assistant/services/orchestrator/datatypes"
)

var (
	resumeSessionID string

	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session with the assistant",
		Long: `Opens a terminal chat loop against the running service. Each session
gets its own ID, so repeat detection and follow-up resolution stay
scoped to this conversation. Type 'exit' or press Ctrl-D to leave.

Inside the loop, '/teach <correct response>' corrects the assistant's
last answer to your previous message.`,
		Run: runChat,
	}
)

func init() {
	chatCmd.Flags().StringVar(&resumeSessionID, "resume", "",
		"resume an existing session by ID")
}

func runChat(cmd *cobra.Command, args []string) {
	sessionID := resumeSessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	client := newServiceClient(serverBaseURL())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := client.Health(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Cannot reach the assistant service: %v\n", err)
		fmt.Fprintln(os.Stderr, "Start it with 'assistant serve' or set --server.")
		os.Exit(1)
	}

	fmt.Printf("Chatting with the assistant (session %s).\n", sessionID)
	fmt.Println("Type 'exit' to leave, '/teach <correction>' to fix the last answer.")
	fmt.Println()

	var lastMessage string
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "exit" || line == "quit":
			fmt.Println("Bye.")
			return
		case strings.HasPrefix(line, "/teach "):
			correction := strings.TrimSpace(strings.TrimPrefix(line, "/teach "))
			if lastMessage == "" {
				fmt.Println("Nothing to correct yet. Say something first.")
				continue
			}
			if err := client.Teach(ctx, lastMessage, correction, sessionID); err != nil {
				fmt.Fprintf(os.Stderr, "Teach failed: %v\n", err)
				continue
			}
			fmt.Println("Got it. I'll remember that.")
			continue
		}

		spinner := ux.NewSpinner("thinking...")
		spinner.Start()
		resp, err := client.Chat(ctx, line, sessionID)
		spinner.Stop()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			fmt.Fprintf(os.Stderr, "Chat failed: %v\n", err)
			continue
		}
		lastMessage = line

		fmt.Printf("assistant> %s\n", resp.Text)
		if verbose {
			printCandidates(resp.Candidates)
		}
	}
}

func printCandidates(candidates []datatypes.RankedCandidate) {
	for i, c := range candidates {
		fmt.Printf("  %d. [%s, %.2f] %s\n", i+1, c.Source, c.Confidence, c.Response)
	}
}
