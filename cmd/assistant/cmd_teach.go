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

var teachCmd = &cobra.Command{
	Use:   "teach [message] [correct response]",
	Short: "Teach the assistant the correct response for a message",
	Long: `Submits a correction without opening a chat session. The pair is
refined into the conversation corpus and, for factual questions,
recorded as a knowledge override.

Example:
  assistant teach "what is the capital of australia" "Canberra"`,
	Args: cobra.ExactArgs(2),
	Run:  runTeach,
}

func runTeach(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := newServiceClient(serverBaseURL())
	if err := client.Teach(ctx, args[0], args[1], ""); err != nil {
		fmt.Fprintf(os.Stderr, "Teach failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Learned: %q -> %q\n", args[0], args[1])
}
