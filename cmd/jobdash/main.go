// Package main provides the entry point for the job dashboard HTTP API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "jobdash",
	Short: "AI job search dashboard server",
	Long:  "Job dashboard analyzes resumes with AI, drafts cover letters, builds job-site search links, and tracks visited jobs per user via REST API.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
