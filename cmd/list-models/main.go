package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/pulso-health/backend/internal/config"
	"github.com/pulso-health/backend/internal/gemini"
)

// Lists the Gemini models available to the configured API key. Useful when a
// model alias is retired and the backend needs to move to a newer one.
func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		logger.Fatal("Missing Gemini credentials. Set GEMINI_API_KEY")
	}

	client, err := gemini.NewClient(config.GeminiConfig{
		APIKey:  apiKey,
		BaseURL: "https://generativelanguage.googleapis.com/v1beta",
		Model:   "gemini-3-flash-preview",
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create Gemini client", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	models, err := client.ListModels(ctx)
	if err != nil {
		logger.Fatal("Failed to list models", zap.Error(err))
	}

	fmt.Printf("Available models (%d):\n", len(models))
	for _, m := range models {
		fmt.Printf("  %s\n", m.Name)
		if m.DisplayName != "" {
			fmt.Printf("    display name: %s\n", m.DisplayName)
		}
		if len(m.SupportedMethods) > 0 {
			fmt.Printf("    methods: %v\n", m.SupportedMethods)
		}
	}
}
