package main

import (
	"context"
	"log"
	"os"
	"time"

	"ai-docqa-be/internal/bootstrap"
	"ai-docqa-be/internal/config"
	"ai-docqa-be/internal/dto"
	"ai-docqa-be/pkg/database"

	"github.com/fatih/color"
)

// Manual harness: runs one live session against a seeded document.
// Usage: go run ./cmd/test_retrieval "what optimizer is used?" demo-paper
func main() {
	query := "what optimizer is used?"
	documentID := "demo-paper"
	if len(os.Args) > 1 {
		query = os.Args[1]
	}
	if len(os.Args) > 2 {
		documentID = os.Args[2]
	}

	cfg := config.Load()
	db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}
	container := bootstrap.NewContainer(db, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	color.Cyan("=== Retrieval session: %s (doc: %s) ===", query, documentID)

	res, err := container.RetrievalService.RunSession(ctx, &dto.RunSessionRequest{
		Query:      query,
		DocumentID: documentID,
	})
	if err != nil {
		color.Red("Session failed: %v", err)
		os.Exit(1)
	}

	if res.IsComplete {
		color.Green("Complete: %s", res.CompletionReason)
	} else {
		color.Yellow("Incomplete: %s", res.CompletionReason)
	}

	color.White("\n%s\n", res.FinalAnswer)

	color.Cyan("--- Sources (%d) ---", len(res.Sources))
	for _, s := range res.Sources {
		if s.Kind == "content" {
			color.White("  [content] %s p.%s", s.Title, s.Pages)
		} else {
			color.White("  [structure] %s (%d entries)", s.ToolName, s.Entries)
		}
	}
}
