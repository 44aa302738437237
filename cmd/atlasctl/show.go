package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/promptatlas/promptatlas/pkg/guide"
)

var (
	showVersion int
	showJSON    bool
	showHistory bool
)

var showCmd = &cobra.Command{
	Use:   "show <entity>",
	Short: "Show the stored guide for an entity",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	showCmd.Flags().IntVar(&showVersion, "version", 0, "specific version (default latest)")
	showCmd.Flags().BoolVar(&showJSON, "json", false, "output as JSON")
	showCmd.Flags().BoolVar(&showHistory, "history", false, "list all versions")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	entityID := args[0]

	ctx := context.Background()
	guideStore, err := openStore(ctx)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer guideStore.Close()

	if showHistory {
		history, err := guideStore.History(ctx, entityID)
		if err != nil {
			return err
		}
		for _, g := range history {
			fmt.Printf("v%-3d %s  confidence=%.2f  hash=%s\n",
				g.Version, g.CreatedAt.Format("2006-01-02 15:04"), g.Confidence, g.ContentHash[:12])
		}
		return nil
	}

	var g *guide.Guide
	if showVersion > 0 {
		g, err = guideStore.GetVersion(ctx, entityID, showVersion)
	} else {
		g, err = guideStore.Latest(ctx, entityID)
	}
	if err != nil {
		return err
	}

	if showJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(g)
	}

	printGuide(g)
	return nil
}

func printGuide(g *guide.Guide) {
	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	fmt.Printf("%s (v%d)\n", bold(g.Title), g.Version)
	if g.Description != "" {
		fmt.Println(g.Description)
	}
	fmt.Printf("%s confidence=%.2f valid=%t source=%s\n\n",
		dim(g.EntityID), g.Confidence, g.Validation.Valid, g.SourcePrimary)

	if len(g.Content.BestPractices) > 0 {
		fmt.Println(bold("Best practices"))
		for _, p := range g.Content.BestPractices {
			fmt.Printf("  - %s\n", p)
		}
		fmt.Println()
	}

	if len(g.Content.Tips) > 0 {
		fmt.Println(bold("Tips"))
		for _, t := range g.Content.Tips {
			fmt.Printf("  - %s\n", t)
		}
		fmt.Println()
	}

	if len(g.Content.Examples) > 0 {
		fmt.Println(bold("Examples"))
		for _, ex := range g.Content.Examples {
			fmt.Printf("  %s\n    %s\n", ex.Input, dim(ex.Output))
		}
		fmt.Println()
	}

	for _, w := range g.Validation.Warnings {
		fmt.Printf("%s %s\n", color.YellowString("warning:"), w)
	}
}
