package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/promptatlas/promptatlas/internal/collector"
	"github.com/promptatlas/promptatlas/pkg/guide"
)

const timeUnit = 10 * time.Millisecond

var collectCmd = &cobra.Command{
	Use:   "collect [entities...]",
	Short: "Run guide collection for the given entities",
	Long: `Runs the full collection pipeline for each named entity, or for
every configured entity when none are given. Results are stored as
versioned guides; unchanged content is skipped.`,
	RunE: runCollect,
}

func init() {
	rootCmd.AddCommand(collectCmd)
}

func runCollect(cmd *cobra.Command, args []string) error {
	entities := args
	if len(entities) == 0 {
		entities = cfg.Collector.Entities
	}
	if len(entities) == 0 {
		return fmt.Errorf("no entities given and none configured")
	}

	ctx := context.Background()
	guideStore, err := openStore(ctx)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer guideStore.Close()

	orchestrator := collector.NewPipeline(cfg, guideStore)

	bar := progressbar.NewOptions(len(entities),
		progressbar.OptionSetDescription("collecting"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	results, job, err := orchestrator.CollectAll(ctx, entities, func(p collector.Progress) {
		_ = bar.Set(p.Completed)
	})
	_ = bar.Finish()
	if err != nil {
		return fmt.Errorf("collection run: %w", err)
	}

	printReport(results, job)
	return nil
}

func printReport(results []guide.CollectionResult, job *guide.CollectionJob) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Println()
	for _, r := range results {
		if r.Success {
			fmt.Printf("  %s %-24s sources=%d duration=%s\n",
				green("ok"), r.EntityID, r.Metrics.SourcesTried, r.Metrics.Duration.Round(timeUnit))
		} else {
			fmt.Printf("  %s %-24s %s\n", red("fail"), r.EntityID, r.Error)
		}
	}

	fmt.Println()
	fmt.Printf("%s job=%s total=%d success=%s failed=%s\n",
		bold("done"), job.ID, job.TotalEntities,
		green(job.SuccessCount), red(job.FailCount))
}
