package cmd

import (
	"context"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kadlecj/facetrack/internal/roster"
	"github.com/kadlecj/facetrack/internal/store/sis"
)

var rosterSyncCmd = &cobra.Command{
	Use:   "roster-sync",
	Short: "Update identity metadata from the student information system",
	Long: `Synchronize enrolled identities with the external student roster.
Names, emails and groups of enrolled identities are updated from the roster;
face encodings and attendance records are never touched. Roster students
without an enrolled face are reported, not created.`,
	RunE: runRosterSync,
}

func init() {
	rootCmd.AddCommand(rosterSyncCmd)
}

func runRosterSync(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	p, err := openPipeline(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	if p.cfg.Roster.DatabaseURL == "" {
		return fmt.Errorf("ROSTER_DATABASE_URL environment variable is required")
	}

	fmt.Printf("Connecting to student information system...\n")
	sisPool, err := sis.NewPool(p.cfg.Roster.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to SIS: %w", err)
	}
	defer sisPool.Close()

	count, err := p.identities.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting identities: %w", err)
	}

	bar := progressbar.NewOptions(count,
		progressbar.OptionSetDescription("Syncing roster"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("identities"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	result, err := roster.Sync(ctx, sisPool, p.identities, func() {
		_ = bar.Add(1)
	})
	if err != nil {
		return err
	}
	fmt.Println()

	fmt.Printf("Roster sync complete: %d updated, %d unchanged\n", result.Updated, result.Unchanged)
	if len(result.NotInSIS) > 0 {
		fmt.Printf("Warning: %d enrolled identities missing from the roster: %v\n", len(result.NotInSIS), result.NotInSIS)
	}
	if result.Unenrolled > 0 {
		fmt.Printf("%d roster students have no enrolled face yet\n", result.Unenrolled)
	}
	for _, name := range result.Duplicates {
		fmt.Printf("Warning: duplicate roster name %q; matching cannot tell them apart\n", name)
	}
	return nil
}
