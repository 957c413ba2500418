package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kadlecj/facetrack/internal/store"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Query recorded attendance",
}

var attendanceDayCmd = &cobra.Command{
	Use:   "day [YYYY-MM-DD]",
	Short: "Show attendance for a day (default today)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAttendanceDay,
}

var attendanceStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-day attendance counts",
	RunE:  runAttendanceStats,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)
	attendanceCmd.AddCommand(attendanceDayCmd)
	attendanceCmd.AddCommand(attendanceStatsCmd)

	attendanceStatsCmd.Flags().Int("days", 30, "Number of days to cover, ending today")
}

func runAttendanceDay(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	p, err := openPipeline(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	day := store.DayOf(p.recorder.Now())
	if len(args) == 1 {
		t, err := time.Parse(store.DayFormat, args[0])
		if err != nil {
			return fmt.Errorf("invalid day %q, expected YYYY-MM-DD", args[0])
		}
		day = t.Format(store.DayFormat)
	}

	events, err := p.events.ListByDay(ctx, day)
	if err != nil {
		return fmt.Errorf("listing attendance: %w", err)
	}

	if len(events) == 0 {
		fmt.Printf("No attendance recorded for %s\n", day)
		return nil
	}

	// Resolve names in one pass instead of per-event lookups.
	identities, err := p.identities.List(ctx)
	if err != nil {
		return fmt.Errorf("listing identities: %w", err)
	}
	names := make(map[int64]string, len(identities))
	for _, identity := range identities {
		names[identity.ID] = identity.Name
	}

	fmt.Printf("Attendance for %s (%d present):\n", day, len(events))
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tNAME\tMETHOD\tCONFIDENCE")
	for _, e := range events {
		name := names[e.IdentityID]
		if name == "" {
			name = fmt.Sprintf("identity %d", e.IdentityID)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\n", e.Time, name, e.Method, e.Confidence)
	}
	return w.Flush()
}

func runAttendanceStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	days := mustGetInt(cmd, "days")
	if days < 1 {
		return fmt.Errorf("--days must be positive")
	}

	p, err := openPipeline(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	now := p.recorder.Now()
	from := store.DayOf(now.AddDate(0, 0, -days+1))
	to := store.DayOf(now)

	stats, err := p.events.StatsByDay(ctx, from, to)
	if err != nil {
		return fmt.Errorf("loading stats: %w", err)
	}

	if len(stats) == 0 {
		fmt.Printf("No attendance recorded between %s and %s\n", from, to)
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DAY\tPRESENT\tENROLLED")
	for _, s := range stats {
		fmt.Fprintf(w, "%s\t%d\t%d\n", s.Day, s.Present, s.Enrolled)
	}
	return w.Flush()
}
