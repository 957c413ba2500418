package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kadlecj/facetrack/internal/session"
)

var attendCmd = &cobra.Command{
	Use:   "attend",
	Short: "Run an attendance session in the terminal",
	Long: `Run a headless attendance session against the configured camera.
Recognition feedback is printed to the terminal as it happens. The session
runs until interrupted with Ctrl+C; a stop prints the final counters.`,
	RunE: runAttend,
}

func init() {
	rootCmd.AddCommand(attendCmd)
}

func printFeedback(fb session.Feedback) {
	ts := fb.At.Format("15:04:05")
	switch fb.Outcome {
	case session.OutcomeMarked:
		fmt.Printf("[%s] marked: %s (confidence %.2f)\n", ts, fb.Name, fb.Confidence)
	case session.OutcomeAlreadyMarked:
		fmt.Printf("[%s] already marked today: %s\n", ts, fb.Name)
	case session.OutcomeUnknown:
		fmt.Printf("[%s] unknown face\n", ts)
	case session.OutcomeCameraError:
		fmt.Printf("[%s] camera error: %s\n", ts, fb.Detail)
	}
	// no_face frames are silent; they dominate an idle camera
}

func runAttend(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	p, err := openPipeline(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	if p.cfg.Camera.URL == "" {
		return fmt.Errorf("CAMERA_URL environment variable is required")
	}
	if p.gallery.Len() == 0 {
		fmt.Println("Warning: no identities enrolled; every face will be unknown")
	}

	sess, err := p.sessions.Start()
	if err != nil {
		return fmt.Errorf("starting session: %w", err)
	}

	fmt.Printf("Attendance session %s started (tolerance %.2f)\n", sess.ID, p.matcher.Tolerance())
	fmt.Println("Press Ctrl+C to stop")

	feedback := sess.Broadcaster.AddListener()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nStopping session...")
		if err := p.sessions.Stop(); err != nil {
			fmt.Printf("Warning: stopping session: %v\n", err)
		}
	}()

	// The channel closes when the session stops.
	for fb := range feedback {
		printFeedback(fb)
	}

	stats := sess.GetStats()
	fmt.Printf("Session finished: %d frames, %d faces, %d marked, %d already marked, %d unknown\n",
		stats.Frames, stats.FacesSeen, stats.Marked, stats.Already, stats.Unknown)
	return nil
}
