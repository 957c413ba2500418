package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <photo.jpg>",
	Short: "Enroll a person from a face photo",
	Long: `Enroll a new identity from a photo containing exactly one face.
The photo is sent to the vision service for encoding; the resulting reference
vector is stored and the person becomes recognizable immediately.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("external-id", "", "Stable external identifier (student number)")
	enrollCmd.Flags().String("name", "", "Full name")
	enrollCmd.Flags().String("email", "", "Email address")
	enrollCmd.Flags().String("group", "", "Course or class")
	_ = enrollCmd.MarkFlagRequired("external-id")
	_ = enrollCmd.MarkFlagRequired("name")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	image, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading photo: %w", err)
	}

	p, err := openPipeline(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	identity, err := p.enroll.Enroll(ctx,
		mustGetString(cmd, "external-id"), mustGetString(cmd, "name"),
		mustGetString(cmd, "email"), mustGetString(cmd, "group"), image)
	if err != nil {
		return err
	}

	fmt.Printf("Enrolled %s (%s) as identity %d\n", identity.Name, identity.ExternalID, identity.ID)
	return nil
}

var retakeCmd = &cobra.Command{
	Use:   "retake <identity-id> <photo.jpg>",
	Short: "Replace an identity's reference encoding from a new photo",
	Args:  cobra.ExactArgs(2),
	RunE:  runRetake,
}

func init() {
	rootCmd.AddCommand(retakeCmd)
}

func runRetake(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	id, err := parseIdentityID(args[0])
	if err != nil {
		return err
	}
	image, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("reading photo: %w", err)
	}

	p, err := openPipeline(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	identity, err := p.enroll.Retake(ctx, id, image)
	if err != nil {
		return err
	}

	fmt.Printf("Updated reference encoding for %s (identity %d)\n", identity.Name, identity.ID)
	return nil
}
