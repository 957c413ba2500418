package cmd

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var identitiesCmd = &cobra.Command{
	Use:   "identities",
	Short: "List and manage enrolled identities",
}

var identitiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all enrolled identities",
	RunE:  runIdentitiesList,
}

var identitiesDeleteCmd = &cobra.Command{
	Use:   "delete <identity-id>",
	Short: "Delete an identity and its attendance history",
	Args:  cobra.ExactArgs(1),
	RunE:  runIdentitiesDelete,
}

func init() {
	rootCmd.AddCommand(identitiesCmd)
	identitiesCmd.AddCommand(identitiesListCmd)
	identitiesCmd.AddCommand(identitiesDeleteCmd)
}

func parseIdentityID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid identity ID %q", raw)
	}
	return id, nil
}

func runIdentitiesList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	p, err := openPipeline(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	identities, err := p.identities.List(ctx)
	if err != nil {
		return fmt.Errorf("listing identities: %w", err)
	}

	if len(identities) == 0 {
		fmt.Println("No identities enrolled")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEXTERNAL ID\tNAME\tGROUP\tENROLLED")
	for _, identity := range identities {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			identity.ID, identity.ExternalID, identity.Name, identity.Group,
			identity.CreatedAt.Format("2006-01-02"))
	}
	return w.Flush()
}

func runIdentitiesDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	id, err := parseIdentityID(args[0])
	if err != nil {
		return err
	}

	p, err := openPipeline(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	identity, err := p.identities.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := p.enroll.Delete(ctx, id); err != nil {
		return err
	}

	fmt.Printf("Deleted %s (identity %d) and their attendance history\n", identity.Name, id)
	return nil
}
