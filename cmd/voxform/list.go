package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/voxform/voxform/pkg/archive"
)

var listLimit int

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived encounters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := resolveSettings()
		if err != nil {
			return err
		}
		if s.archiveDSN == "" {
			return fmt.Errorf("no archive configured (set --archive-dsn)")
		}

		store, err := archive.Open(cmd.Context(), s.archiveDSN)
		if err != nil {
			return err
		}
		defer store.Close()

		encounters, err := store.List(cmd.Context(), listLimit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tMODE\tCREATED\tTURNS")
		for _, e := range encounters {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", e.ID, e.Mode, e.CreatedAt.Format("2006-01-02 15:04"), len(e.Transcript))
		}
		return w.Flush()
	},
}

func init() {
	listCmd.Flags().IntVar(&listLimit, "limit", 20, "maximum encounters to list")
}
