package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/datallboy/dashdl/internal/domain"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent download sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			appCtx, cleanup, err := bootstrap()
			if err != nil {
				return err
			}
			defer cleanup()

			sessions, err := appCtx.Store.ListSessions(limit)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Println("No sessions yet.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tVIDEO\tAUDIO\tCREATED\tERROR")
			for _, v := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					v.ID, v.Status,
					streamColumn(v.Video),
					streamColumn(v.Audio),
					humanize.Time(v.CreatedAt),
					v.Error)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of sessions to show")
	return cmd
}

func streamColumn(p domain.StreamProgress) string {
	if !p.TotalKnown {
		return humanize.Bytes(uint64(p.Done))
	}
	return fmt.Sprintf("%s (%.0f%%)", humanize.Bytes(uint64(p.Done)), p.Percent())
}
