package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"pitaradio/core/charts"
	"pitaradio/db"
	"pitaradio/repository"

	"github.com/spf13/cobra"
)

var chartsGenre string

var chartsCmd = &cobra.Command{
	Use:   "charts",
	Short: "Print the charts of a genre straight from the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		gdb, err := db.Open(cfg)
		if err != nil {
			return err
		}
		defer db.Close(gdb)

		engine := charts.NewEngine(repository.NewTrackRepository(gdb), repository.NewStatRepository(gdb), nil)
		entries, err := engine.GetCharts(cmd.Context(), chartsGenre)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Printf("No tracks in genre %q\n", chartsGenre)
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "#\tID\tTITLE\tARTIST\tCLAPS\tPLAYS\tSECONDS")
		for i, e := range entries {
			fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%d\t%d\t%d\n",
				i+1, e.TrackID, e.Title, e.Artist, e.ClapCount, e.PlayCount, e.PlaySeconds)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(chartsCmd)
	chartsCmd.Flags().StringVarP(&chartsGenre, "genre", "g", "", "genre to rank (required)")
	chartsCmd.MarkFlagRequired("genre")
}
