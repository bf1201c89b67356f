package cmd

import (
	"strconv"

	"github.com/openswoop/rmpscrape/pkg/report"
	"github.com/openswoop/rmpscrape/pkg/scrape"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch <tid>",
	Short: "Scrape a single professor and print it as CSV",
	Long: `Fetches one professor's ratings page and writes the parsed row, with
its header, to standard output. Nothing is appended to the CSV file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tid, err := strconv.Atoi(args[0])
		if err != nil {
			return eris.Wrapf(err, "%q is not a tid", args[0])
		}

		prof, err := scrape.NewClient(c, cfg.Harvest.Url).Professor(cmd.Context(), tid)
		if err != nil {
			return err
		}
		return report.WriteCsv([]scrape.Professor{prof}, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}
