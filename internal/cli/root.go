package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "widload <input_dir>",
	Short: "Load World Inequality Database exports into PostgreSQL",
	Long: `widload loads a World Inequality Database CSV export into PostgreSQL.

It recreates the fact table LIST-partitioned by country, loads each country's
data file into its own partition, then stages the metadata files and builds
the enriched fact table and the deduplicated variable dimension.

The input directory holds WID_countries.csv, WID_data_{code}.csv and
WID_metadata_{code}.csv. An optional widload.yaml in the same directory
overrides table names, file names, workers and connection defaults.

Exit Codes:
  0  - Success
  1  - General error
  2  - CLI usage error (invalid arguments or flags)
  3  - Panic or unexpected system error
  4  - Some partitions or metadata files failed
  10 - Invalid configuration
  11 - Database connection failed
  13 - Fact table reset failed
  14 - Country reference file not found`,
	Args:         RequireInputDir,
	RunE:         runLoad,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		printVersionInfo()
		return nil
	}
	return rootCmd.Execute()
}

func init() {
	// -h is the host flag, so help is long-only.
	rootCmd.PersistentFlags().Bool("help", false, "Help for widload")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	registerLoadFlags(rootCmd)
}

// getVerboseFlag safely retrieves the verbose flag value
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to get verbose flag: %v\n", err)
		return false
	}
	return verbose
}
