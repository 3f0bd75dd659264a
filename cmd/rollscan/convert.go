package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/local/rollscan/internal/voter"
)

var convertCmd = &cobra.Command{
	Use:   "convert <voters.csv>",
	Short: "Re-read an exported table and write it as CSV or xlsx",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		voters, err := voter.ParseTable(data)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		if sorted, _ := cmd.Flags().GetBool("sort"); sorted {
			voter.SortBySerial(voters)
		}
		total, voted := voter.Roll(voters).Counts()
		fmt.Fprintf(os.Stderr, "%d voters, %d voted\n", total, voted)
		output, _ := cmd.Flags().GetString("output")
		return writeVoters(output, voters)
	},
}

func init() {
	convertCmd.Flags().StringP("output", "o", "", "output file; .xlsx writes a workbook (default: stdout CSV)")
	convertCmd.Flags().Bool("sort", false, "order by serial number")
}
