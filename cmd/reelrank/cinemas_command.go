package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"reelrank/internal/cinema"
)

func newCinemasCommand() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:         "cinemas",
		Short:       "List the cinema branches reelrank knows about",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			branches := cinema.Branches()
			if jsonOutput {
				return writeJSON(cmd, branches)
			}
			rows := make([][]string, 0, len(branches))
			for _, b := range branches {
				rows = append(rows, []string{b.Name, strconv.Itoa(b.Code)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Cinema", "Code"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON")
	return cmd
}
