package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lcamail-engine/internal/lca"
)

var filterValuesColumn string

var filterValuesCmd = &cobra.Command{
	Use:   "filter-values",
	Short: "Print the distinct values of each filterable column as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ds := lca.NewDataset(lca.OptionsFromConfig(cfg), logger)
		values, err := lca.NewFilterIndex(ds, logger).Values(cmd.Context())
		if err != nil {
			return fmt.Errorf("filter values: %w", err)
		}
		if filterValuesColumn == "" {
			return writeJSON(cmd.OutOrStdout(), values)
		}
		col := lca.NormalizeColumn(filterValuesColumn)
		vals, ok := values[col]
		if !ok {
			return fmt.Errorf("%s is not a filterable column", col)
		}
		return writeJSON(cmd.OutOrStdout(), vals)
	},
}

func init() {
	filterValuesCmd.Flags().StringVar(&filterValuesColumn, "column", "", "print only this column")
	rootCmd.AddCommand(filterValuesCmd)
}
