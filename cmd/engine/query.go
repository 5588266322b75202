package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"lcamail-engine/internal/lca"
)

var (
	queryPage     int
	queryPageSize int
	queryFilters  string
	queryWhere    []string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Print one page of filtered LCA records as JSON",
	Long: `Load the LCA file and print one page of matching records in the same
shape as GET /api/lca/data.

Filters can be given as the JSON object the API takes, as repeated --where
COLUMN=VALUE flags, or both:

  lcamail-engine query --where EMPLOYER_STATE=CA --where EMPLOYER_STATE=NY
  lcamail-engine query --filters '{"VISA_CLASS":["H-1B"]}' --page 2`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filters, err := buildFilters(queryFilters, queryWhere)
		if err != nil {
			return err
		}
		ds := lca.NewDataset(lca.OptionsFromConfig(cfg), logger)
		page, err := ds.Query(cmd.Context(), queryPage, queryPageSize, filters)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		return writeJSON(cmd.OutOrStdout(), page)
	},
}

func init() {
	queryCmd.Flags().IntVar(&queryPage, "page", 1, "page number (1-based)")
	queryCmd.Flags().IntVar(&queryPageSize, "page-size", 0, "records per page (0 = configured default)")
	queryCmd.Flags().StringVar(&queryFilters, "filters", "", "filters as a JSON object of column to values")
	queryCmd.Flags().StringArrayVar(&queryWhere, "where", nil, "COLUMN=VALUE filter, repeatable")
	rootCmd.AddCommand(queryCmd)
}

// buildFilters merges the JSON filters with --where pairs. Repeating a
// column widens it: any listed value matches.
func buildFilters(raw string, where []string) (lca.Filters, error) {
	filters, err := lca.ParseFilters(raw)
	if err != nil {
		return nil, err
	}
	for _, w := range where {
		col, val, ok := strings.Cut(w, "=")
		col = strings.TrimSpace(col)
		if !ok || col == "" {
			return nil, fmt.Errorf("%w: --where %q must be COLUMN=VALUE", lca.ErrInvalidFilters, w)
		}
		if filters == nil {
			filters = lca.Filters{}
		}
		filters[col] = append(filters[col], strings.TrimSpace(val))
	}
	return filters, nil
}
