package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Noofbiz/carPrice/datasets"
	"github.com/Noofbiz/carPrice/features"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the declared input columns and how each is used",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "COLUMN\tKIND\tUSE")
			for _, f := range datasets.VehicleSchema.Fields {
				use := "predictor"
				switch {
				case f.Name == datasets.VehicleSchema.Response:
					use = "response (log), training file only"
				case features.IsDropped(f.Name):
					use = "dropped"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Name, f.Kind, use)
			}
			for _, name := range []string{features.Age, features.PowerDensity, features.AvgMPG, features.Footprint} {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", name, "engineered", "predictor")
			}
			return tw.Flush()
		},
	}
}

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Validate a listings file and report missing values per column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			withoutPrice, _ := cmd.Flags().GetBool("without-price")
			raws, err := datasets.LoadRecords(args[0], datasets.VehicleSchema, !withoutPrice)
			if err != nil {
				return err
			}
			recs := datasets.NormalizeAll(datasets.VehicleSchema, raws)
			counts := datasets.MissingCounts(datasets.VehicleSchema, recs)

			names := make([]string, 0, len(counts))
			for name := range counts {
				names = append(names, name)
			}
			sort.Strings(names)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d rows\n", args[0], len(recs))
			if len(names) == 0 {
				fmt.Fprintln(out, "no missing values")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "COLUMN\tMISSING\tPERCENT")
			for _, name := range names {
				fmt.Fprintf(tw, "%s\t%d\t%.1f%%\n", name, counts[name], 100*float64(counts[name])/float64(len(recs)))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Bool("without-price", false, "the file is a test file (no price column)")
	return cmd
}
