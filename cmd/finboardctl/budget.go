package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"finboard/internal/services"
)

func budgetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Manage yearly budgets",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the budgets of the user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			res, err := a.openBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer res.Close()

			budgets, err := services.NewBudgetService(res.Backend, res.Backend, res.Backend).List(cmd.Context(), sess)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(budgets) == 0 {
				fmt.Fprintln(out, "No budgets.")
				return nil
			}
			var t table
			t.header(newStyles(out), "YEAR", "ITEMS", "ID")
			for _, b := range budgets {
				t.row(fmt.Sprint(b.Year), fmt.Sprint(len(b.Items)), b.ID)
			}
			return t.write(out)
		},
	})

	var from, to int
	cp := &cobra.Command{
		Use:     "copy",
		Short:   "Create a year's budget from the items of another year",
		Example: `  finboardctl budget copy --from 2025 --to 2026`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if from == 0 || to == 0 {
				return errors.New("--from and --to are required")
			}
			sess, err := a.session()
			if err != nil {
				return err
			}
			res, err := a.openBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer res.Close()

			b, err := services.NewBudgetService(res.Backend, res.Backend, res.Backend).Copy(cmd.Context(), sess, from, to)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Copied %d items from %d to %d.\n", len(b.Items), from, to)
			return nil
		},
	}
	cp.Flags().IntVar(&from, "from", 0, "source year")
	cp.Flags().IntVar(&to, "to", 0, "target year")
	cmd.AddCommand(cp)
	return cmd
}
