package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"finboard/internal/auth"
	"finboard/internal/budget"
	"finboard/internal/core"
	"finboard/internal/dashboard"
)

func reportCmd(a *app) *cobra.Command {
	var period string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the dashboard reports for a month",
	}
	cmd.PersistentFlags().StringVar(&period, "period", "", "month as YYYY-MM (default: current month)")

	cmd.AddCommand(&cobra.Command{
		Use:   "burn-rate",
		Short: "Spent share of each allocation that applies to the month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withDashboard(cmd.Context(), "", func(ctx context.Context, sess auth.Session, dash *dashboard.Service) error {
				ym, err := parsePeriod(period)
				if err != nil {
					return err
				}
				view, err := dash.BurnRate(ctx, sess, ym)
				if err != nil {
					return err
				}
				writeBurnRate(cmd.OutOrStdout(), view)
				return nil
			})
		},
	})

	var policy string
	acc := &cobra.Command{
		Use:   "accumulation",
		Short: "Carried-forward pools of the accumulating categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withDashboard(cmd.Context(), policy, func(ctx context.Context, sess auth.Session, dash *dashboard.Service) error {
				ym, err := parsePeriod(period)
				if err != nil {
					return err
				}
				view, err := dash.Accumulation(ctx, sess, ym)
				if err != nil {
					return err
				}
				writeAccumulation(cmd.OutOrStdout(), view)
				return nil
			})
		},
	}
	acc.Flags().StringVar(&policy, "policy", "", "missing-month policy: fail-open, fail-closed or strict (default: ACCUMULATION_MISSING_DATA_POLICY)")
	cmd.AddCommand(acc)
	return cmd
}

func parsePeriod(s string) (core.YearMonth, error) {
	if s == "" {
		return core.CurrentYearMonth(time.Now()), nil
	}
	ym, err := core.ParseYearMonth(s)
	if err != nil {
		return core.YearMonth{}, fmt.Errorf("--period: %w", err)
	}
	return ym, nil
}

// withDashboard opens the backend and runs fn with a dashboard service. An
// empty policy means the configured one.
func (a *app) withDashboard(ctx context.Context, policy string, fn func(context.Context, auth.Session, *dashboard.Service) error) error {
	sess, err := a.session()
	if err != nil {
		return err
	}
	if policy == "" {
		policy = a.cfg.AccumulationPolicy
	}
	p, err := budget.ParsePolicy(policy)
	if err != nil {
		return err
	}

	res, err := a.openBackend(ctx)
	if err != nil {
		return err
	}
	defer res.Close()

	cfg := dashboard.DefaultConfig()
	cfg.Policy = p
	return fn(ctx, sess, dashboard.NewService(res.Backend, cfg, a.logger))
}

type styles struct {
	title lipgloss.Style
	head  lipgloss.Style
	level map[budget.Level]lipgloss.Style
	muted lipgloss.Style
}

// newStyles binds the styles to w, so colours are dropped when w is not a
// terminal.
func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title: r.NewStyle().Bold(true),
		head:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		level: map[budget.Level]lipgloss.Style{
			budget.LevelGood:     r.NewStyle().Foreground(lipgloss.Color("42")),
			budget.LevelWarning:  r.NewStyle().Foreground(lipgloss.Color("214")),
			budget.LevelCritical: r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		},
		muted: r.NewStyle().Faint(true),
	}
}

// table aligns columns by visible width, so styled cells line up whether or
// not the renderer emits escape codes.
type table struct {
	rows [][]string
}

func (t *table) row(cells ...string) { t.rows = append(t.rows, cells) }

func (t *table) header(s styles, cols ...string) {
	cells := make([]string, len(cols))
	for i, c := range cols {
		cells[i] = s.head.Render(c)
	}
	t.row(cells...)
}

func (t *table) write(w io.Writer) error {
	var widths []int
	for _, r := range t.rows {
		for i, c := range r {
			if i == len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], lipgloss.Width(c))
		}
	}
	var b strings.Builder
	for _, r := range t.rows {
		for i, c := range r {
			b.WriteString(c)
			if i < len(r)-1 {
				b.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(c)+2))
			}
		}
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeBurnRate(out io.Writer, view dashboard.BurnRateView) {
	s := newStyles(out)
	fmt.Fprintln(out, s.title.Render("Budget burn rate, "+view.Period.Label()))
	if !view.HasBudget {
		fmt.Fprintln(out, s.muted.Render(fmt.Sprintf("No budget for %d.", view.Period.Year)))
		return
	}
	if len(view.Items) == 0 {
		fmt.Fprintln(out, s.muted.Render("Nothing budgeted this month."))
		return
	}

	var t table
	t.header(s, "CATEGORY", "BUDGET", "SPENT", "USED", "LEVEL")
	for _, it := range view.Items {
		name := it.CategoryName
		if it.IsOneTime {
			name += " (one-time)"
		}
		level := it.Level()
		t.row(name,
			it.BudgetAmount.Format(""),
			it.SpentAmount.Format(""),
			fmt.Sprintf("%.0f%%", it.Percentage),
			s.level[level].Render(string(level)))
	}
	_ = t.write(out)
}

func writeAccumulation(out io.Writer, view dashboard.AccumulationView) {
	s := newStyles(out)
	fmt.Fprintln(out, s.title.Render(fmt.Sprintf("Accumulated budget, %s (policy %s)", view.Period.Label(), view.Policy)))
	if !view.HasBudget {
		fmt.Fprintln(out, s.muted.Render(fmt.Sprintf("No budget for %d.", view.Period.Year)))
		return
	}
	if len(view.Unavailable) > 0 {
		months := make([]string, len(view.Unavailable))
		for i, m := range view.Unavailable {
			months[i] = time.Month(m).String()
		}
		fmt.Fprintln(out, s.level[budget.LevelWarning].Render("Spending unavailable for: "+strings.Join(months, ", ")))
	}
	if len(view.Items) == 0 {
		fmt.Fprintln(out, s.muted.Render("No accumulating categories."))
		return
	}

	var t table
	t.header(s, "CATEGORY", "MONTHLY", "ACCUMULATED", "SPENT", "REMAINING")
	for _, it := range view.Items {
		t.row(it.CategoryName,
			it.MonthlyBudget.Format(""),
			it.Accumulated.Format(""),
			it.SpentThisMonth.Format(""),
			it.Remaining.Format(""))
	}
	_ = t.write(out)
}
