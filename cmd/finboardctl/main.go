package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"finboard/internal/auth"
	"finboard/internal/backend"
	"finboard/internal/cli"
	"finboard/internal/config"
	"finboard/internal/log"
)

// app carries the global flags and what initConfig derives from them.
type app struct {
	email    string
	token    string
	logLevel string

	cfg    *config.Config
	logger *log.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "finboardctl",
		Short: "Administer finboard and print budget reports",
		Long: `finboardctl runs database migrations, prints the dashboard reports
from the terminal and manages budgets and the spreadsheet ledger.

Configuration comes from the same environment variables (and .env file)
as the finboard server.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.initConfig,
	}

	cmd.PersistentFlags().StringVar(&a.email, "email", "", "user to act as (default: AUTH_DEV_EMAIL)")
	cmd.PersistentFlags().StringVar(&a.token, "token", "", "session token, required with the remote backend")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(migrateCmd(a))
	cmd.AddCommand(reportCmd(a))
	cmd.AddCommand(budgetCmd(a))
	cmd.AddCommand(sheetsCmd(a))
	return cmd
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) initConfig(_ *cobra.Command, _ []string) error {
	cli.LoadEnvFile()
	a.cfg = config.Load()

	level := a.logLevel
	if level == "" {
		level = a.cfg.LogLevel
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	// Reports go to stdout, so logs go to stderr.
	a.logger = log.New(log.Config{Level: lvl, Component: "cli", Output: os.Stderr})
	log.SetDefault(a.logger)
	return nil
}

// session is the user the command acts for.
func (a *app) session() (auth.Session, error) {
	email := a.email
	if email == "" {
		email = a.cfg.AuthDevEmail
	}
	if email == "" {
		return auth.Session{}, errors.New("--email is required (or set AUTH_DEV_EMAIL)")
	}
	if a.cfg.DataBackend == config.BackendRemote && a.token == "" {
		return auth.Session{}, errors.New("--token is required with the remote backend")
	}
	return auth.Session{Email: email, AccessToken: a.token}, nil
}

func (a *app) openBackend(ctx context.Context) (*backend.Result, error) {
	bcfg, err := backend.FromAppConfig(a.cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewFactory(a.logger).CreateBackend(ctx, bcfg)
}
