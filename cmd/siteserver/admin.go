package main

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/tendant/simple-site/pkg/sitecontent"
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create the initial account",
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			password = os.Getenv("ADMIN_PASSWORD")
		}

		_, components, _, err := buildComponents(cmd.Context())
		if err != nil {
			return err
		}
		defer components.Close()

		session, err := components.Service.Register(cmd.Context(), sitecontent.RegisterRequest{
			Username:  username,
			Email:     email,
			Password:  password,
			UserAgent: "siteserver create-admin",
		})
		if errors.Is(err, sitecontent.ErrConflict) {
			fmt.Printf("Account %s already exists\n", email)
			return nil
		}
		if err != nil {
			return fmt.Errorf("creating account: %w", err)
		}

		fmt.Printf("Created account %s (%s)\n", session.Principal.Username, session.Principal.ID)
		return nil
	},
}

var checkDBCmd = &cobra.Command{
	Use:   "check-db",
	Short: "Verify database connectivity and print row counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, components, _, err := buildComponents(cmd.Context())
		if err != nil {
			return err
		}
		defer components.Close()

		if err := components.Service.Ping(cmd.Context()); err != nil {
			return fmt.Errorf("database unavailable: %w", err)
		}
		fmt.Printf("Database %s is reachable\n", cfg.DatabaseType)

		reporter, ok := components.Repository.(sitecontent.StatsReporter)
		if !ok {
			return nil
		}
		stats, err := reporter.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("reading stats: %w", err)
		}

		tables := make([]string, 0, len(stats))
		for table := range stats {
			tables = append(tables, table)
		}
		sort.Strings(tables)
		for _, table := range tables {
			fmt.Printf("  %-16s %d\n", table, stats[table])
		}
		return nil
	},
}
