package main

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tendant/simple-site/pkg/sitecontent/config"
	repopg "github.com/tendant/simple-site/pkg/sitecontent/repo/postgres"
	reposqlite "github.com/tendant/simple-site/pkg/sitecontent/repo/sqlite"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := withSchema(cfg, repopg.MigrateUp, reposqlite.MigrateUp); err != nil {
			return err
		}
		fmt.Println("Migrations applied")
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		steps, _ := cmd.Flags().GetInt("steps")
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		err = withSchema(cfg,
			func(url string) error { return repopg.MigrateDown(url, steps) },
			func(db *sql.DB) error { return reposqlite.MigrateDown(db, steps) },
		)
		if err != nil {
			return err
		}
		fmt.Println("Migrations rolled back")
		return nil
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the applied schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		var version uint
		var dirty bool
		err = withSchema(cfg,
			func(url string) (err error) {
				version, dirty, err = repopg.MigrationVersion(url)
				return err
			},
			func(db *sql.DB) (err error) {
				version, dirty, err = reposqlite.MigrationVersion(db)
				return err
			},
		)
		if err != nil {
			return err
		}

		fmt.Printf("Version: %d\n", version)
		if dirty {
			fmt.Println("Schema is dirty: fix the failed migration and force the version")
		}
		return nil
	},
}

// withSchema runs the postgres or sqlite variant of a migration command
// against the configured database.
func withSchema(cfg *config.ServerConfig, pg func(url string) error, lite func(db *sql.DB) error) error {
	switch cfg.DatabaseType {
	case "postgres":
		return pg(cfg.DatabaseURL)
	case "sqlite":
		repo, err := reposqlite.Open(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer repo.Close()
		return lite(repo.DB())
	default:
		return fmt.Errorf("database type %q has no schema to migrate", cfg.DatabaseType)
	}
}
