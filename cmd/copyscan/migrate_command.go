package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kdimtricp/copyscan/internal/database"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the reference ledger schema to the configured database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := ctx.ensure()
			if err != nil {
				return err
			}

			db, err := database.NewDB(database.Config{SQLitePath: cfg.Database.SQLitePath})
			if err != nil {
				return err
			}
			defer db.Close()

			out := cmd.OutOrStdout()
			if !status {
				if err := db.Migrate(cmd.Context()); err != nil {
					return fmt.Errorf("run migrations: %w", err)
				}
				fmt.Fprintf(out, "Migrations applied to %s\n", db.Path())
			}

			migrator := database.NewMigrator(db.Conn())
			if err := migrator.Initialize(cmd.Context()); err != nil {
				return err
			}
			applied, err := migrator.GetAppliedMigrations(cmd.Context())
			if err != nil {
				return err
			}
			migrations, err := migrator.LoadMigrations(database.Migrations)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(migrations))
			for _, m := range migrations {
				state := "pending"
				if applied[m.Version] {
					state = "applied"
				}
				rows = append(rows, []string{m.Version, m.Name, state})
			}
			_, err = fmt.Fprintln(out, renderTable([]string{"Version", "Name", "Status"}, rows))
			return err
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "Show migration status only")
	return cmd
}
