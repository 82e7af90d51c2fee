package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"guest-checkin/internal/config"
	"guest-checkin/internal/desk"
	"guest-checkin/internal/models"
	"guest-checkin/internal/roster"
)

// migrateCmd prepares the database schema
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the guest table and change triggers",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the guest list with an XLSX or CSV file",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List guests",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var addCmd = &cobra.Command{
	Use:     "add",
	Short:   "Add a guest",
	Example: `  guest-desk add -f "Apellido y Nombre=Pérez, Ana" -f DNI=30111222 -f "Teléfono=11 5555 0000"`,
	Args:    cobra.NoArgs,
	RunE:    runAdd,
}

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change guest fields",
	Args:  cobra.ExactArgs(1),
	RunE:  runEdit,
}

var confirmCmd = &cobra.Command{
	Use:   "confirm <id>",
	Short: "Check a guest in and assign bracelet numbers",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfirm,
}

var unconfirmCmd = &cobra.Command{
	Use:   "unconfirm <id>",
	Short: "Return a guest to pending and release their bracelets",
	Args:  cobra.ExactArgs(1),
	RunE:  runUnconfirm,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove a guest",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the guest list to an XLSX file",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Check stored bracelet numbers for duplicates and missing values",
	Args:  cobra.NoArgs,
	RunE:  runAudit,
}

// withApp opens the application for a one-shot command
func withApp(fn func(ctx context.Context, a *app) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if cfg.Backend != config.BackendPostgres {
		fmt.Println("SQLite schema is applied automatically; nothing to migrate.")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	a, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.postgres.Migrate(ctx); err != nil {
		return err
	}
	fmt.Println("✅ Database schema is up to date.")
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		n, err := a.handler.Import(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("✅ Imported %d guests from %s\n", n, args[0])
		return nil
	})
}

func runList(cmd *cobra.Command, args []string) error {
	search, _ := cmd.Flags().GetString("search")
	return withApp(func(ctx context.Context, a *app) error {
		guests := a.handler.Search(search)
		if len(guests) == 0 {
			fmt.Println("No guests found.")
			return nil
		}

		fmt.Printf("📋 Guests (%d shown, %d confirmed)\n", len(guests), roster.CountConfirmed(guests))
		fmt.Println(strings.Repeat("-", 80))
		for _, g := range guests {
			bracelets := g.BraceletNumber
			if g.CompanionBraceletNumber != "" {
				bracelets += " / " + g.CompanionBraceletNumber
			}
			fmt.Printf("%-36s  %-9s  %-30s  %s\n", g.ID, g.Status(), g.DisplayName(cfg.NameField), bracelets)
		}
		fmt.Println(strings.Repeat("-", 80))
		return nil
	})
}

func runAdd(cmd *cobra.Command, args []string) error {
	fields, err := fieldFlags(cmd)
	if err != nil {
		return err
	}
	return withApp(func(ctx context.Context, a *app) error {
		g, err := a.handler.Add(ctx, fields)
		if err != nil {
			return err
		}
		fmt.Printf("✅ Added %s (%s)\n", g.DisplayName(cfg.NameField), g.ID)
		return nil
	})
}

func runEdit(cmd *cobra.Command, args []string) error {
	fields, err := fieldFlags(cmd)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return errors.New("nothing to change, pass at least one --field Key=value")
	}
	return withApp(func(ctx context.Context, a *app) error {
		g, err := a.handler.Edit(ctx, args[0], fields)
		if err != nil {
			return err
		}
		fmt.Printf("✅ Updated %s\n", g.DisplayName(cfg.NameField))
		return nil
	})
}

func runConfirm(cmd *cobra.Command, args []string) error {
	primary, _ := cmd.Flags().GetString("bracelet")
	companion, _ := cmd.Flags().GetString("companion")

	return withApp(func(ctx context.Context, a *app) error {
		if cfg.WhatsAppEnabled {
			if err := a.enableNotifier(ctx, cfg); err != nil {
				a.log.Warn().Err(err).Msg("WhatsApp unavailable, confirming without notification")
			}
		}

		g, err := a.handler.Confirm(ctx, args[0], primary, companion)
		if err != nil {
			return err
		}
		fmt.Printf("✅ %s confirmed with bracelet %s", g.DisplayName(cfg.NameField), g.BraceletNumber)
		if g.CompanionBraceletNumber != "" {
			fmt.Printf(" (companion %s)", g.CompanionBraceletNumber)
		}
		fmt.Println()
		return nil
	})
}

func runUnconfirm(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		g, err := a.handler.Unconfirm(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("✅ %s is pending again\n", g.DisplayName(cfg.NameField))
		return nil
	})
}

func runDelete(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		if err := a.handler.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("✅ Deleted %s\n", args[0])
		return nil
	})
}

func runExport(cmd *cobra.Command, args []string) error {
	dir, _ := cmd.Flags().GetString("dir")
	name, _ := cmd.Flags().GetString("name")

	return withApp(func(ctx context.Context, a *app) error {
		path, err := a.handler.Export(dir, name)
		if err != nil {
			return err
		}
		fmt.Printf("✅ Exported %d guests to %s\n", len(a.handler.Guests()), path)
		return nil
	})
}

func runAudit(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		problems := a.handler.Audit()
		if len(problems) == 0 {
			fmt.Println("✅ No bracelet problems found.")
			return nil
		}
		fmt.Printf("⚠️  %d bracelet problem(s):\n", len(problems))
		for _, p := range problems {
			fmt.Printf("  - %v\n", p)
		}
		return fmt.Errorf("audit found %d problem(s)", len(problems))
	})
}

func fieldFlags(cmd *cobra.Command) (models.Fields, error) {
	pairs, err := cmd.Flags().GetStringArray("field")
	if err != nil {
		return nil, err
	}
	return desk.ParseFields(pairs)
}
