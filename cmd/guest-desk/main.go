// Command guest-desk manages the event guest list: import, check-in with bracelets, export.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"guest-checkin/internal/config"
)

var (
	cfg     *config.Config
	logger  zerolog.Logger
	verbose bool
	timeout time.Duration
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "guest-desk",
	Short: "Guest list and bracelet check-in for a single event",
	Long: `guest-desk imports the registered guest list from a spreadsheet,
lets door staff confirm arrivals and hand out numbered bracelets,
and exports the checked-in list back to XLSX.

Several desks can work the same list at once: changes made at one desk
show up at the others.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.LoadConfig()
		if err := cfg.Validate(); err != nil {
			return err
		}
		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		var err error
		logger, err = newLogger(level, cfg.LogFormat)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Timeout for one-shot commands")

	listCmd.Flags().StringP("search", "s", "", "Only show guests matching this text")
	addCmd.Flags().StringArrayP("field", "f", nil, "Guest field as Key=value (repeatable)")
	editCmd.Flags().StringArrayP("field", "f", nil, "Field to change as Key=value (repeatable)")
	confirmCmd.Flags().StringP("bracelet", "b", "", "Guest bracelet number (required)")
	confirmCmd.Flags().StringP("companion", "c", "", "Companion bracelet number")
	confirmCmd.MarkFlagRequired("bracelet")
	exportCmd.Flags().String("dir", "", "Output directory (default: EXPORT_DIR)")
	exportCmd.Flags().String("name", "", "File name without extension (default: invitados-<event>-<date>)")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(confirmCmd)
	rootCmd.AddCommand(unconfirmCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(deskCmd)
	rootCmd.AddCommand(whatsappLoginCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

// newLogger builds the process logger; format is "console" or "json"
func newLogger(level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}

	var l zerolog.Logger
	switch strings.ToLower(format) {
	case "json":
		l = zerolog.New(os.Stderr)
	case "", "console":
		l = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	default:
		return zerolog.Nop(), fmt.Errorf("invalid LOG_FORMAT %q", format)
	}
	return l.Level(lvl).With().Timestamp().Logger(), nil
}
