package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"guest-checkin/internal/desk"
	"guest-checkin/internal/roster"
)

// deskCmd starts the interactive check-in desk
var deskCmd = &cobra.Command{
	Use:   "desk",
	Short: "Start the interactive check-in desk",
	Long: `Start an interactive desk session. Staff list, search and confirm guests
while changes from other desks are merged into the list as they arrive.`,
	Args: cobra.NoArgs,
	RunE: runDesk,
}

var whatsappLoginCmd = &cobra.Command{
	Use:   "whatsapp-login",
	Short: "Link this desk to a WhatsApp account for guest notifications",
	Args:  cobra.NoArgs,
	RunE:  runWhatsAppLogin,
}

func runDesk(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.WhatsAppEnabled {
		if err := a.enableNotifier(ctx, cfg); err != nil {
			a.log.Warn().Err(err).Msg("WhatsApp unavailable, continuing without guest notifications")
		}
	}

	guests := a.handler.Guests()
	fmt.Printf("🎟️  %s check-in desk\n", cfg.EventName)
	fmt.Printf("%d guests loaded, %d confirmed\n", len(guests), roster.CountConfirmed(guests))

	session := desk.NewSession(a.handler, os.Stdin, os.Stdout, cfg.NameField, logger)
	return session.Run(ctx)
}

func runWhatsAppLogin(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	svc, err := newWhatsApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Disconnect()

	if svc.IsLinked() {
		fmt.Println("✅ This desk is already linked to WhatsApp.")
		return nil
	}

	fmt.Println("Connecting to WhatsApp...")
	if err := svc.Connect(ctx, os.Stdout); err != nil {
		return err
	}
	if !svc.IsLinked() {
		return fmt.Errorf("pairing did not complete")
	}
	fmt.Println("\n✅ Linked! Confirmed guests will now receive their bracelet numbers.")
	return nil
}
