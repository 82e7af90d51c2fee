package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"guest-checkin/internal/models"
)

const sendTimeout = 15 * time.Second

var (
	ErrNotConnected = errors.New("whatsapp is not connected")
	ErrNoPhone      = errors.New("guest has no phone number")
)

type Config struct {
	DataDir            string
	DefaultCountryCode string
	PhoneField         string
	NameField          string
	EventName          string
}

// Service sends check-in confirmations to guests over WhatsApp
type Service struct {
	client *whatsmeow.Client
	cfg    *Config
	log    zerolog.Logger
}

// NewService creates a new WhatsApp service backed by the device store in cfg.DataDir
func NewService(ctx context.Context, cfg *Config, log zerolog.Logger) (*Service, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on", filepath.Join(cfg.DataDir, "whatsmeow.db"))
	// Use nil logger - sqlstore will use a no-op logger by default
	container, err := sqlstore.New(ctx, "sqlite3", dsn, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	service := &Service{
		client: whatsmeow.NewClient(deviceStore, nil),
		cfg:    cfg,
		log:    log.With().Str("component", "WhatsApp").Logger(),
	}
	service.client.AddEventHandler(service.eventHandler)

	return service, nil
}

// NormalizePhoneNumber converts a locally written number to international digits.
// A leading 00 is dropped; a leading trunk 0 or a bare local number gets countryCode.
func NormalizePhoneNumber(phoneNumber, countryCode string) string {
	var b strings.Builder
	for _, r := range phoneNumber {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	explicit := strings.HasPrefix(strings.TrimSpace(phoneNumber), "+")

	switch {
	case digits == "":
		return ""
	case strings.HasPrefix(digits, "00"):
		digits = digits[2:]
	case explicit || countryCode == "":
	case strings.HasPrefix(digits, "0"):
		digits = countryCode + digits[1:]
	case !strings.HasPrefix(digits, countryCode) || len(digits) <= 10:
		digits = countryCode + digits
	}

	// Country code followed by the trunk 0: 5401155550000 -> 541155550000
	if countryCode != "" && strings.HasPrefix(digits, countryCode+"0") {
		digits = countryCode + digits[len(countryCode)+1:]
	}
	return digits
}

// ConfirmationMessage is the text sent to a guest after check-in
func ConfirmationMessage(guest models.Guest, nameField, eventName string) string {
	var b strings.Builder
	b.WriteString("✅ *Check-in confirmed*\n\n")
	if name := guest.Fields.String(nameField); name != "" {
		fmt.Fprintf(&b, "Hi %s,\n\n", name)
	}
	if eventName != "" {
		fmt.Fprintf(&b, "Welcome to %s!\n", eventName)
	}
	fmt.Fprintf(&b, "🎟️ Your bracelet: *%s*\n", guest.BraceletNumber)
	if guest.CompanionBraceletNumber != "" {
		fmt.Fprintf(&b, "🎟️ Companion bracelet: *%s*\n", guest.CompanionBraceletNumber)
	}
	b.WriteString("\nPlease keep your bracelet on for the whole event.")
	return b.String()
}

// Connect connects to WhatsApp, printing a pairing QR code to out when the device is not linked yet
func (s *Service) Connect(ctx context.Context, out io.Writer) error {
	if s.client.Store.ID != nil {
		if err := s.client.Connect(); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		return nil
	}

	qrChan, err := s.client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("failed to get QR channel: %w", err)
	}
	if err := s.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	for evt := range qrChan {
		if evt.Event != "code" {
			fmt.Fprintf(out, "Login event: %s\n", evt.Event)
			continue
		}
		// Generate and display QR code in terminal
		q, err := qrcode.New(evt.Code, qrcode.Medium)
		if err != nil {
			fmt.Fprintf(out, "QR Code: %s\n", evt.Code)
			fmt.Fprintln(out, "Please scan this QR code with WhatsApp to connect.")
			continue
		}
		fmt.Fprintln(out, "\n"+q.ToSmallString(false))
		fmt.Fprintln(out, "📱 Please scan the QR code above with WhatsApp:")
		fmt.Fprintln(out, "   1. Open WhatsApp on your phone")
		fmt.Fprintln(out, "   2. Go to Settings > Linked Devices")
		fmt.Fprintln(out, "   3. Tap 'Link a Device'")
		fmt.Fprintln(out, "   4. Scan the QR code shown above")
	}
	return nil
}

// IsLinked reports whether a device is already paired
func (s *Service) IsLinked() bool {
	return s.client.Store.ID != nil
}

// Disconnect disconnects from WhatsApp
func (s *Service) Disconnect() {
	s.client.Disconnect()
}

// NotifyConfirmed sends the guest their bracelet numbers
func (s *Service) NotifyConfirmed(ctx context.Context, guest models.Guest) error {
	phone := guest.Fields.String(s.cfg.PhoneField)
	if phone == "" {
		return fmt.Errorf("%w: %s", ErrNoPhone, guest.ID)
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	return s.SendMessage(ctx, phone, ConfirmationMessage(guest, s.cfg.NameField, s.cfg.EventName))
}

// SendMessage sends a simple text message
func (s *Service) SendMessage(ctx context.Context, phoneNumber, message string) error {
	if !s.client.IsConnected() {
		return ErrNotConnected
	}

	phoneNumber = NormalizePhoneNumber(phoneNumber, s.cfg.DefaultCountryCode)
	jid, err := s.resolveJID(ctx, phoneNumber)
	if err != nil {
		return err
	}

	s.log.Debug().Str("jid", jid.String()).Str("phone", phoneNumber).Msg("Attempting to send message")

	sent, err := s.client.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: &message,
	})
	if err != nil {
		return fmt.Errorf("failed to send message to %s: %w", phoneNumber, err)
	}

	s.log.Info().Str("message_id", sent.ID).Str("phone", phoneNumber).Msg("Message sent")
	return nil
}

// resolveJID verifies the number is on WhatsApp and returns the JID it reports
func (s *Service) resolveJID(ctx context.Context, phoneNumber string) (types.JID, error) {
	resp, err := s.client.IsOnWhatsApp(ctx, []string{"+" + phoneNumber})
	if err != nil {
		return types.JID{}, fmt.Errorf("failed to verify number on WhatsApp: %w", err)
	}
	if len(resp) == 0 || !resp[0].IsIn {
		return types.JID{}, fmt.Errorf("number %s is not registered on WhatsApp", phoneNumber)
	}
	return resp[0].JID, nil
}

// eventHandler handles incoming WhatsApp events
func (s *Service) eventHandler(evt interface{}) {
	switch evt := evt.(type) {
	case *events.Message:
		if !evt.Info.IsFromMe {
			s.log.Debug().Str("sender", evt.Info.Sender.String()).Msg("Ignoring incoming message")
		}
	case *events.Connected:
		s.log.Info().Msg("Connected to WhatsApp")
	case *events.Disconnected:
		s.log.Info().Msg("Disconnected from WhatsApp")
	case *events.LoggedOut:
		s.log.Warn().Msg("Logged out from WhatsApp")
	}
}
