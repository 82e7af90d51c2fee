package handler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"guest-checkin/internal/bracelet"
	"guest-checkin/internal/models"
	"guest-checkin/internal/roster"
	"guest-checkin/internal/spreadsheet"
	"guest-checkin/internal/storage"
)

// Notifier tells a guest their check-in went through
type Notifier interface {
	NotifyConfirmed(ctx context.Context, guest models.Guest) error
}

type Config struct {
	EventName      string
	RequiredFields []string
	ExportColumns  []string
	ExportDir      string
	NameField      string
}

// CheckinHandler applies staff actions to the guest list.
// Every mutation is validated against the roster, written to the store,
// and only then reflected in the roster.
type CheckinHandler struct {
	store    storage.GuestStore
	roster   *roster.Roster
	notifier Notifier
	config   *Config
	log      zerolog.Logger
	now      func() time.Time
}

// NewCheckinHandler creates a new check-in handler
func NewCheckinHandler(store storage.GuestStore, r *roster.Roster, cfg *Config, log zerolog.Logger) *CheckinHandler {
	if cfg == nil {
		cfg = &Config{}
	}
	return &CheckinHandler{
		store:  store,
		roster: r,
		config: cfg,
		log:    log.With().Str("component", "CheckinHandler").Logger(),
		now:    time.Now,
	}
}

// SetNotifier sets the notifier called after each confirmation
func (h *CheckinHandler) SetNotifier(n Notifier) {
	h.notifier = n
}

// Load replaces the roster with the stored guest list
func (h *CheckinHandler) Load(ctx context.Context) error {
	guests, err := h.store.ListAll(ctx)
	if err != nil {
		return remote("load guests", err)
	}
	h.roster.Replace(guests)
	h.log.Debug().Int("guests", len(guests)).Msg("Roster loaded")
	return nil
}

// Watch subscribes to store changes; feed each event to ApplyChange
func (h *CheckinHandler) Watch(ctx context.Context) (<-chan models.ChangeEvent, error) {
	ch, err := h.store.Subscribe(ctx)
	if err != nil {
		return nil, remote("subscribe to changes", err)
	}
	return ch, nil
}

// ApplyChange merges a remote change into the roster and reports whether it changed.
// A resync reloads the whole list.
func (h *CheckinHandler) ApplyChange(ctx context.Context, ev models.ChangeEvent) (bool, error) {
	if ev.Type == models.ChangeResync {
		if err := h.Load(ctx); err != nil {
			return false, err
		}
		return true, nil
	}
	return h.roster.Apply(ev), nil
}

// Guests returns the current roster in list order
func (h *CheckinHandler) Guests() []models.Guest {
	return h.roster.Snapshot()
}

// Search returns the guests matching term
func (h *CheckinHandler) Search(term string) []models.Guest {
	return roster.Filter(h.roster.Snapshot(), term)
}

// Guest returns one guest by id
func (h *CheckinHandler) Guest(id string) (models.Guest, error) {
	g, ok := h.roster.Get(id)
	if !ok {
		return models.Guest{}, fmt.Errorf("%w: %s", ErrGuestNotFound, id)
	}
	return g, nil
}

// Import replaces every stored guest with the rows of the spreadsheet at path
func (h *CheckinHandler) Import(ctx context.Context, path string) (int, error) {
	table, err := spreadsheet.Import(path)
	if err != nil {
		return 0, remote("import spreadsheet", err)
	}

	fileName := filepath.Base(path)
	columns := make([]string, 0, len(table.Headers))
	for _, header := range table.Headers {
		if !isExportColumn(header) {
			columns = append(columns, header)
		}
	}

	at := h.now()
	guests := make([]models.Guest, 0, len(table.Rows))
	for _, row := range table.Rows {
		guests = append(guests, importedGuest(row, columns, fileName, at))
	}

	if err := h.store.ReplaceAll(ctx, guests); err != nil {
		return 0, remote("replace guests", err)
	}
	if err := h.Load(ctx); err != nil {
		return 0, err
	}

	h.log.Info().Str("file", fileName).Int("guests", len(guests)).Msg("Guest list imported")
	return len(guests), nil
}

// Add creates a guest from manually entered fields
func (h *CheckinHandler) Add(ctx context.Context, fields models.Fields) (*models.Guest, error) {
	if err := models.RequireFields(fields, h.config.RequiredFields); err != nil {
		return nil, err
	}

	created, err := h.store.Insert(ctx, models.Guest{
		ID:     uuid.New().String(),
		Fields: models.NormalizeFields(explicitCompanion(fields)),
	})
	if err != nil {
		return nil, remote("add guest", err)
	}
	h.roster.Upsert(*created)

	h.log.Info().Str("guest_id", created.ID).Msg("Guest added")
	return created, nil
}

// Edit merges changes into a guest's fields.
// The companion flag is derived again only when the changes touch a companion column.
// A confirmed guest must still satisfy the bracelet rules with the edited companion flag.
func (h *CheckinHandler) Edit(ctx context.Context, id string, changes models.Fields) (*models.Guest, error) {
	current, err := h.Guest(id)
	if err != nil {
		return nil, err
	}

	changes = explicitCompanion(changes)
	merged := current.Fields.Merge(changes)
	if _, explicit := changes[models.HasCompanionField]; !explicit && models.TouchesCompanion(changes) {
		delete(merged, models.HasCompanionField)
	}
	merged = models.NormalizeFields(merged)

	if current.IsConfirmed {
		edited := current
		edited.Fields = merged
		if err := bracelet.ValidateConfirmation(id, current.BraceletNumber, current.CompanionBraceletNumber,
			edited.HasCompanion(), h.roster.Snapshot()); err != nil {
			return nil, err
		}
	}

	return h.update(ctx, "edit guest", id, storage.Patch{Fields: merged})
}

// Delete removes a guest
func (h *CheckinHandler) Delete(ctx context.Context, id string) error {
	if _, err := h.Guest(id); err != nil {
		return err
	}
	if err := h.store.Delete(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.roster.Remove(id)
			return fmt.Errorf("%w: %s", ErrGuestNotFound, id)
		}
		return remote("delete guest", err)
	}
	h.roster.Remove(id)

	h.log.Info().Str("guest_id", id).Msg("Guest deleted")
	return nil
}

// Confirm checks a guest in with the given bracelet numbers.
// Confirming an already confirmed guest reassigns the numbers.
func (h *CheckinHandler) Confirm(ctx context.Context, id, primary, companion string) (*models.Guest, error) {
	guest, err := h.Guest(id)
	if err != nil {
		return nil, err
	}

	primary = bracelet.Normalize(primary)
	companion = bracelet.Normalize(companion)
	if err := bracelet.ValidateConfirmation(id, primary, companion, guest.HasCompanion(), h.roster.Snapshot()); err != nil {
		return nil, err
	}

	confirmed, err := h.update(ctx, "confirm guest", id, storage.ConfirmPatch(primary, companion, h.now()))
	if err != nil {
		return nil, err
	}

	h.log.Info().
		Str("guest_id", id).
		Str("name", confirmed.DisplayName(h.config.NameField)).
		Str("bracelet", primary).
		Str("companion_bracelet", companion).
		Msg("Guest confirmed")

	if h.notifier != nil {
		if err := h.notifier.NotifyConfirmed(ctx, *confirmed); err != nil {
			h.log.Warn().Err(err).Str("guest_id", id).Msg("Failed to notify guest")
		}
	}
	return confirmed, nil
}

// Unconfirm returns a guest to pending and releases both bracelet numbers
func (h *CheckinHandler) Unconfirm(ctx context.Context, id string) (*models.Guest, error) {
	if _, err := h.Guest(id); err != nil {
		return nil, err
	}

	g, err := h.update(ctx, "unconfirm guest", id, storage.UnconfirmPatch())
	if err != nil {
		return nil, err
	}
	h.log.Info().Str("guest_id", id).Msg("Guest unconfirmed")
	return g, nil
}

// Audit checks the current roster against the bracelet rules
func (h *CheckinHandler) Audit() []error {
	return bracelet.CheckRoster(h.roster.Snapshot())
}

func (h *CheckinHandler) update(ctx context.Context, op, id string, patch storage.Patch) (*models.Guest, error) {
	g, err := h.store.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.roster.Remove(id)
			return nil, fmt.Errorf("%w: %s", ErrGuestNotFound, id)
		}
		return nil, remote(op, err)
	}
	h.roster.Upsert(*g)
	return g, nil
}

// importedGuest builds a guest from a spreadsheet row.
// Bracelet and confirmation columns from a previous export are restored
// when they describe a complete check-in, and never kept as plain fields.
func importedGuest(row map[string]string, columns []string, fileName string, at time.Time) models.Guest {
	fields := make(models.Fields, len(row))
	var primary, companion, confirmed string
	for k, v := range row {
		switch models.Fold(k) {
		case models.Fold(ColumnBracelet):
			primary = bracelet.Normalize(v)
		case models.Fold(ColumnCompanionBracelet):
			companion = bracelet.Normalize(v)
		case models.Fold(ColumnConfirmed):
			confirmed = v
		default:
			fields[k] = v
		}
	}

	g := models.Guest{
		ID:       uuid.New().String(),
		Fields:   models.NormalizeFields(fields),
		Columns:  columns,
		FileName: fileName,
	}
	if models.IsTruthy(confirmed) && primary != "" && (!g.HasCompanion() || companion != "") {
		g.BraceletNumber = primary
		g.CompanionBraceletNumber = companion
		g.IsConfirmed = true
		g.ConfirmedAt = &at
	}
	return g
}

// explicitCompanion turns a typed-in has_companion value into the canonical bool
func explicitCompanion(fields models.Fields) models.Fields {
	v, ok := fields[models.HasCompanionField]
	if !ok {
		return fields
	}
	if _, isBool := v.(bool); isBool {
		return fields
	}
	out := fields.Clone()
	out[models.HasCompanionField] = fields.Bool(models.HasCompanionField)
	return out
}
