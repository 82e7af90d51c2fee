package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"guest-checkin/internal/models"
)

const guestColumns = "id, file_name, row_data, bracelet_number, companion_bracelet_number, is_confirmed, confirmed_at, created_at, updated_at, column_order"

// dialect captures the few differences between the PostgreSQL and SQLite tables
type dialect struct {
	placeholder func(n int) string
	orderBy     string
}

var postgresDialect = dialect{
	placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	orderBy:     "created_at ASC, seq ASC",
}

var sqliteDialect = dialect{
	placeholder: func(int) string { return "?" },
	orderBy:     "created_at ASC, rowid ASC",
}

// sqlGuests implements the CRUD half of GuestStore over database/sql
type sqlGuests struct {
	db  *sql.DB
	d   dialect
	now func() time.Time
}

func newSQLGuests(db *sql.DB, d dialect) *sqlGuests {
	return &sqlGuests{
		db:  db,
		d:   d,
		now: func() time.Time { return time.Now().UTC() },
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGuest(row rowScanner) (*models.Guest, error) {
	var (
		g         models.Guest
		fileName  sql.NullString
		rowData   []byte
		bracelet  sql.NullString
		companion sql.NullString
		confirmed sql.NullTime
		columns   sql.NullString
	)
	if err := row.Scan(&g.ID, &fileName, &rowData, &bracelet, &companion, &g.IsConfirmed, &confirmed, &g.CreatedAt, &g.UpdatedAt, &columns); err != nil {
		return nil, err
	}
	if columns.Valid && columns.String != "" {
		if err := json.Unmarshal([]byte(columns.String), &g.Columns); err != nil {
			return nil, fmt.Errorf("failed to unmarshal column order: %w", err)
		}
	}

	fields, err := decodeFields(rowData)
	if err != nil {
		return nil, err
	}
	g.Fields = fields
	g.FileName = fileName.String
	g.BraceletNumber = strings.TrimSpace(bracelet.String)
	g.CompanionBraceletNumber = strings.TrimSpace(companion.String)
	if confirmed.Valid {
		t := confirmed.Time
		g.ConfirmedAt = &t
	}
	return &g, nil
}

func (s *sqlGuests) ListAll(ctx context.Context) ([]models.Guest, error) {
	query := fmt.Sprintf("SELECT %s FROM attendees ORDER BY %s", guestColumns, s.d.orderBy)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list guests: %w", err)
	}
	defer rows.Close()

	guests := make([]models.Guest, 0)
	for rows.Next() {
		g, err := scanGuest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan guest: %w", err)
		}
		guests = append(guests, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate guests: %w", err)
	}
	return guests, nil
}

func (s *sqlGuests) Get(ctx context.Context, id string) (*models.Guest, error) {
	query := fmt.Sprintf("SELECT %s FROM attendees WHERE id = %s", guestColumns, s.d.placeholder(1))
	g, err := scanGuest(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get guest: %w", err)
	}
	return g, nil
}

type execer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *sqlGuests) insert(ctx context.Context, q execer, guest models.Guest, at time.Time) (*models.Guest, error) {
	if guest.ID == "" {
		guest.ID = uuid.NewString()
	}
	data, err := encodeFields(guest.Fields)
	if err != nil {
		return nil, err
	}

	var confirmedAt any
	if guest.ConfirmedAt != nil {
		confirmedAt = guest.ConfirmedAt.UTC()
	}
	var columns any
	if len(guest.Columns) > 0 {
		order, err := json.Marshal(guest.Columns)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal column order: %w", err)
		}
		columns = string(order)
	}

	ph := make([]string, 10)
	for i := range ph {
		ph[i] = s.d.placeholder(i + 1)
	}
	query := fmt.Sprintf("INSERT INTO attendees (%s) VALUES (%s) RETURNING %s",
		guestColumns, strings.Join(ph, ", "), guestColumns)

	g, err := scanGuest(q.QueryRowContext(ctx, query,
		guest.ID,
		nullString(guest.FileName),
		data,
		nullString(guest.BraceletNumber),
		nullString(guest.CompanionBraceletNumber),
		guest.IsConfirmed,
		confirmedAt,
		at,
		at,
		columns,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to insert guest: %w", err)
	}
	return g, nil
}

func (s *sqlGuests) Insert(ctx context.Context, guest models.Guest) (*models.Guest, error) {
	return s.insert(ctx, s.db, guest, s.now())
}

func (s *sqlGuests) Update(ctx context.Context, id string, patch Patch) (*models.Guest, error) {
	if patch.Empty() {
		return s.Get(ctx, id)
	}

	cols, args, err := patch.assignments()
	if err != nil {
		return nil, err
	}
	cols = append(cols, "updated_at")
	args = append(args, s.now())

	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = %s", c, s.d.placeholder(i+1))
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE attendees SET %s WHERE id = %s RETURNING %s",
		strings.Join(sets, ", "), s.d.placeholder(len(args)), guestColumns)

	g, err := scanGuest(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update guest: %w", err)
	}
	return g, nil
}

func (s *sqlGuests) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM attendees WHERE id = %s", s.d.placeholder(1))
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete guest: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete guest: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *sqlGuests) ReplaceAll(ctx context.Context, guests []models.Guest) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM attendees"); err != nil {
		return fmt.Errorf("failed to clear guests: %w", err)
	}

	// One timestamp per import; seq/rowid keeps the file order.
	at := s.now()
	for _, g := range guests {
		if _, err := s.insert(ctx, tx, g, at); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}
	return nil
}
