package handler

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"guest-checkin/internal/models"
	"guest-checkin/internal/spreadsheet"
)

const (
	ColumnBracelet          = "Número de Pulsera"
	ColumnCompanionBracelet = "Número de Pulsera Acompañante"
	ColumnConfirmed         = "Confirmado"
)

// ExportTable lays the roster out as spreadsheet rows.
// Configured columns come first, then any other field in first-seen order
// following each guest's imported column order, then the bracelet and
// confirmation columns.
func (h *CheckinHandler) ExportTable() *spreadsheet.Table {
	guests := h.roster.Snapshot()

	seen := map[string]bool{
		models.HasCompanionField: true,
		ColumnBracelet:           true,
		ColumnCompanionBracelet:  true,
		ColumnConfirmed:          true,
	}
	var headers []string
	add := func(key string) {
		if !seen[key] {
			seen[key] = true
			headers = append(headers, key)
		}
	}
	for _, col := range h.config.ExportColumns {
		add(col)
	}
	for _, g := range guests {
		for _, key := range g.FieldKeys() {
			add(key)
		}
	}
	fieldCount := len(headers)
	headers = append(headers, ColumnBracelet, ColumnCompanionBracelet, ColumnConfirmed)

	rows := make([]map[string]string, 0, len(guests))
	for _, g := range guests {
		row := make(map[string]string, len(headers))
		for _, key := range headers[:fieldCount] {
			if v := g.Fields.String(key); v != "" {
				row[key] = v
			}
		}
		row[ColumnBracelet] = g.BraceletNumber
		row[ColumnCompanionBracelet] = g.CompanionBraceletNumber
		row[ColumnConfirmed] = "No"
		if g.IsConfirmed {
			row[ColumnConfirmed] = "Si"
		}
		rows = append(rows, row)
	}

	return &spreadsheet.Table{Headers: headers, Rows: rows}
}

// Export writes the roster to dir as an XLSX file and returns its path.
// Empty arguments fall back to the configured directory and DefaultExportName.
func (h *CheckinHandler) Export(dir, baseName string) (string, error) {
	if dir == "" {
		dir = h.config.ExportDir
	}
	if baseName == "" {
		baseName = DefaultExportName(h.config.EventName, h.now())
	}

	path, err := spreadsheet.WriteFile(dir, baseName, h.ExportTable())
	if err != nil {
		return "", remote("export guests", err)
	}
	h.log.Info().Str("path", path).Int("guests", h.roster.Len()).Msg("Guest list exported")
	return path, nil
}

func isExportColumn(header string) bool {
	switch models.Fold(header) {
	case models.Fold(ColumnBracelet), models.Fold(ColumnCompanionBracelet), models.Fold(ColumnConfirmed):
		return true
	}
	return false
}

// DefaultExportName returns invitados-<event>-D-M-YYYY
func DefaultExportName(eventName string, at time.Time) string {
	name := "invitados"
	if slug := slugify(eventName); slug != "" {
		name += "-" + slug
	}
	return fmt.Sprintf("%s-%d-%d-%d", name, at.Day(), int(at.Month()), at.Year())
}

func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range models.Fold(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
