package handler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guest-checkin/internal/models"
	"guest-checkin/internal/spreadsheet"
)

func TestDefaultExportName(t *testing.T) {
	at := time.Date(2025, time.March, 7, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, "invitados-moto-encuentro-2025-7-3-2025", DefaultExportName("Moto Encuentro 2025", at))
	assert.Equal(t, "invitados-cena-de-gala-7-3-2025", DefaultExportName("  Cena de Gala!! ", at))
	assert.Equal(t, "invitados-7-3-2025", DefaultExportName("", at))
}

func TestExportTable(t *testing.T) {
	a := guest("1", true)
	a.Fields["DNI"] = "30111222"
	b := guest("2", false)
	b.Fields["Teléfono"] = "1155550000"
	h, _ := setupHandler(t, a, b)
	h.config.ExportColumns = []string{"DNI", "Apellido y Nombre"}

	_, err := h.Confirm(context.Background(), "1", "007", "008")
	require.NoError(t, err)

	table := h.ExportTable()
	assert.Equal(t, []string{
		"DNI", "Apellido y Nombre", "Teléfono",
		ColumnBracelet, ColumnCompanionBracelet, ColumnConfirmed,
	}, table.Headers)
	require.Len(t, table.Rows, 2)

	assert.Equal(t, "007", table.Rows[0][ColumnBracelet])
	assert.Equal(t, "008", table.Rows[0][ColumnCompanionBracelet])
	assert.Equal(t, "Si", table.Rows[0][ColumnConfirmed])
	assert.Equal(t, "No", table.Rows[1][ColumnConfirmed])
	assert.NotContains(t, table.Rows[0], models.HasCompanionField)
	assert.NotContains(t, table.Rows[0], "Teléfono")
}

func TestExport_WritesWorkbook(t *testing.T) {
	h, _ := setupHandler(t, guest("1", false))
	_, err := h.Confirm(context.Background(), "1", "007", "")
	require.NoError(t, err)

	path, err := h.Export("", "")
	require.NoError(t, err)
	assert.Equal(t, "invitados-moto-encuentro-2025-7-3-2025.xlsx", filepath.Base(path))

	table, err := spreadsheet.Import(path)
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "Guest 1", table.Rows[0]["Apellido y Nombre"])
	assert.Equal(t, "007", table.Rows[0][ColumnBracelet])
}

func TestExportTable_FollowsImportedColumnOrder(t *testing.T) {
	h, _ := setupHandler(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "lista.csv")
	csv := "Nombre,DNI,Apellido,Teléfono\n" +
		"Ana,1,Pérez,\n" +
		"Luis,2,Gómez,1155551111\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0644))
	_, err := h.Import(ctx, path)
	require.NoError(t, err)

	_, err = h.Add(ctx, models.Fields{"Apellido y Nombre": "Díaz, Eva", "DNI": "3", "Email": "eva@example.com"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Nombre", "DNI", "Apellido", "Teléfono", "Apellido y Nombre", "Email",
		ColumnBracelet, ColumnCompanionBracelet, ColumnConfirmed,
	}, h.ExportTable().Headers)
}

func TestExport_ReimportRoundTrip(t *testing.T) {
	a := guest("1", false)
	a.Fields["DNI"] = "30111222"
	h, _ := setupHandler(t, a, guest("2", false))
	ctx := context.Background()

	_, err := h.Confirm(ctx, "1", "007", "")
	require.NoError(t, err)
	first, err := h.Export("", "first")
	require.NoError(t, err)

	_, err = h.Import(ctx, first)
	require.NoError(t, err)
	table := h.ExportTable()

	assert.Equal(t, []string{
		"Apellido y Nombre", "DNI",
		ColumnBracelet, ColumnCompanionBracelet, ColumnConfirmed,
	}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "007", table.Rows[0][ColumnBracelet])
	assert.Equal(t, "Si", table.Rows[0][ColumnConfirmed])
	assert.Equal(t, "No", table.Rows[1][ColumnConfirmed])
}
