package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFields_FlagSpellings(t *testing.T) {
	tests := []struct {
		name   string
		fields Fields
		want   bool
	}{
		{"accented key and value", Fields{"¿Venís acompañado?": "Sí"}, true},
		{"plain key", Fields{"venis acompañado": "si"}, true},
		{"capitalized key", Fields{"Venís Acompañado": "YES"}, true},
		{"numeric one", Fields{"Venís acompañado?": "1"}, true},
		{"bool value", Fields{"has companion": true}, true},
		{"negative", Fields{"Venís acompañado?": "No"}, false},
		{"companion name only", Fields{"Apellido y Nombre del acompañante": "Perez Ana"}, true},
		{"companion dni only", Fields{"DNI Acompañante": "30111222"}, true},
		{"blank companion name", Fields{"Apellido y Nombre del acompañante": "  "}, false},
		{"no companion columns", Fields{"DNI": "1", "Apellido y Nombre": "Gomez Juan"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeFields(tt.fields)
			assert.Equal(t, tt.want, got[HasCompanionField])
			assert.Equal(t, tt.want, Guest{Fields: got}.HasCompanion())
		})
	}
}

func TestNormalizeFields_Idempotent(t *testing.T) {
	first := NormalizeFields(Fields{"Venís acompañado?": "Si"})
	first["Venís acompañado?"] = "No"

	second := NormalizeFields(first)
	assert.Equal(t, true, second[HasCompanionField], "canonical bool wins once written")
}

func TestNormalizeFields_DoesNotMutateInput(t *testing.T) {
	in := Fields{"DNI": "1"}
	_ = NormalizeFields(in)
	_, ok := in[HasCompanionField]
	assert.False(t, ok)
}

func TestRequireFields(t *testing.T) {
	fields := Fields{"DNI": "123", "Apellido y Nombre": " "}

	err := RequireFields(fields, []string{"DNI", "Apellido y Nombre"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingField))
	assert.Contains(t, err.Error(), "Apellido y Nombre")

	assert.NoError(t, RequireFields(fields, []string{"DNI"}))
}

func TestFold(t *testing.T) {
	assert.Equal(t, "tenes carnet vigente", Fold("¿Tenés carnet Vigente?"))
	assert.Equal(t, "si", Fold(" SÍ "))
}

func TestGuestClone(t *testing.T) {
	g := Guest{ID: "1", Fields: Fields{"DNI": "1"}}
	c := g.Clone()
	c.Fields["DNI"] = "2"
	assert.Equal(t, "1", g.Fields.String("DNI"))
}

func TestTouchesCompanion(t *testing.T) {
	assert.True(t, TouchesCompanion(Fields{HasCompanionField: false}))
	assert.True(t, TouchesCompanion(Fields{"¿Venís acompañado?": "No"}))
	assert.True(t, TouchesCompanion(Fields{"DNI acompañante": ""}))
	assert.False(t, TouchesCompanion(Fields{"Teléfono": "123", "DNI": "1"}))
	assert.False(t, TouchesCompanion(nil))
}

func TestGuestFieldKeys(t *testing.T) {
	g := Guest{
		Fields:  Fields{"Nombre": "Ana", "DNI": "1", "Apellido": "Pérez", "Extra": "x", HasCompanionField: false},
		Columns: []string{"Nombre", "DNI", "Apellido", "Gone"},
	}
	assert.Equal(t, []string{"Nombre", "DNI", "Apellido", "Extra", HasCompanionField}, g.FieldKeys())

	g.Columns = nil
	assert.Equal(t, g.Fields.Keys(), g.FieldKeys())
}
