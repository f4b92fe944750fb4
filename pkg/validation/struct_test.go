package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type conference struct {
	ConferenceID int    `validate:"required"`
	Name         string `validate:"required"`
	Abbreviation string
}

func TestStruct(t *testing.T) {
	assert.NoError(t, Struct(conference{ConferenceID: 1, Name: "SEC"}))

	err := Struct(conference{ConferenceID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'Name'")
	assert.Contains(t, err.Error(), "rule 'required'")
}
