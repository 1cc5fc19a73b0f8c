package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const personSchema = `{
	"type": "object",
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"age": {"type": "integer", "minimum": 0}
	},
	"required": ["name", "age"]
}`

func TestSchemaValidatorAcceptsValid(t *testing.T) {
	v, err := NewSchemaValidator("person.json", []byte(personSchema))
	require.NoError(t, err)

	err = v.Validate(map[string]any{"name": "Alice", "age": 30})
	assert.NoError(t, err)
}

func TestSchemaValidatorRejectsInvalid(t *testing.T) {
	v, err := NewSchemaValidator("person.json", []byte(personSchema))
	require.NoError(t, err)

	err = v.Validate(map[string]any{"name": "", "age": -1})
	require.Error(t, err)
	var valErr *SnapshotValidationError
	assert.ErrorAs(t, err, &valErr)
}
