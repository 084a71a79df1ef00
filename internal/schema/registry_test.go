package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/prostudio/cortexstore/internal/errors"
	"github.com/prostudio/cortexstore/pkg/types"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry()

	schema := types.ColumnSchema{Name: "entity_id", Type: types.ElementString, Compression: types.CompressionDictionary}
	require.NoError(t, reg.Register(schema))

	got, ok := reg.Get("entity_id")
	assert.True(t, ok)
	assert.Equal(t, schema, got)

	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_ConflictingRegistrationFails(t *testing.T) {
	reg := NewRegistry()

	schema := types.ColumnSchema{Name: "score", Type: types.ElementFloat, Compression: types.CompressionGeneric}
	require.NoError(t, reg.Register(schema))
	require.NoError(t, reg.Register(schema), "identical re-registration is a no-op")

	err := reg.Register(types.ColumnSchema{Name: "score", Type: types.ElementInt, Compression: types.CompressionGeneric})
	require.Error(t, err)
	assert.Equal(t, cerrors.CodeSchemaConflict, cerrors.GetCode(err))
}

func TestRegistry_InferenceHappensOnce(t *testing.T) {
	reg := NewRegistry()

	first, err := reg.InferAndRegister("id", "abc")
	require.NoError(t, err)
	assert.Equal(t, types.ElementString, first.Type)
	assert.Equal(t, types.CompressionDictionary, first.Compression)

	// A later batch with a different value shape does not re-infer.
	second, err := reg.InferAndRegister("id", 3.14)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRegistry_InferenceByValueKind(t *testing.T) {
	reg := NewRegistry()

	intSchema, err := reg.InferAndRegister("count", 7)
	require.NoError(t, err)
	assert.Equal(t, types.ElementInt, intSchema.Type)

	floatSchema, err := reg.InferAndRegister("ratio", 0.5)
	require.NoError(t, err)
	assert.Equal(t, types.ElementFloat, floatSchema.Type)

	complexSchema, err := reg.InferAndRegister("field", complex(1, 2))
	require.NoError(t, err)
	assert.Equal(t, types.ElementComplex, complexSchema.Type)
	assert.Equal(t, types.CompressionSpectral, complexSchema.Compression)

	vecSchema, err := reg.InferAndRegister("embedding", []float64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, types.ElementVector, vecSchema.Type)
	assert.Equal(t, 3, vecSchema.VectorWidth)

	_, err = reg.InferAndRegister("bad", struct{}{})
	require.Error(t, err)
}

func TestRegistry_NamesSorted(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		_, err := reg.InferAndRegister(name, 1)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, reg.Names())
}
