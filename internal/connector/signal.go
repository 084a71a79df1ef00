package connector

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"
	"time"

	"github.com/prostudio/cortexstore/internal/errors"
	"github.com/prostudio/cortexstore/pkg/types"
)

// SignalRecord is one coherence measurement from the signal mesh.
type SignalRecord struct {
	EntityID  string
	State     complex128
	Coherence float64
	Timestamp time.Time
}

// SignalConnector ingests signal-mesh coherence measurements. Field states
// are complex-valued, so the column carries the spectral compression policy
// and phase resolution is bounded by the phase quantum after tiering.
type SignalConnector struct {
	store Ingester
	now   func() time.Time
}

// NewSignalConnector registers the signal columns and returns the
// connector.
func NewSignalConnector(store Ingester) (*SignalConnector, error) {
	schemas := []types.ColumnSchema{
		{Name: "entity_id", Type: types.ElementString, Compression: types.CompressionDictionary},
		{Name: "field_state", Type: types.ElementComplex, Compression: types.CompressionSpectral},
		{Name: "coherence_score", Type: types.ElementFloat, Compression: types.CompressionGeneric},
		{Name: "timestamp", Type: types.ElementFloat, Compression: types.CompressionGeneric},
	}
	for _, s := range schemas {
		if err := store.RegisterColumn(s); err != nil {
			return nil, fmt.Errorf("connector: registering %s: %w", s.Name, err)
		}
	}
	return &SignalConnector{store: store, now: time.Now}, nil
}

// SyncBatch converts records to a columnar batch and ingests them hot.
// Records without a timestamp are stamped at sync time.
func (c *SignalConnector) SyncBatch(ctx context.Context, records []SignalRecord) error {
	if len(records) == 0 {
		return nil
	}

	data := map[string][]interface{}{
		"entity_id":       make([]interface{}, len(records)),
		"field_state":     make([]interface{}, len(records)),
		"coherence_score": make([]interface{}, len(records)),
		"timestamp":       make([]interface{}, len(records)),
	}
	for i, r := range records {
		if r.EntityID == "" {
			return errors.NewValidationError(errors.CodeEmptyBatch,
				fmt.Sprintf("signal record %d has no entity id", i))
		}
		ts := r.Timestamp
		if ts.IsZero() {
			ts = c.now()
		}
		data["entity_id"][i] = r.EntityID
		data["field_state"][i] = r.State
		data["coherence_score"][i] = r.Coherence
		data["timestamp"][i] = float64(ts.UnixNano()) / float64(time.Second)
	}
	return c.store.Ingest(ctx, data, types.TierHot)
}

// FieldDistance measures how far apart two field-state vectors are: the
// root of the mean squared phase delta plus the mean squared amplitude
// delta.
func FieldDistance(a, b []complex128) (float64, error) {
	if len(a) != len(b) {
		return 0, errors.NewValidationError(errors.CodeBatchLengthMismatch,
			fmt.Sprintf("field states have %d and %d elements", len(a), len(b)))
	}
	if len(a) == 0 {
		return 0, nil
	}

	var phaseSq, ampSq float64
	for i := range a {
		phase := cmplx.Phase(a[i]) - cmplx.Phase(b[i])
		amp := cmplx.Abs(a[i]) - cmplx.Abs(b[i])
		phaseSq += phase * phase
		ampSq += amp * amp
	}
	n := float64(len(a))
	return math.Sqrt(phaseSq/n + ampSq/n), nil
}
