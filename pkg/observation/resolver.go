package observation

import (
	"context"
	"encoding/json"

	apperrors "github.com/obsdb/odb/internal/errors"
	"github.com/obsdb/odb/internal/database"
	"github.com/obsdb/odb/pkg/odbtype"
	"github.com/obsdb/odb/pkg/sequence"
)

// modeParamsDoc is the JSON shape stored opaquely in Observation.ModeParams
// (spec.md §3, "observing-mode type and parameters"). It is interpreted
// here rather than in pkg/sequence, since only this repository knows how
// the bytes were written.
type modeParamsDoc struct {
	Kind         sequence.ObservingModeKind `json:"kind"`
	GmosLongSlit *sequence.GmosLongSlitConfig `json:"gmosLongSlit,omitempty"`
}

// ResolveParams implements digest.ParamsResolver: it loads an
// Observation and decodes its ModeParams into the sequence generator's
// input shape (spec.md §4.E step 1).
func (r *Repository) ResolveParams(ctx context.Context, observationID string) (sequence.GeneratorParams, error) {
	id, err := odbtype.ParseGID(observationID)
	if err != nil {
		return sequence.GeneratorParams{}, apperrors.New(apperrors.ErrorTypeInvalidArgument, "malformed observation id")
	}
	obs, err := r.Get(ctx, database.NoTransaction{}, odbtype.ObservationID(id))
	if err != nil {
		return sequence.GeneratorParams{}, err
	}
	if len(obs.ModeParams) == 0 {
		return sequence.GeneratorParams{}, apperrors.InvalidData(observationID, "observation has no observing-mode parameters")
	}

	var doc modeParamsDoc
	if err := json.Unmarshal(obs.ModeParams, &doc); err != nil {
		return sequence.GeneratorParams{}, apperrors.Wrap(err, apperrors.ErrorTypeInvalidData, "decoding observing-mode parameters")
	}
	if string(doc.Kind) != obs.ObservingMode {
		doc.Kind = sequence.ObservingModeKind(obs.ObservingMode)
	}

	return sequence.GeneratorParams{
		ObservationID: observationID,
		Mode: sequence.ObservingMode{
			Kind:         doc.Kind,
			GmosLongSlit: doc.GmosLongSlit,
		},
	}, nil
}
