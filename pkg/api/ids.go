package api

import (
	apperrors "github.com/obsdb/odb/internal/errors"
	"github.com/obsdb/odb/pkg/odbtype"
)

func parseObservationID(s string) (odbtype.ObservationID, error) {
	g, err := odbtype.ParseGID(s)
	if err != nil {
		return odbtype.ObservationID{}, apperrors.InvalidArgument("malformed observation id").WithDetails(s)
	}
	return odbtype.ObservationID(g), nil
}

func parseProgramID(s string) (odbtype.ProgramID, error) {
	g, err := odbtype.ParseGID(s)
	if err != nil {
		return odbtype.ProgramID{}, apperrors.InvalidArgument("malformed program id").WithDetails(s)
	}
	return odbtype.ProgramID(g), nil
}

func parseVisitID(s string) (odbtype.VisitID, error) {
	id, err := odbtype.ParseVisitID(s)
	if err != nil {
		return odbtype.VisitID{}, apperrors.InvalidArgument("malformed visit id").WithDetails(s)
	}
	return id, nil
}

func parseAtomID(s string) (odbtype.AtomID, error) {
	id, err := odbtype.ParseAtomID(s)
	if err != nil {
		return odbtype.AtomID{}, apperrors.InvalidArgument("malformed atom id").WithDetails(s)
	}
	return id, nil
}

func parseStepID(s string) (odbtype.StepID, error) {
	id, err := odbtype.ParseStepID(s)
	if err != nil {
		return odbtype.StepID{}, apperrors.InvalidArgument("malformed step id").WithDetails(s)
	}
	return id, nil
}
