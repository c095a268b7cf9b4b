package gmos

import (
	"errors"
	"fmt"
)

var ErrSequenceUnavailable = errors.New("Error Sequence Unavailable")
var ErrMissingSmartGcal = errors.New("Error Missing Smart Gcal Mapping")
var ErrUnsupportedRole = errors.New("Error Unsupported Calibration Role")
var ErrExposureTooLong = errors.New("Error Exposure Exceeds Science Period")

// SequenceUnavailable wraps a planning failure with the observation it
// belongs to. All planner entry points surface failures through this
// constructor; nothing panics out of the core.
func SequenceUnavailable(observationID string, err error) error {
	return errors.Join(
		ErrSequenceUnavailable,
		fmt.Errorf("observation %s: %w", observationID, err),
	)
}
