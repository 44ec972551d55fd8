// Package schema validates transcript events before they leave the process.
package schema

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"speako/internal/models"
)

var (
	ErrMissingField   = errors.New("missing required field")
	ErrWrongEventType = errors.New("unexpected event type")
	ErrUnknownEvent   = errors.New("unknown event")
)

type Validator struct{}

func New() *Validator {
	return &Validator{}
}

func (v *Validator) Validate(event any) error {
	var err error
	switch e := event.(type) {
	case models.TranscriptInterim:
		err = validateCommon(e.EventType, models.EventTypeInterim, e.SessionID, e.AttemptID, e.Timestamp)
	case *models.TranscriptInterim:
		return v.Validate(*e)
	case models.TranscriptFinal:
		err = validateCommon(e.EventType, models.EventTypeFinal, e.SessionID, e.AttemptID, e.Timestamp)
		if err == nil && e.Text == "" {
			err = fmt.Errorf("%w: text", ErrMissingField)
		}
		if err == nil && e.Sequence < 1 {
			err = fmt.Errorf("sequence must be positive, got %d", e.Sequence)
		}
	case *models.TranscriptFinal:
		return v.Validate(*e)
	default:
		err = fmt.Errorf("%w: %T", ErrUnknownEvent, event)
	}

	if err != nil {
		log.Debug().Err(err).Msg("Schema validation failed")
	}
	return err
}

func validateCommon(eventType, want, sessionID, attemptID string, ts int64) error {
	if eventType != want {
		return fmt.Errorf("%w: %q", ErrWrongEventType, eventType)
	}
	if sessionID == "" {
		return fmt.Errorf("%w: sessionId", ErrMissingField)
	}
	if attemptID == "" {
		return fmt.Errorf("%w: attemptId", ErrMissingField)
	}
	if ts <= 0 {
		return fmt.Errorf("%w: timestamp", ErrMissingField)
	}
	return nil
}
