package world

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedRecord запись без сближений или с нечисловыми полями
	ErrMalformedRecord = errors.New("malformed near-earth object record")

	// ErrDegenerateCamera камера не позволяет построить луч
	ErrDegenerateCamera = errors.New("degenerate camera")
)

// RecordError ошибка построения сущности по конкретной записи
type RecordError struct {
	RecordID string
	Name     string
	Reason   string
	Err      error
}

func (e *RecordError) Error() string {
	msg := fmt.Sprintf("record %s (%s): %s", e.RecordID, e.Name, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap позволяет errors.Is(err, ErrMalformedRecord)
func (e *RecordError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMalformedRecord}
	}
	return []error{ErrMalformedRecord, e.Err}
}

func malformed(rec *NearEarthObjectRecord, reason string, err error) error {
	recErr := &RecordError{Reason: reason, Err: err}
	if rec != nil {
		recErr.RecordID = rec.ID
		recErr.Name = rec.Name
	}
	return recErr
}
