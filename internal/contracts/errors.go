package contracts

import (
	"errors"
	"fmt"
	"time"
)

// ErrEmptyActivityRange marks an entity with zero usable daily records.
// Recovered locally: the entity yields zero snapshots.
var ErrEmptyActivityRange = errors.New("empty activity range")

// DuplicateEntityError is returned when the same identifier appears in both
// the paying and the non-paying source. Fatal.
type DuplicateEntityError struct {
	EntityID string
}

func (e *DuplicateEntityError) Error() string {
	return fmt.Sprintf("entity %q appears in both paying and non-paying sources", e.EntityID)
}

// LeakageViolation is raised when a snapshot dated on/after its entity's
// conversion date is found past the snapshot generator. It indicates a
// pipeline bug and aborts the run.
type LeakageViolation struct {
	EntityID       string
	SnapshotDate   time.Time
	ConversionDate time.Time
}

func (e *LeakageViolation) Error() string {
	return fmt.Sprintf("leakage: entity %q snapshot %s is not before conversion %s",
		e.EntityID, e.SnapshotDate.Format(DateLayout), e.ConversionDate.Format(DateLayout))
}

// DuplicateRowError is raised when the assembler sees the same
// (entity, snapshot date) pair twice.
type DuplicateRowError struct {
	EntityID     string
	SnapshotDate time.Time
}

func (e *DuplicateRowError) Error() string {
	return fmt.Sprintf("duplicate feature row: entity %q snapshot %s",
		e.EntityID, e.SnapshotDate.Format(DateLayout))
}

// MissingFirmographic records a configured firmographic column absent for an
// entity. It is never returned as an error from the pipeline; the value is
// replaced by the missing sentinel and counted.
type MissingFirmographic struct {
	EntityID string
	Column   string
}

func (e *MissingFirmographic) Error() string {
	return fmt.Sprintf("entity %q: firmographic %q missing", e.EntityID, e.Column)
}

// IsFatal reports whether err must abort a pipeline run
func IsFatal(err error) bool {
	var dup *DuplicateEntityError
	var leak *LeakageViolation
	var row *DuplicateRowError
	return errors.As(err, &dup) || errors.As(err, &leak) || errors.As(err, &row)
}
