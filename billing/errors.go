package billing

import (
	"fmt"

	"github.com/warp/extcare-billing/generic"
)

// ConfigurationMissingError is returned when the resolver cannot find an
// active enrollment or a billing configuration for the enrolled program.
type ConfigurationMissingError struct {
	StudentID      StudentID
	OrganizationID OrganizationID
	ProgramID      ProgramID // empty when the enrollment itself is missing
	Reason         string
}

func (e *ConfigurationMissingError) Error() string {
	if e.ProgramID == "" {
		return fmt.Sprintf("billing configuration missing for student %s in organization %s: %s",
			e.StudentID, e.OrganizationID, e.Reason)
	}
	return fmt.Sprintf("billing configuration missing for student %s, program %s in organization %s: %s",
		e.StudentID, e.ProgramID, e.OrganizationID, e.Reason)
}

func (e *ConfigurationMissingError) Unwrap() error {
	return generic.ErrConfigurationMissing
}

// PersistenceError wraps a fee store failure with the record key.
type PersistenceError struct {
	Key FeeRecordKey
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s fee record %s: %v", e.Op, e.Key, e.Err)
}

// Unwrap exposes both the sentinel and the driver error to errors.Is/As.
func (e *PersistenceError) Unwrap() []error {
	return []error{generic.ErrPersistence, e.Err}
}
