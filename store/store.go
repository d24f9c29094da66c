// Package store selects a storage backend for the billing engine.
package store

import (
	"context"
	"fmt"

	"github.com/warp/extcare-billing/billing"
	"github.com/warp/extcare-billing/generic"
	"github.com/warp/extcare-billing/store/memory"
	"github.com/warp/extcare-billing/store/sqlite"
)

// Store is everything the API and CLI read and write: the engine's two
// interfaces plus the admin operations that maintain reference data.
type Store interface {
	billing.ReferenceSource
	billing.FeeStore

	SaveStudent(ctx context.Context, st billing.Student) error
	ListStudents(ctx context.Context, orgID billing.OrganizationID) ([]billing.Student, error)
	SaveEnrollment(ctx context.Context, e billing.Enrollment) error
	SaveProgram(ctx context.Context, p billing.ProgramBillingConfig) error
	ListPrograms(ctx context.Context, orgID billing.OrganizationID) ([]billing.ProgramBillingConfig, error)
	SaveHoliday(ctx context.Context, h generic.HolidayRange) error
	DeleteHoliday(ctx context.Context, id string) error
	ListHolidays(ctx context.Context, orgID billing.OrganizationID) ([]generic.HolidayRange, error)
	SaveActivity(ctx context.Context, a billing.ScheduledActivity) error
	Reset(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*sqlite.Store)(nil)
	_ Store = (*memory.Store)(nil)
)

// Open returns the backend for driver ("sqlite" or "memory").
func Open(driver, path string) (Store, error) {
	switch driver {
	case "sqlite", "":
		return sqlite.New(path)
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("%w: unknown store driver %q", generic.ErrInvalidInput, driver)
	}
}
