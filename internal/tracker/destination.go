package tracker

import (
	"context"
	"errors"

	"github.com/ignite/campaign-tracker/internal/sheets"
)

var (
	// ErrUnverified is returned by the KeyResolver when the destination
	// could not be read. The accompanying empty set must not be trusted.
	ErrUnverified = errors.New("destination keys could not be verified")
	// ErrVerification marks an append whose rows were not all found on re-read.
	ErrVerification = errors.New("write verification failed")
	// ErrRunInProgress is returned when another run holds the lock.
	ErrRunInProgress = errors.New("another run is in progress")
	// ErrDestinationUnavailable is returned by Run when no segment could
	// reach the destination.
	ErrDestinationUnavailable = errors.New("destination unavailable")
)

// Destination is the tabular store rows are synced into. Cells are A1
// ranges relative to the tab. *sheets.Spreadsheet implements it.
type Destination interface {
	ReadRange(ctx context.Context, tab, cells string) ([][]string, error)
	AppendRows(ctx context.Context, tab, cells string, rows [][]string) error
	UpdateRange(ctx context.Context, tab, cells string, rows [][]string) error
	AddSheet(ctx context.Context, title string) error
	State(ctx context.Context, tab string) (sheets.TableState, error)
}

var _ Destination = (*sheets.Spreadsheet)(nil)
