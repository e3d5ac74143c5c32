package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"qms/queue-core/internal/models"
	"qms/queue-core/internal/store"
)

const ticketNumberPad = 3

const dayKeyFormat = "2006-01-02"

// SequenceAllocator hands out a strictly increasing ticket ordinal per
// (business, local calendar day). The increment happens in a single atomic
// round trip at the sequence store; a failed call never consumes a number.
type SequenceAllocator struct {
	directory store.BusinessDirectory
	sequences store.SequenceStore
}

func NewSequenceAllocator(directory store.BusinessDirectory, sequences store.SequenceStore) *SequenceAllocator {
	return &SequenceAllocator{directory: directory, sequences: sequences}
}

func (a *SequenceAllocator) Next(ctx context.Context, businessID string, now time.Time) (uint32, models.Business, error) {
	business, err := a.directory.Resolve(ctx, businessID)
	if err != nil {
		if errors.Is(err, store.ErrBusinessNotFound) {
			return 0, models.Business{}, fmt.Errorf("%w: unknown business %s", ErrAllocation, businessID)
		}
		return 0, models.Business{}, &DependencyError{Op: "business directory", Err: err}
	}

	dayKey := now.In(BusinessLocation(business)).Format(dayKeyFormat)
	seq, err := a.sequences.AtomicIncrement(ctx, businessID, dayKey)
	if err != nil {
		return 0, models.Business{}, fmt.Errorf("%w: %v", ErrAllocation, err)
	}
	return seq, business, nil
}

// BusinessLocation resolves the business's configured timezone, defaulting to
// UTC when it is empty or unknown.
func BusinessLocation(business models.Business) *time.Location {
	if business.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(business.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// FormatTicketNumber renders "{branchCode}-{seq:03d}". Sequences past 999 keep
// their full width; they are never wrapped back to 000.
func FormatTicketNumber(branchCode string, seq uint32) string {
	return fmt.Sprintf("%s-%0*d", branchCode, ticketNumberPad, seq)
}
