package builder

import (
	"context"

	"standings-replay-engine/internal/apierrors"
)

// CreateSnapshot classifies T against the contest's configured base/delta
// cadence and dispatches to the matching constructor (spec §4.4): a base
// interval wins over a delta interval at coincidence points. T that matches
// neither interval is rejected.
func (b *Builder) CreateSnapshot(ctx context.Context, contestID string, t, baseInterval, deltaInterval int) error {
	switch {
	case baseInterval > 0 && t%baseInterval == 0:
		_, err := b.CreateBaseSnapshot(ctx, contestID, t)
		return err
	case deltaInterval > 0 && t%deltaInterval == 0:
		_, _, err := b.CreateDeltaSnapshot(ctx, contestID, t)
		return err
	default:
		return apierrors.NewInput(apierrors.TagNotSnapshotInterval, "T=%d matches neither the base interval (%d) nor the delta interval (%d)", t, baseInterval, deltaInterval)
	}
}

// CreateSnapshotsBulk produces one snapshot per T in [start, end] matching
// either cadence, continuing through individual failures and reporting them
// in the returned partial-success result (spec §4.4): the bulk call never
// aborts on the first error.
func (b *Builder) CreateSnapshotsBulk(ctx context.Context, contestID string, start, end, baseInterval, deltaInterval int) BulkResult {
	var result BulkResult
	for t := start; t <= end; t++ {
		select {
		case <-ctx.Done():
			result.Errors = append(result.Errors, wrapTimestampErr(t, ctx.Err()))
			return result
		default:
		}

		switch {
		case baseInterval > 0 && t%baseInterval == 0:
			if _, err := b.CreateBaseSnapshot(ctx, contestID, t); err != nil {
				result.Errors = append(result.Errors, wrapTimestampErr(t, err))
				continue
			}
			result.BaseCreated++
		case deltaInterval > 0 && t%deltaInterval == 0:
			delta, degradedBase, err := b.CreateDeltaSnapshot(ctx, contestID, t)
			if err != nil {
				result.Errors = append(result.Errors, wrapTimestampErr(t, err))
				continue
			}
			if delta != nil {
				result.DeltaCreated++
			} else if degradedBase != nil {
				result.BaseCreated++
			}
		}
	}
	return result
}
