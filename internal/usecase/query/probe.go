package query

import (
	"context"
	"errors"

	"github.com/kailas-cloud/phenodex/internal/domain"
	"github.com/kailas-cloud/phenodex/internal/metrics"
)

// ProbeFunc asks the store for n results. It returns an error wrapping
// domain.ErrCapacityExceeded when the store refuses n.
type ProbeFunc func(ctx context.Context, n int) error

// MaxSafeResults finds the largest n in [lower, upper] that probe accepts.
//
// lower must be known to be safe. The interval is halved until the gap is
// at most one, then lower-1, lower and lower+1 are re-probed in turn because
// acceptance near the limit is not strictly monotonic; the first refusal ends
// the verification. Errors other than a capacity refusal are returned as is.
func MaxSafeResults(ctx context.Context, probe ProbeFunc, lower, upper int) (int, error) {
	if upper < lower {
		upper = lower
	}
	maxSafe := lower

	for lower < upper-1 {
		mid := lower + (upper-lower)/2
		ok, err := tryProbe(ctx, probe, mid)
		if err != nil {
			return 0, err
		}
		if ok {
			maxSafe = mid
			lower = mid
		} else {
			upper = mid
		}
	}

	top := maxSafe + 1
	for n := maxSafe - 1; n <= top; n++ {
		if n <= 0 {
			continue
		}
		if n > upper {
			break
		}
		ok, err := tryProbe(ctx, probe, n)
		if err != nil {
			return 0, err
		}
		if !ok {
			break
		}
		maxSafe = n
	}

	metrics.ProbeMaxSafeResults.Set(float64(maxSafe))
	return maxSafe, nil
}

func tryProbe(ctx context.Context, probe ProbeFunc, n int) (bool, error) {
	err := probe(ctx, n)
	switch {
	case err == nil:
		metrics.ProbeAttemptsTotal.WithLabelValues("accepted").Inc()
		return true, nil
	case errors.Is(err, domain.ErrCapacityExceeded):
		metrics.ProbeAttemptsTotal.WithLabelValues("rejected").Inc()
		return false, nil
	default:
		return false, err
	}
}
