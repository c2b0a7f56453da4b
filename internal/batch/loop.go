// Package batch implements the sequential remote-call loop shared by the
// chunked text analysis and the batched tagging step: split work into
// bounded units, call a remote service per unit in order, merge results and
// write a recoverable snapshot after every unit.
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/ankitagger/ankitagger/pkg/logger"
)

// Policy decides what a unit failure does to the rest of the run.
type Policy int

const (
	// ContinueOnError logs the failure and moves on; the failed unit's
	// contribution is absent from the merged output.
	ContinueOnError Policy = iota
	// AbortOnError stops the run at the first failure.
	AbortOnError
)

// UnitError records which unit failed and why.
type UnitError struct {
	Unit int
	Err  error
}

func (e UnitError) Error() string {
	return fmt.Sprintf("unit %d: %v", e.Unit+1, e.Err)
}

func (e UnitError) Unwrap() error { return e.Err }

// Runner drives the loop. Checkpoint, when set, receives the full
// accumulated output after every successful unit; checkpoint failures are
// logged and never abort the run.
type Runner[R any] struct {
	Delay      time.Duration
	Policy     Policy
	Checkpoint func(acc []R) error
	// FatalIf, when set under ContinueOnError, promotes matching unit
	// errors to run-aborting ones (e.g. auth failures, as opposed to a
	// rate-limited chunk worth skipping).
	FatalIf func(error) bool
	Log     *logger.Logger
}

// Process calls call once per unit, in order. It returns the merged results
// of all successful units plus the per-unit errors of skipped ones. The
// returned error is non-nil only when the run aborted (AbortOnError policy
// or cancelled context); the partial accumulation is still returned so the
// caller can persist what exists.
func (r *Runner[R]) Process(ctx context.Context, units int, call func(ctx context.Context, unit int) ([]R, error)) ([]R, []UnitError, error) {
	var acc []R
	var failed []UnitError

	for unit := 0; unit < units; unit++ {
		if err := ctx.Err(); err != nil {
			return acc, failed, err
		}

		start := time.Now()
		results, err := call(ctx, unit)
		if err != nil {
			ue := UnitError{Unit: unit, Err: err}
			if r.Policy == AbortOnError || (r.FatalIf != nil && r.FatalIf(err)) {
				r.logf("unit %d/%d failed, aborting: %v", unit+1, units, err)
				return acc, append(failed, ue), ue
			}
			r.logf("unit %d/%d failed, skipping: %v", unit+1, units, err)
			failed = append(failed, ue)
		} else {
			acc = append(acc, results...)
			if r.Checkpoint != nil && len(acc) > 0 {
				if err := r.Checkpoint(acc); err != nil {
					r.logf("checkpoint after unit %d/%d failed: %v", unit+1, units, err)
				}
			}
		}

		if r.Log != nil {
			r.Log.Debug("unit %d/%d done in %s", unit+1, units, time.Since(start).Round(time.Millisecond))
		}

		if unit < units-1 && r.Delay > 0 {
			if err := sleep(ctx, r.Delay); err != nil {
				return acc, failed, err
			}
		}
	}

	return acc, failed, nil
}

func (r *Runner[R]) logf(format string, args ...interface{}) {
	if r.Log != nil {
		r.Log.Warn(format, args...)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SplitText cuts text into pieces of at most chunkSize runes, preserving
// order. Rune-based slicing keeps multi-byte characters intact.
func SplitText(text string, chunkSize int) []string {
	if chunkSize <= 0 || text == "" {
		if text == "" {
			return nil
		}
		return []string{text}
	}

	runes := []rune(text)
	var chunks []string
	for start := 0; start < len(runes); start += chunkSize {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// Ranges returns [start,end) index pairs that cover total items in groups of
// at most batchSize, in order.
func Ranges(total, batchSize int) [][2]int {
	if total <= 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = total
	}
	var out [][2]int
	for start := 0; start < total; start += batchSize {
		end := start + batchSize
		if end > total {
			end = total
		}
		out = append(out, [2]int{start, end})
	}
	return out
}
