package job

import (
	"fmt"

	"github.com/seantiz/qexec/internal/model"
	"github.com/seantiz/qexec/internal/pool"
)

// DeriveStatus maps the task facts to a status. Priority: running, then
// queued (not done), then cancelled over error, then done. Facts that match
// none of these (a cancelled or failed task that is not done) return
// ErrInvariantViolation.
func DeriveStatus(f pool.Facts) (model.Status, error) {
	switch {
	case f.Running:
		return model.StatusRunning, nil
	case !f.Done && !f.Cancelled && !f.Failed:
		return model.StatusQueued, nil
	case f.Done && f.Cancelled:
		return model.StatusCancelled, nil
	case f.Done && f.Failed:
		return model.StatusError, nil
	case f.Done:
		return model.StatusDone, nil
	default:
		return "", fmt.Errorf("%w: %+v", ErrInvariantViolation, f)
	}
}
