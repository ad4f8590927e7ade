package backend

import (
	"fmt"

	"github.com/seantiz/qexec/internal/model"
)

// Validate checks a workload against the backend configuration and returns a
// *SubmissionError describing the first violated rule.
func Validate(cfg Configuration, w model.Workload) error {
	reject := func(format string, args ...any) error {
		return &SubmissionError{Backend: cfg.Name, Reason: fmt.Sprintf(format, args...)}
	}

	switch {
	case w.Shots <= 0:
		return reject("shots must be positive, got %d", w.Shots)
	case cfg.MaxShots > 0 && w.Shots > cfg.MaxShots:
		return reject("shots %d exceed the backend maximum of %d", w.Shots, cfg.MaxShots)
	case w.Timeout <= 0:
		return reject("timeout must be positive, got %v", w.Timeout)
	case w.Wait <= 0:
		return reject("wait must be positive, got %v", w.Wait)
	case w.Wait > w.Timeout:
		return reject("wait %v exceeds timeout %v", w.Wait, w.Timeout)
	}
	return nil
}
