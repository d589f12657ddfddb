package attendance

import (
	"context"

	"github.com/pkg/errors"
)

// Classification outcomes.
const (
	OutcomePhysical   = "physical"
	OutcomeScreenshot = "screenshot"
)

var (
	// ErrClassifierUnavailable marks infrastructure faults of the
	// classifier (rate limiting, quota, transport). It is retryable and
	// must never be conflated with a screenshot verdict, which is a
	// successful classification.
	ErrClassifierUnavailable = errors.New("image classifier unavailable")

	ErrRateLimited   = errors.Wrap(ErrClassifierUnavailable, "rate limit exceeded")
	ErrQuotaExceeded = errors.Wrap(ErrClassifierUnavailable, "usage quota exceeded")
)

// ClassifierResult is the verdict on a still frame.
type ClassifierResult struct {
	Outcome    string `json:"outcome"` // OutcomePhysical | OutcomeScreenshot
	Confidence string `json:"confidence"`
	Message    string `json:"message,omitempty"`
}

func (r ClassifierResult) IsPhysical() bool { return r.Outcome == OutcomePhysical }

// Classifier decides whether a still frame shows a physical display or
// a screenshot/photo of one. Implementations are remote and may fail
// for reasons unrelated to the frame; such failures wrap
// ErrClassifierUnavailable.
type Classifier interface {
	// Classify vets an image, supplied as a data URL or equivalent
	// encoded still frame.
	Classify(ctx context.Context, imageData string) (ClassifierResult, error)
}

// IsClassifierUnavailable reports whether err is an infrastructure
// fault of the classifier rather than a verdict.
func IsClassifierUnavailable(err error) bool {
	return errors.Cause(err) == ErrClassifierUnavailable
}
