package classifiersvc

import (
	"context"

	"github.com/trezcool/darasa/core/attendance"
)

// Mock returns a fixed verdict; for tests and local development
// without gateway credentials.
type Mock struct {
	Result attendance.ClassifierResult
	Err    error
}

var _ attendance.Classifier = (*Mock)(nil)

func NewMock() *Mock {
	return &Mock{
		Result: attendance.ClassifierResult{
			Outcome:    attendance.OutcomePhysical,
			Confidence: "high",
			Message:    "QR code verified as physical",
		},
	}
}

func (m *Mock) Classify(context.Context, string) (attendance.ClassifierResult, error) {
	return m.Result, m.Err
}
