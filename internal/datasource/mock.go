package datasource

import (
	"context"

	"github.com/AndrewDell/3AI/internal/domain"
)

// MockSource is a test double for Source.
type MockSource struct {
	SourceName string
	SurveyFunc func(ctx context.Context) (domain.Sample, error)
	TaskFunc   func(ctx context.Context) (domain.Sample, error)
}

func (m *MockSource) Name() string {
	if m.SourceName != "" {
		return m.SourceName
	}
	return "mock"
}

func (m *MockSource) Survey(ctx context.Context) (domain.Sample, error) {
	if m.SurveyFunc != nil {
		return m.SurveyFunc(ctx)
	}
	return domain.Sample{domain.FieldSuccessRate: 100}, nil
}

func (m *MockSource) Task(ctx context.Context) (domain.Sample, error) {
	if m.TaskFunc != nil {
		return m.TaskFunc(ctx)
	}
	return domain.Sample{domain.FieldSuccessRate: 100}, nil
}
