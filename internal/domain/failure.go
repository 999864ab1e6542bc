package domain

import "log/slog"

// FailureKind classifies failures reported by loading pipelines
type FailureKind string

const (
	FailureRepositoryLoad FailureKind = "repository_load"
	FailureFetch          FailureKind = "fetch"
)

// Failure is a diagnosable error report
type Failure struct {
	Kind   FailureKind
	From   string // Component that observed the failure
	Reason string
}

// Log writes the failure as a structured error entry
func (f Failure) Log(logger *slog.Logger, attrs ...any) {
	args := append([]any{"kind", string(f.Kind), "from", f.From, "reason", f.Reason}, attrs...)
	logger.Error("failure", args...)
}
