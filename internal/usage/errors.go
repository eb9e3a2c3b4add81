package usage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nimasrn/gpu-savings-gateway/internal/model"
)

var (
	ErrUnauthenticated   = errors.New("invalid or missing api key")
	ErrValidation        = errors.New("validation failed")
	ErrTierLimitExceeded = errors.New("tier limit exceeded")
	ErrPersistence       = errors.New("failed to record usage")
)

// Code is the machine readable error code returned to API callers.
type Code string

const (
	CodeUnauthenticated   Code = "UNAUTHENTICATED"
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeTierLimitExceeded Code = "TIER_LIMIT_EXCEEDED"
	CodePersistence       Code = "PERSISTENCE_FAILURE"
	CodeInternal          Code = "INTERNAL_ERROR"
)

// BatchIndex is the FieldIssue index used for problems with the batch as a whole.
const BatchIndex = -1

type FieldIssue struct {
	Index  int    `json:"index"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (f FieldIssue) String() string {
	if f.Index == BatchIndex {
		return fmt.Sprintf("%s: %s", f.Field, f.Reason)
	}
	return fmt.Sprintf("gpu_data[%d].%s: %s", f.Index, f.Field, f.Reason)
}

// ValidationError carries every issue found in a rejected batch.
type ValidationError struct {
	Issues []FieldIssue
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		parts[i] = is.String()
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// TierLimitError reports a batch larger than the tier allows.
type TierLimitError struct {
	Tier      model.Tier
	Limit     int
	Requested int
}

func (e *TierLimitError) Error() string {
	return fmt.Sprintf("%s tier limited to %d GPUs per call, got %d. Upgrade to %s.",
		e.Tier, e.Limit, e.Requested, model.TierProfessional)
}

func (e *TierLimitError) Is(target error) bool { return target == ErrTierLimitExceeded }

// PersistenceError wraps a storage failure. Nothing of the batch was committed.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", ErrPersistence, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// CodeOf maps err onto the API error taxonomy.
func CodeOf(err error) Code {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return CodeUnauthenticated
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrTierLimitExceeded):
		return CodeTierLimitExceeded
	case errors.Is(err, ErrPersistence):
		return CodePersistence
	}
	return CodeInternal
}
