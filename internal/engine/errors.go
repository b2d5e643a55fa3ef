package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/tally/internal/shape"
)

// RuntimeError represents a failure detected while resolving or answering a
// query.
//
// Runtime errors include:
//   - Invalid request: text or user missing or oversized
//   - Plan invariant violation: the pipeline produced an inconsistent plan
//   - Storage failure: the single read did not complete
//
// None of these ever carry a substitute numeric answer.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// RequestID identifies the affected request.
	RequestID string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeInvalidRequest indicates the inbound request failed validation.
	ErrCodeInvalidRequest RuntimeErrorCode = "INVALID_REQUEST"

	// ErrCodePlanInvariant indicates the built plan broke an invariant.
	ErrCodePlanInvariant RuntimeErrorCode = "PLAN_INVARIANT_VIOLATION"

	// ErrCodeStorage indicates the storage read failed.
	ErrCodeStorage RuntimeErrorCode = "STORAGE_FAILURE"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("%s: %s (request=%s)", e.Code, e.Message, e.RequestID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// RejectionCode categorizes rejections.
type RejectionCode string

// RejectCodeShapeUnresolved indicates the question did not determine a shape.
const RejectCodeShapeUnresolved RejectionCode = "SHAPE_UNRESOLVED"

// Rejection is returned instead of a plan when the question is ambiguous.
// It is an expected outcome, not a defect: the caller should put
// Clarification back to the user.
type Rejection struct {
	Code          RejectionCode `json:"code"`
	Reason        shape.Reason  `json:"reason"`
	Clarification string        `json:"clarification"`
	RequestID     string        `json:"request_id"`
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s (%s): %s", r.Code, r.Reason, r.Clarification)
}

// IsUnresolved returns true if the error is a shape rejection.
// Uses errors.As to handle wrapped errors.
func IsUnresolved(err error) bool {
	var r *Rejection
	return errors.As(err, &r)
}

// IsInvariantViolation returns true if the error is a plan invariant
// violation. Uses errors.As to handle wrapped errors.
func IsInvariantViolation(err error) bool {
	return hasCode(err, ErrCodePlanInvariant)
}

// IsInvalidRequest returns true if the request failed validation.
func IsInvalidRequest(err error) bool {
	return hasCode(err, ErrCodeInvalidRequest)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// NewInvariantError creates a RuntimeError for a plan that failed validation.
func NewInvariantError(requestID string, violations []string) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodePlanInvariant,
		Message:   "plan failed validation",
		RequestID: requestID,
		Details: map[string]string{
			"violations": strings.Join(violations, "; "),
		},
	}
}

// NewInvalidRequestError creates a RuntimeError for a request that failed
// validation. fields maps each offending field to the rule it broke.
func NewInvalidRequestError(fields map[string]string) *RuntimeError {
	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, f)
	}
	sort.Strings(names)
	return &RuntimeError{
		Code:    ErrCodeInvalidRequest,
		Message: "invalid fields: " + strings.Join(names, ", "),
		Details: fields,
	}
}

// NewStorageError creates a RuntimeError wrapping a failed read.
func NewStorageError(requestID, planID string, err error) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeStorage,
		Message:   err.Error(),
		RequestID: requestID,
		Details:   map[string]string{"plan_id": planID},
		Err:       err,
	}
}
