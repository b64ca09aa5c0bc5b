package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("task not found")
	ErrDuplicateID = errors.New("task id already exists")
	ErrPersistence = errors.New("durable store write failed")

	// ErrDelivery is logged by the hub when a single subscriber push fails.
	ErrDelivery = errors.New("subscriber delivery failed")

	// ErrReplicaInconsistency is logged by a client replica that received an
	// update or delete for a task it never saw added.
	ErrReplicaInconsistency = errors.New("replica inconsistency")
)

// FaultCode is the error kind carried across the modify contract.
type FaultCode string

const (
	FaultValidation  FaultCode = "validation"
	FaultNotFound    FaultCode = "not_found"
	FaultDuplicateID FaultCode = "duplicate_id"
	FaultPersistence FaultCode = "persistence"
	FaultInternal    FaultCode = "internal"
)

// Fault is the plain error descriptor returned instead of a normal result.
// Cause is the text of the originating error, never the error value itself.
type Fault struct {
	Code    FaultCode `json:"code"`
	Message string    `json:"message"`
	Cause   string    `json:"cause,omitempty"`
}

func NewFault(message string, err error) *Fault {
	f := &Fault{Code: CodeOf(err), Message: message}
	if err != nil {
		f.Cause = err.Error()
	}
	return f
}

func (f *Fault) Error() string {
	if f.Cause == "" {
		return fmt.Sprintf("%s: %s", f.Code, f.Message)
	}
	return fmt.Sprintf("%s: %s: %s", f.Code, f.Message, f.Cause)
}

// Is lets callers on the far side of the contract match faults with
// errors.Is(err, domain.ErrNotFound) and friends.
func (f *Fault) Is(target error) bool {
	switch f.Code {
	case FaultValidation:
		return target == ErrValidation
	case FaultNotFound:
		return target == ErrNotFound
	case FaultDuplicateID:
		return target == ErrDuplicateID
	case FaultPersistence:
		return target == ErrPersistence
	}
	return false
}

// CodeOf classifies err into a fault code. Persistence wins over the others
// because a failed durable write is reported regardless of what caused it.
func CodeOf(err error) FaultCode {
	switch {
	case err == nil:
		return FaultInternal
	case errors.Is(err, ErrPersistence):
		return FaultPersistence
	case errors.Is(err, ErrValidation):
		return FaultValidation
	case errors.Is(err, ErrNotFound):
		return FaultNotFound
	case errors.Is(err, ErrDuplicateID):
		return FaultDuplicateID
	default:
		return FaultInternal
	}
}
