package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTagsNotPropagated = errors.New("route table tags not propagated")
	ErrNoIsolatedTier    = errors.New("interface endpoints require an isolated subnet tier")
	ErrPeeringNotActive  = errors.New("vpc peering connection did not become active")
	ErrNotEnoughZones    = errors.New("not enough availability zones")
	ErrCIDRTooSmall      = errors.New("address block too small for subnet plan")
)

type Stage string

const (
	StageAllocate Stage = "allocate"
	StageClassify Stage = "classify"
	StageEndpoint Stage = "endpoints"
	StageHarden   Stage = "harden"
	StagePeering  Stage = "peering"
	StageRoutes   Stage = "peering-routes"
)

// StageError marks a fatal failure and names the sub-operation that failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// AtStage wraps err in a StageError unless it already carries one.
func AtStage(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// EndpointError aggregates the endpoints that failed in a best-effort batch.
type EndpointError struct {
	Failures []EndpointResult
}

func (e *EndpointError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s (%s): %v", f.Service, f.Kind, f.Err))
	}
	return fmt.Sprintf("%d endpoint(s) failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

func (e *EndpointError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}
