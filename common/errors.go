package common

import (
	"errors"
	"fmt"
)

// The closed set of failure kinds an exchange can end with. Callers
// branch on them with errors.Is instead of parsing messages.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNetwork           = errors.New("network failure")
	ErrProtocol          = errors.New("protocol violation")
	ErrTimeout           = errors.New("exchange timed out")
	ErrValidation        = errors.New("validation failed")
	ErrBroadcast         = errors.New("broadcast rejected")
)

var kinds = []error{
	ErrInsufficientFunds,
	ErrNetwork,
	ErrProtocol,
	ErrTimeout,
	ErrValidation,
	ErrBroadcast,
}

type Stage string

const (
	StageBuild     Stage = "build"
	StageExchange  Stage = "exchange"
	StageSubmit    Stage = "submit"
	StagePoll      Stage = "poll"
	StageFinalize  Stage = "finalize"
	StageBroadcast Stage = "broadcast"
)

// StageError tags a failure with the stage it occurred in and one of the
// failure kinds above, keeping the underlying cause inspectable.
type StageError struct {
	Stage Stage
	Kind  error
	Cause error
}

func NewStageError(stage Stage, kind, cause error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Cause: cause}
}

func (e *StageError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Stage, e.Kind)
	}
	if errors.Is(e.Cause, e.Kind) {
		return fmt.Sprintf("%s: %s", e.Stage, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Stage, e.Kind, e.Cause)
}

func (e *StageError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// TagStage wraps err with the stage it failed in, classified by the
// first taxonomy kind found in its chain, or by fallback if none
// matches. Errors already carrying a stage pass through untouched.
func TagStage(stage Stage, err, fallback error) error {
	if err == nil {
		return nil
	}
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return err
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return &StageError{Stage: stage, Kind: kind, Cause: err}
		}
	}
	return &StageError{Stage: stage, Kind: fallback, Cause: err}
}
