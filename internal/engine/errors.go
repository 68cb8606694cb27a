package engine

import "errors"

var (
	// ErrLowConfidence rejects a parsed command whose confidence falls
	// below the configured floor. Nothing is mutated.
	ErrLowConfidence = errors.New("command confidence below floor")

	// ErrSchedulePublished rejects mutation of a published schedule.
	ErrSchedulePublished = errors.New("schedule is published")

	// ErrUnknownAction rejects a modification command whose action is
	// not move, cancel or create.
	ErrUnknownAction = errors.New("unknown modification action")

	// ErrInfeasible signals that a requested placement violates a hard
	// constraint. The wrapped message carries the reasons.
	ErrInfeasible = errors.New("placement infeasible")
)
