package noise

import "errors"

var (
	// ErrIneffectiveConfig is returned when every noise mechanism is disabled.
	ErrIneffectiveConfig = errors.New("noise parameters are not effective (no noise will be applied)")
	// ErrInvalidConfig is returned for out-of-range noise parameters.
	ErrInvalidConfig = errors.New("invalid noise configuration")
	// ErrContractViolation marks a malformed batch handed to the model.
	ErrContractViolation = errors.New("batch contract violation")
)
