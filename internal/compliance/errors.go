package compliance

import "errors"

var (
	// ErrInvalidPrice is returned for a non-positive price on a product or observation
	ErrInvalidPrice = errors.New("price must be positive")

	// ErrUnsortedObservations is returned when observations are not in ascending time order
	ErrUnsortedObservations = errors.New("observations must be sorted by timestamp ascending")

	// ErrInvalidParameters is returned when a rule definition carries unusable parameters
	ErrInvalidParameters = errors.New("invalid rule parameters")

	// ErrUnknownRule is returned for a rule type without a registered check
	ErrUnknownRule = errors.New("unknown rule type")
)
