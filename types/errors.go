package types

import "fmt"

// HeightUnknownError is returned by stores (and the sync subsystem) when
// asked about a height they have no record of, mirroring the teacher's
// tmconsensus.HeightUnknownError so callers can errors.As against a
// single well-known shape instead of parsing strings.
type HeightUnknownError struct {
	Want Height
}

func (e HeightUnknownError) Error() string {
	return fmt.Sprintf("height %d unknown", e.Want)
}

// ValidatorNotFoundError is returned when a vote, proposal, or
// certificate references an address absent from the relevant
// ValidatorSet (spec.md §4.5 "Errors").
type ValidatorNotFoundError struct {
	Address Address
}

func (e ValidatorNotFoundError) Error() string {
	return fmt.Sprintf("validator not found: %s", e.Address)
}
