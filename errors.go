package timely

import "errors"

var (
	// ErrNoAddresses is returned by Config.TryBuild when a Cluster config
	// carries an empty Addresses list.
	ErrNoAddresses = errors.New("timely: cluster configuration requires at least one address")

	// ErrAddressCountMismatch is returned by Config.TryBuild when a
	// Cluster config's Addresses length does not match its fleet-wide
	// worker count, Workers*Processes -- every worker needs exactly one
	// listen address.
	ErrAddressCountMismatch = errors.New("timely: cluster configuration's address count must equal its worker count")

	// ErrWorkerIndexOutOfRange is returned by Config.TryBuild when a
	// Cluster config's ProcessIndex falls outside [0, Processes).
	ErrWorkerIndexOutOfRange = errors.New("timely: worker index out of range")

	// ErrUnknownConfigKind is returned by TryBuild when a Config's
	// Kind field holds a value outside the four recognized variants.
	ErrUnknownConfigKind = errors.New("timely: unrecognized configuration kind")

	// ErrWorkersMustBePositive is returned by TryBuild when Workers <= 0.
	ErrWorkersMustBePositive = errors.New("timely: worker count must be positive")
)
