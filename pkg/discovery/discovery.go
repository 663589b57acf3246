// Package discovery finds and announces operational nodes over DNS-SD.
//
// A commissioned node is published as "<CompressedFabricID>-<NodeID>" under
// _matter._tcp. The switch resolves a bound peer to an address with
// Resolver.LookupOperational; the light publishes itself with
// Advertiser.StartOperational. Both sit on github.com/grandcat/zeroconf
// behind small interfaces so tests can swap in MockMDNSResolver and
// MockServerFactory.
package discovery

import "errors"

// DNS-SD constants.
const (
	// ServiceOperational is the DNS-SD service type for operational nodes.
	ServiceOperational = "_matter._tcp"

	// DefaultDomain is the default mDNS domain.
	DefaultDomain = "local."

	// DefaultPort is the default operational port.
	DefaultPort = 5540
)

// Package-level sentinel errors for discovery operations.
var (
	// ErrClosed is returned when an operation is attempted on a closed component.
	ErrClosed = errors.New("discovery: closed")

	// ErrAlreadyStarted is returned when publishing an instance twice.
	ErrAlreadyStarted = errors.New("discovery: already started")

	// ErrNotStarted is returned when stopping an instance that was not published.
	ErrNotStarted = errors.New("discovery: not started")

	// ErrInvalidPort is returned when the port number is out of range.
	ErrInvalidPort = errors.New("discovery: invalid port (must be 1-65535)")

	// ErrServiceNotFound is returned when a requested service is not found.
	ErrServiceNotFound = errors.New("discovery: service not found")

	// ErrNoAddresses is returned when a resolved service carries no usable address.
	ErrNoAddresses = errors.New("discovery: no IP addresses")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("discovery: operation timed out")

	// ErrInvalidInstanceName is returned when the instance name format is invalid.
	ErrInvalidInstanceName = errors.New("discovery: invalid instance name format")

	// ErrInvalidTXTRecord is returned when a TXT record has invalid format.
	ErrInvalidTXTRecord = errors.New("discovery: invalid TXT record format")
)
