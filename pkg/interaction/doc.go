// Package interaction carries cluster commands and attribute reads between
// the switch and the devices it controls.
//
// Each request is one message in a wire.Envelope, sealed by the session
// handle (unicast) or group context (multicast). A unicast request is
// answered on the same session with a message carrying the same exchange
// ID; group requests are never answered.
//
// The Client is owned by the event loop: requests are started on the loop
// and their handlers run on it. A request that sees no answer within the
// timeout, or whose session connection drops, fails with ErrTimeout. A
// non-success status from the peer fails with *StatusError.
package interaction
