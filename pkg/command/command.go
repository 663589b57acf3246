// Package command turns switch commands into cluster requests on the
// devices bound to the switch.
//
// A Command names a local endpoint and cluster; the binding manager fans it
// out to every matching binding. Unicast bindings get an invoke or a read
// over the peer's session; multicast bindings get a group command. A
// unicast request that times out is retried once over a fresh session
// before the command fails.
package command

import (
	"github.com/google/uuid"

	"github.com/backkem/matter-switch/pkg/binding"
	"github.com/backkem/matter-switch/pkg/clusters"
	"github.com/backkem/matter-switch/pkg/datamodel"
	"github.com/backkem/matter-switch/pkg/fabric"
	"github.com/backkem/matter-switch/pkg/interaction"
	"github.com/backkem/matter-switch/pkg/session"
)

// Result is the outcome of a unicast request that succeeded.
type Result struct {
	// Entry is the binding the request went out on.
	Entry binding.Entry

	// Response holds the response fields or attribute value.
	Response *interaction.Response
}

// Peer returns the node that answered.
func (r Result) Peer() session.ScopedNodeID {
	return r.Entry.Peer()
}

// Command is one switch action. After Send the dispatcher owns a copy;
// the caller's value is never touched again.
type Command struct {
	// ID correlates log lines. Assigned by Send when zero.
	ID uuid.UUID

	LocalEndpoint datamodel.EndpointID
	Cluster       datamodel.ClusterID

	// CommandID and Fields describe an invoke.
	CommandID datamodel.CommandID
	Fields    []byte

	// IsRead selects an attribute read of AttributeID instead of an invoke.
	IsRead      bool
	AttributeID datamodel.AttributeID

	// OnSuccess runs for the first unicast success. OnFailure runs when no
	// unicast request succeeded. At most one of them runs, exactly once,
	// unless the command matched multicast bindings only. Requests cut off
	// by closing the interaction client fail with interaction.ErrClosed.
	OnSuccess func(Result)
	OnFailure func(error)

	// OnGroupSent runs once per multicast binding the command went out on.
	OnGroupSent func(groupID fabric.GroupID, err error)
}

// NewInvoke builds an invoke command. request is encoded as the command
// fields; nil means no fields.
func NewInvoke(endpoint datamodel.EndpointID, cluster datamodel.ClusterID, cmd datamodel.CommandID, request any) (*Command, error) {
	fields, err := clusters.EncodeFields(request)
	if err != nil {
		return nil, err
	}
	return &Command{
		LocalEndpoint: endpoint,
		Cluster:       cluster,
		CommandID:     cmd,
		Fields:        fields,
	}, nil
}

// NewRead builds an attribute read command.
func NewRead(endpoint datamodel.EndpointID, cluster datamodel.ClusterID, attr datamodel.AttributeID) *Command {
	return &Command{
		LocalEndpoint: endpoint,
		Cluster:       cluster,
		IsRead:        true,
		AttributeID:   attr,
	}
}

func (c *Command) clone() *Command {
	cp := *c
	if c.Fields != nil {
		cp.Fields = append([]byte(nil), c.Fields...)
	}
	return &cp
}

func (c *Command) invokeRequest(entry binding.Entry) interaction.InvokeRequest {
	return interaction.InvokeRequest{
		Endpoint: entry.RemoteEndpoint,
		Cluster:  c.Cluster,
		Command:  c.CommandID,
		Fields:   c.Fields,
	}
}

func (c *Command) readRequest(entry binding.Entry) interaction.ReadRequest {
	return interaction.ReadRequest{
		Endpoint:  entry.RemoteEndpoint,
		Cluster:   c.Cluster,
		Attribute: c.AttributeID,
	}
}

func (c *Command) String() string {
	kind := "invoke"
	if c.IsRead {
		kind = "read"
	}
	return kind + " " + c.ID.String()[:8]
}
