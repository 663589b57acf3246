// Package datamodel holds the identifiers, cluster contract and router used
// by the interaction layer.
//
// Attribute values and command fields are plain Go values encoded with the
// wire codec; clusters never see the transport.
package datamodel

import "fmt"

// Fundamental ID types.
type (
	// EndpointID is a 16-bit endpoint identifier.
	EndpointID uint16

	// ClusterID is a 32-bit cluster identifier.
	ClusterID uint32

	// AttributeID is a 32-bit attribute identifier.
	AttributeID uint32

	// CommandID is a 32-bit command identifier.
	CommandID uint32

	// DataVersion is a 32-bit version number for cluster data.
	DataVersion uint32
)

// ConcreteClusterPath identifies a specific cluster instance on an endpoint.
type ConcreteClusterPath struct {
	Endpoint EndpointID
	Cluster  ClusterID
}

// String returns "ep/cluster".
func (p ConcreteClusterPath) String() string {
	return fmt.Sprintf("%d/0x%04X", p.Endpoint, uint32(p.Cluster))
}

// ConcreteAttributePath identifies a specific attribute within a cluster.
type ConcreteAttributePath struct {
	Endpoint  EndpointID
	Cluster   ClusterID
	Attribute AttributeID
}

// ClusterPath returns the cluster path portion.
func (p ConcreteAttributePath) ClusterPath() ConcreteClusterPath {
	return ConcreteClusterPath{
		Endpoint: p.Endpoint,
		Cluster:  p.Cluster,
	}
}

// String returns "ep/cluster/attribute".
func (p ConcreteAttributePath) String() string {
	return fmt.Sprintf("%s/attr 0x%04X", p.ClusterPath(), uint32(p.Attribute))
}

// ConcreteCommandPath identifies a specific command within a cluster.
type ConcreteCommandPath struct {
	Endpoint EndpointID
	Cluster  ClusterID
	Command  CommandID
}

// ClusterPath returns the cluster path portion.
func (p ConcreteCommandPath) ClusterPath() ConcreteClusterPath {
	return ConcreteClusterPath{
		Endpoint: p.Endpoint,
		Cluster:  p.Cluster,
	}
}

// String returns "ep/cluster/command".
func (p ConcreteCommandPath) String() string {
	return fmt.Sprintf("%s/cmd 0x%02X", p.ClusterPath(), uint32(p.Command))
}
