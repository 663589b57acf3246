package datamodel

import (
	"context"
	"crypto/rand"
	"encoding/binary"

	"go.uber.org/atomic"
)

// Cluster is a server-side cluster instance.
type Cluster interface {
	// ID returns the cluster ID (e.g., 0x0006 for OnOff).
	ID() ClusterID

	// EndpointID returns the endpoint this cluster belongs to.
	EndpointID() EndpointID

	// DataVersion returns the current cluster data version.
	// Must increment whenever any attribute changes.
	DataVersion() DataVersion

	// AttributeList returns every readable attribute, globals included.
	AttributeList() []AttributeID

	// AcceptedCommandList returns the commands the cluster accepts.
	AcceptedCommandList() []CommandID

	// ReadAttribute returns the attribute value. The value is encoded by the
	// caller.
	ReadAttribute(ctx context.Context, attr AttributeID) (any, error)

	// InvokeCommand executes a command. fields holds the encoded command
	// fields and may be empty. The result is the response payload, or nil
	// for status-only commands.
	InvokeCommand(ctx context.Context, cmd CommandID, fields []byte) (any, error)
}

// ClusterBase carries the identity and data version shared by all clusters.
// Embed it and call ReadGlobalAttribute from ReadAttribute.
type ClusterBase struct {
	id          ClusterID
	endpointID  EndpointID
	revision    uint16
	featureMap  uint32
	dataVersion *atomic.Uint32
}

// NewClusterBase creates a ClusterBase with a random initial data version.
func NewClusterBase(id ClusterID, endpointID EndpointID, revision uint16) *ClusterBase {
	return &ClusterBase{
		id:          id,
		endpointID:  endpointID,
		revision:    revision,
		dataVersion: atomic.NewUint32(randomDataVersion()),
	}
}

// ID returns the cluster ID.
func (c *ClusterBase) ID() ClusterID {
	return c.id
}

// EndpointID returns the endpoint ID.
func (c *ClusterBase) EndpointID() EndpointID {
	return c.endpointID
}

// ClusterRevision returns the implemented revision.
func (c *ClusterBase) ClusterRevision() uint16 {
	return c.revision
}

// FeatureMap returns the feature bitmap.
func (c *ClusterBase) FeatureMap() uint32 {
	return c.featureMap
}

// SetFeatureMap sets the feature bitmap. Call before serving.
func (c *ClusterBase) SetFeatureMap(features uint32) {
	c.featureMap = features
}

// DataVersion returns the current data version.
func (c *ClusterBase) DataVersion() DataVersion {
	return DataVersion(c.dataVersion.Load())
}

// IncrementDataVersion bumps the data version after an attribute change.
func (c *ClusterBase) IncrementDataVersion() {
	c.dataVersion.Inc()
}

// Path returns the cluster path.
func (c *ClusterBase) Path() ConcreteClusterPath {
	return ConcreteClusterPath{
		Endpoint: c.endpointID,
		Cluster:  c.id,
	}
}

// ReadGlobalAttribute answers the global attributes. handled is false for
// cluster-specific attributes.
func (c *ClusterBase) ReadGlobalAttribute(attr AttributeID, attrList []AttributeID, cmdList []CommandID) (value any, handled bool) {
	switch attr {
	case GlobalAttrClusterRevision:
		return c.revision, true
	case GlobalAttrFeatureMap:
		return c.featureMap, true
	case GlobalAttrAttributeList:
		return attrList, true
	case GlobalAttrAcceptedCommandList:
		return cmdList, true
	case GlobalAttrGeneratedCommandList:
		return []CommandID{}, true
	default:
		return nil, false
	}
}

func randomDataVersion() uint32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b[:])
}
