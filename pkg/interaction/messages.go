package interaction

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/backkem/matter-switch/pkg/datamodel"
	"github.com/backkem/matter-switch/pkg/wire"
)

// Opcodes.
const (
	OpcodeStatusResponse uint8 = 0x01
	OpcodeReadRequest    uint8 = 0x02
	OpcodeReportData     uint8 = 0x05
	OpcodeInvokeRequest  uint8 = 0x08
	OpcodeInvokeResponse uint8 = 0x09
)

// Every message carries its exchange ID under key 1.
type exchangeHeader struct {
	ExchangeID uint16 `cbor:"1,keyasint"`
}

// InvokeRequest invokes one command.
type InvokeRequest struct {
	ExchangeID       uint16               `cbor:"1,keyasint"`
	Endpoint         datamodel.EndpointID `cbor:"2,keyasint"`
	Cluster          datamodel.ClusterID  `cbor:"3,keyasint"`
	Command          datamodel.CommandID  `cbor:"4,keyasint"`
	Fields           cbor.RawMessage      `cbor:"5,keyasint,omitempty"`
	SuppressResponse bool                 `cbor:"6,keyasint,omitempty"`
}

// Path returns the command path.
func (r *InvokeRequest) Path() datamodel.ConcreteCommandPath {
	return datamodel.ConcreteCommandPath{Endpoint: r.Endpoint, Cluster: r.Cluster, Command: r.Command}
}

// InvokeResponse answers an InvokeRequest.
type InvokeResponse struct {
	ExchangeID    uint16          `cbor:"1,keyasint"`
	Status        Status          `cbor:"2,keyasint"`
	ClusterStatus *uint8          `cbor:"3,keyasint,omitempty"`
	Fields        cbor.RawMessage `cbor:"4,keyasint,omitempty"`
}

// ReadRequest reads one attribute.
type ReadRequest struct {
	ExchangeID uint16                `cbor:"1,keyasint"`
	Endpoint   datamodel.EndpointID  `cbor:"2,keyasint"`
	Cluster    datamodel.ClusterID   `cbor:"3,keyasint"`
	Attribute  datamodel.AttributeID `cbor:"4,keyasint"`
}

// Path returns the attribute path.
func (r *ReadRequest) Path() datamodel.ConcreteAttributePath {
	return datamodel.ConcreteAttributePath{Endpoint: r.Endpoint, Cluster: r.Cluster, Attribute: r.Attribute}
}

// ReportData answers a ReadRequest.
type ReportData struct {
	ExchangeID  uint16                `cbor:"1,keyasint"`
	Status      Status                `cbor:"2,keyasint"`
	Value       cbor.RawMessage       `cbor:"3,keyasint,omitempty"`
	DataVersion datamodel.DataVersion `cbor:"4,keyasint,omitempty"`
}

// StatusResponse reports a request the server could not parse.
type StatusResponse struct {
	ExchangeID uint16 `cbor:"1,keyasint"`
	Status     Status `cbor:"2,keyasint"`
}

// Response is the successful result of an invoke or a read.
type Response struct {
	// Data holds the encoded command response fields or attribute value.
	// Empty for status-only commands.
	Data cbor.RawMessage

	// DataVersion is set for reads.
	DataVersion datamodel.DataVersion
}

// Decode decodes Data into v.
func (r *Response) Decode(v any) error {
	return wire.Unmarshal(r.Data, v)
}
