package interaction

import (
	"context"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/pion/logging"

	"github.com/backkem/matter-switch/pkg/datamodel"
	"github.com/backkem/matter-switch/pkg/session"
	"github.com/backkem/matter-switch/pkg/transport"
	"github.com/backkem/matter-switch/pkg/wire"
)

// ServerConfig configures the Server.
type ServerConfig struct {
	// Router resolves request paths to clusters. Required.
	Router *datamodel.Router

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// GroupMembership lists the endpoints that act on one group's commands.
type GroupMembership struct {
	Context   *session.GroupContext
	Endpoints []datamodel.EndpointID
}

// Server answers invoke and read requests from the router's clusters.
type Server struct {
	router *datamodel.Router
	log    logging.LeveledLogger
}

// NewServer creates a Server.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Router == nil {
		return nil, fmt.Errorf("interaction: server requires a router")
	}
	s := &Server{router: config.Router}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("interaction")
	}
	return s, nil
}

// ServeSession answers requests arriving on h until its connection fails
// or ctx is done.
func (s *Server) ServeSession(ctx context.Context, h *session.Handle) error {
	conn := h.Conn()
	if conn == nil {
		return ErrNoConnection
	}
	for {
		frame, err := conn.Receive(ctx)
		if err != nil {
			return err
		}
		payload, err := h.Open(frame)
		if err != nil {
			if s.log != nil {
				s.log.Debugf("dropping frame on %s: %v", h, err)
			}
			continue
		}

		out, err := s.Handle(ctx, payload)
		if err != nil {
			if s.log != nil {
				s.log.Debugf("dropping message on %s: %v", h, err)
			}
			continue
		}
		if out == nil {
			continue
		}
		sealed, err := h.Seal(out)
		if err != nil {
			return err
		}
		if err := conn.Send(sealed); err != nil {
			return err
		}
	}
}

// ServeGroup applies group commands arriving on conn until it fails or ctx
// is done. Frames for groups not in members are dropped.
func (s *Server) ServeGroup(ctx context.Context, conn *transport.Conn, members ...GroupMembership) error {
	for {
		frame, err := conn.Receive(ctx)
		if err != nil {
			return err
		}
		id, err := session.FrameSessionID(frame)
		if err != nil {
			continue
		}

		for _, m := range members {
			if m.Context.SessionID() != id {
				continue
			}
			gf, err := m.Context.Open(frame)
			if err != nil {
				// Session IDs are a hash and may collide across groups.
				continue
			}
			s.handleGroup(ctx, m, gf)
			break
		}
	}
}

// Handle processes one encoded request and returns the encoded response,
// or nil when the request asks for none.
func (s *Server) Handle(ctx context.Context, payload []byte) ([]byte, error) {
	env, err := wire.Decode(payload)
	if err != nil {
		return nil, err
	}

	switch env.Opcode {
	case OpcodeInvokeRequest:
		var req InvokeRequest
		if err := env.DecodeBody(&req); err != nil {
			return s.statusResponse(env, StatusInvalidCommand)
		}
		resp := s.invoke(ctx, &req)
		if req.SuppressResponse {
			return nil, nil
		}
		return wire.Encode(OpcodeInvokeResponse, resp)

	case OpcodeReadRequest:
		var req ReadRequest
		if err := env.DecodeBody(&req); err != nil {
			return s.statusResponse(env, StatusInvalidCommand)
		}
		return wire.Encode(OpcodeReportData, s.read(ctx, &req))

	default:
		return s.statusResponse(env, StatusFailure)
	}
}

func (s *Server) statusResponse(env wire.Envelope, status Status) ([]byte, error) {
	var hdr exchangeHeader
	_ = env.DecodeBody(&hdr)
	return wire.Encode(OpcodeStatusResponse, &StatusResponse{ExchangeID: hdr.ExchangeID, Status: status})
}

func (s *Server) invoke(ctx context.Context, req *InvokeRequest) *InvokeResponse {
	resp := &InvokeResponse{ExchangeID: req.ExchangeID}

	result, err := s.router.InvokeCommand(ctx, req.Path(), req.Fields)
	if err != nil {
		if s.log != nil {
			s.log.Debugf("invoke %s: %v", req.Path(), err)
		}
		resp.Status = ErrorToStatus(err)
		return resp
	}
	if result != nil {
		fields, err := wire.Marshal(result)
		if err != nil {
			resp.Status = StatusFailure
			return resp
		}
		resp.Fields = cbor.RawMessage(fields)
	}
	if s.log != nil {
		s.log.Infof("invoked %s", req.Path())
	}
	return resp
}

func (s *Server) read(ctx context.Context, req *ReadRequest) *ReportData {
	report := &ReportData{ExchangeID: req.ExchangeID}

	cluster, err := s.router.GetCluster(req.Endpoint, req.Cluster)
	if err != nil {
		report.Status = ErrorToStatus(err)
		return report
	}
	value, err := cluster.ReadAttribute(ctx, req.Attribute)
	if err != nil {
		report.Status = ErrorToStatus(err)
		return report
	}
	encoded, err := wire.Marshal(value)
	if err != nil {
		report.Status = StatusFailure
		return report
	}
	report.Value = cbor.RawMessage(encoded)
	report.DataVersion = cluster.DataVersion()
	return report
}

func (s *Server) handleGroup(ctx context.Context, m GroupMembership, gf *session.GroupFrame) {
	env, err := wire.Decode(gf.Payload)
	if err != nil {
		return
	}

	switch env.Opcode {
	case OpcodeInvokeRequest:
		var req InvokeRequest
		if err := env.DecodeBody(&req); err != nil {
			return
		}
		for _, ep := range m.Endpoints {
			req.Endpoint = ep
			resp := s.invoke(ctx, &req)
			if !resp.Status.IsSuccess() && s.log != nil {
				s.log.Debugf("group 0x%04X invoke on endpoint %d: %s", uint16(gf.GroupID), ep, resp.Status)
			}
		}
	case OpcodeReadRequest:
		var req ReadRequest
		if err := env.DecodeBody(&req); err != nil {
			return
		}
		for _, ep := range m.Endpoints {
			req.Endpoint = ep
			report := s.read(ctx, &req)
			if s.log != nil {
				s.log.Infof("group 0x%04X read from node %016X on endpoint %d: %s", uint16(gf.GroupID), uint64(gf.SourceNodeID), ep, report.Status)
			}
		}
	}
}
