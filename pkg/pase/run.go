package pase

import (
	"context"
	"errors"

	"github.com/backkem/matter-switch/pkg/transport"
	"github.com/backkem/matter-switch/pkg/wire"
)

// RunInitiator drives s through the whole handshake over conn.
func RunInitiator(ctx context.Context, conn *transport.Conn, s *Session) (*SessionKeys, error) {
	req, err := s.Start()
	if err != nil {
		return nil, err
	}

	resp, err := roundTrip(ctx, conn, req)
	if err != nil {
		return nil, abort(conn, s, StatusInvalidParameter, err)
	}
	pake1, err := s.HandlePBKDFParamResponse(resp)
	if err != nil {
		return nil, abort(conn, s, StatusInvalidParameter, err)
	}

	pake2, err := roundTrip(ctx, conn, pake1)
	if err != nil {
		return nil, abort(conn, s, StatusInvalidParameter, err)
	}
	if peer, ok := peerFinished(pake2); ok {
		return nil, abort(nil, s, peer, statusError(peer))
	}
	pake3, err := s.HandlePake2(pake2)
	if err != nil {
		return nil, abort(conn, s, StatusInvalidParameter, err)
	}

	fin, err := roundTrip(ctx, conn, pake3)
	if err != nil {
		return nil, abort(nil, s, StatusInvalidParameter, err)
	}
	if err := s.HandlePakeFinished(fin); err != nil {
		return nil, err
	}
	return s.SessionKeys(), nil
}

// RunResponder serves one handshake on conn with s.
func RunResponder(ctx context.Context, conn *transport.Conn, s *Session) (*SessionKeys, error) {
	req, err := conn.Receive(ctx)
	if err != nil {
		return nil, abort(nil, s, StatusInvalidParameter, err)
	}
	resp, err := s.HandlePBKDFParamRequest(req)
	if err != nil {
		return nil, abort(conn, s, StatusInvalidParameter, err)
	}

	pake1, err := roundTrip(ctx, conn, resp)
	if err != nil {
		return nil, abort(nil, s, StatusInvalidParameter, err)
	}
	if peer, ok := peerFinished(pake1); ok {
		return nil, abort(nil, s, peer, statusError(peer))
	}
	pake2, err := s.HandlePake1(pake1)
	if err != nil {
		return nil, abort(conn, s, StatusInvalidParameter, err)
	}

	pake3, err := roundTrip(ctx, conn, pake2)
	if err != nil {
		return nil, abort(nil, s, StatusInvalidParameter, err)
	}
	if peer, ok := peerFinished(pake3); ok {
		return nil, abort(nil, s, peer, statusError(peer))
	}
	fin, herr := s.HandlePake3(pake3)
	if fin != nil {
		if err := conn.Send(fin); err != nil && herr == nil {
			return nil, err
		}
	}
	if herr != nil {
		return nil, herr
	}
	return s.SessionKeys(), nil
}

func roundTrip(ctx context.Context, conn *transport.Conn, msg []byte) ([]byte, error) {
	if err := conn.Send(msg); err != nil {
		return nil, err
	}
	return conn.Receive(ctx)
}

// peerFinished reports whether data is a failing PakeFinished sent
// mid-handshake.
func peerFinished(data []byte) (Status, bool) {
	env, err := wire.Decode(data)
	if err != nil || env.Opcode != OpcodePakeFinished {
		return 0, false
	}
	var msg PakeFinished
	if err := env.DecodeBody(&msg); err != nil {
		return StatusInvalidParameter, true
	}
	if msg.Status == StatusSuccess {
		return 0, false
	}
	return msg.Status, true
}

// abort fails s and, when conn is non-nil, tells the peer.
func abort(conn *transport.Conn, s *Session, status Status, err error) error {
	fin := s.Abort(status)
	if conn != nil && !errors.Is(err, context.Canceled) {
		_ = conn.Send(fin)
	}
	return err
}
