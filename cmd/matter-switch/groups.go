package main

import (
	"fmt"
	"net"

	"github.com/pion/logging"

	"github.com/backkem/matter-switch/pkg/fabric"
	"github.com/backkem/matter-switch/pkg/session"
	"github.com/backkem/matter-switch/pkg/transport"
)

// groupContext derives the operational group key for g as seen by
// sourceNodeID.
func (c Config) groupContext(g GroupConfig, sourceNodeID uint64) (*session.GroupContext, error) {
	info, err := c.FabricInfo(sourceNodeID)
	if err != nil {
		return nil, err
	}
	key, err := decodeHex("epoch_key", c.epochKey(g), session.SessionKeySize)
	if err != nil {
		return nil, err
	}
	return session.NewGroupContext(session.GroupContextConfig{
		FabricIndex:        info.FabricIndex,
		GroupID:            fabric.GroupID(g.GroupID),
		SourceNodeID:       info.NodeID,
		EpochKey:           key,
		CompressedFabricID: info.CompressedFabricID,
	})
}

// dialGroup opens a packet conn that sends to the group address.
func dialGroup(address string, lf logging.LoggerFactory) (*transport.Conn, error) {
	addr, err := net.ResolveUDPAddr("udp4", address)
	if err != nil {
		return nil, fmt.Errorf("group address %q: %w", address, err)
	}
	uc, err := net.DialUDP("udp4", nil, addr)
	if err != nil {
		return nil, err
	}
	return transport.NewConn(uc, transport.ConnConfig{
		Framing:       transport.FramingPacket,
		LoggerFactory: lf,
	}), nil
}

// listenGroup joins the group address on the default interface.
func listenGroup(address string, lf logging.LoggerFactory) (*transport.Conn, error) {
	addr, err := net.ResolveUDPAddr("udp4", address)
	if err != nil {
		return nil, fmt.Errorf("group address %q: %w", address, err)
	}
	if !addr.IP.IsMulticast() {
		return nil, fmt.Errorf("group address %q is not multicast", address)
	}
	uc, err := net.ListenMulticastUDP("udp4", nil, addr)
	if err != nil {
		return nil, err
	}
	return transport.NewConn(uc, transport.ConnConfig{
		Framing:       transport.FramingPacket,
		LoggerFactory: lf,
	}), nil
}
