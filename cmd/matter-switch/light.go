package main

import (
	"context"
	"net"

	"github.com/urfave/cli/v2"

	"github.com/backkem/matter-switch/examples/light"
	"github.com/backkem/matter-switch/pkg/clusters/onoff"
	"github.com/backkem/matter-switch/pkg/crypto/spake2p"
	"github.com/backkem/matter-switch/pkg/datamodel"
	"github.com/backkem/matter-switch/pkg/discovery"
	"github.com/backkem/matter-switch/pkg/transport"
)

func runLight(cCtx *cli.Context, cfg Config) error {
	ctx := cCtx.Context

	lf, err := newLoggerFactory(cfg.LogLevel)
	if err != nil {
		return err
	}
	log := lf.NewLogger("main")

	backend, err := cfg.backend()
	if err != nil {
		return err
	}
	salt, err := cfg.salt()
	if err != nil {
		return err
	}
	info, err := cfg.FabricInfo(cfg.Light.NodeID)
	if err != nil {
		return err
	}
	verifier, err := spake2p.GenerateVerifier(backend, cfg.PASE.Passcode, salt, cfg.PASE.Iterations)
	if err != nil {
		return err
	}

	var storage onoff.Storage
	if cfg.Light.StateFile != "" {
		s, err := openStateStore(cfg.Light.StateFile)
		if err != nil {
			return err
		}
		storage = s
	}

	device, err := light.NewDevice(light.Config{
		Endpoint:      datamodel.EndpointID(cfg.Light.Endpoint),
		FabricIndex:   info.FabricIndex,
		Verifier:      verifier,
		Salt:          salt,
		Iterations:    cfg.PASE.Iterations,
		Backend:       backend,
		Storage:       storage,
		LoggerFactory: lf,
	})
	if err != nil {
		return err
	}

	listen := cfg.Light.Listen
	if v := cCtx.String(flagListen.Name); v != "" {
		listen = v
	}
	ln, err := transport.Listen(transport.ListenerConfig{ListenAddr: listen, LoggerFactory: lf})
	if err != nil {
		return err
	}
	defer ln.Close()

	if cfg.Light.Advertise && !cCtx.Bool(flagNoAdvertise.Name) {
		port := 0
		if addr, ok := ln.Addr().(*net.TCPAddr); ok {
			port = addr.Port
		}
		adv, err := discovery.NewAdvertiser(discovery.AdvertiserConfig{Port: port, LoggerFactory: lf})
		if err != nil {
			return err
		}
		defer adv.Close()
		if _, err := adv.StartOperational(info.CompressedFabricID, info.NodeID, discovery.OperationalTXT{TCPSupported: true}); err != nil {
			return err
		}
	}

	for _, g := range cfg.Groups {
		gc, err := cfg.groupContext(g, cfg.Light.NodeID)
		if err != nil {
			return err
		}
		conn, err := listenGroup(g.Address, lf)
		if err != nil {
			return err
		}
		defer conn.Close()
		g := g
		go func() {
			if err := device.ServeGroup(ctx, conn, gc); err != nil && ctx.Err() == nil {
				log.Warnf("group 0x%04X: %v", g.GroupID, err)
			}
		}()
	}

	log.Infof("light node %s endpoint %d on %s", info.NodeID, device.Endpoint(), ln.Addr())
	return ln.Serve(ctx, func(ctx context.Context, conn *transport.Conn) {
		if err := device.HandleConn(ctx, conn); err != nil && ctx.Err() == nil {
			log.Debugf("session from %s: %v", conn.RemoteAddr(), err)
		}
	})
}
