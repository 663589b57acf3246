package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pion/logging"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/backkem/matter-switch/pkg/binding"
	"github.com/backkem/matter-switch/pkg/command"
	"github.com/backkem/matter-switch/pkg/crypto/p256"
	"github.com/backkem/matter-switch/pkg/datamodel"
	"github.com/backkem/matter-switch/pkg/discovery"
	"github.com/backkem/matter-switch/pkg/eventloop"
	"github.com/backkem/matter-switch/pkg/fabric"
	"github.com/backkem/matter-switch/pkg/interaction"
	"github.com/backkem/matter-switch/pkg/pase"
	"github.com/backkem/matter-switch/pkg/session"
	"github.com/backkem/matter-switch/pkg/shell"
	"github.com/backkem/matter-switch/pkg/transport"
)

// execWaitTimeout bounds how long --exec waits for results.
const execWaitTimeout = 30 * time.Second

func runSwitch(cCtx *cli.Context, cfg Config) error {
	ctx := cCtx.Context

	lf, err := newLoggerFactory(cfg.LogLevel)
	if err != nil {
		return err
	}
	log := lf.NewLogger("switch")

	backend, err := cfg.backend()
	if err != nil {
		return err
	}
	salt, err := cfg.salt()
	if err != nil {
		return err
	}
	info, err := cfg.FabricInfo(cfg.Switch.NodeID)
	if err != nil {
		return err
	}

	loop := eventloop.New(eventloop.Config{Name: "switch", LoggerFactory: lf})
	defer loop.Close()

	table, err := openBindings(cfg)
	if err != nil {
		return err
	}

	resolver, err := discovery.NewResolver(discovery.ResolverConfig{LoggerFactory: lf})
	if err != nil {
		log.Warnf("mDNS unavailable, only configured peers are reachable: %v", err)
	}
	directory := session.NewDirectory(session.DefaultMaxSessions)
	est := &paseEstablisher{
		cfid:      info.CompressedFabricID,
		peers:     make(map[fabric.NodeID]string),
		resolver:  resolver,
		directory: directory,
		passcode:  cfg.PASE.Passcode,
		backend:   backend,
		lf:        lf,
	}
	for _, p := range cfg.Switch.Peers {
		est.peers[fabric.NodeID(p.NodeID)] = p.Address
	}

	connector, err := session.NewConnector(session.ConnectorConfig{
		Loop:          loop,
		Directory:     directory,
		Establisher:   est,
		LoggerFactory: lf,
	})
	if err != nil {
		return err
	}
	defer connector.Close()

	client, err := interaction.NewClient(interaction.ClientConfig{Loop: loop, LoggerFactory: lf})
	if err != nil {
		return err
	}
	defer client.Close()

	for _, g := range cfg.Groups {
		gc, err := cfg.groupContext(g, cfg.Switch.NodeID)
		if err != nil {
			return err
		}
		conn, err := dialGroup(g.Address, lf)
		if err != nil {
			return err
		}
		defer conn.Close()
		if err := loop.RunSync(func() { client.RegisterGroup(gc, conn) }); err != nil {
			return err
		}
	}

	mgr, err := binding.NewManager(binding.ManagerConfig{
		Loop:          loop,
		Table:         table,
		Sessions:      connector,
		LoggerFactory: lf,
	})
	if err != nil {
		return err
	}

	fabrics := fabric.NewTable(fabric.TableConfig{
		OnRemoved: func(fi fabric.FabricIndex) {
			_ = loop.Post(func() {
				if err := mgr.FabricRemoved(fi); err != nil {
					log.Warnf("fabric %d: %v", fi, err)
				}
				directory.RemoveFabric(fi)
			})
		},
	})
	if err := fabrics.Add(info); err != nil {
		return err
	}

	dispatcher, err := command.NewDispatcher(command.DispatcherConfig{
		Loop:          loop,
		Bindings:      mgr,
		Client:        client,
		Sessions:      connector,
		LoggerFactory: lf,
	})
	if err != nil {
		return err
	}

	registry := shell.NewRegistry()
	if err := shell.RegisterSwitchCommands(registry, shell.SwitchConfig{
		Sender:   dispatcher,
		Loop:     loop,
		Bindings: mgr,
		Endpoint: datamodel.EndpointID(cfg.Switch.Endpoint),
	}); err != nil {
		return err
	}
	if err := shell.RegisterPakeCommands(registry, shell.PakeConfig{
		Passcode:   cfg.PASE.Passcode,
		Salt:       salt,
		Iterations: cfg.PASE.Iterations,
		Backend:    backend,
	}); err != nil {
		return err
	}
	if err := registerFabricCommands(registry, fabrics); err != nil {
		return err
	}

	log.Infof("switch node %s on fabric %s, %d bindings", info.NodeID, info.FabricIndex, table.Len())

	if lines := cCtx.StringSlice(flagExec.Name); len(lines) > 0 {
		return execLines(ctx, registry, loop, dispatcher, lines)
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		lines, err := readLines(os.Stdin)
		if err != nil {
			return err
		}
		return execLines(ctx, registry, loop, dispatcher, lines)
	}

	console, err := shell.NewConsole(shell.ConsoleConfig{
		Registry:      registry,
		HistoryFile:   cfg.Switch.HistoryFile,
		LoggerFactory: lf,
	})
	if err != nil {
		return err
	}
	return console.Run(ctx)
}

// openBindings loads the binding table and seeds it from the config when
// it is empty.
func openBindings(cfg Config) (*binding.Table, error) {
	var storage binding.Storage
	if cfg.Switch.BindingsFile != "" {
		storage = binding.NewFileStorage(cfg.Switch.BindingsFile)
	}
	table, err := binding.NewTable(binding.TableConfig{Storage: storage})
	if err != nil {
		return nil, err
	}
	if table.Len() > 0 {
		return table, nil
	}
	for _, b := range cfg.Switch.Bindings {
		e, err := cfg.bindingEntry(b)
		if err != nil {
			return nil, err
		}
		if _, err := table.Add(e); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// execLines runs each line and waits until every command it sent has
// finished.
func execLines(ctx context.Context, r *shell.Registry, loop *eventloop.Loop, d *command.Dispatcher, lines []string) error {
	for _, line := range lines {
		if err := r.Execute(ctx, os.Stdout, line); err != nil {
			return fmt.Errorf("%s: %w", line, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, execWaitTimeout)
	defer cancel()
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		var pending int
		if err := loop.RunSync(func() { pending = d.Pending() }); err != nil {
			return err
		}
		if pending == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%d commands still pending: %w", pending, ctx.Err())
		case <-ticker.C:
		}
	}
}

// readLines returns the non-empty, non-comment lines of r.
func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, sc.Err()
}

// paseEstablisher opens a TCP connection to a light and runs PASE with the
// shared setup passcode.
type paseEstablisher struct {
	cfid      [fabric.CompressedFabricIDSize]byte
	peers     map[fabric.NodeID]string
	resolver  *discovery.Resolver
	directory *session.Directory
	passcode  uint32
	backend   p256.Backend
	lf        logging.LoggerFactory
}

var errNoAddress = errors.New("no address for node")

// Establish implements session.Establisher.
func (e *paseEstablisher) Establish(ctx context.Context, peer session.ScopedNodeID) (*session.Handle, error) {
	addr, err := e.address(ctx, peer.NodeID)
	if err != nil {
		return nil, err
	}
	id, err := e.directory.AllocateID()
	if err != nil {
		return nil, err
	}

	conn, err := transport.Dial(ctx, "tcp", addr, transport.ConnConfig{LoggerFactory: e.lf})
	if err != nil {
		return nil, err
	}
	s, err := pase.NewInitiator(pase.Config{
		Passcode:       e.passcode,
		LocalSessionID: id,
		Backend:        e.backend,
		LoggerFactory:  e.lf,
	})
	if err != nil {
		conn.Close()
		return nil, err
	}
	keys, err := pase.RunInitiator(ctx, conn, s)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("pase with %s at %s: %w", peer, addr, err)
	}
	keys.Zero()

	h, err := session.FromPASE(peer, s, conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return h, nil
}

func (e *paseEstablisher) address(ctx context.Context, node fabric.NodeID) (string, error) {
	if addr, ok := e.peers[node]; ok {
		return addr, nil
	}
	if e.resolver == nil {
		return "", fmt.Errorf("%w %s", errNoAddress, node)
	}
	svc, err := e.resolver.LookupOperational(ctx, e.cfid, node)
	if err != nil {
		return "", err
	}
	return svc.Address()
}
