package discovery

import (
	"fmt"
	"net"
	"sync"

	"github.com/grandcat/zeroconf"
	"github.com/pion/logging"

	"github.com/backkem/matter-switch/pkg/fabric"
)

// MDNSServer is a registered mDNS responder.
type MDNSServer interface {
	Shutdown()
}

// MDNSServerFactory registers mDNS services.
type MDNSServerFactory interface {
	Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (MDNSServer, error)
}

type zeroconfServerFactory struct{}

func (zeroconfServerFactory) Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (MDNSServer, error) {
	return zeroconf.Register(instance, service, domain, port, txt, ifaces)
}

// AdvertiserConfig configures an Advertiser.
type AdvertiserConfig struct {
	// Port is the advertised operational port.
	// Default: DefaultPort
	Port int

	// Interfaces limits the interfaces answered on. Nil means all.
	Interfaces []net.Interface

	// ServerFactory registers the records.
	// Default: zeroconf.Register
	ServerFactory MDNSServerFactory

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Advertiser publishes operational instances of this node, one per fabric.
type Advertiser struct {
	config  AdvertiserConfig
	factory MDNSServerFactory
	log     logging.LeveledLogger

	mu       sync.Mutex
	services map[string]MDNSServer
	closed   bool
}

// NewAdvertiser creates an Advertiser.
func NewAdvertiser(config AdvertiserConfig) (*Advertiser, error) {
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	if config.Port < 0 || config.Port > 65535 {
		return nil, ErrInvalidPort
	}
	factory := config.ServerFactory
	if factory == nil {
		factory = zeroconfServerFactory{}
	}

	a := &Advertiser{
		config:   config,
		factory:  factory,
		services: make(map[string]MDNSServer),
	}
	if config.LoggerFactory != nil {
		a.log = config.LoggerFactory.NewLogger("discovery")
	}
	return a, nil
}

// StartOperational publishes "<cfid>-<nodeID>" under _matter._tcp and
// returns the instance name.
func (a *Advertiser) StartOperational(cfid [fabric.CompressedFabricIDSize]byte, nodeID fabric.NodeID, txt OperationalTXT) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return "", ErrClosed
	}
	instance := OperationalInstanceName(cfid, nodeID)
	if _, exists := a.services[instance]; exists {
		return "", ErrAlreadyStarted
	}

	server, err := a.factory.Register(instance, ServiceOperational, DefaultDomain, a.config.Port, txt.Encode(), a.config.Interfaces)
	if err != nil {
		return "", fmt.Errorf("discovery: mDNS registration failed for %s: %w", instance, err)
	}
	if a.log != nil {
		a.log.Infof("advertising %s.%s on port %d", instance, ServiceOperational, a.config.Port)
	}
	a.services[instance] = server
	return instance, nil
}

// Stop withdraws one instance.
func (a *Advertiser) Stop(instance string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	server, exists := a.services[instance]
	if !exists {
		return ErrNotStarted
	}
	server.Shutdown()
	delete(a.services, instance)
	return nil
}

// IsAdvertising reports whether instance is published.
func (a *Advertiser) IsAdvertising(instance string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, exists := a.services[instance]
	return exists
}

// Close withdraws every instance.
func (a *Advertiser) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	for _, server := range a.services {
		server.Shutdown()
	}
	a.services = nil
	a.closed = true
	return nil
}
