package discovery

import (
	"context"
	"net"
	"sync"

	"github.com/grandcat/zeroconf"

	"github.com/backkem/matter-switch/pkg/fabric"
)

// MockMDNSResolver answers from registered entries instead of the network.
type MockMDNSResolver struct {
	mu       sync.Mutex
	services map[string][]*zeroconf.ServiceEntry
}

// NewMockMDNSResolver creates an empty MockMDNSResolver.
func NewMockMDNSResolver() *MockMDNSResolver {
	return &MockMDNSResolver{services: make(map[string][]*zeroconf.ServiceEntry)}
}

// RegisterService adds an entry under service.
func (m *MockMDNSResolver) RegisterService(service string, entry *zeroconf.ServiceEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[service] = append(m.services[service], entry)
}

// Browse implements MDNSResolver.
func (m *MockMDNSResolver) Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	go m.deliver(ctx, service, func(*zeroconf.ServiceEntry) bool { return true }, entries)
	return nil
}

// Lookup implements MDNSResolver.
func (m *MockMDNSResolver) Lookup(ctx context.Context, instance, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	go m.deliver(ctx, service, func(e *zeroconf.ServiceEntry) bool { return e.Instance == instance }, entries)
	return nil
}

func (m *MockMDNSResolver) deliver(ctx context.Context, service string, match func(*zeroconf.ServiceEntry) bool, entries chan<- *zeroconf.ServiceEntry) {
	m.mu.Lock()
	list := append([]*zeroconf.ServiceEntry(nil), m.services[service]...)
	m.mu.Unlock()

	for _, e := range list {
		if !match(e) {
			continue
		}
		select {
		case entries <- e:
		case <-ctx.Done():
			return
		}
	}
}

// MockOperationalService builds an operational entry for node on cfid.
func MockOperationalService(cfid [fabric.CompressedFabricIDSize]byte, nodeID fabric.NodeID, port int, ip net.IP) *zeroconf.ServiceEntry {
	entry := &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{
			Instance: OperationalInstanceName(cfid, nodeID),
			Service:  ServiceOperational,
			Domain:   DefaultDomain,
		},
		HostName: "mock.local.",
		Port:     port,
		Text:     []string{"T=1"},
	}
	if ip.To4() != nil {
		entry.AddrIPv4 = []net.IP{ip}
	} else {
		entry.AddrIPv6 = []net.IP{ip}
	}
	return entry
}

// MockServerFactory records registrations instead of announcing them.
type MockServerFactory struct {
	mu         sync.Mutex
	Registered map[string]*MockServer
}

// MockServer is a recorded registration.
type MockServer struct {
	Instance, Service string
	Port              int
	Text              []string

	mu       sync.Mutex
	shutdown bool
}

// Shutdown implements MDNSServer.
func (s *MockServer) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = true
}

// IsShutdown reports whether Shutdown was called.
func (s *MockServer) IsShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}

// NewMockServerFactory creates an empty MockServerFactory.
func NewMockServerFactory() *MockServerFactory {
	return &MockServerFactory{Registered: make(map[string]*MockServer)}
}

// Register implements MDNSServerFactory.
func (f *MockServerFactory) Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (MDNSServer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &MockServer{Instance: instance, Service: service, Port: port, Text: txt}
	f.Registered[instance] = s
	return s, nil
}
