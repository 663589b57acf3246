package discovery

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/pion/logging"

	"github.com/backkem/matter-switch/pkg/fabric"
)

const (
	// DefaultBrowseTimeout bounds BrowseOperational without a deadline.
	DefaultBrowseTimeout = 10 * time.Second

	// DefaultLookupTimeout bounds LookupOperational without a deadline.
	DefaultLookupTimeout = 5 * time.Second
)

// ResolvedService is a resolved operational instance.
type ResolvedService struct {
	InstanceName string
	HostName     string
	Port         int

	// IPs are ordered by SortIPsByPreference.
	IPs  []net.IP
	Text map[string]string
}

// PreferredIP returns the first address, or nil.
func (r *ResolvedService) PreferredIP() net.IP {
	if len(r.IPs) > 0 {
		return r.IPs[0]
	}
	return nil
}

// Address returns host:port for the preferred IP.
func (r *ResolvedService) Address() (string, error) {
	ip := r.PreferredIP()
	if ip == nil {
		return "", ErrNoAddresses
	}
	return net.JoinHostPort(ip.String(), strconv.Itoa(r.Port)), nil
}

// MDNSResolver is the subset of zeroconf.Resolver used here.
// Implementations deliver entries until ctx is done.
type MDNSResolver interface {
	Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
	Lookup(ctx context.Context, instance, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	// MDNSResolver performs the queries.
	// Default: zeroconf.NewResolver
	MDNSResolver MDNSResolver

	// BrowseTimeout applies when the browse context has no deadline.
	// Default: DefaultBrowseTimeout
	BrowseTimeout time.Duration

	// LookupTimeout applies when the lookup context has no deadline.
	// Default: DefaultLookupTimeout
	LookupTimeout time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Resolver looks up operational nodes.
type Resolver struct {
	config   ResolverConfig
	resolver MDNSResolver
	log      logging.LeveledLogger
}

// NewResolver creates a Resolver.
func NewResolver(config ResolverConfig) (*Resolver, error) {
	resolver := config.MDNSResolver
	if resolver == nil {
		zr, err := zeroconf.NewResolver()
		if err != nil {
			return nil, err
		}
		resolver = zr
	}
	if config.BrowseTimeout == 0 {
		config.BrowseTimeout = DefaultBrowseTimeout
	}
	if config.LookupTimeout == 0 {
		config.LookupTimeout = DefaultLookupTimeout
	}

	r := &Resolver{config: config, resolver: resolver}
	if config.LoggerFactory != nil {
		r.log = config.LoggerFactory.NewLogger("discovery")
	}
	return r, nil
}

// LookupOperational resolves the node nodeID on the fabric cfid.
func (r *Resolver) LookupOperational(ctx context.Context, cfid [fabric.CompressedFabricIDSize]byte, nodeID fabric.NodeID) (*ResolvedService, error) {
	instance := OperationalInstanceName(cfid, nodeID)

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.LookupTimeout)
		defer cancel()
	}
	// Cancelling stops the query once the first answer is in.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, 4)
	if err := r.resolver.Lookup(ctx, instance, ServiceOperational, DefaultDomain, entries); err != nil {
		return nil, err
	}

	select {
	case entry, ok := <-entries:
		if !ok || entry == nil {
			return nil, ErrServiceNotFound
		}
		svc := entryToResolvedService(entry)
		if r.log != nil {
			r.log.Debugf("resolved %s to %v port %d", instance, svc.IPs, svc.Port)
		}
		return &svc, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ctx.Err()
	}
}

// BrowseOperational streams every operational instance seen until ctx is
// done or the browse timeout passes.
func (r *Resolver) BrowseOperational(ctx context.Context) (<-chan ResolvedService, error) {
	var cancel context.CancelFunc
	if _, ok := ctx.Deadline(); ok {
		ctx, cancel = context.WithCancel(ctx)
	} else {
		ctx, cancel = context.WithTimeout(ctx, r.config.BrowseTimeout)
	}

	entries := make(chan *zeroconf.ServiceEntry, 8)
	if err := r.resolver.Browse(ctx, ServiceOperational, DefaultDomain, entries); err != nil {
		cancel()
		return nil, err
	}

	results := make(chan ResolvedService)
	go func() {
		defer close(results)
		defer cancel()
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				if entry == nil {
					continue
				}
				select {
				case results <- entryToResolvedService(entry):
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return results, nil
}

func entryToResolvedService(entry *zeroconf.ServiceEntry) ResolvedService {
	var ips []net.IP
	ips = append(ips, entry.AddrIPv6...)
	ips = append(ips, entry.AddrIPv4...)

	return ResolvedService{
		InstanceName: entry.Instance,
		HostName:     entry.HostName,
		Port:         entry.Port,
		IPs:          SortIPsByPreference(ips),
		Text:         ParseTXT(entry.Text),
	}
}
