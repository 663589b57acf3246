package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/pion/logging"
	"gopkg.in/yaml.v3"

	"github.com/backkem/matter-switch/pkg/binding"
	"github.com/backkem/matter-switch/pkg/crypto/p256"
	"github.com/backkem/matter-switch/pkg/datamodel"
	"github.com/backkem/matter-switch/pkg/fabric"
	"github.com/backkem/matter-switch/pkg/session"
)

// Config is the YAML configuration shared by the switch and the light.
type Config struct {
	LogLevel string `yaml:"log_level"`

	// Backend selects the SPAKE2+ arithmetic: "consttime" or "software".
	Backend string `yaml:"backend"`

	Fabric FabricConfig  `yaml:"fabric"`
	PASE   PASEConfig    `yaml:"pase"`
	Groups []GroupConfig `yaml:"groups"`

	Switch SwitchConfig `yaml:"switch"`
	Light  LightConfig  `yaml:"light"`
}

// FabricConfig describes the one fabric both nodes share.
type FabricConfig struct {
	Index         uint8  `yaml:"index"`
	FabricID      uint64 `yaml:"fabric_id"`
	RootPublicKey string `yaml:"root_public_key"`
}

// PASEConfig holds the setup passcode and PBKDF parameters.
type PASEConfig struct {
	Passcode   uint32 `yaml:"passcode"`
	Salt       string `yaml:"salt"`
	Iterations uint32 `yaml:"iterations"`
}

// GroupConfig is a multicast group and its key.
type GroupConfig struct {
	GroupID  uint16 `yaml:"group_id"`
	Address  string `yaml:"address"`
	EpochKey string `yaml:"epoch_key"`
}

// PeerConfig pins a node to an address instead of resolving it over mDNS.
type PeerConfig struct {
	NodeID  uint64 `yaml:"node_id"`
	Address string `yaml:"address"`
}

// BindingConfig seeds one binding table entry.
type BindingConfig struct {
	NodeID         uint64 `yaml:"node_id,omitempty"`
	RemoteEndpoint uint16 `yaml:"remote_endpoint,omitempty"`
	GroupID        uint16 `yaml:"group_id,omitempty"`
	Cluster        uint32 `yaml:"cluster,omitempty"`
}

// SwitchConfig configures "matter-switch switch".
type SwitchConfig struct {
	NodeID       uint64          `yaml:"node_id"`
	Endpoint     uint16          `yaml:"endpoint"`
	BindingsFile string          `yaml:"bindings_file"`
	HistoryFile  string          `yaml:"history_file"`
	Peers        []PeerConfig    `yaml:"peers"`
	Bindings     []BindingConfig `yaml:"bindings"`
}

// LightConfig configures "matter-switch light".
type LightConfig struct {
	NodeID    uint64 `yaml:"node_id"`
	Endpoint  uint16 `yaml:"endpoint"`
	Listen    string `yaml:"listen"`
	StateFile string `yaml:"state_file"`
	Advertise bool   `yaml:"advertise"`
}

// defaultRootPublicKey is the P-256 generator. It only names the test
// fabric in the compressed fabric ID.
const defaultRootPublicKey = "046b17d1f2e12c4247f8bce6e563a440f277037d812deb33a0f4a13945d898c296" +
	"4fe342e2fe1a7f9b8ee7eb4a7c0f9e162bce33576b315ececbb6406837bf51f5"

const (
	defaultSalt     = "SPAKE2P Key Salt"
	defaultEpochKey = "d0d1d2d3d4d5d6d7d8d9dadbdcdddedf"
)

// DefaultConfig returns a configuration that lets a switch and a light on
// the same host talk to each other.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Backend:  "consttime",
		Fabric: FabricConfig{
			Index:         1,
			FabricID:      1,
			RootPublicKey: defaultRootPublicKey,
		},
		PASE: PASEConfig{
			Passcode:   20202021,
			Salt:       hex.EncodeToString([]byte(defaultSalt)),
			Iterations: 1000,
		},
		Switch: SwitchConfig{
			NodeID:   0x0000000000000001,
			Endpoint: 1,
		},
		Light: LightConfig{
			NodeID:    0x0000000000001001,
			Endpoint:  1,
			Listen:    ":5540",
			Advertise: true,
		},
	}
}

// LoadConfig reads path over DefaultConfig. An empty path yields the
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the fields every subcommand depends on.
func (c Config) Validate() error {
	if !fabric.FabricIndex(c.Fabric.Index).IsValid() {
		return fmt.Errorf("config: invalid fabric index %d", c.Fabric.Index)
	}
	if _, err := c.rootPublicKey(); err != nil {
		return err
	}
	if _, err := c.salt(); err != nil {
		return err
	}
	if _, err := c.backend(); err != nil {
		return err
	}
	if _, err := parseLogLevel(c.LogLevel); err != nil {
		return err
	}
	for _, g := range c.Groups {
		if g.Address == "" {
			return fmt.Errorf("config: group 0x%04X has no address", g.GroupID)
		}
		if _, err := decodeHex("epoch_key", c.epochKey(g), session.SessionKeySize); err != nil {
			return err
		}
	}
	for _, b := range c.Switch.Bindings {
		if _, err := c.bindingEntry(b); err != nil {
			return err
		}
	}
	return nil
}

// FabricInfo builds the fabric table entry for a node.
func (c Config) FabricInfo(nodeID uint64) (*fabric.Info, error) {
	root, err := c.rootPublicKey()
	if err != nil {
		return nil, err
	}
	return fabric.NewInfo(fabric.FabricIndex(c.Fabric.Index), fabric.FabricID(c.Fabric.FabricID), fabric.NodeID(nodeID), root)
}

func (c Config) rootPublicKey() ([fabric.RootPublicKeySize]byte, error) {
	var key [fabric.RootPublicKeySize]byte
	b, err := decodeHex("root_public_key", c.Fabric.RootPublicKey, fabric.RootPublicKeySize)
	if err != nil {
		return key, err
	}
	copy(key[:], b)
	return key, nil
}

func (c Config) salt() ([]byte, error) {
	b, err := hex.DecodeString(c.PASE.Salt)
	if err != nil {
		return nil, fmt.Errorf("config: salt: %w", err)
	}
	return b, nil
}

func (c Config) epochKey(g GroupConfig) string {
	if g.EpochKey == "" {
		return defaultEpochKey
	}
	return g.EpochKey
}

func (c Config) backend() (p256.Backend, error) {
	switch strings.ToLower(c.Backend) {
	case "", "consttime":
		return p256.NewConstantTime(nil), nil
	case "software":
		return p256.NewSoftware(nil), nil
	default:
		return nil, fmt.Errorf("config: unknown backend %q", c.Backend)
	}
}

func (c Config) bindingEntry(b BindingConfig) (binding.Entry, error) {
	fi := fabric.FabricIndex(c.Fabric.Index)
	local := datamodel.EndpointID(c.Switch.Endpoint)
	cluster := datamodel.ClusterID(b.Cluster)

	var e binding.Entry
	switch {
	case b.GroupID != 0 && b.NodeID != 0:
		return e, fmt.Errorf("config: binding names both node 0x%X and group 0x%04X", b.NodeID, b.GroupID)
	case b.GroupID != 0:
		e = binding.Multicast(fi, local, fabric.GroupID(b.GroupID), cluster)
	default:
		e = binding.Unicast(fi, local, fabric.NodeID(b.NodeID), datamodel.EndpointID(b.RemoteEndpoint), cluster)
	}
	if err := e.Validate(); err != nil {
		return e, fmt.Errorf("config: %w", err)
	}
	return e, nil
}

func decodeHex(name, s string, size int) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", name, err)
	}
	if len(b) != size {
		return nil, fmt.Errorf("config: %s must be %d bytes, got %d", name, size, len(b))
	}
	return b, nil
}

func parseLogLevel(s string) (logging.LogLevel, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return logging.LogLevelInfo, nil
	case "disabled", "off":
		return logging.LogLevelDisabled, nil
	case "error":
		return logging.LogLevelError, nil
	case "warn", "warning":
		return logging.LogLevelWarn, nil
	case "debug":
		return logging.LogLevelDebug, nil
	case "trace":
		return logging.LogLevelTrace, nil
	default:
		return 0, fmt.Errorf("config: unknown log level %q", s)
	}
}

func newLoggerFactory(level string) (*logging.DefaultLoggerFactory, error) {
	lvl, err := parseLogLevel(level)
	if err != nil {
		return nil, err
	}
	f := logging.NewDefaultLoggerFactory()
	f.DefaultLogLevel = lvl
	return f, nil
}
