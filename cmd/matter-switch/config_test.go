package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pion/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backkem/matter-switch/pkg/binding"
	"github.com/backkem/matter-switch/pkg/fabric"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	sw, err := cfg.FabricInfo(cfg.Switch.NodeID)
	require.NoError(t, err)
	lt, err := cfg.FabricInfo(cfg.Light.NodeID)
	require.NoError(t, err)
	assert.Equal(t, sw.CompressedFabricID, lt.CompressedFabricID)
	assert.Equal(t, fabric.FabricIndex(1), sw.FabricIndex)
}

func TestLoadConfigEmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
pase:
  passcode: 12345679
groups:
  - group_id: 0x0101
    address: 239.255.0.1:5540
switch:
  peers:
    - node_id: 0x1001
      address: 127.0.0.1:5540
  bindings:
    - node_id: 0x1001
      remote_endpoint: 1
      cluster: 6
    - group_id: 0x0101
light:
  listen: 127.0.0.1:0
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, uint32(12345679), cfg.PASE.Passcode)
	assert.Equal(t, uint32(1000), cfg.PASE.Iterations, "unset fields keep defaults")
	assert.Equal(t, "127.0.0.1:0", cfg.Light.Listen)
	assert.True(t, cfg.Light.Advertise)
	require.Len(t, cfg.Switch.Peers, 1)
	require.Len(t, cfg.Switch.Bindings, 2)

	e, err := cfg.bindingEntry(cfg.Switch.Bindings[0])
	require.NoError(t, err)
	assert.True(t, e.IsUnicast())
	assert.Equal(t, fabric.NodeID(0x1001), e.NodeID)

	e, err = cfg.bindingEntry(cfg.Switch.Bindings[1])
	require.NoError(t, err)
	assert.True(t, e.IsMulticast())
	assert.Equal(t, binding.ClusterAny, e.Cluster)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "fabric: [not, a, map]"))
	assert.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"fabric index", func(c *Config) { c.Fabric.Index = 0 }},
		{"root key length", func(c *Config) { c.Fabric.RootPublicKey = "04abcd" }},
		{"root key hex", func(c *Config) { c.Fabric.RootPublicKey = "zz" }},
		{"salt hex", func(c *Config) { c.PASE.Salt = "not hex" }},
		{"backend", func(c *Config) { c.Backend = "hsm" }},
		{"log level", func(c *Config) { c.LogLevel = "loud" }},
		{"group address", func(c *Config) { c.Groups = []GroupConfig{{GroupID: 1}} }},
		{"epoch key", func(c *Config) {
			c.Groups = []GroupConfig{{GroupID: 1, Address: "239.255.0.1:5540", EpochKey: "00"}}
		}},
		{"binding node and group", func(c *Config) {
			c.Switch.Bindings = []BindingConfig{{NodeID: 0x1001, GroupID: 1}}
		}},
		{"binding without target", func(c *Config) {
			c.Switch.Bindings = []BindingConfig{{}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	lvl, err := parseLogLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, logging.LogLevelWarn, lvl)

	lvl, err = parseLogLevel("")
	require.NoError(t, err)
	assert.Equal(t, logging.LogLevelInfo, lvl)

	f, err := newLoggerFactory("trace")
	require.NoError(t, err)
	assert.Equal(t, logging.LogLevelTrace, f.DefaultLogLevel)
}

func TestGroupContextMatchesAcrossNodes(t *testing.T) {
	cfg := DefaultConfig()
	g := GroupConfig{GroupID: 0x0101, Address: "239.255.0.1:5540"}

	sw, err := cfg.groupContext(g, cfg.Switch.NodeID)
	require.NoError(t, err)
	lt, err := cfg.groupContext(g, cfg.Light.NodeID)
	require.NoError(t, err)

	frame, err := sw.Seal([]byte("toggle"))
	require.NoError(t, err)
	opened, err := lt.Open(frame)
	require.NoError(t, err)
	assert.Equal(t, []byte("toggle"), opened.Payload)
	assert.Equal(t, fabric.NodeID(cfg.Switch.NodeID), opened.SourceNodeID)
}

func TestStateStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.cbor")

	s, err := openStateStore(path)
	require.NoError(t, err)
	_, err = s.Load("onoff")
	assert.ErrorIs(t, err, errNoState)
	require.NoError(t, s.Store("onoff", []byte{1}))

	reopened, err := openStateStore(path)
	require.NoError(t, err)
	v, err := reopened.Load("onoff")
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, v)
}

func TestOpenBindingsSeedsOnce(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Switch.BindingsFile = filepath.Join(t.TempDir(), "bindings.cbor")
	cfg.Switch.Bindings = []BindingConfig{{NodeID: 0x1001, RemoteEndpoint: 1}}

	table, err := openBindings(cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())

	cfg.Switch.Bindings = append(cfg.Switch.Bindings, BindingConfig{GroupID: 0x0101})
	table, err = openBindings(cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len(), "a stored table is not reseeded")
}
