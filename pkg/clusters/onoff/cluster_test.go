package onoff

import (
	"context"
	"errors"
	"testing"

	"github.com/backkem/matter-switch/pkg/datamodel"
)

// errNotFound is used by mock storage when key doesn't exist.
var errNotFound = errors.New("not found")

// mockStorage implements Storage for testing.
type mockStorage struct {
	data map[string][]byte
}

func newMockStorage() *mockStorage {
	return &mockStorage{data: make(map[string][]byte)}
}

func (s *mockStorage) Load(key string) ([]byte, error) {
	if v, ok := s.data[key]; ok {
		return v, nil
	}
	return nil, errNotFound
}

func (s *mockStorage) Store(key string, value []byte) error {
	s.data[key] = value
	return nil
}

func createTestCluster(features Feature) *Cluster {
	return New(Config{
		EndpointID: 1,
		FeatureMap: features,
	})
}

func invoke(t *testing.T, c *Cluster, cmd datamodel.CommandID) error {
	t.Helper()
	_, err := c.InvokeCommand(context.Background(), cmd, nil)
	return err
}

func TestClusterID(t *testing.T) {
	c := createTestCluster(0)
	if c.ID() != ClusterID {
		t.Errorf("expected cluster ID 0x%04X, got 0x%04X", ClusterID, c.ID())
	}
	if c.ClusterRevision() != ClusterRevision {
		t.Errorf("expected revision %d, got %d", ClusterRevision, c.ClusterRevision())
	}
}

func TestOnOffCommands(t *testing.T) {
	c := createTestCluster(0)

	tests := []struct {
		cmd  datamodel.CommandID
		want bool
	}{
		{CmdOn, true},
		{CmdOn, true},
		{CmdToggle, false},
		{CmdToggle, true},
		{CmdOff, false},
	}
	for i, tt := range tests {
		if err := invoke(t, c, tt.cmd); err != nil {
			t.Fatalf("step %d: InvokeCommand(0x%02X) failed: %v", i, tt.cmd, err)
		}
		v, err := c.ReadAttribute(context.Background(), AttrOnOff)
		if err != nil {
			t.Fatalf("step %d: ReadAttribute failed: %v", i, err)
		}
		if v != tt.want {
			t.Errorf("step %d: OnOff = %v, want %v", i, v, tt.want)
		}
	}
}

func TestOffOnlyRejectsOn(t *testing.T) {
	c := createTestCluster(FeatureOffOnly)
	if err := invoke(t, c, CmdOn); !errors.Is(err, datamodel.ErrUnsupportedCommand) {
		t.Errorf("On with OffOnly = %v, want ErrUnsupportedCommand", err)
	}
	if len(c.AcceptedCommandList()) != 1 {
		t.Errorf("AcceptedCommandList = %v, want [Off]", c.AcceptedCommandList())
	}
}

func TestUnsupportedCommand(t *testing.T) {
	c := createTestCluster(0)
	if err := invoke(t, c, 0x40); !errors.Is(err, datamodel.ErrUnsupportedCommand) {
		t.Errorf("expected ErrUnsupportedCommand, got %v", err)
	}
}

func TestLightingAttributes(t *testing.T) {
	plain := createTestCluster(0)
	if _, err := plain.ReadAttribute(context.Background(), AttrOnTime); !errors.Is(err, datamodel.ErrUnsupportedAttribute) {
		t.Errorf("OnTime without lighting = %v, want ErrUnsupportedAttribute", err)
	}

	lit := createTestCluster(FeatureLighting)
	v, err := lit.ReadAttribute(context.Background(), AttrGlobalSceneControl)
	if err != nil {
		t.Fatalf("ReadAttribute(GlobalSceneControl) failed: %v", err)
	}
	if v != true {
		t.Errorf("GlobalSceneControl = %v, want true", v)
	}

	fm, err := lit.ReadAttribute(context.Background(), datamodel.GlobalAttrFeatureMap)
	if err != nil {
		t.Fatalf("ReadAttribute(FeatureMap) failed: %v", err)
	}
	if fm != uint32(FeatureLighting) {
		t.Errorf("FeatureMap = %v, want %d", fm, FeatureLighting)
	}
}

func TestStateChangeCallbackAndStorage(t *testing.T) {
	storage := newMockStorage()
	var changes []bool
	c := New(Config{
		EndpointID:    1,
		Storage:       storage,
		OnStateChange: func(ep datamodel.EndpointID, on bool) { changes = append(changes, on) },
	})

	v := c.DataVersion()
	_ = invoke(t, c, CmdOn)
	_ = invoke(t, c, CmdOn)
	_ = invoke(t, c, CmdOff)

	if len(changes) != 2 || !changes[0] || changes[1] {
		t.Errorf("changes = %v, want [true false]", changes)
	}
	if c.DataVersion() != v+2 {
		t.Errorf("DataVersion advanced by %d, want 2", c.DataVersion()-v)
	}

	c.SetOnOff(true)
	restored := New(Config{EndpointID: 1, Storage: storage})
	if !restored.GetOnOff() {
		t.Error("expected state restored from storage")
	}
}
