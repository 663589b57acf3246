package opstate

import (
	"context"
	"errors"
	"testing"

	"github.com/backkem/matter-switch/pkg/datamodel"
)

func invoke(t *testing.T, c *Cluster, cmd datamodel.CommandID) ErrorState {
	t.Helper()
	resp, err := c.InvokeCommand(context.Background(), cmd, nil)
	if err != nil {
		t.Fatalf("InvokeCommand(0x%02X) failed: %v", cmd, err)
	}
	r, ok := resp.(*OperationalCommandResponse)
	if !ok {
		t.Fatalf("response type %T, want *OperationalCommandResponse", resp)
	}
	return r.CommandResponseState.ErrorStateID
}

func TestTransitions(t *testing.T) {
	c := New(Config{EndpointID: 1})

	tests := []struct {
		cmd     datamodel.CommandID
		wantErr ErrorState
		want    State
	}{
		{CmdPause, ErrorCommandInvalidInState, StateStopped},
		{CmdResume, ErrorCommandInvalidInState, StateStopped},
		{CmdStart, ErrorNoError, StateRunning},
		{CmdStart, ErrorNoError, StateRunning},
		{CmdPause, ErrorNoError, StatePaused},
		{CmdStart, ErrorCommandInvalidInState, StatePaused},
		{CmdResume, ErrorNoError, StateRunning},
		{CmdStop, ErrorNoError, StateStopped},
		{CmdStop, ErrorNoError, StateStopped},
	}
	for i, tt := range tests {
		if got := invoke(t, c, tt.cmd); got != tt.wantErr {
			t.Errorf("step %d: error state = %d, want %d", i, got, tt.wantErr)
		}
		if c.State() != tt.want {
			t.Errorf("step %d: state = %s, want %s", i, c.State(), tt.want)
		}
	}
}

func TestErrorStateRefusesCommands(t *testing.T) {
	var changes []State
	c := New(Config{
		EndpointID:    1,
		OnStateChange: func(_ datamodel.EndpointID, _, to State) { changes = append(changes, to) },
	})
	c.SetError()

	for _, cmd := range []datamodel.CommandID{CmdStart, CmdStop, CmdPause, CmdResume} {
		if got := invoke(t, c, cmd); got != ErrorCommandInvalidInState {
			t.Errorf("cmd 0x%02X in Error = %d, want CommandInvalidInState", cmd, got)
		}
	}
	c.ClearError()
	if got := invoke(t, c, CmdStart); got != ErrorNoError {
		t.Errorf("Start after ClearError = %d", got)
	}
	want := []State{StateError, StateStopped, StateRunning}
	if len(changes) != len(want) {
		t.Fatalf("changes = %v, want %v", changes, want)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("changes[%d] = %s, want %s", i, changes[i], want[i])
		}
	}
}

func TestReadAttributes(t *testing.T) {
	c := New(Config{EndpointID: 1})
	ctx := context.Background()

	v, err := c.ReadAttribute(ctx, AttrOperationalState)
	if err != nil {
		t.Fatalf("ReadAttribute failed: %v", err)
	}
	if v != StateStopped {
		t.Errorf("OperationalState = %v, want Stopped", v)
	}

	gen, err := c.ReadAttribute(ctx, datamodel.GlobalAttrGeneratedCommandList)
	if err != nil {
		t.Fatalf("ReadAttribute(GeneratedCommandList) failed: %v", err)
	}
	if cmds, ok := gen.([]datamodel.CommandID); !ok || len(cmds) != 1 || cmds[0] != CmdOperationalCommandResponse {
		t.Errorf("GeneratedCommandList = %v", gen)
	}

	if _, err := c.ReadAttribute(ctx, 0x0100); !errors.Is(err, datamodel.ErrUnsupportedAttribute) {
		t.Errorf("unknown attribute = %v, want ErrUnsupportedAttribute", err)
	}
}
