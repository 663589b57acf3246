package shell

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/backkem/matter-switch/pkg/binding"
	"github.com/backkem/matter-switch/pkg/clusters/colorcontrol"
	"github.com/backkem/matter-switch/pkg/clusters/levelcontrol"
	"github.com/backkem/matter-switch/pkg/clusters/onoff"
	"github.com/backkem/matter-switch/pkg/clusters/opstate"
	"github.com/backkem/matter-switch/pkg/command"
	"github.com/backkem/matter-switch/pkg/datamodel"
	"github.com/backkem/matter-switch/pkg/eventloop"
	"github.com/backkem/matter-switch/pkg/fabric"
)

// DefaultSwitchEndpoint is the local endpoint the switch commands fire from.
const DefaultSwitchEndpoint datamodel.EndpointID = 1

// Sender sends switch commands. command.Dispatcher implements it.
type Sender interface {
	Send(cmd *command.Command)
}

// SwitchConfig configures the switch command group.
type SwitchConfig struct {
	// Sender sends commands. Required.
	Sender Sender

	// Loop owns the binding manager. Required.
	Loop *eventloop.Loop

	// Bindings edits the binding table. Required.
	Bindings *binding.Manager

	// Endpoint is the local endpoint commands are sent from.
	// Default: DefaultSwitchEndpoint
	Endpoint datamodel.EndpointID

	// Output receives command results, which arrive after the command
	// line returned. Default: the writer of the command line.
	Output io.Writer
}

var clusterNames = map[string]datamodel.ClusterID{
	"onoff":        onoff.ClusterID,
	"levelcontrol": levelcontrol.ClusterID,
	"colorcontrol": colorcontrol.ClusterID,
	"opstate":      opstate.ClusterID,
}

var attributeNames = map[datamodel.ClusterID]map[string]datamodel.AttributeID{
	onoff.ClusterID: {
		"onoff": onoff.AttrOnOff,
	},
	levelcontrol.ClusterID: {
		"currentlevel": levelcontrol.AttrCurrentLevel,
		"minlevel":     levelcontrol.AttrMinLevel,
		"maxlevel":     levelcontrol.AttrMaxLevel,
	},
	colorcontrol.ClusterID: {
		"currenthue":        colorcontrol.AttrCurrentHue,
		"currentsaturation": colorcontrol.AttrCurrentSaturation,
		"colormode":         colorcontrol.AttrColorMode,
	},
	opstate.ClusterID: {
		"phaselist":        opstate.AttrPhaseList,
		"currentphase":     opstate.AttrCurrentPhase,
		"operationalstate": opstate.AttrOperationalState,
		"operationalerror": opstate.AttrOperationalError,
	},
}

type switchCommands struct {
	config SwitchConfig
}

// RegisterSwitchCommands adds the "switch" command group to r.
func RegisterSwitchCommands(r *Registry, config SwitchConfig) error {
	if config.Sender == nil || config.Loop == nil || config.Bindings == nil {
		return fmt.Errorf("shell: switch commands require a sender, a loop and a binding manager")
	}
	if config.Endpoint == 0 {
		config.Endpoint = DefaultSwitchEndpoint
	}
	if config.Output != nil {
		config.Output = &syncWriter{w: config.Output}
	}
	s := &switchCommands{config: config}

	sw, err := r.Group("switch", "Send commands to bound devices")
	if err != nil {
		return err
	}

	var regErr error
	add := func(group string, c Command) {
		if regErr != nil {
			return
		}
		g := sw
		if group != "" {
			if g, regErr = sw.Group(group, ""); regErr != nil {
				return
			}
		}
		regErr = g.Register(c)
	}

	add("onoff", Command{Name: "on", Help: "Turn bound devices on", Handler: s.invoke(onoff.ClusterID, onoff.CmdOn, "onoff on")})
	add("onoff", Command{Name: "off", Help: "Turn bound devices off", Handler: s.invoke(onoff.ClusterID, onoff.CmdOff, "onoff off")})
	add("onoff", Command{Name: "toggle", Help: "Toggle bound devices", Handler: s.invoke(onoff.ClusterID, onoff.CmdToggle, "onoff toggle")})

	add("levelcontrol", Command{Name: "movetolevel", Usage: "<level> [transition]", Help: "Move to a level (transition in tenths of a second)",
		MinArgs: 1, MaxArgs: 2, Handler: s.moveToLevel(levelcontrol.CmdMoveToLevel, "levelcontrol movetolevel")})
	add("levelcontrol", Command{Name: "movetolevelwithonoff", Usage: "<level> [transition]", Help: "Move to a level and follow with on/off",
		MinArgs: 1, MaxArgs: 2, Handler: s.moveToLevel(levelcontrol.CmdMoveToLevelWithOnOff, "levelcontrol movetolevelwithonoff")})

	add("colorcontrol", Command{Name: "movetohue", Usage: "<hue> <shortest|longest|up|down> [transition]", Help: "Move to a hue",
		MinArgs: 2, MaxArgs: 3, Handler: s.moveToHue})
	add("colorcontrol", Command{Name: "movetosaturation", Usage: "<saturation> [transition]", Help: "Move to a saturation",
		MinArgs: 1, MaxArgs: 2, Handler: s.moveToSaturation})
	add("colorcontrol", Command{Name: "movetohueandsaturation", Usage: "<hue> <saturation> [transition]", Help: "Move to a hue and saturation",
		MinArgs: 2, MaxArgs: 3, Handler: s.moveToHueAndSaturation})

	add("opstate", Command{Name: "start", Help: "Start the bound operation", Handler: s.opstate(opstate.CmdStart, "opstate start")})
	add("opstate", Command{Name: "stop", Help: "Stop the bound operation", Handler: s.opstate(opstate.CmdStop, "opstate stop")})
	add("opstate", Command{Name: "pause", Help: "Pause the bound operation", Handler: s.opstate(opstate.CmdPause, "opstate pause")})
	add("opstate", Command{Name: "resume", Help: "Resume the bound operation", Handler: s.opstate(opstate.CmdResume, "opstate resume")})

	add("binding", Command{Name: "unicast", Usage: "<fabric> <node> <endpoint> [cluster]", Help: "Bind a remote endpoint",
		MinArgs: 3, MaxArgs: 4, Handler: s.bindUnicast})
	add("binding", Command{Name: "group", Usage: "<fabric> <group> [cluster]", Help: "Bind a group",
		MinArgs: 2, MaxArgs: 3, Handler: s.bindGroup})
	add("binding", Command{Name: "remove", Usage: "<index>", Help: "Remove a binding",
		MinArgs: 1, MaxArgs: 1, Handler: s.unbind})
	add("binding", Command{Name: "list", Help: "List bindings", Handler: s.listBindings})

	add("", Command{Name: "read", Usage: "<cluster> <attribute>", Help: "Read an attribute from bound devices",
		MinArgs: 2, MaxArgs: 2, Handler: s.read})

	return regErr
}

func (s *switchCommands) output(w io.Writer) io.Writer {
	if s.config.Output != nil {
		return s.config.Output
	}
	return w
}

func (s *switchCommands) send(w io.Writer, label string, cmd *command.Command, onSuccess func(out io.Writer, r command.Result)) {
	out := s.output(w)
	cmd.OnSuccess = func(r command.Result) {
		if onSuccess != nil {
			onSuccess(out, r)
			return
		}
		fmt.Fprintf(out, "%s: ok from %s\n", label, r.Peer())
	}
	cmd.OnFailure = func(err error) {
		fmt.Fprintf(out, "%s: failed: %v\n", label, err)
	}
	cmd.OnGroupSent = func(group fabric.GroupID, err error) {
		if err != nil {
			fmt.Fprintf(out, "%s: group 0x%04X: %v\n", label, uint16(group), err)
			return
		}
		fmt.Fprintf(out, "%s: sent to group 0x%04X\n", label, uint16(group))
	}
	s.config.Sender.Send(cmd)
}

func (s *switchCommands) sendInvoke(w io.Writer, label string, cluster datamodel.ClusterID, id datamodel.CommandID, request any) error {
	cmd, err := command.NewInvoke(s.config.Endpoint, cluster, id, request)
	if err != nil {
		return err
	}
	s.send(w, label, cmd, nil)
	return nil
}

func (s *switchCommands) invoke(cluster datamodel.ClusterID, id datamodel.CommandID, label string) Handler {
	return func(_ context.Context, w io.Writer, _ []string) error {
		return s.sendInvoke(w, label, cluster, id, nil)
	}
}

func (s *switchCommands) moveToLevel(id datamodel.CommandID, label string) Handler {
	return func(_ context.Context, w io.Writer, args []string) error {
		level, err := parseUint("level", args[0], 8)
		if err != nil {
			return err
		}
		transition, err := optionalUint("transition", args, 1, 16)
		if err != nil {
			return err
		}
		return s.sendInvoke(w, label, levelcontrol.ClusterID, id, levelcontrol.MoveToLevelRequest{
			Level:          uint8(level),
			TransitionTime: uint16(transition),
		})
	}
}

func (s *switchCommands) moveToHue(_ context.Context, w io.Writer, args []string) error {
	hue, err := parseUint("hue", args[0], 8)
	if err != nil {
		return err
	}
	dir, ok := colorcontrol.ParseDirection(strings.ToLower(args[1]))
	if !ok {
		return fmt.Errorf("%w: unknown direction %q", ErrUsage, args[1])
	}
	transition, err := optionalUint("transition", args, 2, 16)
	if err != nil {
		return err
	}
	return s.sendInvoke(w, "colorcontrol movetohue", colorcontrol.ClusterID, colorcontrol.CmdMoveToHue, colorcontrol.MoveToHueRequest{
		Hue:            uint8(hue),
		Direction:      dir,
		TransitionTime: uint16(transition),
	})
}

func (s *switchCommands) moveToSaturation(_ context.Context, w io.Writer, args []string) error {
	sat, err := parseUint("saturation", args[0], 8)
	if err != nil {
		return err
	}
	transition, err := optionalUint("transition", args, 1, 16)
	if err != nil {
		return err
	}
	return s.sendInvoke(w, "colorcontrol movetosaturation", colorcontrol.ClusterID, colorcontrol.CmdMoveToSaturation, colorcontrol.MoveToSaturationRequest{
		Saturation:     uint8(sat),
		TransitionTime: uint16(transition),
	})
}

func (s *switchCommands) moveToHueAndSaturation(_ context.Context, w io.Writer, args []string) error {
	hue, err := parseUint("hue", args[0], 8)
	if err != nil {
		return err
	}
	sat, err := parseUint("saturation", args[1], 8)
	if err != nil {
		return err
	}
	transition, err := optionalUint("transition", args, 2, 16)
	if err != nil {
		return err
	}
	return s.sendInvoke(w, "colorcontrol movetohueandsaturation", colorcontrol.ClusterID, colorcontrol.CmdMoveToHueAndSaturation, colorcontrol.MoveToHueAndSaturationRequest{
		Hue:            uint8(hue),
		Saturation:     uint8(sat),
		TransitionTime: uint16(transition),
	})
}

func (s *switchCommands) opstate(id datamodel.CommandID, label string) Handler {
	return func(_ context.Context, w io.Writer, _ []string) error {
		cmd, err := command.NewInvoke(s.config.Endpoint, opstate.ClusterID, id, nil)
		if err != nil {
			return err
		}
		s.send(w, label, cmd, func(out io.Writer, r command.Result) {
			var resp opstate.OperationalCommandResponse
			if err := r.Response.Decode(&resp); err != nil {
				fmt.Fprintf(out, "%s: bad response from %s: %v\n", label, r.Peer(), err)
				return
			}
			if e := resp.CommandResponseState.ErrorStateID; e != opstate.ErrorNoError {
				fmt.Fprintf(out, "%s: refused by %s: error state 0x%02X\n", label, r.Peer(), uint8(e))
				return
			}
			fmt.Fprintf(out, "%s: ok from %s\n", label, r.Peer())
		})
		return nil
	}
}

func (s *switchCommands) read(_ context.Context, w io.Writer, args []string) error {
	cluster, err := parseCluster(args[0])
	if err != nil {
		return err
	}
	attr, err := parseAttribute(cluster, args[1])
	if err != nil {
		return err
	}

	label := fmt.Sprintf("read %s %s", args[0], args[1])
	s.send(w, label, command.NewRead(s.config.Endpoint, cluster, attr), func(out io.Writer, r command.Result) {
		var v any
		if err := r.Response.Decode(&v); err != nil {
			fmt.Fprintf(out, "%s: bad value from %s: %v\n", label, r.Peer(), err)
			return
		}
		fmt.Fprintf(out, "%s: %v (version %d) from %s\n", label, v, r.Response.DataVersion, r.Peer())
	})
	return nil
}

func (s *switchCommands) bindUnicast(_ context.Context, w io.Writer, args []string) error {
	fi, err := parseUint("fabric", args[0], 8)
	if err != nil {
		return err
	}
	node, err := parseUint("node", args[1], 64)
	if err != nil {
		return err
	}
	ep, err := parseUint("endpoint", args[2], 16)
	if err != nil {
		return err
	}
	cluster, err := optionalCluster(args, 3)
	if err != nil {
		return err
	}
	return s.addBinding(w, binding.Unicast(fabric.FabricIndex(fi), s.config.Endpoint, fabric.NodeID(node), datamodel.EndpointID(ep), cluster))
}

func (s *switchCommands) bindGroup(_ context.Context, w io.Writer, args []string) error {
	fi, err := parseUint("fabric", args[0], 8)
	if err != nil {
		return err
	}
	group, err := parseUint("group", args[1], 16)
	if err != nil {
		return err
	}
	cluster, err := optionalCluster(args, 2)
	if err != nil {
		return err
	}
	return s.addBinding(w, binding.Multicast(fabric.FabricIndex(fi), s.config.Endpoint, fabric.GroupID(group), cluster))
}

func (s *switchCommands) addBinding(w io.Writer, e binding.Entry) error {
	index, err := s.config.Bindings.Table().Add(e)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "binding %d: %s\n", index, e)
	return nil
}

func (s *switchCommands) unbind(_ context.Context, w io.Writer, args []string) error {
	index, err := parseUint("index", args[0], 16)
	if err != nil {
		return err
	}
	var removed binding.Entry
	var rerr error
	if err := s.config.Loop.RunSync(func() {
		removed, rerr = s.config.Bindings.RemoveBinding(int(index))
	}); err != nil {
		return err
	}
	if rerr != nil {
		return rerr
	}
	fmt.Fprintf(w, "removed binding %d: %s\n", index, removed)
	return nil
}

func (s *switchCommands) listBindings(_ context.Context, w io.Writer, _ []string) error {
	entries := s.config.Bindings.Table().Entries()
	if len(entries) == 0 {
		fmt.Fprintln(w, "no bindings")
		return nil
	}
	for i, e := range entries {
		fmt.Fprintf(w, "%d: %s\n", i, e)
	}
	return nil
}

func parseUint(name, s string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q: %v", ErrUsage, name, s, err)
	}
	return v, nil
}

func optionalUint(name string, args []string, i, bits int) (uint64, error) {
	if len(args) <= i {
		return 0, nil
	}
	return parseUint(name, args[i], bits)
}

func parseCluster(s string) (datamodel.ClusterID, error) {
	if id, ok := clusterNames[strings.ToLower(s)]; ok {
		return id, nil
	}
	v, err := parseUint("cluster", s, 32)
	if err != nil {
		return 0, err
	}
	return datamodel.ClusterID(v), nil
}

func optionalCluster(args []string, i int) (datamodel.ClusterID, error) {
	if len(args) <= i {
		return binding.ClusterAny, nil
	}
	return parseCluster(args[i])
}

func parseAttribute(cluster datamodel.ClusterID, s string) (datamodel.AttributeID, error) {
	if id, ok := attributeNames[cluster][strings.ToLower(s)]; ok {
		return id, nil
	}
	v, err := parseUint("attribute", s, 32)
	if err != nil {
		return 0, err
	}
	return datamodel.AttributeID(v), nil
}

// syncWriter serializes results that arrive from the loop with output
// written by the console goroutine.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
