package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/backkem/matter-switch/pkg/fabric"
	"github.com/backkem/matter-switch/pkg/shell"
)

// registerFabricCommands adds "fabric list" and "fabric remove". Removing
// a fabric drops its bindings and sessions.
func registerFabricCommands(r *shell.Registry, fabrics *fabric.Table) error {
	g, err := r.Group("fabric", "Inspect and leave fabrics")
	if err != nil {
		return err
	}
	if err := g.Register(shell.Command{
		Name: "list",
		Help: "List the fabrics this node belongs to",
		Handler: func(ctx context.Context, w io.Writer, args []string) error {
			for _, info := range fabrics.List() {
				fmt.Fprintf(w, "%d: fabric %s node %s cfid %s\n",
					info.FabricIndex, info.FabricID, info.NodeID,
					fabric.CompressedFabricIDString(info.CompressedFabricID))
			}
			return nil
		},
	}); err != nil {
		return err
	}
	return g.Register(shell.Command{
		Name:    "remove",
		Usage:   "<index>",
		Help:    "Leave a fabric and drop its bindings",
		MinArgs: 1,
		MaxArgs: 1,
		Handler: func(ctx context.Context, w io.Writer, args []string) error {
			v, err := strconv.ParseUint(args[0], 0, 8)
			if err != nil {
				return fmt.Errorf("%w: index %q", shell.ErrUsage, args[0])
			}
			if err := fabrics.Remove(fabric.FabricIndex(v)); err != nil {
				return err
			}
			fmt.Fprintf(w, "fabric %d removed\n", v)
			return nil
		},
	})
}
