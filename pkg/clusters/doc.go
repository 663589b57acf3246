// Package clusters provides shared helpers for the cluster implementations
// in its subpackages.
//
// # Architecture
//
// Clusters implement the datamodel.Cluster interface by embedding the
// common identity:
//
//	type MyCluster struct {
//	    *datamodel.ClusterBase
//	}
//
// Each subpackage also exports the command IDs and request structs the
// switch uses to build commands, so client and server share one
// definition.
//
// # Subpackages
//
//   - clusters/onoff: On/Off Cluster (0x0006)
//   - clusters/levelcontrol: Level Control Cluster (0x0008)
//   - clusters/colorcontrol: Color Control Cluster (0x0300)
//   - clusters/opstate: Operational State Cluster (0x0060)
package clusters
