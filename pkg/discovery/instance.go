package discovery

import (
	"encoding/binary"
	"fmt"
	"net"
	"sort"
	"strconv"

	"github.com/backkem/matter-switch/pkg/fabric"
)

// OperationalInstanceName formats "<CFID>-<NodeID>" in uppercase hex.
func OperationalInstanceName(compressedFabricID [fabric.CompressedFabricIDSize]byte, nodeID fabric.NodeID) string {
	return fmt.Sprintf("%s-%016X", fabric.CompressedFabricIDString(compressedFabricID), uint64(nodeID))
}

// ParseOperationalInstanceName splits an operational instance name.
// The format must be exactly 16 hex digits, '-', 16 hex digits.
func ParseOperationalInstanceName(instanceName string) ([fabric.CompressedFabricIDSize]byte, fabric.NodeID, error) {
	var cfid [fabric.CompressedFabricIDSize]byte

	if len(instanceName) != 33 || instanceName[16] != '-' {
		return cfid, 0, ErrInvalidInstanceName
	}
	fabricPart, err := strconv.ParseUint(instanceName[:16], 16, 64)
	if err != nil {
		return cfid, 0, ErrInvalidInstanceName
	}
	nodePart, err := strconv.ParseUint(instanceName[17:], 16, 64)
	if err != nil {
		return cfid, 0, ErrInvalidInstanceName
	}

	binary.BigEndian.PutUint64(cfid[:], fabricPart)
	return cfid, fabric.NodeID(nodePart), nil
}

// SortIPsByPreference orders addresses for dialing: routable IPv6 first,
// then ULA, IPv4, link-local and loopback. The input is not modified.
func SortIPsByPreference(ips []net.IP) []net.IP {
	sorted := make([]net.IP, len(ips))
	copy(sorted, ips)
	sort.SliceStable(sorted, func(i, j int) bool {
		return ipPriority(sorted[i]) < ipPriority(sorted[j])
	})
	return sorted
}

func ipPriority(ip net.IP) int {
	switch {
	case ip.To16() == nil:
		return 99
	case ip.IsMulticast():
		return 90
	case ip.IsLoopback():
		return 80
	case ip.IsLinkLocalUnicast():
		return 20
	case ip.To4() != nil:
		return 5
	case isUniqueLocal(ip):
		return 1
	case ip.IsGlobalUnicast():
		return 0
	default:
		return 10
	}
}

// isUniqueLocal reports whether ip is in fc00::/7.
func isUniqueLocal(ip net.IP) bool {
	ip = ip.To16()
	return ip != nil && ip.To4() == nil && ip[0]&0xfe == 0xfc
}
