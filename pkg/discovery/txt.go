package discovery

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Operational TXT keys.
const (
	TXTKeyIdleInterval   = "SII"
	TXTKeyActiveInterval = "SAI"
	TXTKeyTCPSupported   = "T"
)

// OperationalTXT holds the TXT records of an operational instance.
type OperationalTXT struct {
	// IdleInterval is the session idle interval (optional).
	IdleInterval time.Duration

	// ActiveInterval is the session active interval (optional).
	ActiveInterval time.Duration

	// TCPSupported advertises that the node accepts TCP.
	TCPSupported bool
}

// Encode converts the TXT record to DNS-SD format strings.
func (o *OperationalTXT) Encode() []string {
	var txt []string
	if o.IdleInterval > 0 {
		txt = append(txt, fmt.Sprintf("%s=%d", TXTKeyIdleInterval, o.IdleInterval.Milliseconds()))
	}
	if o.ActiveInterval > 0 {
		txt = append(txt, fmt.Sprintf("%s=%d", TXTKeyActiveInterval, o.ActiveInterval.Milliseconds()))
	}
	if o.TCPSupported {
		txt = append(txt, TXTKeyTCPSupported+"=1")
	}
	return txt
}

// ParseTXT splits "key=value" records into a map. Records without '='
// map to the empty string.
func ParseTXT(records []string) map[string]string {
	m := make(map[string]string, len(records))
	for _, r := range records {
		k, v, _ := strings.Cut(r, "=")
		m[k] = v
	}
	return m
}

// ParseOperationalTXT parses raw TXT records into OperationalTXT.
func ParseOperationalTXT(records []string) (*OperationalTXT, error) {
	m := ParseTXT(records)
	txt := &OperationalTXT{}

	if v, ok := m[TXTKeyIdleInterval]; ok {
		ms, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return nil, ErrInvalidTXTRecord
		}
		txt.IdleInterval = time.Duration(ms) * time.Millisecond
	}
	if v, ok := m[TXTKeyActiveInterval]; ok {
		ms, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return nil, ErrInvalidTXTRecord
		}
		txt.ActiveInterval = time.Duration(ms) * time.Millisecond
	}
	if v, ok := m[TXTKeyTCPSupported]; ok {
		txt.TCPSupported = v == "1"
	}
	return txt, nil
}
