package internal

import "fmt"

// Default port layout of a harness run. Bootstrap node i listens on
// BootstrapDefaultPort+i and agent i on AgentDefaultPort+i.
const (
	BootstrapDefaultPort uint16 = 14221
	AgentDefaultPort     uint16 = 14230

	// MinValidPort is the minimum valid port number (excluding privileged ports).
	MinValidPort uint16 = 1024

	// MaxValidPort is the maximum valid port number.
	MaxValidPort uint16 = 65535
)

// ValidatePortRange checks if a port range is valid.
// Returns true if the range is valid, false otherwise.
func ValidatePortRange(startPort, endPort uint16) bool {
	if startPort < MinValidPort || endPort > MaxValidPort {
		return false
	}
	return startPort <= endPort
}

// PortRange is the inclusive block of ports used by one node role.
type PortRange struct {
	Start uint16
	End   uint16
}

// NewPortRange returns the block of count ports starting at base.
func NewPortRange(base uint16, count int) (PortRange, error) {
	if count <= 0 {
		return PortRange{}, fmt.Errorf("port range needs at least one port, got %d", count)
	}
	end := int(base) + count - 1
	if end > int(MaxValidPort) || !ValidatePortRange(base, uint16(end)) {
		return PortRange{}, fmt.Errorf("invalid port range %d-%d", base, end)
	}
	return PortRange{Start: base, End: uint16(end)}, nil
}

// Port returns the i-th port of the range.
func (r PortRange) Port(i int) uint16 {
	return r.Start + uint16(i)
}

// Overlaps reports whether the two ranges share a port.
func (r PortRange) Overlaps(other PortRange) bool {
	return r.Start <= other.End && other.Start <= r.End
}

func (r PortRange) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}
