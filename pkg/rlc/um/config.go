// Package um implements the RLC Unacknowledged Mode entity: SN-tagged
// segmentation and reassembly with a reordering window, but no ARQ — lost
// PDUs are never retransmitted, only waited out by t-Reordering and then
// given up on.
package um

import (
	"github.com/marmos91/rlcam/pkg/rlc/pdu"
	"github.com/marmos91/rlcam/pkg/rlc/rlcerr"
)

// WindowSize is the UM reordering window, half the SN space per TS 36.322
// §7.2 ("UM_Window_Size = 512" for the 10-bit LTE profile).
const WindowSize = 512

// Config carries the RRC-provided configuration for one UM entity.
type Config struct {
	LCID string

	// Profile selects the SN/LI field widths.
	Profile pdu.Profile

	// TReorderingMs is t-Reordering's duration in TTIs.
	TReorderingMs uint32

	// TxQueueCapacity bounds the Tx SDU queue.
	TxQueueCapacity int
}

// Validate checks the configuration for obviously invalid values.
func (c Config) Validate() error {
	if c.LCID == "" {
		return rlcerr.New(rlcerr.InvalidConfig, "lcid must not be empty")
	}
	if c.Profile.SNBits == 0 {
		return rlcerr.New(rlcerr.InvalidConfig, "profile sn field width must be set")
	}
	if c.TxQueueCapacity < 0 {
		return rlcerr.New(rlcerr.InvalidConfig, "tx_queue_capacity must be non-negative")
	}
	return nil
}

// DefaultConfig returns a Config with the LTE profile and a commonly used
// t-Reordering value.
func DefaultConfig(lcid string) Config {
	return Config{
		LCID:            lcid,
		Profile:         pdu.LTE,
		TReorderingMs:   45,
		TxQueueCapacity: 128,
	}
}
