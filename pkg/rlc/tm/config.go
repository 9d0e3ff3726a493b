// Package tm implements the RLC Transparent Mode entity: no header, no
// segmentation, no concatenation, no ARQ. Each submitted SDU crosses the
// air interface as exactly one PDU, unchanged, or not at all.
package tm

import "github.com/marmos91/rlcam/pkg/rlc/rlcerr"

// Config carries the RRC-provided configuration for one TM entity. TM
// has no SN space, no timers, and no profile-dependent framing, so this
// is deliberately thin next to um.Config and am.Config.
type Config struct {
	LCID string

	// TxQueueCapacity bounds the Tx SDU queue.
	TxQueueCapacity int
}

// Validate checks the configuration for obviously invalid values.
func (c Config) Validate() error {
	if c.LCID == "" {
		return rlcerr.New(rlcerr.InvalidConfig, "lcid must not be empty")
	}
	if c.TxQueueCapacity < 0 {
		return rlcerr.New(rlcerr.InvalidConfig, "tx_queue_capacity must be non-negative")
	}
	return nil
}

// DefaultConfig returns a Config with a commonly used queue capacity.
func DefaultConfig(lcid string) Config {
	return Config{LCID: lcid, TxQueueCapacity: 128}
}
