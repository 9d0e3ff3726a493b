package am

import (
	"github.com/marmos91/rlcam/pkg/rlc/pdu"
	"github.com/marmos91/rlcam/pkg/rlc/rlcerr"
)

// WindowSize is the fixed AM Tx/Rx window size (§6: WINDOW_SIZE = 512).
const WindowSize = 512

// Config carries the RRC-provided configuration for one AM entity,
// recognized per §6 "Configuration inputs".
type Config struct {
	LCID string

	// Profile selects the SN/LI/SO field widths (LTE 10-bit by default;
	// NR12/NR18 for the wider NR variants).
	Profile pdu.Profile

	// TPollRetransmitMs is t-PollRetransmit's duration in TTIs (ms).
	TPollRetransmitMs uint32

	// PollPDU is the PDU-count threshold before forcing a poll. 0 is
	// documented by the source as ambiguous between "poll every PDU" and
	// "poll never" (spec.md §9 Open Questions) — this implementation
	// treats 0 as disabled (never triggers on count alone), matching the
	// "infinity" configuration value rather than "every PDU"; see
	// DESIGN.md for the full rationale.
	PollPDU uint32

	// PollByte is the byte-count threshold before forcing a poll. Same
	// zero-disables convention as PollPDU.
	PollByte uint64

	// MaxRetxThreshold is the retx_count at which MaxRetxReached fires.
	// Valid values per §6: 1,2,3,4,6,8,16,32.
	MaxRetxThreshold uint32

	// TReorderingMs is t-Reordering's duration in TTIs.
	TReorderingMs uint32

	// TStatusProhibitMs is t-StatusProhibit's duration in TTIs.
	TStatusProhibitMs uint32

	// TxQueueCapacity bounds the Tx SDU queue (§6 default 128).
	TxQueueCapacity int

	// PollFallbackEvery is the (e) fallback heuristic: force a poll every
	// N transmitted PDUs when neither PDU nor byte thresholds are
	// configured (both zero). 0 disables the fallback.
	PollFallbackEvery uint32
}

var validMaxRetx = map[uint32]bool{1: true, 2: true, 3: true, 4: true, 6: true, 8: true, 16: true, 32: true}

// Validate checks the configuration against §6/§7 (InvalidConfig): illegal
// values leave the caller's existing configuration untouched.
func (c Config) Validate() error {
	if c.LCID == "" {
		return rlcerr.New(rlcerr.InvalidConfig, "lcid must not be empty")
	}
	if c.Profile.SNBits == 0 {
		return rlcerr.New(rlcerr.InvalidConfig, "profile sn field width must be set")
	}
	if !validMaxRetx[c.MaxRetxThreshold] {
		return rlcerr.Newf(rlcerr.InvalidConfig, "max_retx_threshold %d is not one of 1,2,3,4,6,8,16,32", c.MaxRetxThreshold)
	}
	if c.TxQueueCapacity < 0 {
		return rlcerr.New(rlcerr.InvalidConfig, "tx_queue_capacity must be non-negative")
	}
	return nil
}

// DefaultConfig returns a Config with the LTE profile and commonly used
// timer/threshold values, suitable as a starting point for tests and the
// simulator.
func DefaultConfig(lcid string) Config {
	return Config{
		LCID:              lcid,
		Profile:           pdu.LTE,
		TPollRetransmitMs: 80,
		PollPDU:           16,
		PollByte:          0,
		MaxRetxThreshold:  4,
		TReorderingMs:     45,
		TStatusProhibitMs: 10,
		TxQueueCapacity:   128,
		PollFallbackEvery: 0,
	}
}
