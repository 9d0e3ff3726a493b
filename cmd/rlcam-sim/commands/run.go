package commands

import (
	"fmt"
	"math/rand"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/rlcam/internal/config"
	"github.com/marmos91/rlcam/internal/logger"
	"github.com/marmos91/rlcam/pkg/rlc/am"
	"github.com/marmos91/rlcam/pkg/rlc/bufpool"
	"github.com/marmos91/rlcam/pkg/rlc/common"
	"github.com/marmos91/rlcam/pkg/rlc/metrics"

	_ "github.com/marmos91/rlcam/pkg/rlc/metrics/prometheus"
)

var (
	lcid       string
	sduCount   int
	sduSize    int
	grantBytes int
	lossRate   float64
	ttiMs      int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Send SDUs across a lossy loopback channel and report delivery",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&lcid, "lcid", "sim", "logical channel ID for both entities")
	runCmd.Flags().IntVar(&sduCount, "sdus", 20, "number of SDUs to transmit")
	runCmd.Flags().IntVar(&sduSize, "sdu-size", 200, "size in bytes of each SDU")
	runCmd.Flags().IntVar(&grantBytes, "grant", 128, "MAC grant size in bytes per ReadPDU call")
	runCmd.Flags().Float64Var(&lossRate, "loss-rate", 0.1, "fraction of PDUs dropped in each direction, 0..1")
	runCmd.Flags().IntVar(&ttiMs, "tti-ms", 1, "simulated TTI duration in milliseconds")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output}); err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		metrics.Enable()
	}

	bearerCfg, ok := cfg.Bearers[lcid]
	if !ok {
		bearerCfg = cfg.Bearers["default"]
	}
	// Each entity gets a short instance ID appended to its LCID so its log
	// lines and metric labels stay distinguishable if this command is ever
	// run twice against the same lcid concurrently (e.g. two `run`
	// invocations sharing a metrics registry in the same process).
	txInstanceID := uuid.New().String()[:8]
	rxInstanceID := uuid.New().String()[:8]
	txAMCfg := bearerCfg.ToAMConfig(fmt.Sprintf("%s-tx-%s", lcid, txInstanceID))
	rxAMCfg := bearerCfg.ToAMConfig(fmt.Sprintf("%s-rx-%s", lcid, rxInstanceID))
	logger.Info("starting run", "lcid", lcid, "tx_instance", txInstanceID, "rx_instance", rxInstanceID)

	pool := bufpool.New(nil)
	// One shared AMMetrics instance for both entities: each collector is
	// registered once against the process registry and distinguishes tx
	// from rx by the lcid label, not by a second registration.
	metr := metrics.NewAMMetrics()

	var delivered atomic.Int64
	done := make(chan struct{})
	rrc := &loggingRRC{}

	rx, err := am.New(rxAMCfg, pool, metr, rrc, func(sdu []byte) {
		n := delivered.Add(1)
		logger.Info("sdu delivered", "bytes", len(sdu), "count", n)
		if int(n) == sduCount {
			close(done)
		}
	})
	if err != nil {
		return fmt.Errorf("create rx entity: %w", err)
	}
	tx, err := am.New(txAMCfg, pool, metr, rrc, func([]byte) {})
	if err != nil {
		return fmt.Errorf("create tx entity: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	rng := rand.New(rand.NewSource(1))
	var rngMu sync.Mutex

	link := func(from, to *am.Entity, dir string) func() error {
		return func() error {
			buf := make([]byte, grantBytes)
			ticker := time.NewTicker(time.Duration(ttiMs) * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
				}
				n, err := from.ReadPDU(buf)
				if err != nil {
					return fmt.Errorf("%s: read pdu: %w", dir, err)
				}
				if n == 0 {
					continue
				}
				rngMu.Lock()
				drop := rng.Float64() < lossRate
				rngMu.Unlock()
				if drop {
					logger.Debug("dropped pdu", "direction", dir, "bytes", n)
					continue
				}
				if err := to.WritePDU(append([]byte(nil), buf[:n]...)); err != nil {
					logger.Warn("write pdu rejected", "direction", dir, "error", err)
				}
			}
		}
	}
	tickTimers := func(e *am.Entity) func() error {
		return func() error {
			ticker := time.NewTicker(time.Duration(ttiMs) * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					e.Tick()
				}
			}
		}
	}

	g.Go(link(tx, rx, "tx->rx"))
	g.Go(link(rx, tx, "rx->tx"))
	g.Go(tickTimers(tx))
	g.Go(tickTimers(rx))

	for i := 0; i < sduCount; i++ {
		sdu := make([]byte, sduSize)
		for j := range sdu {
			sdu[j] = byte(i)
		}
		if err := tx.WriteSDU(sdu, true); err != nil {
			return fmt.Errorf("write sdu %d: %w", i, err)
		}
	}
	logger.Info("submitted sdus", "count", sduCount, "lcid", lcid)

	select {
	case <-done:
		logger.Info("all sdus delivered")
	case <-gctx.Done():
		logger.Warn("stopped before all sdus were delivered", "delivered", delivered.Load())
	}

	stop()
	tx.Stop()
	rx.Stop()
	if err := g.Wait(); err != nil {
		return fmt.Errorf("loopback driver: %w", err)
	}
	return nil
}

// loggingRRC implements common.RRCNotifier for the simulator: it just logs
// what a real RRC layer would be told.
type loggingRRC struct{}

func (r *loggingRRC) MaxRetxAttempted(lcid string) {
	logger.Warn("max retransmissions reached, RRC would reestablish", "lcid", lcid)
}

func (r *loggingRRC) GetRBName(lcid string) string { return lcid }

var _ common.RRCNotifier = (*loggingRRC)(nil)
