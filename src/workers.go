package main

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ryansname/boilersim/src/anomaly"
	"github.com/ryansname/boilersim/src/api"
	"github.com/ryansname/boilersim/src/governor"
	"github.com/ryansname/boilersim/src/history"
	"github.com/ryansname/boilersim/src/metrics"
	"github.com/ryansname/boilersim/src/notify"
	"github.com/ryansname/boilersim/src/sim"
)

// SampleInterval is how often the plant is sampled for display, about 25 frames per second
const SampleInterval = 40 * time.Millisecond

// physicsWorker ticks the simulation at the current time acceleration
func physicsWorker(ctx context.Context, s *sim.Simulation, m *metrics.Metrics) {
	runner := sim.NewRunner(s, m.Tick)
	_ = runner.Run(ctx)
}

// frameBuilder smooths the noisy display values between samples
type frameBuilder struct {
	barycenter *governor.MovingAverage
	pci        *governor.MovingAverage
	resets     uint64
}

func newFrameBuilder() *frameBuilder {
	return &frameBuilder{
		barycenter: governor.NewMovingAverage(governor.DefaultWindow),
		pci:        governor.NewMovingAverage(governor.DefaultWindow),
	}
}

func (b *frameBuilder) build(snap sim.Snapshot, risk anomaly.State) Frame {
	// A reset jumps the plant back; don't average across it
	if snap.Resets != b.resets {
		b.barycenter.Reset()
		b.pci.Reset()
		b.resets = snap.Resets
	}
	return Frame{
		Snapshot:          snap,
		Risk:              risk,
		DisplayBarycenter: b.barycenter.Add(snap.Barycenter),
		DisplayPCI:        b.pci.Add(snap.EstimatedPCI),
	}
}

// samplerWorker samples the simulation on a fixed period and feeds the broadcast worker
func samplerWorker(
	ctx context.Context,
	s *sim.Simulation,
	risk api.RiskSource,
	interval time.Duration,
	outputChan chan<- Frame,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	builder := newFrameBuilder()
	for {
		select {
		case <-ticker.C:
			frame := builder.build(s.Snapshot(), risk.Risk())
			select {
			case outputChan <- frame:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// broadcastWorker receives frames and fans out to multiple downstream workers
func broadcastWorker(
	ctx context.Context,
	inputChan <-chan Frame,
	outputChans []chan<- Frame,
	logger *zap.Logger,
) {
	for {
		select {
		case frame := <-inputChan:
			// Fan out to all downstream workers using non-blocking sends
			for i, ch := range outputChans {
				select {
				case ch <- frame:
				case <-ctx.Done():
					return
				default:
					logger.Warn("Downstream worker channel full, dropping frame", zap.Int("worker", i))
				}
			}

		case <-ctx.Done():
			return
		}
	}
}

// riskBoard holds the latest evaluation for readers on other goroutines
type riskBoard struct {
	state atomic.Pointer[anomaly.State]
}

func (b *riskBoard) Risk() anomaly.State {
	if s := b.state.Load(); s != nil {
		return *s
	}
	return anomaly.State{RiskLevel: anomaly.RiskNormal}
}

func (b *riskBoard) set(s anomaly.State) {
	b.state.Store(&s)
}

// riskMonitor runs the detector once per simulated second and raises alerts
type riskMonitor struct {
	detector *anomaly.Detector
	alerter  *notify.Alerter
	board    *riskBoard
	metrics  *metrics.Metrics
	log      *zap.Logger

	last   time.Time
	resets uint64
}

func (r *riskMonitor) observe(f Frame) {
	if f.Resets != r.resets {
		r.detector.Reset()
		r.alerter.Reset()
		r.resets = f.Resets
		r.last = time.Time{}
	}
	// Frames arrive faster than the plant ticks
	if !f.SimTime.After(r.last) {
		return
	}
	r.last = f.SimTime

	state := r.detector.Evaluate(f.SimTime, f.Barycenter, f.Result.SimulatedO2, f.RealSH5)
	r.board.set(state)
	r.metrics.SetRiskScore(state.Score)

	sent, err := r.alerter.Observe(state, notify.Reading{
		SH5:        f.RealSH5,
		O2:         f.Result.SimulatedO2,
		Barycenter: f.Barycenter,
	})
	if err != nil {
		r.log.Error("Failed to send risk alert", zap.Error(err))
	}
	if sent {
		r.metrics.AlertSent()
	}
}

// anomalyWorker evaluates explosion risk on every new plant second
func anomalyWorker(
	ctx context.Context,
	inputChan <-chan Frame,
	detector *anomaly.Detector,
	alerter *notify.Alerter,
	board *riskBoard,
	m *metrics.Metrics,
	logger *zap.Logger,
) {
	monitor := &riskMonitor{detector: detector, alerter: alerter, board: board, metrics: m, log: logger}
	for {
		select {
		case frame := <-inputChan:
			monitor.observe(frame)
		case <-ctx.Done():
			return
		}
	}
}

// plantGauges maps a frame onto the exported gauges
func plantGauges(f Frame) metrics.Plant {
	return metrics.Plant{
		SH5:          f.RealSH5,
		SH5Target:    f.Result.SH5Target,
		O2:           f.Result.SimulatedO2,
		SteamFlow:    f.Result.SteamFlow,
		Barycenter:   f.Barycenter,
		Fouling:      f.Fouling,
		WasteDeposit: f.WasteDeposit,
		EstimatedPCI: f.EstimatedPCI,
		Acceleration: f.Acceleration,
	}
}

// streamWorker pushes frames to websocket clients and keeps the plant gauges current
func streamWorker(ctx context.Context, inputChan <-chan Frame, hub *api.Hub, m *metrics.Metrics, logger *zap.Logger) {
	for {
		select {
		case frame := <-inputChan:
			m.SetPlant(plantGauges(frame))
			if err := hub.Publish(frame); err != nil {
				logger.Error("Failed to publish frame", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

type pointSaver interface {
	Save(points []history.DataPoint) error
}

// historyFlusher writes the log only when it changed since the last write
type historyFlusher struct {
	log     *history.Log
	store   pointSaver
	version uint64
}

func (f *historyFlusher) flush() (bool, error) {
	points, version := f.log.Snapshot()
	if version == f.version {
		return false, nil
	}
	if err := f.store.Save(points); err != nil {
		return false, err
	}
	f.version = version
	return true, nil
}

// historyWorker persists the history log periodically
func historyWorker(
	ctx context.Context,
	log *history.Log,
	store pointSaver,
	interval time.Duration,
	logger *zap.Logger,
) {
	flusher := &historyFlusher{log: log, store: store, version: log.Version()}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := flusher.flush(); err != nil {
				logger.Error("Failed to save history", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}
