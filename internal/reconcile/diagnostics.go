package reconcile

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// MissKind names a linked entity that a handler looked for and did not find.
type MissKind string

const (
	MissFund     MissKind = "fund"
	MissToken    MissKind = "token"
	MissWallet   MissKind = "wallet"
	MissReferral MissKind = "referral"
	MissPackage  MissKind = "package"
)

// Diagnostics routes run counters and lookup misses to zap and Prometheus.
// Misses never change engine behavior.
type Diagnostics struct {
	logger          *zap.Logger
	logsSynced      *prometheus.CounterVec
	logsSkipped     *prometheus.CounterVec
	eventsApplied   *prometheus.CounterVec
	linkMisses      *prometheus.CounterVec
	runs            *prometheus.CounterVec
	earningFailures prometheus.Counter
}

// NewDiagnostics builds the collectors and registers them with reg when it is
// non-nil. Collectors already registered under the same name are reused.
func NewDiagnostics(reg prometheus.Registerer, logger *zap.Logger) (*Diagnostics, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Diagnostics{
		logger: logger,
		logsSynced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sftsync_logs_synced_total",
			Help: "Logs past the checkpoint that were counted as synced.",
		}, []string{"stream"}),
		logsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sftsync_logs_skipped_total",
			Help: "Logs at or before the checkpoint that were skipped.",
		}, []string{"stream"}),
		eventsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sftsync_events_applied_total",
			Help: "Event log records written, by action.",
		}, []string{"action"}),
		linkMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sftsync_link_misses_total",
			Help: "Handler lookups that matched no entity, by entity kind.",
		}, []string{"kind"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sftsync_runs_total",
			Help: "Completed sync runs, by status.",
		}, []string{"status"}),
		earningFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sftsync_earning_record_failures_total",
			Help: "Earning records the earning service failed to accept.",
		}),
	}

	if reg == nil {
		return d, nil
	}

	var err error
	if d.logsSynced, err = registerCounterVec(reg, d.logsSynced); err != nil {
		return nil, err
	}
	if d.logsSkipped, err = registerCounterVec(reg, d.logsSkipped); err != nil {
		return nil, err
	}
	if d.eventsApplied, err = registerCounterVec(reg, d.eventsApplied); err != nil {
		return nil, err
	}
	if d.linkMisses, err = registerCounterVec(reg, d.linkMisses); err != nil {
		return nil, err
	}
	if d.runs, err = registerCounterVec(reg, d.runs); err != nil {
		return nil, err
	}
	if err := reg.Register(d.earningFailures); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, err
		}
		d.earningFailures = already.ExistingCollector.(prometheus.Counter)
	}
	return d, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return already.ExistingCollector.(*prometheus.CounterVec), nil
		}
		return nil, err
	}
	return vec, nil
}

// Miss records a lookup that found nothing.
func (d *Diagnostics) Miss(kind MissKind, fields ...zap.Field) {
	d.linkMisses.WithLabelValues(string(kind)).Inc()
	d.logger.Debug("linked entity not found", append([]zap.Field{zap.String("kind", string(kind))}, fields...)...)
}

func (d *Diagnostics) synced(stream string) {
	d.logsSynced.WithLabelValues(stream).Inc()
}

func (d *Diagnostics) skipped(stream string) {
	d.logsSkipped.WithLabelValues(stream).Inc()
}

func (d *Diagnostics) applied(action string) {
	d.eventsApplied.WithLabelValues(action).Inc()
}

func (d *Diagnostics) finished(status string) {
	d.runs.WithLabelValues(status).Inc()
}

func (d *Diagnostics) earningFailed() {
	d.earningFailures.Inc()
}
