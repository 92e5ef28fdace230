package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/simplesurance/mergetrain/internal/logfields"
)

const metricNamespace = "mergetrain_engine"

const (
	receivedEventsMetricName    = "received_events_total"
	dispatchedActionsMetricName = "dispatched_actions_total"
)

const (
	eventTypeLabel = "event_type"
	ruleLabel      = "rule"
	actionLabel    = "action"
)

type metricCollector struct {
	logger            *zap.Logger
	receivedEvents    *prometheus.CounterVec
	dispatchedActions *prometheus.CounterVec
}

var metrics = newMetricCollector()

func newMetricCollector() *metricCollector {
	return &metricCollector{
		logger: zap.L().Named("engine").Named("metrics"),
		receivedEvents: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      receivedEventsMetricName,
				Help:      "count of events received by the event loop",
			},
			[]string{eventTypeLabel},
		),
		dispatchedActions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      dispatchedActionsMetricName,
				Help:      "count of successfully dispatched rule actions",
			},
			[]string{ruleLabel, actionLabel},
		),
	}
}

func (m *metricCollector) logGetMetricFailed(metricName string, err error) {
	m.logger.Warn(
		"could not record metric",
		zap.String("metric", metricName),
		logfields.Event("recording_metric_failed"),
		zap.Error(err),
	)
}

func (m *metricCollector) ReceivedEventsInc(eventType string) {
	cnt, err := m.receivedEvents.GetMetricWith(prometheus.Labels{
		eventTypeLabel: eventType,
	})
	if err != nil {
		m.logGetMetricFailed(receivedEventsMetricName, err)
		return
	}

	cnt.Inc()
}

func (m *metricCollector) DispatchedActionsInc(rule, action string) {
	cnt, err := m.dispatchedActions.GetMetricWith(prometheus.Labels{
		ruleLabel:   rule,
		actionLabel: action,
	})
	if err != nil {
		m.logGetMetricFailed(dispatchedActionsMetricName, err)
		return
	}

	cnt.Inc()
}
