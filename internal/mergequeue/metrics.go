package mergequeue

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/simplesurance/mergetrain/internal/logfields"
)

const metricNamespace = "mergetrain_scheduler"

const (
	queueOperationsMetricName = "queue_operations_total"
	queuedPRCountMetricName   = "queued_prs_count"
)

const (
	baseBranchLabel = "base_branch"
	repositoryLabel = "repository"
	operationLabel  = "operation"
)

type operationLabelVal string

const (
	operationLabelEnqueueVal     operationLabelVal = "enqueue"
	operationLabelDequeueVal     operationLabelVal = "dequeue"
	operationLabelMergeVal       operationLabelVal = "merge"
	operationLabelMergeFailedVal operationLabelVal = "merge_failed"
)

type metricCollector struct {
	logger    *zap.Logger
	queueOps  *prometheus.CounterVec
	queueSize *prometheus.GaugeVec
}

var metrics = newMetricCollector()

func newMetricCollector() *metricCollector {
	return &metricCollector{
		logger: zap.L().Named("mergequeue").Named("metrics"),
		queueOps: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      queueOperationsMetricName,
				Help:      "count of merge queue operations",
			},
			[]string{repositoryLabel, baseBranchLabel, operationLabel},
		),
		queueSize: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricNamespace,
				Name:      queuedPRCountMetricName,
				Help:      "count of pull requests queued for merging",
			},
			[]string{repositoryLabel, baseBranchLabel},
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

func queueOpsLabels(branchID *BranchID, operation operationLabelVal) prometheus.Labels {
	return prometheus.Labels{
		repositoryLabel: fmt.Sprintf("%s/%s", branchID.RepositoryOwner, branchID.Repository),
		baseBranchLabel: branchID.Branch,
		operationLabel:  string(operation),
	}
}

func (m *metricCollector) queueOpsInc(branchID *BranchID, operation operationLabelVal) {
	cnt, err := m.queueOps.GetMetricWith(queueOpsLabels(branchID, operation))
	if err != nil {
		m.logGetMetricFailed(queueOperationsMetricName, err)
		return
	}

	cnt.Inc()
}

func (m *metricCollector) EnqueueOpsInc(branchID *BranchID) {
	m.queueOpsInc(branchID, operationLabelEnqueueVal)
}

func (m *metricCollector) DequeueOpsInc(branchID *BranchID) {
	m.queueOpsInc(branchID, operationLabelDequeueVal)
}

func (m *metricCollector) MergeOpsInc(branchID *BranchID) {
	m.queueOpsInc(branchID, operationLabelMergeVal)
}

func (m *metricCollector) MergeFailedOpsInc(branchID *BranchID) {
	m.queueOpsInc(branchID, operationLabelMergeFailedVal)
}
