package mergequeue

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

type queueMetrics struct {
	queueSize prometheus.Gauge
}

func newQueueMetrics(branchID BranchID) (*queueMetrics, error) {
	queueSize, err := metrics.queueSize.GetMetricWith(queueSizeLabels(&branchID))
	if err != nil {
		return nil, fmt.Errorf("creating queue size metric failed: %w", err)
	}

	return &queueMetrics{queueSize: queueSize}, nil
}

func (q *queueMetrics) QueueSizeInc() {
	if q == nil {
		return
	}

	q.queueSize.Inc()
}

func (q *queueMetrics) QueueSizeDec() {
	if q == nil {
		return
	}

	q.queueSize.Dec()
}

func queueSizeLabels(branchID *BranchID) prometheus.Labels {
	return prometheus.Labels{
		repositoryLabel: fmt.Sprintf("%s/%s", branchID.RepositoryOwner, branchID.Repository),
		baseBranchLabel: branchID.Branch,
	}
}
