package service

import (
	"errors"
	"sync"
	"time"

	"sealed-ballot/models"
)

// MetricsCollector tracks counts, failures and processing time per operation.
type MetricsCollector struct {
	mu         sync.RWMutex
	operations map[string]*operationStats
}

type operationStats struct {
	startTime      time.Time
	endTime        time.Time
	count          int
	failures       int
	failuresByCode map[string]int
	totalTime      time.Duration
}

// OperationMetrics contains timing information for an operation
type OperationMetrics struct {
	StartTime      time.Time      `json:"start_time"`
	EndTime        time.Time      `json:"end_time"`
	Count          int            `json:"count"`
	Failures       int            `json:"failures"`
	FailuresByCode map[string]int `json:"failures_by_code,omitempty"`
	ProcessingTime int64          `json:"processing_time_ms"`
}

// MetricsResponse provides the metrics for all operations
type MetricsResponse struct {
	Operations map[string]OperationMetrics `json:"operations"`
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{operations: make(map[string]*operationStats)}
}

// Record adds one finished operation. A nil collector records nothing.
func (mc *MetricsCollector) Record(op string, started time.Time, err error) {
	if mc == nil {
		return
	}
	now := time.Now()

	mc.mu.Lock()
	defer mc.mu.Unlock()

	stats, ok := mc.operations[op]
	if !ok {
		stats = &operationStats{startTime: started, failuresByCode: make(map[string]int)}
		mc.operations[op] = stats
	}
	stats.count++
	stats.endTime = now
	stats.totalTime += now.Sub(started)
	if err != nil {
		stats.failures++
		stats.failuresByCode[ErrorCode(err)]++
	}
}

// GetMetrics returns current metrics for all operations
func (mc *MetricsCollector) GetMetrics() MetricsResponse {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	response := MetricsResponse{Operations: make(map[string]OperationMetrics, len(mc.operations))}
	for op, stats := range mc.operations {
		response.Operations[op] = stats.snapshot()
	}
	return response
}

// GetOperationMetrics returns metrics for one operation, zero if it never ran.
func (mc *MetricsCollector) GetOperationMetrics(op string) OperationMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	stats, ok := mc.operations[op]
	if !ok {
		return OperationMetrics{}
	}
	return stats.snapshot()
}

// Reset clears all metrics
func (mc *MetricsCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.operations = make(map[string]*operationStats)
}

func (s *operationStats) snapshot() OperationMetrics {
	byCode := make(map[string]int, len(s.failuresByCode))
	for code, n := range s.failuresByCode {
		byCode[code] = n
	}
	return OperationMetrics{
		StartTime:      s.startTime,
		EndTime:        s.endTime,
		Count:          s.count,
		Failures:       s.failures,
		FailuresByCode: byCode,
		ProcessingTime: s.totalTime.Milliseconds(),
	}
}

// ErrorCode names err for metrics and API responses.
func ErrorCode(err error) string {
	if code := models.Code(err); code != "" {
		return code
	}
	switch {
	case errors.Is(err, ErrQueueFull):
		return "QueueFull"
	case errors.Is(err, ErrClosed):
		return "Closed"
	default:
		return "Internal"
	}
}
