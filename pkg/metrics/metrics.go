package metrics

import (
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
)

// ExtractionMetrics collects counters for a single extraction run
type ExtractionMetrics struct {
	mu sync.RWMutex

	FilesTotal            int64
	PayloadBytesTotal     int64
	PaddingBytesTotal     int64
	OffsetMismatchesTotal int64

	StartTime time.Time
	Duration  time.Duration
}

// NewExtractionMetrics creates a metrics collector and starts its clock
func NewExtractionMetrics() *ExtractionMetrics {
	return &ExtractionMetrics{StartTime: time.Now()}
}

// RecordFile records a fully extracted payload
func (m *ExtractionMetrics) RecordFile(path string, bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FilesTotal++
	m.PayloadBytesTotal += bytes

	log.Debug().
		Str("path", path).
		Int64("bytes", bytes).
		Int64("total_files", m.FilesTotal).
		Msg("file extracted")
}

// RecordPadding records alignment bytes skipped between sections
func (m *ExtractionMetrics) RecordPadding(bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PaddingBytesTotal += bytes
}

// RecordOffsetMismatch records an entry whose declared offset differs from its position
func (m *ExtractionMetrics) RecordOffsetMismatch() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.OffsetMismatchesTotal++
}

// Finish stops the clock
func (m *ExtractionMetrics) Finish() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Duration = time.Since(m.StartTime)
}

// Snapshot returns the counters keyed by metric name
func (m *ExtractionMetrics) Snapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"rcf_files_total":             m.FilesTotal,
		"rcf_payload_bytes_total":     m.PayloadBytesTotal,
		"rcf_padding_bytes_total":     m.PaddingBytesTotal,
		"rcf_offset_mismatches_total": m.OffsetMismatchesTotal,
		"rcf_duration_seconds":        m.Duration.Seconds(),
	}
}

// LogSummary logs a summary of the run
func (m *ExtractionMetrics) LogSummary() {
	m.mu.RLock()
	defer m.mu.RUnlock()

	log.Info().
		Int64("files", m.FilesTotal).
		Str("payload", humanize.Bytes(uint64(m.PayloadBytesTotal))).
		Str("padding", humanize.Bytes(uint64(m.PaddingBytesTotal))).
		Int64("offset_mismatches", m.OffsetMismatchesTotal).
		Dur("duration", m.Duration).
		Msg("extraction summary")
}
