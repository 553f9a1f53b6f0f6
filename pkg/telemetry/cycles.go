package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
)

// CycleRecord captures one remediation cycle of a refinement run for
// offline analysis of how the engine converges.
type CycleRecord struct {
	RunID       string    `parquet:"run_id"`
	Timestamp   time.Time `parquet:"timestamp"`
	Cycle       int       `parquet:"cycle"`
	Action      string    `parquet:"action"`
	Metric      string    `parquet:"metric"`
	Mutated     bool      `parquet:"mutated"`
	FinalState  string    `parquet:"final_state"`
	Refinements int       `parquet:"refinements"`
	NodeCount   int       `parquet:"node_count"`
	EdgeCount   int       `parquet:"edge_count"`
}

// CycleRecorder batches refinement cycle records into Parquet files.
type CycleRecorder struct {
	outputDir string
	mu        sync.Mutex
	buffer    []CycleRecord
}

// NewCycleRecorder creates a recorder writing under outputDir.
func NewCycleRecorder(outputDir string) (*CycleRecorder, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create telemetry directory: %w", err)
	}
	return &CycleRecorder{outputDir: outputDir}, nil
}

// NewRunID returns a fresh identifier tying one run's records together.
func NewRunID() string {
	return uuid.New().String()
}

// Record buffers one cycle record.
func (r *CycleRecorder) Record(rec CycleRecord) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	r.mu.Lock()
	r.buffer = append(r.buffer, rec)
	r.mu.Unlock()
}

// Flush writes buffered records to a new Parquet file.
func (r *CycleRecorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.buffer) == 0 {
		return nil
	}

	filename := fmt.Sprintf("refinement_cycles_%s_%d.parquet", time.Now().Format("20060102_150405"), time.Now().UnixNano())
	path := filepath.Join(r.outputDir, filename)

	if err := parquet.WriteFile(path, r.buffer); err != nil {
		return fmt.Errorf("failed to write cycle telemetry: %w", err)
	}
	r.buffer = r.buffer[:0]
	return nil
}
