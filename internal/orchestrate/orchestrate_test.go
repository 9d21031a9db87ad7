package orchestrate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shubham/forensics/internal/extract"
	"github.com/shubham/forensics/internal/record"
)

func writeImage(t *testing.T, data []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "image.bin")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

// wellFormedJPEG builds a minimal-but-valid JPEG of exactly size bytes
// (SOI, one APP0 marker segment, EOI), large enough to clear the
// carver's 4KiB minimum candidate size.
func wellFormedJPEG(size int) []byte {
	payloadLen := size - 8
	lengthField := payloadLen + 2
	out := make([]byte, 0, size)
	out = append(out, 0xFF, 0xD8)
	out = append(out, 0xFF, 0xE0, byte(lengthField>>8), byte(lengthField&0xFF))
	out = append(out, make([]byte, payloadLen)...)
	out = append(out, 0xFF, 0xD9)
	return out
}

func TestStartScanRejectsMissingDevice(t *testing.T) {
	o := New()
	_, err := o.StartScan("/no/such/device-for-test", record.ScanOptions{Strategy: record.StrategyCarving})
	require.Error(t, err)
}

func TestCarvingScanCompletesAndReportsResults(t *testing.T) {
	data := append(make([]byte, 4096), wellFormedJPEG(8192)...)
	path := writeImage(t, data)

	o := New()
	id, err := o.StartScan(path, record.ScanOptions{Strategy: record.StrategyCarving})
	require.NoError(t, err)

	result, err := o.Results(id)
	require.NoError(t, err)
	require.Equal(t, record.JobCompleted, result.Status)
	require.GreaterOrEqual(t, result.TotalFiles, 1)
}

// TestCarvedRecordsCarrySourceDeviceAndExtractCleanly exercises the full
// scan-then-recover path: a record produced by the orchestrator must
// carry enough of its originating device identifier for the Extractor to
// reopen it and reproduce the indexed bytes, without the caller having to
// stitch SourceDevice back in by hand.
func TestCarvedRecordsCarrySourceDeviceAndExtractCleanly(t *testing.T) {
	data := append(make([]byte, 4096), wellFormedJPEG(8192)...)
	path := writeImage(t, data)

	o := New()
	id, err := o.StartScan(path, record.ScanOptions{Strategy: record.StrategyCarving})
	require.NoError(t, err)

	result, err := o.Results(id)
	require.NoError(t, err)
	require.GreaterOrEqual(t, result.TotalFiles, 1)
	require.Positive(t, result.BytesScanned)

	for _, r := range result.Records {
		require.Equal(t, path, r.SourceDevice)
	}

	outDir := t.TempDir()
	ext := extract.New(outDir, record.ScanOptions{ValidateHashes: true})
	defer ext.Close()

	outcomes, err := ext.ExtractAll(result.Records, nil)
	require.NoError(t, err)
	for _, o := range outcomes {
		require.Nil(t, o.Failure)
		require.Equal(t, record.StatusRecovered, o.Record.Status)
	}
}

func TestCancelStopsAnInFlightJob(t *testing.T) {
	data := make([]byte, 50*1024*1024)
	path := writeImage(t, data)

	o := New()
	id, err := o.StartScan(path, record.ScanOptions{Strategy: record.StrategyCarving})
	require.NoError(t, err)

	require.NoError(t, o.Cancel(id))
	result, err := o.Results(id)
	require.NoError(t, err)
	require.Equal(t, record.JobCancelled, result.Status)
}

func TestStatusReflectsTerminalStateAfterResults(t *testing.T) {
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xD9}
	path := writeImage(t, jpeg)

	o := New()
	id, err := o.StartScan(path, record.ScanOptions{Strategy: record.StrategyCarving})
	require.NoError(t, err)

	_, err = o.Results(id)
	require.NoError(t, err)

	status, err := o.Status(id)
	require.NoError(t, err)
	require.Equal(t, record.JobCompleted, status.Status)
}

func TestClusterSampleScanCompletesAndReturnsSamples(t *testing.T) {
	data := make([]byte, 64*1024)
	path := writeImage(t, data)

	o := New()
	id, err := o.StartScan(path, record.ScanOptions{Strategy: record.StrategyClusterSample})
	require.NoError(t, err)

	result, err := o.Results(id)
	require.NoError(t, err)
	require.Equal(t, record.JobCompleted, result.Status)

	samples, err := o.ClusterSamples(id)
	require.NoError(t, err)
	require.NotEmpty(t, samples)
}

func TestSurfaceHealthScanCompletesAndReturnsHealthReport(t *testing.T) {
	data := make([]byte, 2*1024*1024)
	path := writeImage(t, data)

	o := New()
	id, err := o.StartScan(path, record.ScanOptions{Strategy: record.StrategySurfaceHealth})
	require.NoError(t, err)

	result, err := o.Results(id)
	require.NoError(t, err)
	require.Equal(t, record.JobCompleted, result.Status)

	health, err := o.HealthReport(id)
	require.NoError(t, err)
	require.Equal(t, 100, health.Score)
}

func TestSubscribeClosesWhenJobFinishes(t *testing.T) {
	data := make([]byte, 64*1024)
	path := writeImage(t, data)

	o := New()
	id, err := o.StartScan(path, record.ScanOptions{Strategy: record.StrategyCarving})
	require.NoError(t, err)

	ch, err := o.Subscribe(id)
	require.NoError(t, err)

	timeout := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("subscription channel never closed")
		}
	}
}
