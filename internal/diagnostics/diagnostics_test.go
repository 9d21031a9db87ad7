package diagnostics

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/shubham/forensics/internal/rawdevice"
)

func writeImage(t *testing.T, data []byte) *rawdevice.Device {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "image.bin")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write image: %v", err)
	}
	dev, err := rawdevice.Open(path)
	if err != nil {
		t.Fatalf("open image: %v", err)
	}
	t.Cleanup(func() { dev.Close() })
	return dev
}

func TestSampleClustersClassifiesEmptyAndUsed(t *testing.T) {
	data := make([]byte, sampleClusterSize*4)
	for i := sampleClusterSize; i < sampleClusterSize*2; i++ {
		data[i] = 0xAB
	}

	dev := writeImage(t, data)
	samples, err := SampleClusters(dev)
	if err != nil {
		t.Fatalf("SampleClusters: %v", err)
	}
	if len(samples) == 0 {
		t.Fatal("expected at least one sample")
	}

	var sawUsed, sawEmpty bool
	for _, s := range samples {
		if s.State == ClusterUsed {
			sawUsed = true
		}
		if s.State == ClusterEmpty {
			sawEmpty = true
		}
	}
	if !sawUsed || !sawEmpty {
		t.Errorf("expected both used and empty clusters, got used=%v empty=%v", sawUsed, sawEmpty)
	}
}

func TestSampleClustersCapsAtMaximum(t *testing.T) {
	data := make([]byte, sampleClusterSize*(maxSampledClusters*3))
	dev := writeImage(t, data)

	samples, err := SampleClusters(dev)
	if err != nil {
		t.Fatalf("SampleClusters: %v", err)
	}
	if len(samples) > maxSampledClusters {
		t.Errorf("expected at most %d samples, got %d", maxSampledClusters, len(samples))
	}
}

func TestSurfaceScanHonorsCancellation(t *testing.T) {
	data := make([]byte, 4*1024*1024)
	dev := writeImage(t, data)

	var cancelled atomic.Bool
	cancelled.Store(true)

	_, err := SurfaceScan(dev, &cancelled)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestSurfaceScanReportsCleanDevice(t *testing.T) {
	data := make([]byte, 2*1024*1024)
	dev := writeImage(t, data)

	result, err := SurfaceScan(dev, nil)
	if err != nil {
		t.Fatalf("SurfaceScan: %v", err)
	}
	if result.SectorsChecked == 0 {
		t.Fatal("expected at least one sector checked")
	}
	if len(result.BadSectors) != 0 {
		t.Errorf("expected no bad sectors on a fresh image, got %d", len(result.BadSectors))
	}
}

func TestScoreHealthyDeviceIsPerfect(t *testing.T) {
	score := Score(SurfaceScanResult{SectorsChecked: 100}, SmartReport{Available: false})
	if score != 100 {
		t.Errorf("expected score 100 for a clean device with no SMART data, got %d", score)
	}
}

func TestScorePenalizesBadSectorsAndFailedSmart(t *testing.T) {
	surface := SurfaceScanResult{SectorsChecked: 100, BadSectors: []int64{1, 2, 3, 4, 5}}
	smart := SmartReport{Available: true, Passed: false, ReallocatedSectors: 200}

	score := Score(surface, smart)
	if score >= 75 {
		t.Errorf("expected a significant penalty, got score %d", score)
	}
}

func TestScoreNeverGoesNegative(t *testing.T) {
	surface := SurfaceScanResult{BadSectors: make([]int64, 1000)}
	smart := SmartReport{Available: true, Passed: false, ReallocatedSectors: 100000}

	score := Score(surface, smart)
	if score < 0 {
		t.Errorf("expected score to clamp at 0, got %d", score)
	}
}

func TestBandForMapsScoreToStatusBands(t *testing.T) {
	cases := map[int]HealthBand{
		100: BandExcellent,
		90:  BandExcellent,
		89:  BandGood,
		70:  BandGood,
		69:  BandFair,
		50:  BandFair,
		49:  BandPoor,
		0:   BandPoor,
	}
	for score, want := range cases {
		if got := BandFor(score); got != want {
			t.Errorf("BandFor(%d) = %s, want %s", score, got, want)
		}
	}
}

func TestCollectSmartReturnsUnavailableWhenBinaryMissing(t *testing.T) {
	report := CollectSmart("/no/such/device")
	if report.Available {
		t.Error("expected Available=false when smartctl cannot run")
	}
}
