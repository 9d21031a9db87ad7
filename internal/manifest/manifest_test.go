package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shubham/forensics/internal/diagnostics"
	"github.com/shubham/forensics/internal/record"
)

func sampleResult() record.ScanResult {
	return record.ScanResult{
		JobID:        "job-1",
		Duration:     2 * time.Second,
		BytesScanned: 1024 * 1024,
		TotalFiles:   2,
		PartialFiles: 1,
		Status:       record.JobCompleted,
		Records: []record.FileRecord{
			{
				Name: "photo.jpg", Extension: "jpg", SizeBytes: 1000,
				SourceOffset: 512, SourceDevice: "/dev/sdb", MD5: "abc", SHA256: "def",
				ValidationScore: 90, Method: record.MethodCarve, Status: record.StatusIndexed,
				DiscoveredAt: time.Now(), SignatureID: "jpeg",
			},
			{
				Name: "doc.pdf", Extension: "pdf", SizeBytes: 2048,
				SourceOffset: 4096, SourceDevice: "/dev/sdb", MD5: "111", SHA256: "222",
				ValidationScore: 50, IsPartial: true, Method: record.MethodCarve, Status: record.StatusIndexed,
				DiscoveredAt: time.Now(), SignatureID: "pdf",
			},
		},
	}
}

func TestBuildRecoveryManifestIndexMode(t *testing.T) {
	m := BuildRecoveryManifest(sampleResult(), "/dev/sdb", false)
	if m.ScanInfo.Mode != "index_only" {
		t.Errorf("expected index_only mode, got %s", m.ScanInfo.Mode)
	}
	if len(m.Files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(m.Files))
	}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	stats := decoded["statistics"].(map[string]interface{})
	if _, ok := stats["total_files_indexed"]; !ok {
		t.Error("expected total_files_indexed key in index mode manifest")
	}
	if _, ok := stats["total_files_recovered"]; ok {
		t.Error("did not expect total_files_recovered key in index mode manifest")
	}
}

func TestBuildRecoveryManifestWriteMode(t *testing.T) {
	m := BuildRecoveryManifest(sampleResult(), "/dev/sdb", true)
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]interface{}
	json.Unmarshal(data, &decoded)
	stats := decoded["statistics"].(map[string]interface{})
	if _, ok := stats["total_files_recovered"]; !ok {
		t.Error("expected total_files_recovered key in write mode manifest")
	}
}

func TestWriteRecoveryManifestPicksFilenameByMode(t *testing.T) {
	dir := t.TempDir()

	path, err := WriteRecoveryManifest(dir, BuildRecoveryManifest(sampleResult(), "/dev/sdb", false))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if filepath.Base(path) != "scan_index.json" {
		t.Errorf("expected scan_index.json, got %s", filepath.Base(path))
	}

	path, err = WriteRecoveryManifest(dir, BuildRecoveryManifest(sampleResult(), "/dev/sdb", true))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if filepath.Base(path) != "recovery_manifest.json" {
		t.Errorf("expected recovery_manifest.json, got %s", filepath.Base(path))
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected file to exist: %v", err)
	}
}

func TestBuildClusterMapCountsEmptyAndUsed(t *testing.T) {
	samples := []diagnostics.ClusterSample{
		{Offset: 0, State: diagnostics.ClusterEmpty, Preview: "00000000"},
		{Offset: 4096, State: diagnostics.ClusterUsed, Preview: "48656c6c"},
	}
	cm := BuildClusterMap(samples)
	if cm.Statistics.TotalClusters != 2 {
		t.Errorf("expected 2 total clusters, got %d", cm.Statistics.TotalClusters)
	}
	if cm.Statistics.EmptyClusters != 1 || cm.Statistics.UsedClusters != 1 {
		t.Errorf("expected 1 empty and 1 used, got empty=%d used=%d", cm.Statistics.EmptyClusters, cm.Statistics.UsedClusters)
	}
	if cm.ClusterMap[1].AsciiPreview != "Hell" {
		t.Errorf("expected ascii preview 'Hell', got %q", cm.ClusterMap[1].AsciiPreview)
	}
}

func TestBuildHealthReportFlagsBadSectors(t *testing.T) {
	report := diagnostics.HealthReport{
		DeviceSizeHuman: "1.0 GB",
		SurfaceScan: diagnostics.SurfaceScanResult{
			SectorsChecked: 10,
			BadSectors:     []int64{512, 1024},
			StrideBytes:    512,
		},
		Smart: diagnostics.SmartReport{Available: true, Passed: false},
		Score: 40,
	}

	artifact := BuildHealthReport("/dev/sdb", report)
	if artifact.HealthScore != 40 {
		t.Errorf("expected health score 40, got %d", artifact.HealthScore)
	}
	if len(artifact.BadSectors) != 2 {
		t.Errorf("expected 2 bad sectors, got %d", len(artifact.BadSectors))
	}
	if len(artifact.Recommendations) == 0 {
		t.Error("expected recommendations for a failing device")
	}
}

func TestWriteClusterMapAndHealthReport(t *testing.T) {
	dir := t.TempDir()

	cmPath, err := WriteClusterMap(dir, BuildClusterMap(nil))
	if err != nil {
		t.Fatalf("write cluster map: %v", err)
	}
	if filepath.Base(cmPath) != "cluster_map.json" {
		t.Errorf("unexpected cluster map filename: %s", cmPath)
	}

	hrPath, err := WriteHealthReport(dir, BuildHealthReport("/dev/sdb", diagnostics.HealthReport{}))
	if err != nil {
		t.Fatalf("write health report: %v", err)
	}
	if filepath.Base(hrPath) != "health_report.json" {
		t.Errorf("unexpected health report filename: %s", hrPath)
	}
}
