// Package manifest writes the JSON artifacts a scan or diagnostics run
// leaves in its output directory: scan_index.json / recovery_manifest.json,
// cluster_map.json, and health_report.json (spec.md §6). There is no
// manifest writer in the teacher repo to adapt directly; these types
// mirror original_source/backend/app/models.py's RecoveredFile/ScanResult
// JSON shapes, reimplemented as Go structs with encoding/json tags rather
// than ported field-by-field. encoding/json is used directly rather than
// through a third-party marshaling library: no repo in the example pack
// reaches for one for plain struct-to-JSON artifact writing, they all use
// the standard encoder (e.g. ostafen-digler's CLI output, shubham030's
// manifest dumps).
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shubham/forensics/internal/diagnostics"
	"github.com/shubham/forensics/internal/record"
)

// ScanInfo is the scan_info block common to both index and write mode
// manifests.
type ScanInfo struct {
	Mode                string `json:"mode"`
	Timestamp           string `json:"timestamp"`
	DrivePath           string `json:"drive_path"`
	TotalSectorsScanned int64  `json:"total_sectors_scanned"`
	ScanDurationSeconds float64 `json:"scan_duration_seconds"`
	RecoveryMethod      string `json:"recovery_method"`
}

// Statistics is the statistics block. TotalFiles is emitted under
// total_files_recovered when Mode=write and total_files_indexed when
// Mode=index_only, decided at marshal time by RecoveryManifest.MarshalJSON
// from the manifest's write mode.
type Statistics struct {
	TotalFiles      int    `json:"-"`
	TotalSizeBytes  int64  `json:"total_size_bytes"`
	PartialFiles    int    `json:"partial_files"`
	DiskSpaceUsed   int64  `json:"disk_space_used"`
	RecoveryStatus  string `json:"recovery_status"`
}

// FileEntry is one recovered or indexed file inside the manifest's files
// array.
type FileEntry struct {
	Filename        string  `json:"filename"`
	Path            string  `json:"path,omitempty"`
	SizeBytes       int64   `json:"size_bytes"`
	Offset          int64   `json:"offset"`
	FileType        string  `json:"file_type"`
	Extension       string  `json:"extension"`
	MD5             string  `json:"md5"`
	SHA256          string  `json:"sha256"`
	ValidationScore int     `json:"validation_score"`
	IsPartial       bool    `json:"is_partial"`
	Status          string  `json:"status"`
	Method          string  `json:"method"`
	RecoveredAt     string  `json:"recovered_at"`
	Signature       string  `json:"signature"`
	DrivePath       string  `json:"drive_path,omitempty"`
}

// RecoveryManifest is scan_index.json (index mode) or
// recovery_manifest.json (write mode).
type RecoveryManifest struct {
	ScanInfo   ScanInfo    `json:"scan_info"`
	Statistics Statistics  `json:"-"`
	Files      []FileEntry `json:"files"`

	isWriteMode bool
}

// BuildRecoveryManifest assembles a manifest from a completed scan
// result. writeMode selects the recovery_manifest.json field naming and
// filename; index mode produces scan_index.json semantics.
func BuildRecoveryManifest(result record.ScanResult, drivePath string, writeMode bool) RecoveryManifest {
	var totalSize int64
	var partial int

	entries := make([]FileEntry, 0, len(result.Records))
	for _, r := range result.Records {
		if r.IsPartial {
			partial++
		}
		totalSize += r.SizeBytes

		entries = append(entries, FileEntry{
			Filename:        r.Name,
			Path:            r.RecoveredPath,
			SizeBytes:       r.SizeBytes,
			Offset:          r.SourceOffset,
			FileType:        r.Extension,
			Extension:       r.Extension,
			MD5:             r.MD5,
			SHA256:          r.SHA256,
			ValidationScore: r.ValidationScore,
			IsPartial:       r.IsPartial,
			Status:          string(r.Status),
			Method:          string(r.Method),
			RecoveredAt:     r.DiscoveredAt.UTC().Format(time.RFC3339),
			Signature:       r.SignatureID,
			DrivePath:       r.SourceDevice,
		})
	}

	status := "complete"
	if result.Status != record.JobCompleted {
		status = string(result.Status)
	}

	return RecoveryManifest{
		ScanInfo: ScanInfo{
			Mode:                modeLabel(writeMode),
			Timestamp:           time.Now().UTC().Format(time.RFC3339),
			DrivePath:           drivePath,
			TotalSectorsScanned: result.BytesScanned / 512,
			ScanDurationSeconds: result.Duration.Seconds(),
			RecoveryMethod:      recoveryMethodLabel(result),
		},
		Statistics: Statistics{
			TotalFiles:     result.TotalFiles,
			TotalSizeBytes: totalSize,
			PartialFiles:   partial,
			DiskSpaceUsed:  totalSize,
			RecoveryStatus: status,
		},
		Files:       entries,
		isWriteMode: writeMode,
	}
}

func modeLabel(writeMode bool) string {
	if writeMode {
		return "write"
	}
	return "index_only"
}

func recoveryMethodLabel(result record.ScanResult) string {
	for _, r := range result.Records {
		return string(r.Method)
	}
	return "none"
}

// MarshalJSON implements the statistics field-name switch between
// total_files_recovered and total_files_indexed (spec.md §6).
func (m RecoveryManifest) MarshalJSON() ([]byte, error) {
	countField := "total_files_indexed"
	if m.isWriteMode {
		countField = "total_files_recovered"
	}

	raw := struct {
		ScanInfo   ScanInfo               `json:"scan_info"`
		Statistics map[string]interface{} `json:"statistics"`
		Files      []FileEntry            `json:"files"`
	}{
		ScanInfo: m.ScanInfo,
		Files:    m.Files,
		Statistics: map[string]interface{}{
			countField:          m.Statistics.TotalFiles,
			"total_size_bytes":  m.Statistics.TotalSizeBytes,
			"partial_files":     m.Statistics.PartialFiles,
			"disk_space_used":   m.Statistics.DiskSpaceUsed,
			"recovery_status":   m.Statistics.RecoveryStatus,
		},
	}
	return json.MarshalIndent(raw, "", "  ")
}

// WriteRecoveryManifest writes the manifest to scan_index.json or
// recovery_manifest.json inside outputDir depending on its write mode.
func WriteRecoveryManifest(outputDir string, m RecoveryManifest) (string, error) {
	name := "scan_index.json"
	if m.isWriteMode {
		name = "recovery_manifest.json"
	}
	return writeJSON(outputDir, name, m)
}

// manifestFileView is the on-disk shape of a whole manifest (scan_info
// plus the files array), used only for reading a manifest back in (the
// recover command's input).
type manifestFileView struct {
	ScanInfo ScanInfo `json:"scan_info"`
	Files    []FileEntry `json:"files"`
}

// LoadRecoveryManifest reads a scan_index.json or recovery_manifest.json
// file back into FileRecords the Extractor can consume.
func LoadRecoveryManifest(path string) ([]record.FileRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var view manifestFileView
	if err := json.Unmarshal(data, &view); err != nil {
		return nil, err
	}

	records := make([]record.FileRecord, 0, len(view.Files))
	for _, f := range view.Files {
		drivePath := f.DrivePath
		if drivePath == "" {
			drivePath = view.ScanInfo.DrivePath
		}
		records = append(records, record.FileRecord{
			Name:            f.Filename,
			Extension:       f.Extension,
			SizeBytes:       f.SizeBytes,
			SourceOffset:    f.Offset,
			SourceDevice:    drivePath,
			MD5:             f.MD5,
			SHA256:          f.SHA256,
			ValidationScore: f.ValidationScore,
			IsPartial:       f.IsPartial,
			Method:          record.Method(f.Method),
			Status:          record.Status(f.Status),
			SignatureID:     f.Signature,
		})
	}
	return records, nil
}

// ClusterMapEntry is one sampled cluster inside cluster_map.json.
type ClusterMapEntry struct {
	ClusterID    int    `json:"cluster_id"`
	Offset       int64  `json:"offset"`
	IsEmpty      bool   `json:"is_empty"`
	HexPreview   string `json:"hex_preview"`
	AsciiPreview string `json:"ascii_preview"`
}

// ClusterMap is cluster_map.json.
type ClusterMap struct {
	Statistics struct {
		TotalClusters  int `json:"total_clusters"`
		EmptyClusters  int `json:"empty_clusters"`
		UsedClusters   int `json:"used_clusters"`
	} `json:"statistics"`
	ClusterMap []ClusterMapEntry `json:"cluster_map"`
}

// BuildClusterMap converts diagnostics.ClusterSample results into the
// artifact schema, deriving an ASCII preview from each hex preview.
func BuildClusterMap(samples []diagnostics.ClusterSample) ClusterMap {
	var out ClusterMap
	for i, s := range samples {
		isEmpty := s.State == diagnostics.ClusterEmpty
		if isEmpty {
			out.Statistics.EmptyClusters++
		} else {
			out.Statistics.UsedClusters++
		}
		out.ClusterMap = append(out.ClusterMap, ClusterMapEntry{
			ClusterID:    i,
			Offset:       s.Offset,
			IsEmpty:      isEmpty,
			HexPreview:   s.Preview,
			AsciiPreview: asciiPreview(s.Preview),
		})
	}
	out.Statistics.TotalClusters = len(samples)
	return out
}

func asciiPreview(hexPreview string) string {
	var out []byte
	var cur byte
	var nibbles int
	for _, c := range hexPreview {
		var v byte
		switch {
		case c >= '0' && c <= '9':
			v = byte(c - '0')
		case c >= 'a' && c <= 'f':
			v = byte(c-'a') + 10
		default:
			continue
		}
		cur = cur<<4 | v
		nibbles++
		if nibbles == 2 {
			if cur >= 32 && cur < 127 {
				out = append(out, cur)
			} else {
				out = append(out, '.')
			}
			nibbles = 0
			cur = 0
		}
	}
	return string(out)
}

// WriteClusterMap writes cluster_map.json inside outputDir.
func WriteClusterMap(outputDir string, m ClusterMap) (string, error) {
	return writeJSON(outputDir, "cluster_map.json", m)
}

// HealthReportArtifact is health_report.json.
type HealthReportArtifact struct {
	DrivePath           string        `json:"drive_path"`
	ScanTime            string        `json:"scan_time"`
	SmartData           SmartSummary  `json:"smart_data"`
	HealthScore         int           `json:"health_score"`
	SurfaceMap          []int64       `json:"surface_map"`
	BadSectors          []int64       `json:"bad_sectors"`
	TotalSectorsTested  int64         `json:"total_sectors_tested"`
	Recommendations     []string      `json:"recommendations"`
	Checks              []string      `json:"checks"`
}

// SmartSummary is the smart_data sub-object.
type SmartSummary struct {
	Available          bool  `json:"available"`
	Passed             bool  `json:"passed"`
	ReallocatedSectors int64 `json:"reallocated_sectors"`
	PendingSectors     int64 `json:"pending_sectors"`
	PowerOnHours       int64 `json:"power_on_hours"`
	TemperatureCelsius int64 `json:"temperature_celsius"`
}

// BuildHealthReport composes health_report.json from a diagnostics.Run
// result.
func BuildHealthReport(drivePath string, report diagnostics.HealthReport) HealthReportArtifact {
	checks := []string{"surface_scan"}
	if report.Smart.Available {
		checks = append(checks, "smart_attributes")
	}

	return HealthReportArtifact{
		DrivePath: drivePath,
		ScanTime:  time.Now().UTC().Format(time.RFC3339),
		SmartData: SmartSummary{
			Available:          report.Smart.Available,
			Passed:             report.Smart.Passed,
			ReallocatedSectors: report.Smart.ReallocatedSectors,
			PendingSectors:     report.Smart.PendingSectors,
			PowerOnHours:       report.Smart.PowerOnHours,
			TemperatureCelsius: report.Smart.Temperature,
		},
		HealthScore:        report.Score,
		SurfaceMap:         surfaceMap(report),
		BadSectors:         report.SurfaceScan.BadSectors,
		TotalSectorsTested: report.SurfaceScan.SectorsChecked,
		Recommendations:    recommendationsFor(report),
		Checks:             checks,
	}
}

func surfaceMap(report diagnostics.HealthReport) []int64 {
	bad := make(map[int64]bool, len(report.SurfaceScan.BadSectors))
	for _, b := range report.SurfaceScan.BadSectors {
		bad[b] = true
	}
	out := make([]int64, 0, report.SurfaceScan.SectorsChecked)
	stride := report.SurfaceScan.StrideBytes
	for i := int64(0); i < report.SurfaceScan.SectorsChecked; i++ {
		offset := i * stride
		if bad[offset] {
			out = append(out, 1)
		} else {
			out = append(out, 0)
		}
	}
	return out
}

func recommendationsFor(report diagnostics.HealthReport) []string {
	var recs []string
	if len(report.SurfaceScan.BadSectors) > 0 {
		recs = append(recs, fmt.Sprintf("%d bad sector(s) detected; prioritize recovery before further use", len(report.SurfaceScan.BadSectors)))
	}
	if report.Smart.Available && !report.Smart.Passed {
		recs = append(recs, "SMART overall self-assessment failed; replace the drive soon")
	}
	if band := diagnostics.BandFor(report.Score); band == diagnostics.BandFair || band == diagnostics.BandPoor {
		recs = append(recs, fmt.Sprintf("health band %s (score %d); treat this device as failing", band, report.Score))
	}
	if len(recs) == 0 {
		recs = append(recs, "no anomalies detected")
	}
	return recs
}

// WriteHealthReport writes health_report.json inside outputDir.
func WriteHealthReport(outputDir string, r HealthReportArtifact) (string, error) {
	return writeJSON(outputDir, "health_report.json", r)
}

func writeJSON(outputDir, name string, v interface{}) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(outputDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}
