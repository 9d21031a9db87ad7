// Package diagnostics implements component C8: cluster sampling, a
// surface read-error scan, and SMART attribute aggregation, combined
// into a single health score. There is no diagnostics code in the
// teacher to adapt; it is grounded on the teacher's disk.Reader ReadAt
// pattern generalized to rawdevice.Device, plus go-humanize for
// formatting the device size in the health report. No SMART client library appears
// anywhere in the example pack, so SMART data collection shells out to
// smartctl the same way the teacher's deviceinfo package shells out to
// diskutil/lsblk.
package diagnostics

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"sync/atomic"

	"github.com/dustin/go-humanize"

	"github.com/shubham/forensics/internal/forensicerr"
	"github.com/shubham/forensics/internal/rawdevice"
)

const (
	sampleClusterSize = 4096
	maxSampledClusters = 1000
	previewBytes       = 64
)

// ClusterState classifies a sampled cluster.
type ClusterState string

const (
	ClusterEmpty ClusterState = "empty"
	ClusterUsed  ClusterState = "used"
)

// ClusterSample is one evenly spaced cluster inspected for the cluster
// map artifact.
type ClusterSample struct {
	Offset  int64
	State   ClusterState
	Preview string // hex dump of the first previewBytes bytes
}

// SampleClusters inspects up to maxSampledClusters evenly spaced
// 4KiB clusters across the device and classifies each as empty (all
// zero bytes) or used.
func SampleClusters(dev *rawdevice.Device) ([]ClusterSample, error) {
	size, ok := dev.Size()
	if !ok || size <= 0 {
		return nil, forensicerr.New(forensicerr.UnsupportedDevice, "device size unknown", nil)
	}

	totalClusters := size / sampleClusterSize
	if totalClusters == 0 {
		totalClusters = 1
	}
	step := totalClusters / maxSampledClusters
	if step < 1 {
		step = 1
	}

	var samples []ClusterSample
	for c := int64(0); c < totalClusters && len(samples) < maxSampledClusters; c += step {
		offset := c * sampleClusterSize
		buf, err := dev.ReadAt(offset, sampleClusterSize)
		if err != nil {
			continue
		}

		state := ClusterEmpty
		if !allZero(buf) {
			state = ClusterUsed
		}

		preview := buf
		if len(preview) > previewBytes {
			preview = preview[:previewBytes]
		}

		samples = append(samples, ClusterSample{
			Offset:  offset,
			State:   state,
			Preview: fmt.Sprintf("% x", preview),
		})
	}

	return samples, nil
}

func allZero(buf []byte) bool {
	for _, b := range buf {
		if b != 0 {
			return false
		}
	}
	return true
}

// SurfaceScanResult summarizes a pass over the device checking every
// stride-th sector for read errors.
type SurfaceScanResult struct {
	SectorsChecked int64
	BadSectors     []int64
	StrideBytes    int64
}

// SurfaceScan walks the device at a calibrated stride (1MiB, or size/100
// with a one-sector floor for devices under 100MiB) reading one sector at
// each stop and recording any offset that errors.
func SurfaceScan(dev *rawdevice.Device, cancelled *atomic.Bool) (SurfaceScanResult, error) {
	size, ok := dev.Size()
	if !ok || size <= 0 {
		return SurfaceScanResult{}, forensicerr.New(forensicerr.UnsupportedDevice, "device size unknown", nil)
	}

	stride := int64(1024 * 1024)
	if size < stride*100 {
		stride = size / 100
		if stride < int64(dev.SectorSize()) {
			stride = int64(dev.SectorSize())
		}
	}

	var result SurfaceScanResult
	result.StrideBytes = stride

	for offset := int64(0); offset < size; offset += stride {
		if cancelled != nil && cancelled.Load() {
			return result, forensicerr.Sentinel(forensicerr.Cancelled)
		}
		if _, err := dev.ReadAt(offset, int64(dev.SectorSize())); err != nil {
			result.BadSectors = append(result.BadSectors, offset)
		}
		result.SectorsChecked++
	}

	return result, nil
}

// SmartReport is the subset of `smartctl --json` output the health
// score formula consumes.
type SmartReport struct {
	Available         bool
	Passed            bool
	ReallocatedSectors int64
	PendingSectors     int64
	PowerOnHours       int64
	Temperature        int64
}

type smartctlOutput struct {
	SmartStatus struct {
		Passed bool `json:"passed"`
	} `json:"smart_status"`
	AtaSmartAttributes struct {
		Table []struct {
			ID    int    `json:"id"`
			Name  string `json:"name"`
			Raw   struct {
				Value int64 `json:"value"`
			} `json:"raw"`
		} `json:"table"`
	} `json:"ata_smart_attributes"`
	PowerOnTime struct {
		Hours int64 `json:"hours"`
	} `json:"power_on_time"`
	Temperature struct {
		Current int64 `json:"current"`
	} `json:"temperature"`
}

// CollectSmart shells out to `smartctl --json -a <device>`. If the
// binary is missing or the device does not support SMART, it returns a
// zero-value report with Available=false rather than an error: SMART is
// an optional signal, never a hard dependency of a scan.
func CollectSmart(devicePath string) SmartReport {
	cmd := exec.Command("smartctl", "--json", "-a", devicePath)
	out, err := cmd.Output()
	if err != nil && len(out) == 0 {
		return SmartReport{Available: false}
	}

	var parsed smartctlOutput
	if jsonErr := json.Unmarshal(out, &parsed); jsonErr != nil {
		return SmartReport{Available: false}
	}

	report := SmartReport{
		Available:    true,
		Passed:       parsed.SmartStatus.Passed,
		PowerOnHours: parsed.PowerOnTime.Hours,
		Temperature:  parsed.Temperature.Current,
	}
	for _, attr := range parsed.AtaSmartAttributes.Table {
		switch attr.ID {
		case 5: // Reallocated_Sector_Ct
			report.ReallocatedSectors = attr.Raw.Value
		case 197: // Current_Pending_Sector
			report.PendingSectors = attr.Raw.Value
		}
	}
	return report
}

// HealthReport is the composed result written to health_report.json.
type HealthReport struct {
	DeviceSizeHuman string
	SurfaceScan     SurfaceScanResult
	Smart           SmartReport
	Score           int
}

// Run executes a surface scan and SMART collection and composes the
// health score.
func Run(dev *rawdevice.Device, devicePath string, cancelled *atomic.Bool) (HealthReport, error) {
	surface, err := SurfaceScan(dev, cancelled)
	if err != nil {
		return HealthReport{}, err
	}
	smart := CollectSmart(devicePath)

	size, _ := dev.Size()
	return HealthReport{
		DeviceSizeHuman: humanize.Bytes(uint64(size)),
		SurfaceScan:     surface,
		Smart:           smart,
		Score:           Score(surface, smart),
	}, nil
}

// HealthBand is the status label a Score maps to (spec.md §4.8).
type HealthBand string

const (
	BandExcellent HealthBand = "Excellent"
	BandGood      HealthBand = "Good"
	BandFair      HealthBand = "Fair"
	BandPoor      HealthBand = "Poor"
)

// BandFor maps a 0-100 health score to its status band (spec.md §4.8:
// >=90 Excellent, >=70 Good, >=50 Fair, else Poor).
func BandFor(score int) HealthBand {
	switch {
	case score >= 90:
		return BandExcellent
	case score >= 70:
		return BandGood
	case score >= 50:
		return BandFair
	default:
		return BandPoor
	}
}

const highTemperatureCelsius = 60

// Score combines the surface scan and SMART report into a single 0-100
// health score per spec.md §4.8: starts at 100 and deducts up to 50 for
// bad sectors (5 per sector), up to 20 for reallocated sectors, up to 15
// for pending sectors, 5 if temperature exceeds 60C, and 25 if SMART
// reports an overall self-test failure (the closest local equivalent to
// the original's "critical warning" signal, since smartctl's `--json`
// output carries no NVMe critical-warning or media-error field on the
// ATA devices this client targets).
func Score(surface SurfaceScanResult, smart SmartReport) int {
	score := 100

	badPenalty := len(surface.BadSectors) * 5
	if badPenalty > 50 {
		badPenalty = 50
	}
	score -= badPenalty

	if smart.Available {
		reallocPenalty := int(smart.ReallocatedSectors)
		if reallocPenalty > 20 {
			reallocPenalty = 20
		}
		score -= reallocPenalty

		pendingPenalty := int(smart.PendingSectors)
		if pendingPenalty > 15 {
			pendingPenalty = 15
		}
		score -= pendingPenalty

		if smart.Temperature > highTemperatureCelsius {
			score -= 5
		}
		if !smart.Passed {
			score -= 25
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}
