// Package record holds the data model shared by every recovery component:
// FileRecord is the unit of result, ScanJob tracks an in-flight scan, and
// ScanResult is its terminal snapshot. See spec.md §3.
package record

import "time"

// Method identifies which component produced a FileRecord.
type Method string

const (
	MethodMFT    Method = "mft"
	MethodFAT32  Method = "fat32"
	MethodCarve  Method = "carving"
)

// Status is a FileRecord's position in its indexed -> recovered|failed
// lifecycle. Only the Extractor transitions a record out of StatusIndexed.
type Status string

const (
	StatusIndexed   Status = "indexed"
	StatusRecovered Status = "recovered"
	StatusFailed    Status = "failed"
)

// RecoveryChance is a presentation-layer derivation from ValidationScore and
// IsPartial (grounded on original_source/backend/app/models.py's
// RecoveredFile.recoveryChance). It never feeds back into recovery decisions.
type RecoveryChance string

const (
	ChanceHigh    RecoveryChance = "High"
	ChanceAverage RecoveryChance = "Average"
	ChanceLow     RecoveryChance = "Low"
	ChanceUnknown RecoveryChance = "Unknown"
)

// DeriveRecoveryChance maps a score/partial pair onto a human label.
func DeriveRecoveryChance(score int, isPartial bool) RecoveryChance {
	switch {
	case score <= 0:
		return ChanceUnknown
	case score >= 80 && !isPartial:
		return ChanceHigh
	case score >= 60:
		return ChanceAverage
	default:
		return ChanceLow
	}
}

// FileRecord is the unit of result produced by MftParser, FatParser, and
// Carver, and consumed by the Extractor. An "indexed" record has not been
// written to disk: it is a promise that, given SourceDevice and
// SourceOffset, the engine can reproduce bytes whose SHA-256 is SHA256.
type FileRecord struct {
	Name             string
	Extension        string
	SizeBytes        int64
	SourceOffset     int64
	SourceDevice     string
	MD5              string
	SHA256           string
	ValidationScore  int
	IsPartial        bool
	Method           Method
	Status           Status
	DiscoveredAt     time.Time
	OriginalFilename string
	DeclaredSize     int64
	SignatureID      string

	// Sector/Cluster/MFTIndex are optional provenance fields (grounded on
	// original_source/backend/app/models.py). The metadata parsers set
	// Cluster and MFTIndex; neither parser sets Sector.
	Sector   int64
	Cluster  uint32
	MFTIndex uint64

	RecoveredPath string
}

// RecoveryChance derives the presentation label from the record's own
// score and partial flag.
func (r *FileRecord) RecoveryChance() RecoveryChance {
	return DeriveRecoveryChance(r.ValidationScore, r.IsPartial)
}

// Strategy is the tagged variant of scan strategies an Orchestrator job can
// run (spec.md §9 "Dynamic dispatch ... becomes a small tagged variant").
type Strategy string

const (
	StrategyMetadata      Strategy = "metadata"
	StrategyCarving       Strategy = "carving"
	StrategyClusterSample Strategy = "cluster-sample"
	StrategySurfaceHealth Strategy = "surface-health"
)

// JobStatus is a ScanJob's lifecycle state.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobCancelled JobStatus = "cancelled"
	JobError     JobStatus = "error"
)

// CarvingMode controls whether the Carver writes bytes immediately or only
// indexes them for a later Extractor pass.
type CarvingMode string

const (
	CarvingIndexOnly CarvingMode = "index_only"
	CarvingWrite     CarvingMode = "write"
)

// FileCategory groups signatures for the `file_types` scan option.
type FileCategory string

const (
	CategoryImages    FileCategory = "images"
	CategoryDocuments FileCategory = "documents"
	CategoryVideos    FileCategory = "videos"
	CategoryAudio     FileCategory = "audio"
	CategoryArchives  FileCategory = "archives"
	CategoryDatabases FileCategory = "databases"
)

// CarvingPreset selects the active signature subset for a carving run.
type CarvingPreset string

const (
	PresetQuick     CarvingPreset = "quick"
	PresetDeep      CarvingPreset = "deep"
	PresetSelective CarvingPreset = "selective"
)

// ScanOptions configures a scan request (spec.md §6).
type ScanOptions struct {
	Strategy             Strategy
	FileTypes            []FileCategory
	OutputDir            string
	CarvingMode          CarvingMode
	CarvingPreset        CarvingPreset
	CreateSubdirectories bool
	ValidateHashes       bool
	FollowFATChain       bool // off-by-default per spec.md §9 Open Question (a)
}

// ScanJob is an in-flight or terminal scan (spec.md §3). Progress is
// monotonic non-decreasing except when reset to 0 on job start.
type ScanJob struct {
	ID          string
	Strategy    Strategy
	Target      string
	Options     ScanOptions
	Status      JobStatus
	Progress    float64
	FilesFound  int
	StartedAt   time.Time
	CompletedAt time.Time
}

// ScanResult is the terminal snapshot of a completed, cancelled, or errored
// job.
type ScanResult struct {
	JobID           string
	Duration        time.Duration
	BytesScanned    int64
	TotalFiles      int
	PartialFiles    int
	PerExtension    map[string]int
	Records         []FileRecord
	Status          JobStatus
	Err             error
}

// ProgressEvent is the schema streamed to subscribers (spec.md §6).
type ProgressEvent struct {
	JobID           string
	ProgressPercent float64
	SectorsScanned  int64
	TotalSectors    int64
	FilesFound      int
	ETA             time.Duration
	Phase           string
}
