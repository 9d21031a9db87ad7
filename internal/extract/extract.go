// Package extract implements component C7: on-demand materialization of
// an indexed FileRecord into bytes on disk, with SHA-256 verification
// against the hash computed when the record was discovered. Adapted
// from the teacher's RecoverFile methods (one per filesystem parser,
// each writing straight to an *os.File); here extraction is a single
// entry point that dispatches on FileRecord.Method and always verifies
// before declaring success.
package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/shubham/forensics/internal/fat32"
	"github.com/shubham/forensics/internal/ntfs"
	"github.com/shubham/forensics/internal/rawdevice"
	"github.com/shubham/forensics/internal/record"
)

// FailureKind classifies why an individual extraction failed (spec.md
// §6's recovery_manifest failure taxonomy).
type FailureKind string

const (
	FailureInvalidDevice FailureKind = "invalid_device"
	FailureReadError     FailureKind = "read_error"
	FailureNoData        FailureKind = "no_data"
	FailureHashMismatch  FailureKind = "hash_mismatch"
	FailureWriteError    FailureKind = "write_error"
)

// Failure pairs a FileRecord with why its extraction failed.
type Failure struct {
	Record record.FileRecord
	Kind   FailureKind
	Err    error
}

// Outcome is the terminal result of extracting one record.
type Outcome struct {
	Record  record.FileRecord
	Written string
	Failure *Failure
}

// Extractor reopens devices by identifier on demand and writes indexed
// records to an output directory, verifying hashes along the way.
type Extractor struct {
	OutputDir            string
	CreateSubdirectories bool
	ValidateHashes       bool
	FollowFATChain       bool

	devices map[string]*rawdevice.Device
}

// New returns an Extractor configured per the given scan options.
func New(outputDir string, opts record.ScanOptions) *Extractor {
	return &Extractor{
		OutputDir:            outputDir,
		CreateSubdirectories: opts.CreateSubdirectories,
		ValidateHashes:       opts.ValidateHashes,
		FollowFATChain:       opts.FollowFATChain,
		devices:              make(map[string]*rawdevice.Device),
	}
}

// Close releases every device this Extractor reopened.
func (e *Extractor) Close() error {
	var errs *multierror.Error
	for _, dev := range e.devices {
		if err := dev.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

func (e *Extractor) deviceFor(identifier string) (*rawdevice.Device, error) {
	if dev, ok := e.devices[identifier]; ok {
		return dev, nil
	}
	dev, err := rawdevice.Open(identifier)
	if err != nil {
		return nil, err
	}
	e.devices[identifier] = dev
	return dev, nil
}

// ExtractAll materializes every record, reporting progress once per
// record, and returns every per-record outcome plus an aggregate
// non-fatal error for any failures.
func (e *Extractor) ExtractAll(records []record.FileRecord, progress func(done, total int)) ([]Outcome, error) {
	var outcomes []Outcome
	var errs *multierror.Error

	for i, r := range records {
		outcome := e.extractOne(r)
		outcomes = append(outcomes, outcome)
		if outcome.Failure != nil {
			errs = multierror.Append(errs, outcome.Failure.Err)
		}
		if progress != nil {
			progress(i+1, len(records))
		}
	}

	return outcomes, errs.ErrorOrNil()
}

func (e *Extractor) extractOne(r record.FileRecord) Outcome {
	dev, err := e.deviceFor(r.SourceDevice)
	if err != nil {
		return fail(r, FailureInvalidDevice, err)
	}

	data, err := e.readRecordBytes(dev, r)
	if err != nil {
		return fail(r, FailureReadError, err)
	}
	if len(data) == 0 {
		return fail(r, FailureNoData, fmt.Errorf("no bytes recovered for %s", r.Name))
	}

	if e.ValidateHashes && r.SHA256 != "" {
		sum := sha256.Sum256(data)
		if hex.EncodeToString(sum[:]) != r.SHA256 {
			return fail(r, FailureHashMismatch, fmt.Errorf("sha256 mismatch for %s", r.Name))
		}
	}

	outPath := e.outputPathFor(r)
	if err := writeAtomic(outPath, data); err != nil {
		return fail(r, FailureWriteError, err)
	}

	r.Status = record.StatusRecovered
	r.RecoveredPath = outPath
	return Outcome{Record: r, Written: outPath}
}

// readRecordBytes dispatches on Method: carved records are already
// offset/size pairs into the device; MFT and FAT32 records resolve
// through their parser's cluster/run tables. An MFT record with resident
// $DATA has no runs, so it yields no bytes.
func (e *Extractor) readRecordBytes(dev *rawdevice.Device, r record.FileRecord) ([]byte, error) {
	switch r.Method {
	case record.MethodCarve:
		return dev.ReadAt(r.SourceOffset, r.SizeBytes)

	case record.MethodFAT32:
		p, err := fat32.NewParser(dev)
		if err != nil {
			return nil, err
		}
		if !e.FollowFATChain {
			// Default per spec.md §4.1: read sequentially from the start
			// cluster rather than trusting a deleted file's FAT chain.
			return dev.ReadAt(p.ClusterOffset(r.Cluster), r.SizeBytes)
		}
		return readClusterChain(dev, p, r.Cluster, r.SizeBytes)

	case record.MethodMFT:
		p, err := ntfs.NewParser(dev)
		if err != nil {
			return nil, err
		}
		runs := p.DataRunsFor(r.MFTIndex)
		return readDataRuns(dev, runs, p.ClusterSize(), r.SizeBytes)

	default:
		return nil, fmt.Errorf("unknown recovery method %q", r.Method)
	}
}

// readClusterChain reassembles a file's bytes by following its FAT chain
// cluster by cluster instead of the default sequential-from-start read,
// per the optional off-by-default behavior spec.md §9 Open Question (a)
// permits.
func readClusterChain(dev *rawdevice.Device, p *fat32.Parser, start uint32, size int64) ([]byte, error) {
	out := make([]byte, 0, size)
	for _, cluster := range p.ClusterChain(start) {
		if int64(len(out)) >= size {
			break
		}
		buf, err := dev.ReadAt(p.ClusterOffset(cluster), int64(p.ClusterSize()))
		if err != nil {
			return out, err
		}
		remaining := size - int64(len(out))
		if int64(len(buf)) > remaining {
			buf = buf[:remaining]
		}
		out = append(out, buf...)
	}
	return out, nil
}

func readDataRuns(dev *rawdevice.Device, runs []ntfs.DataRun, clusterSize int, size int64) ([]byte, error) {
	out := make([]byte, 0, size)
	for _, run := range runs {
		if int64(len(out)) >= size {
			break
		}
		if run.Sparse {
			remaining := size - int64(len(out))
			zeros := int64(run.Length) * int64(clusterSize)
			if zeros > remaining {
				zeros = remaining
			}
			out = append(out, make([]byte, zeros)...)
			continue
		}

		offset := run.LCN * int64(clusterSize)
		length := int64(run.Length) * int64(clusterSize)
		buf, err := dev.ReadAt(offset, length)
		if err != nil {
			return out, err
		}
		remaining := size - int64(len(out))
		if int64(len(buf)) > remaining {
			buf = buf[:remaining]
		}
		out = append(out, buf...)
	}
	return out, nil
}

func (e *Extractor) outputPathFor(r record.FileRecord) string {
	name := r.Name
	if name == "" {
		name = fmt.Sprintf("carved_%d.%s", r.SourceOffset, r.Extension)
	}
	if !e.CreateSubdirectories {
		return filepath.Join(e.OutputDir, filepath.Base(name))
	}
	sub := strings.ToUpper(r.Extension)
	if sub == "" {
		sub = "UNKNOWN"
	}
	return filepath.Join(e.OutputDir, sub, filepath.Base(name))
}

// writeAtomic writes data to a temp file in the destination directory
// and renames it into place, so a crash mid-write never leaves a
// half-written file at the final path.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".extract-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func fail(r record.FileRecord, kind FailureKind, err error) Outcome {
	r.Status = record.StatusFailed
	return Outcome{Record: r, Failure: &Failure{Record: r, Kind: kind, Err: err}}
}
