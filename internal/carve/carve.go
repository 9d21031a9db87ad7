// Package carve implements component C5, the signature carver: a
// streaming scan over a raw device that finds candidate file headers,
// validates their structure, deduplicates them, and either indexes or
// writes the results. Adapted from a single-pass, whole-signature-table
// carver that searched a fixed-size buffer byte by byte; here the scan
// is chunked with an overlap window so headers spanning a chunk boundary
// are never missed, and candidates are scored through internal/validate
// instead of accepted on sight.
package carve

import (
	"bytes"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/shubham/forensics/internal/forensicerr"
	"github.com/shubham/forensics/internal/rawdevice"
	"github.com/shubham/forensics/internal/record"
	"github.com/shubham/forensics/internal/signature"
	"github.com/shubham/forensics/internal/validate"
)

const (
	overlapSize    = 100 * 1024
	minChunkSize   = 1024 * 1024
	maxChunkSize   = 10 * 1024 * 1024
	smallDeviceSz  = 2 * 1024 * 1024
	checkWindowLen = 1024
	progressPeriod = time.Second

	defaultMaxCarveSize = 10 * 1024 * 1024
	dedupWindowBytes    = 512
	minCandidateSize    = 4 * 1024
	minAcceptScore      = 70

	maxSafetyCapBytes = 20 * 1024 * 1024 * 1024 // 20 GiB
)

// safetyCap returns the cumulative-accepted-bytes ceiling for write mode
// (spec.md §4.5 step 5): min(2 * device size, 20 GiB). index_only mode
// has no cap since no bytes are ever written during the scan itself.
func safetyCap(deviceSize int64) int64 {
	if deviceSize <= 0 {
		return maxSafetyCapBytes
	}
	cap := deviceSize * 2
	if cap > maxSafetyCapBytes || cap <= 0 {
		cap = maxSafetyCapBytes
	}
	return cap
}

// Options configures one carving pass.
type Options struct {
	Preset   record.CarvingPreset
	FileType []record.FileCategory // empty means every registered signature
	Mode     record.CarvingMode
}

// Progress is reported at most once per progressPeriod.
type Progress struct {
	BytesScanned int64
	TotalBytes   int64
	FilesFound   int
}

// Carver scans a device for signature-matched candidates.
type Carver struct {
	dev     *rawdevice.Device
	matcher *signature.Matcher
}

// New builds a Carver over dev using the package-level signature
// registry; the preset/category filter is applied per Scan call through
// Options.
func New(dev *rawdevice.Device) *Carver {
	return &Carver{dev: dev, matcher: signature.Registry}
}

// chunkSize picks a read window sized to roughly 1% of the process's
// current heap footprint, clamped to [1MiB, 10MiB], with a fixed 2MiB
// window for devices small enough that the clamp would outsize them.
func chunkSize(deviceSize int64) int {
	if deviceSize > 0 && deviceSize < smallDeviceSz {
		return 2 * 1024 * 1024
	}

	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	size := int64(stats.HeapSys) / 100
	if size < minChunkSize {
		size = minChunkSize
	}
	if size > maxChunkSize {
		size = maxChunkSize
	}
	return int(size)
}

func allowedSignatures(matcher *signature.Matcher, opts Options) []signature.Signature {
	if len(opts.FileType) == 0 {
		return matcher.All()
	}
	allowed := make(map[string]bool)
	for _, cat := range opts.FileType {
		for _, id := range signature.ByCategory[string(cat)] {
			allowed[id] = true
		}
	}
	var out []signature.Signature
	for _, s := range matcher.All() {
		if allowed[s.ID] {
			out = append(out, s)
		}
	}
	return out
}

// candidate is a header match awaiting validation/dedup.
type candidate struct {
	sig    signature.Signature
	offset int64
}

// Scan streams the device in overlapping chunks, finds candidate
// headers, validates and deduplicates them, and returns the surviving
// FileRecords plus a non-fatal error aggregate for any chunk reads that
// failed along the way. reportProgress is called at most once per
// second; it may be nil.
func (c *Carver) Scan(opts Options, cancelled *atomic.Bool, reportProgress func(Progress)) ([]record.FileRecord, error) {
	deviceSize, _ := c.dev.Size()
	cs := chunkSize(deviceSize)
	allowed := allowedSignatures(c.matcher, opts)
	scoped := signature.New(allowed)

	var records []record.FileRecord
	dedup := &dedupState{seenMD5: make(map[string]bool)}
	var errs *multierror.Error
	cap := safetyCap(deviceSize)

	var offset int64
	lastReport := time.Time{}

	for offset < deviceSize || deviceSize <= 0 {
		if cancelled != nil && cancelled.Load() {
			return records, forensicerr.Sentinel(forensicerr.Cancelled)
		}
		if opts.Mode == record.CarvingWrite && dedup.acceptedBytes >= cap {
			break // spec.md §4.5 step 5: safety cap breached, stop carving
		}

		readLen := int64(cs)
		if deviceSize > 0 && offset+readLen > deviceSize {
			readLen = deviceSize - offset
		}
		if readLen <= 0 {
			break
		}

		chunk, err := c.dev.ReadAt(offset, readLen)
		if err != nil {
			errs = multierror.Append(errs, err)
			offset += readLen
			continue
		}
		if len(chunk) == 0 {
			break
		}

		hits := findCandidates(chunk, offset, scoped)
		for _, cand := range hits {
			rec, ok := c.materialize(cand, opts, dedup, cap)
			if ok {
				records = append(records, rec)
			}
		}

		if reportProgress != nil && time.Since(lastReport) >= progressPeriod {
			reportProgress(Progress{BytesScanned: offset + int64(len(chunk)), TotalBytes: deviceSize, FilesFound: len(records)})
			lastReport = time.Now()
		}

		advance := len(chunk)
		if advance > overlapSize && (deviceSize <= 0 || offset+int64(len(chunk)) < deviceSize) {
			advance -= overlapSize
		}
		if advance <= 0 {
			advance = len(chunk)
		}
		offset += int64(advance)

		if deviceSize <= 0 && len(chunk) < cs {
			break // short read on an unbounded stream: reached the end
		}
	}

	for _, s := range allowed {
		if s.HeaderOffset == 0 {
			continue
		}
		window, err := c.dev.ReadAt(int64(s.HeaderOffset), int64(len(s.Header)))
		if err != nil || !bytes.Equal(window, s.Header) {
			continue
		}
		rec, ok := c.materialize(candidate{sig: s, offset: int64(s.HeaderOffset)}, opts, dedup, cap)
		if ok {
			records = append(records, rec)
		}
	}

	return records, errs.ErrorOrNil()
}

// findCandidates walks every byte position in chunk and, for each one
// that matches a registered header, resolves the single most specific
// signature via BestMatchAt rather than emitting one candidate per
// header-sharing signature: several formats share an identical header
// (the ZIP family's DOCX/XLSX/PPTX all key off PK\x03\x04), and taking
// every match would let the first, most generic one in registry order
// win at materialize time while dedup silently discards the rest at the
// same offset (spec.md §4.2's Check-byte disambiguation).
func findCandidates(chunk []byte, baseOffset int64, matcher *signature.Matcher) []candidate {
	var hits []candidate

	for i := 0; i < len(chunk); i++ {
		window := chunk[i:]
		checkWindow := window
		if len(checkWindow) > checkWindowLen {
			checkWindow = checkWindow[:checkWindowLen]
		}
		s, ok := matcher.BestMatchAt(window, checkWindow)
		if !ok {
			continue
		}
		if s.HeaderOffset > 0 {
			continue // checked separately below
		}
		hits = append(hits, candidate{sig: s, offset: baseOffset + int64(i)})
	}
	return hits
}

// dedupState carries the two independent dedup mechanisms spec.md §4.5
// calls for across the whole scan: an offset-window check (reject any
// candidate starting within dedupWindowBytes of an already-accepted
// one, so overlapping header hits on the same file collapse to the
// earliest) and an MD5-content check (reject exact duplicate bytes,
// e.g. the same file carved twice from different offsets).
type dedupState struct {
	acceptedOffsets []int64
	seenMD5         map[string]bool
	acceptedBytes   int64
}

func (d *dedupState) tooCloseToAccepted(offset int64) bool {
	for _, o := range d.acceptedOffsets {
		diff := offset - o
		if diff < 0 {
			diff = -diff
		}
		if diff < dedupWindowBytes {
			return true
		}
	}
	return false
}

// materialize reads the candidate's full window (bounded by its
// MaxSize), validates it, deduplicates it against already-accepted
// candidates, and converts it into a FileRecord. It returns ok=false
// for rejected or duplicate candidates.
func (c *Carver) materialize(cand candidate, opts Options, dedup *dedupState, cap int64) (record.FileRecord, bool) {
	if opts.Mode == record.CarvingWrite && dedup.acceptedBytes >= cap {
		return record.FileRecord{}, false
	}
	if dedup.tooCloseToAccepted(cand.offset) {
		return record.FileRecord{}, false
	}

	maxSize := cand.sig.MaxSize
	if maxSize <= 0 {
		maxSize = defaultMaxCarveSize
	}

	data, err := c.dev.ReadAt(cand.offset, maxSize)
	if err != nil || len(data) == 0 {
		return record.FileRecord{}, false
	}

	footerFound := false
	size := int64(len(data))
	if cand.sig.HasFooter() {
		idx := bytes.Index(data, cand.sig.Footer)
		if idx < 0 {
			// Footer-terminated formats are accepted only when the
			// footer is actually found (spec.md §4.5).
			return record.FileRecord{}, false
		}
		size = int64(idx) + int64(len(cand.sig.Footer))
		footerFound = true
		data = data[:size]
	}

	if size < minCandidateSize {
		return record.FileRecord{}, false
	}

	checkWindow := data
	if len(checkWindow) > checkWindowLen {
		checkWindow = checkWindow[:checkWindowLen]
	}
	if len(cand.sig.Check) > 0 && !bytes.Contains(checkWindow, cand.sig.Check) {
		return record.FileRecord{}, false
	}

	result := validate.Validate(cand.sig.ID, data, footerFound)
	if result.Score < minAcceptScore {
		return record.FileRecord{}, false
	}

	sum := md5.Sum(data)
	md5hex := hex.EncodeToString(sum[:])
	if dedup.seenMD5[md5hex] {
		return record.FileRecord{}, false
	}
	dedup.seenMD5[md5hex] = true
	dedup.acceptedOffsets = append(dedup.acceptedOffsets, cand.offset)
	dedup.acceptedBytes += size

	sha := sha256.Sum256(data)

	rec := record.FileRecord{
		Extension:       cand.sig.Extension,
		SizeBytes:       size,
		SourceOffset:    cand.offset,
		MD5:             md5hex,
		SHA256:          hex.EncodeToString(sha[:]),
		ValidationScore: result.Score,
		IsPartial:       result.IsPartial,
		Method:          record.MethodCarve,
		Status:          record.StatusIndexed,
		SignatureID:     cand.sig.ID,
		DiscoveredAt:    time.Now(),
	}
	return rec, true
}
