// Package validate scores a carved candidate's structural plausibility
// (spec.md §4.3, component C3). Each per-format rule inspects the
// candidate bytes already in memory (the carver hands it a bounded
// window, never the whole device) and returns a 0-100 confidence score
// plus whether the candidate looks truncated.
package validate

import "bytes"

// Result is the outcome of validating one candidate.
type Result struct {
	Score     int
	IsPartial bool
}

const (
	baseScore       = 50
	footerBonus     = 30
	structuralBonus = 20
	minScore        = 0
	maxScore        = 100
)

// Rule validates one format's structural rules against the candidate
// bytes. footerFound tells the rule whether the carver already located
// the format's footer bytes within the candidate (it owns that search
// since it also needs the offset); the rule only adds structural bonus
// points on top.
type Rule func(data []byte, footerFound bool) Result

// Registry maps a signature ID (see internal/signature) to its rule.
var Registry = map[string]Rule{
	"jpeg":      validateJPEG,
	"png":       validatePNG,
	"pdf":       validatePDF,
	"zip":       validateZIPFamily,
	"docx":      validateOfficeDocument("word/", "document.xml"),
	"xlsx":      validateOfficeDocument("xl/", "workbook.xml"),
	"pptx":      validateOfficeDocument("ppt/", "presentation.xml"),
	"mp3-frame": validateMP3,
	"mp3-id3":   validateMP3,
	"wav":       validateWAV,
	"mp4":       validateISOBMFF,
	"mov":       validateISOBMFF,
	"avi":       validateAVI,
	"sqlite":    validateSQLite,
}

// Validate looks up id's rule and runs it, falling back to a bare
// base-score-only result (no structural rule exists for this format)
// when id is unregistered.
func Validate(id string, data []byte, footerFound bool) Result {
	if rule, ok := Registry[id]; ok {
		return rule(data, footerFound)
	}
	return clamp(Result{Score: baseScore, IsPartial: !footerFound})
}

func clamp(r Result) Result {
	if r.Score < minScore {
		r.Score = minScore
	}
	if r.Score > maxScore {
		r.Score = maxScore
	}
	return r
}

func withFooter(score int, footerFound bool) Result {
	if footerFound {
		score += footerBonus
	}
	return clamp(Result{Score: score, IsPartial: !footerFound})
}

// validateJPEG walks JPEG marker segments the way the standard decoder's
// scanning loop does, tolerating restart markers and fill bytes, and
// rewards a candidate whose segment structure stays well-formed all the
// way to wherever the carver stopped reading.
func validateJPEG(data []byte, footerFound bool) Result {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return clamp(Result{Score: 0, IsPartial: true})
	}
	score := baseScore
	i := 2
	wellFormed := true
	for i+4 <= len(data) {
		if data[i] != 0xFF {
			wellFormed = false
			break
		}
		marker := data[i+1]
		if marker == 0xD9 { // EOI
			break
		}
		if marker >= 0xD0 && marker <= 0xD7 { // restart markers carry no length
			i += 2
			continue
		}
		length := int(data[i+2])<<8 + int(data[i+3])
		if length < 2 {
			wellFormed = false
			break
		}
		i += 2 + length
	}
	if wellFormed {
		score += structuralBonus
	}
	return withFooter(score, footerFound)
}

// validatePNG confirms each chunk length field stays within bounds and
// that an IHDR chunk opens the stream, mirroring the chunked layout the
// PNG spec mandates.
func validatePNG(data []byte, footerFound bool) Result {
	if len(data) < 8+8 {
		return clamp(Result{Score: 0, IsPartial: true})
	}
	score := baseScore
	if bytes.Equal(data[12:16], []byte("IHDR")) {
		score += structuralBonus
	}

	i := 8
	wellFormed := true
	for i+8 <= len(data) {
		length := int(uint32(data[i])<<24 | uint32(data[i+1])<<16 | uint32(data[i+2])<<8 | uint32(data[i+3]))
		chunkType := data[i+4 : i+8]
		if length < 0 || length > len(data) {
			wellFormed = false
			break
		}
		i += 8 + length + 4 // length + type + data + crc
		if bytes.Equal(chunkType, []byte("IEND")) {
			break
		}
	}
	if !wellFormed {
		score -= 10
	}
	return withFooter(score, footerFound)
}

// validatePDF checks for a version header and a trailer dictionary,
// which most footer-terminated PDFs carry immediately before %%EOF.
func validatePDF(data []byte, footerFound bool) Result {
	if len(data) < 8 || !bytes.HasPrefix(data, []byte("%PDF-")) {
		return clamp(Result{Score: 0, IsPartial: true})
	}
	score := baseScore
	if bytes.Contains(data, []byte("trailer")) {
		score += structuralBonus
	}
	return withFooter(score, footerFound)
}

// validateZIPFamily looks for the end-of-central-directory record, the
// one structural feature every well-formed ZIP-based container carries
// regardless of which office document schema lives inside it.
func validateZIPFamily(data []byte, footerFound bool) Result {
	if len(data) < 4 || !bytes.HasPrefix(data, []byte{0x50, 0x4B, 0x03, 0x04}) {
		return clamp(Result{Score: 0, IsPartial: true})
	}
	score := baseScore
	if bytes.Contains(data, []byte{0x50, 0x4B, 0x01, 0x02}) { // central directory record
		score += structuralBonus
	}
	return withFooter(score, footerFound)
}

const (
	contentTypesWindow = 5 * 1024
	officeInnerWindow  = 10 * 1024
)

// validateOfficeDocument builds the Rule for one of the three ZIP-based
// Office Open XML formats (spec.md §4.3): on top of the shared ZIP-family
// central-directory check, it requires `[Content_Types].xml` within the
// first 5KB and the format's own package directory plus its primary part
// XML within the first 10KB, so a DOCX/XLSX/PPTX candidate is scored on
// its actual package contents instead of the generic ZIP structure every
// office container shares.
func validateOfficeDocument(dir, primaryXML string) Rule {
	return func(data []byte, footerFound bool) Result {
		base := validateZIPFamily(data, footerFound)
		if base.Score == 0 {
			return base
		}
		head := data[:min(len(data), contentTypesWindow)]
		if !bytes.Contains(head, []byte("[Content_Types].xml")) {
			return clamp(Result{Score: 0, IsPartial: true})
		}
		inner := data[:min(len(data), officeInnerWindow)]
		if !bytes.Contains(inner, []byte(dir)) || !bytes.Contains(inner, []byte(primaryXML)) {
			return clamp(Result{Score: 0, IsPartial: true})
		}
		base.Score += structuralBonus / 2
		return clamp(base)
	}
}

// validateMP3 accepts either an ID3 tag or a bare frame sync and checks
// that the first frame header's sync bits are intact.
func validateMP3(data []byte, footerFound bool) Result {
	score := baseScore
	if bytes.HasPrefix(data, []byte("ID3")) {
		score += structuralBonus / 2
	} else if len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0 {
		score += structuralBonus
	} else {
		return clamp(Result{Score: 0, IsPartial: true})
	}
	// MP3 has no footer marker; a full frame scan to end-of-stream is
	// out of scope here, so footerFound is always false for this format.
	return clamp(Result{Score: score, IsPartial: true})
}

// validateWAV confirms the RIFF/WAVE container and that the chunk size
// field in the RIFF header roughly matches the candidate length.
func validateWAV(data []byte, footerFound bool) Result {
	if len(data) < 12 || !bytes.HasPrefix(data, []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return clamp(Result{Score: 0, IsPartial: true})
	}
	score := baseScore
	declared := int(uint32(data[4]) | uint32(data[5])<<8 | uint32(data[6])<<16 | uint32(data[7])<<24)
	if declared > 0 && declared+8 <= len(data)+4096 {
		score += structuralBonus
	}
	return clamp(Result{Score: score, IsPartial: declared+8 > len(data)})
}

// validateISOBMFF checks for an ftyp box near the start, the feature
// shared by MP4, MOV, and every other ISO base media file format
// derivative.
func validateISOBMFF(data []byte, footerFound bool) Result {
	if len(data) < 12 || !bytes.Equal(data[4:8], []byte("ftyp")) {
		return clamp(Result{Score: 0, IsPartial: true})
	}
	score := baseScore + structuralBonus
	return clamp(Result{Score: score, IsPartial: true})
}

// validateAVI confirms the RIFF/AVI container and the presence of the
// hdrl list that every valid AVI stream opens with.
func validateAVI(data []byte, footerFound bool) Result {
	if len(data) < 12 || !bytes.HasPrefix(data, []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("AVI ")) {
		return clamp(Result{Score: 0, IsPartial: true})
	}
	score := baseScore
	if bytes.Contains(data[:min(len(data), 512)], []byte("hdrl")) {
		score += structuralBonus
	}
	return clamp(Result{Score: score, IsPartial: true})
}

// validateSQLite checks the fixed 16-byte magic string and that the page
// size field (a power of two between 512 and 65536, or 1 meaning 65536)
// is sane.
func validateSQLite(data []byte, footerFound bool) Result {
	if len(data) < 18 || !bytes.Equal(data[:16], []byte("SQLite format 3\x00")) {
		return clamp(Result{Score: 0, IsPartial: true})
	}
	pageSize := int(data[16])<<8 | int(data[17])
	score := baseScore
	if pageSize == 1 || (pageSize >= 512 && pageSize <= 65536 && pageSize&(pageSize-1) == 0) {
		score += structuralBonus
	}
	return clamp(Result{Score: score, IsPartial: true})
}
