// Package signature is the declarative file-format table (spec.md §4.2,
// component C2): header/footer/check byte sequences, the default max-size
// policy, and a multi-pattern matcher over them.
package signature

// Signature is one entry in the registry.
type Signature struct {
	ID           string
	Extension    string
	Header       []byte
	Footer       []byte
	Check        []byte // secondary structural marker, must appear within 1KB of the header
	HeaderOffset int    // e.g. ISO 9660 at 32769
	Important    bool
	MaxSize      int64 // default max-size policy for non-footer-terminated formats
}

// Carvable reports whether a signature can participate in carving: at
// least one of Header or Check must be present (spec.md §3 invariant).
// Formats with neither (e.g. raw text) are metadata-recovery only.
func (s Signature) Carvable() bool {
	return len(s.Header) > 0 || len(s.Check) > 0
}

// HasFooter reports whether this format is footer-terminated.
func (s Signature) HasFooter() bool {
	return len(s.Footer) > 0
}

const (
	mb = 1024 * 1024
	gb = 1024 * mb
)

// Registry holds the full set of known signatures, required by spec.md
// §4.2 to include at least: JPEG, PNG, PDF, the ZIP family (DOCX/XLSX/PPTX
// via their secondary check bytes), MP3 (FFFB and ID3 variants), WAV, MP4,
// AVI, MOV, SQLite, RAR, plus a further important=false set.
var Registry = New(builtinSignatures)

var builtinSignatures = []Signature{
	{ID: "jpeg", Extension: "jpg", Header: []byte{0xFF, 0xD8, 0xFF}, Footer: []byte{0xFF, 0xD9}, Important: true, MaxSize: 50 * mb},
	{ID: "png", Extension: "png", Header: []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, Footer: []byte{0x49, 0x45, 0x4E, 0x44, 0xAE, 0x42, 0x60, 0x82}, Important: true, MaxSize: 50 * mb},
	{ID: "pdf", Extension: "pdf", Header: []byte("%PDF-"), Footer: []byte("%%EOF"), Important: true, MaxSize: 500 * mb},

	{ID: "zip", Extension: "zip", Header: []byte{0x50, 0x4B, 0x03, 0x04}, Footer: []byte{0x50, 0x4B, 0x05, 0x06}, Important: true, MaxSize: gb},
	{ID: "docx", Extension: "docx", Header: []byte{0x50, 0x4B, 0x03, 0x04}, Footer: []byte{0x50, 0x4B, 0x05, 0x06}, Check: []byte("word/"), Important: true, MaxSize: 100 * mb},
	{ID: "xlsx", Extension: "xlsx", Header: []byte{0x50, 0x4B, 0x03, 0x04}, Footer: []byte{0x50, 0x4B, 0x05, 0x06}, Check: []byte("xl/"), Important: true, MaxSize: 100 * mb},
	{ID: "pptx", Extension: "pptx", Header: []byte{0x50, 0x4B, 0x03, 0x04}, Footer: []byte{0x50, 0x4B, 0x05, 0x06}, Check: []byte("ppt/"), Important: true, MaxSize: 500 * mb},

	{ID: "mp3-frame", Extension: "mp3", Header: []byte{0xFF, 0xFB}, Important: true, MaxSize: 100 * mb},
	{ID: "mp3-id3", Extension: "mp3", Header: []byte("ID3"), Important: true, MaxSize: 100 * mb},
	{ID: "wav", Extension: "wav", Header: []byte("RIFF"), Check: []byte("WAVE"), Important: true, MaxSize: 500 * mb},
	{ID: "mp4", Extension: "mp4", Header: []byte{0x00, 0x00, 0x00}, Check: []byte("ftyp"), Important: true, MaxSize: 4 * gb},
	{ID: "avi", Extension: "avi", Header: []byte("RIFF"), Check: []byte("AVI "), Important: true, MaxSize: 4 * gb},
	{ID: "mov", Extension: "mov", Header: []byte{0x00, 0x00, 0x00, 0x14, 0x66, 0x74, 0x79, 0x70}, Important: true, MaxSize: 4 * gb},
	{ID: "sqlite", Extension: "sqlite", Header: []byte("SQLite format 3\x00"), Check: []byte("sqlite_master"), Important: true, MaxSize: gb},
	{ID: "rar", Extension: "rar", Header: []byte{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07}, Important: true, MaxSize: gb},

	// important=false per spec.md §4.2
	{ID: "gif", Extension: "gif", Header: []byte("GIF8"), Footer: []byte{0x00, 0x3B}, MaxSize: 20 * mb},
	{ID: "bmp", Extension: "bmp", Header: []byte{0x42, 0x4D}, MaxSize: 50 * mb},
	{ID: "tiff-le", Extension: "tiff", Header: []byte{0x49, 0x49, 0x2A, 0x00}, MaxSize: 100 * mb},
	{ID: "tiff-be", Extension: "tiff", Header: []byte{0x4D, 0x4D, 0x00, 0x2A}, MaxSize: 100 * mb},
	{ID: "heic", Extension: "heic", Header: []byte{0x00, 0x00, 0x00}, Check: []byte("ftypheic"), MaxSize: 50 * mb},
	{ID: "psd", Extension: "psd", Header: []byte("8BPS"), MaxSize: 500 * mb},
	{ID: "7z", Extension: "7z", Header: []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}, MaxSize: gb},
	{ID: "iso", Extension: "iso", Header: []byte("CD001"), HeaderOffset: 32769, MaxSize: 4 * gb},
	{ID: "flac", Extension: "flac", Header: []byte("fLaC"), MaxSize: 500 * mb},
	{ID: "ogg", Extension: "ogg", Header: []byte("OggS"), MaxSize: 200 * mb},
	{ID: "m4a", Extension: "m4a", Header: []byte{0x00, 0x00, 0x00, 0x20, 0x66, 0x74, 0x79, 0x70, 0x4D, 0x34, 0x41}, MaxSize: 500 * mb},
	{ID: "wmv", Extension: "wmv", Header: []byte{0x30, 0x26, 0xB2, 0x75, 0x8E, 0x66, 0xCF, 0x11}, MaxSize: 4 * gb},
	{ID: "flv", Extension: "flv", Header: []byte{0x46, 0x4C, 0x56, 0x01}, MaxSize: 2 * gb},
	{ID: "mkv", Extension: "mkv", Header: []byte{0x1A, 0x45, 0xDF, 0xA3}, MaxSize: 4 * gb},
	{ID: "ico", Extension: "ico", Header: []byte{0x00, 0x00, 0x01, 0x00}, MaxSize: 10 * mb},
	{ID: "cur", Extension: "cur", Header: []byte{0x00, 0x00, 0x02, 0x00}, MaxSize: 10 * mb},
	{ID: "exe", Extension: "exe", Header: []byte{0x4D, 0x5A}, MaxSize: 500 * mb},
	{ID: "dll", Extension: "dll", Header: []byte{0x4D, 0x5A}, MaxSize: 500 * mb},
}

// ByCategory maps the `file_types` scan-option tags to signature IDs.
var ByCategory = map[string][]string{
	"images":    {"jpeg", "png", "gif", "bmp", "tiff-le", "tiff-be", "heic", "psd", "ico", "cur"},
	"documents": {"pdf", "docx", "xlsx", "pptx"},
	"videos":    {"mp4", "avi", "mov", "wmv", "flv", "mkv"},
	"audio":     {"mp3-frame", "mp3-id3", "wav", "flac", "ogg", "m4a"},
	"archives":  {"zip", "rar", "7z", "iso"},
	"databases": {"sqlite"},
}
