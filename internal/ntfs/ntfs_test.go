package ntfs

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/shubham/forensics/internal/rawdevice"
)

func createNTFSImage(t *testing.T) string {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "ntfs.img")

	bootSector := make([]byte, 512)
	bootSector[0] = 0xEB
	bootSector[1] = 0x52
	bootSector[2] = 0x90
	copy(bootSector[3:11], "NTFS    ")
	binary.LittleEndian.PutUint16(bootSector[11:13], 512)
	bootSector[13] = 8 // sectors per cluster
	binary.LittleEndian.PutUint64(bootSector[40:48], 2097152)
	binary.LittleEndian.PutUint64(bootSector[48:56], 100) // MFT cluster
	binary.LittleEndian.PutUint64(bootSector[56:64], 1000)
	bootSector[64] = 0xF6 // -10 -> 1024-byte MFT records
	bootSector[68] = 0xF6
	bootSector[510] = 0x55
	bootSector[511] = 0xAA

	f, err := os.Create(tmpFile)
	if err != nil {
		t.Fatalf("failed to create NTFS image: %v", err)
	}
	defer f.Close()

	f.Write(bootSector)
	f.Write(make([]byte, 10*1024*1024))

	return tmpFile
}

func TestNewParserReadsBootSector(t *testing.T) {
	imgPath := createNTFSImage(t)

	dev, err := rawdevice.Open(imgPath)
	if err != nil {
		t.Fatalf("failed to open image: %v", err)
	}
	defer dev.Close()

	parser, err := NewParser(dev)
	if err != nil {
		t.Fatalf("failed to create parser: %v", err)
	}

	if parser.boot.BytesPerSector != 512 {
		t.Errorf("expected 512 bytes per sector, got %d", parser.boot.BytesPerSector)
	}
	if parser.boot.SectorsPerCluster != 8 {
		t.Errorf("expected 8 sectors per cluster, got %d", parser.boot.SectorsPerCluster)
	}
	if parser.boot.MFTCluster != 100 {
		t.Errorf("expected MFT cluster 100, got %d", parser.boot.MFTCluster)
	}
	if parser.clusterSize != 4096 {
		t.Errorf("expected cluster size 4096, got %d", parser.clusterSize)
	}
	if parser.mftRecSize != 1024 {
		t.Errorf("expected MFT record size 1024, got %d", parser.mftRecSize)
	}
}

func TestDetectRejectsNonNTFSImage(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "plain.img")
	if err := os.WriteFile(path, make([]byte, 512), 0644); err != nil {
		t.Fatal(err)
	}
	dev, err := rawdevice.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer dev.Close()

	if Detect(dev) {
		t.Error("expected Detect to reject an all-zero image")
	}
	if _, err := NewParser(dev); err == nil {
		t.Error("expected NewParser to reject a non-NTFS image")
	}
}

func TestDecodeUTF16(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{"ascii", []byte{'H', 0, 'e', 0, 'l', 0, 'l', 0, 'o', 0}, "Hello"},
		{"empty", []byte{}, ""},
		{"single char", []byte{'A', 0}, "A"},
		{"filename with extension", []byte{'t', 0, 'e', 0, 's', 0, 't', 0, '.', 0, 't', 0, 'x', 0, 't', 0}, "test.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decodeUTF16(tt.input); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestParseDataRunsSingleRun(t *testing.T) {
	p := &Parser{clusterSize: 4096}

	attr := make([]byte, 64)
	binary.LittleEndian.PutUint16(attr[32:34], 40)
	attr[40] = 0x11 // 1 length byte, 1 offset byte
	attr[41] = 0x10 // 16 clusters
	attr[42] = 0x64 // LCN offset 100
	attr[43] = 0x00 // terminator

	runs, _, truncated := p.parseDataRuns(attr)
	if truncated {
		t.Error("did not expect truncation")
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if runs[0].LCN != 100 || runs[0].Length != 16 {
		t.Errorf("unexpected run: %+v", runs[0])
	}
}

func TestParseDataRunsEmpty(t *testing.T) {
	p := &Parser{clusterSize: 4096}
	attr := make([]byte, 64)
	binary.LittleEndian.PutUint16(attr[32:34], 40)
	attr[40] = 0x00

	runs, _, _ := p.parseDataRuns(attr)
	if len(runs) != 0 {
		t.Errorf("expected no runs, got %d", len(runs))
	}
}

func TestParseDataRunsEnforcesNonResidentCap(t *testing.T) {
	p := &Parser{clusterSize: 4096}
	attr := make([]byte, 64)
	binary.LittleEndian.PutUint16(attr[32:34], 40)
	attr[40] = 0x13 // 3 length bytes, 1 offset byte
	// length = 100000 clusters * 4096 bytes far exceeds the 100MB cap
	attr[41], attr[42], attr[43] = 0xA0, 0x86, 0x01 // 100000 in little-endian 3 bytes
	attr[44] = 0x01                                 // LCN offset 1

	runs, _, truncated := p.parseDataRuns(attr)
	if !truncated {
		t.Error("expected the run list to be marked truncated at the cap")
	}
	if len(runs) != 1 {
		t.Fatalf("expected exactly one capped run, got %d", len(runs))
	}
	total := runs[0].Length * uint64(p.clusterSize)
	if total > maxNonResidentBytes {
		t.Errorf("capped run still exceeds the cap: %d bytes", total)
	}
}

func TestPassesLeniencyCheckRejectsZeroedAndShortData(t *testing.T) {
	p := &Parser{clusterSize: 4096}

	tooShort := &entry{size: 50, residentData: make([]byte, 50)}
	if p.passesLeniencyCheck(tooShort) {
		t.Error("expected entry under 100 bytes to fail the leniency check")
	}

	allZero := &entry{size: 200, residentData: make([]byte, 200)}
	if p.passesLeniencyCheck(allZero) {
		t.Error("expected all-zero resident data to fail the leniency check")
	}

	real := make([]byte, 200)
	copy(real, "not zeroed content here")
	nonZero := &entry{size: 200, residentData: real}
	if !p.passesLeniencyCheck(nonZero) {
		t.Error("expected non-zero resident data of sufficient length to pass")
	}
}

func TestToRecordSetsValidationScore(t *testing.T) {
	e := &entry{name: "Notes.txt", size: 600, mftIndex: 42}
	rec := e.toRecord()
	if rec.ValidationScore != 100 {
		t.Errorf("expected MFT records to carry ValidationScore 100, got %d", rec.ValidationScore)
	}
	if rec.OriginalFilename != "Notes.txt" {
		t.Errorf("expected original filename to be preserved, got %q", rec.OriginalFilename)
	}
}

func TestReconstructPath(t *testing.T) {
	p := &Parser{
		byIndex: map[uint64]*entry{
			5:  {name: "", mftIndex: 5, parentRef: 5},
			10: {name: "Documents", mftIndex: 10, parentRef: 5},
			20: {name: "Work", mftIndex: 20, parentRef: 10},
			30: {name: "report.pdf", mftIndex: 30, parentRef: 20},
		},
	}

	tests := []struct {
		mftIndex uint64
		expected string
	}{
		{30, "Documents/Work/report.pdf"},
		{20, "Documents/Work"},
		{10, "Documents"},
	}

	for _, tt := range tests {
		if got := p.reconstructPath(tt.mftIndex); got != tt.expected {
			t.Errorf("MFT %d: expected %q, got %q", tt.mftIndex, tt.expected, got)
		}
	}
}
