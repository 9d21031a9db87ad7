package fat32

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/shubham/forensics/internal/rawdevice"
)

func createFAT32Image(t *testing.T) string {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "fat32.img")

	bootSector := make([]byte, 512)
	bootSector[0] = 0xEB
	bootSector[1] = 0x58
	bootSector[2] = 0x90
	copy(bootSector[3:11], "MSDOS5.0")
	binary.LittleEndian.PutUint16(bootSector[11:13], 512)
	bootSector[13] = 8 // sectors per cluster
	binary.LittleEndian.PutUint16(bootSector[14:16], 32)
	bootSector[16] = 2 // num FATs
	binary.LittleEndian.PutUint16(bootSector[22:24], 0)
	binary.LittleEndian.PutUint32(bootSector[32:36], 2097152)
	binary.LittleEndian.PutUint32(bootSector[36:40], 2048) // FAT size 32
	binary.LittleEndian.PutUint32(bootSector[44:48], 2)    // root cluster
	copy(bootSector[82:90], "FAT32   ")
	bootSector[510] = 0x55
	bootSector[511] = 0xAA

	f, err := os.Create(tmpFile)
	if err != nil {
		t.Fatalf("failed to create FAT32 image: %v", err)
	}
	defer f.Close()

	f.Write(bootSector)
	f.Write(make([]byte, 10*1024*1024))

	return tmpFile
}

func TestNewParserReadsBootSector(t *testing.T) {
	imgPath := createFAT32Image(t)

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
	if parser.boot.RootCluster != 2 {
		t.Errorf("expected root cluster 2, got %d", parser.boot.RootCluster)
	}
	if parser.clusterSz != 512*8 {
		t.Errorf("expected cluster size %d, got %d", 512*8, parser.clusterSz)
	}
}

func TestDetectRejectsNonFAT32Image(t *testing.T) {
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
}

func TestParseShortName(t *testing.T) {
	tests := []struct {
		name      string
		input     []byte
		isDeleted bool
		expected  string
	}{
		{"simple name", []byte{'T', 'E', 'S', 'T', ' ', ' ', ' ', ' ', 'T', 'X', 'T'}, false, "TEST.TXT"},
		{"no extension", []byte{'F', 'O', 'L', 'D', 'E', 'R', ' ', ' ', ' ', ' ', ' '}, false, "FOLDER"},
		{"deleted file", []byte{0xE5, 'E', 'S', 'T', ' ', ' ', ' ', ' ', 'T', 'X', 'T'}, true, "?EST.TXT"},
		{"full name", []byte{'M', 'Y', 'F', 'I', 'L', 'E', '~', '1', 'D', 'O', 'C'}, false, "MYFILE~1.DOC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseShortName(tt.input, tt.isDeleted); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestParseLFNEntryDecodesUTF16Name(t *testing.T) {
	entry := make([]byte, 32)
	entry[0] = 0x41
	entry[11] = lfnAttribute

	name := "Hello"
	for i, r := range name {
		binary.LittleEndian.PutUint16(entry[1+i*2:], uint16(r))
	}
	binary.LittleEndian.PutUint16(entry[1+len(name)*2:], 0)

	if got := parseLFNEntry(entry); got != "Hello" {
		t.Errorf("expected 'Hello', got %q", got)
	}
}

func TestClusterToOffset(t *testing.T) {
	p := &Parser{dataStart: 1024 * 1024, clusterSz: 4096}

	tests := []struct {
		cluster  uint32
		expected int64
	}{
		{2, 1024 * 1024},
		{3, 1024*1024 + 4096},
		{10, 1024*1024 + 8*4096},
	}

	for _, tt := range tests {
		if got := p.clusterToOffset(tt.cluster); got != tt.expected {
			t.Errorf("cluster %d: expected offset %d, got %d", tt.cluster, tt.expected, got)
		}
	}
}

func TestScanDirectoryRejectsClusterBelowTwo(t *testing.T) {
	p := &Parser{clusterSz: 512}
	var entries []dirEntry
	visited := make(map[uint32]bool)
	clustersSeen := 0

	if err := p.scanDirectory(1, "", &entries, visited, &clustersSeen, nil, nil); err != nil {
		t.Fatalf("expected no error for a rejected low cluster, got %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries scanned from an unaddressable cluster, got %d", len(entries))
	}
}
