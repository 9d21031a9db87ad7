// Package fat32 implements component C4's FAT32 directory parser: it walks
// directory clusters directly from a raw device, decodes long-file-name
// entries, and flags deleted 0xE5 entries. Adapted from a FAT32 walker
// that recovered files by assuming contiguous clusters after the first;
// here the walk produces record.FileRecord values, and the teacher's
// assume-contiguous policy becomes an explicit, off-by-default
// FollowFATChain choice handed in by the caller.
package fat32

import (
	"encoding/binary"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf16"

	"github.com/shubham/forensics/internal/forensicerr"
	"github.com/shubham/forensics/internal/rawdevice"
	"github.com/shubham/forensics/internal/record"
)

const (
	dirEntrySize     = 32
	deletedMarker    = 0xE5
	lfnAttribute     = 0x0F
	attrDirectory    = 0x10
	attrVolumeLabel  = 0x08
	clusterEndMarker = 0x0FFFFFF8

	progressEvery = 100
)

// BootSector holds the FAT32 boot sector fields this parser needs.
type BootSector struct {
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	FATSize32         uint32
	RootCluster       uint32
}

type dirEntry struct {
	name         string
	longName     string
	path         string
	firstCluster uint32
	size         uint32
	isDirectory  bool
	isDeleted    bool
}

// Parser walks FAT32 directory structures from a raw device.
type Parser struct {
	dev       *rawdevice.Device
	boot      BootSector
	fatStart  int64
	dataStart int64
	clusterSz int
	fatTable  []uint32
}

// Detect reports whether dev's boot sector looks like FAT32: the
// FAT32-only FATSize32 field populated while the legacy FATSize16 field
// is zero.
func Detect(dev *rawdevice.Device) bool {
	buf, err := dev.ReadAt(0, 512)
	if err != nil || len(buf) < 48 {
		return false
	}
	fatSize16 := binary.LittleEndian.Uint16(buf[22:24])
	fatSize32 := binary.LittleEndian.Uint32(buf[36:40])
	return fatSize16 == 0 && fatSize32 != 0
}

// NewParser reads the boot sector and resolves the FAT/data region
// offsets.
func NewParser(dev *rawdevice.Device) (*Parser, error) {
	buf, err := dev.ReadAt(0, 512)
	if err != nil {
		return nil, forensicerr.New(forensicerr.IoError, "failed to read boot sector", err)
	}
	if !Detect(dev) {
		return nil, forensicerr.Sentinel(forensicerr.FilesystemUnknown)
	}

	p := &Parser{dev: dev}
	p.boot.BytesPerSector = binary.LittleEndian.Uint16(buf[11:13])
	p.boot.SectorsPerCluster = buf[13]
	p.boot.ReservedSectors = binary.LittleEndian.Uint16(buf[14:16])
	p.boot.NumFATs = buf[16]
	p.boot.FATSize32 = binary.LittleEndian.Uint32(buf[36:40])
	p.boot.RootCluster = binary.LittleEndian.Uint32(buf[44:48])

	p.fatStart = int64(p.boot.ReservedSectors) * int64(p.boot.BytesPerSector)
	fatSize := int64(p.boot.FATSize32) * int64(p.boot.BytesPerSector)
	p.dataStart = p.fatStart + int64(p.boot.NumFATs)*fatSize
	p.clusterSz = int(p.boot.SectorsPerCluster) * int(p.boot.BytesPerSector)
	if p.clusterSz <= 0 {
		return nil, forensicerr.New(forensicerr.FilesystemUnknown, "invalid cluster size", nil)
	}

	if err := p.loadFAT(); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *Parser) loadFAT() error {
	fatSize := int(p.boot.FATSize32) * int(p.boot.BytesPerSector)
	buf, err := p.dev.ReadAt(p.fatStart, int64(fatSize))
	if err != nil {
		return forensicerr.New(forensicerr.IoError, "failed to read FAT", err)
	}

	p.fatTable = make([]uint32, len(buf)/4)
	for i := range p.fatTable {
		p.fatTable[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	return nil
}

func (p *Parser) clusterToOffset(cluster uint32) int64 {
	return p.dataStart + int64(cluster-2)*int64(p.clusterSz)
}

func (p *Parser) readCluster(cluster uint32) ([]byte, error) {
	return p.dev.ReadAt(p.clusterToOffset(cluster), int64(p.clusterSz))
}

// Scan walks the root directory tree, checking cancelled every
// progressEvery clusters visited. followChain does not change the walk:
// each record carries only its entry's first cluster, and following a
// deleted file's FAT chain past it (spec.md §9 Open Question (a), off by
// default) happens at extraction time in internal/extract.
func (p *Parser) Scan(followChain bool, cancelled *atomic.Bool, reportProgress func(scanned, found int)) ([]record.FileRecord, error) {
	var entries []dirEntry
	visited := make(map[uint32]bool)
	clustersSeen := 0

	err := p.scanDirectory(p.boot.RootCluster, "", &entries, visited, &clustersSeen, cancelled, reportProgress)
	if err != nil {
		return nil, err
	}

	results := make([]record.FileRecord, 0, len(entries))
	for _, e := range entries {
		results = append(results, e.toRecord())
	}
	return results, nil
}

func (p *Parser) scanDirectory(cluster uint32, path string, entries *[]dirEntry, visited map[uint32]bool, clustersSeen *int, cancelled *atomic.Bool, reportProgress func(scanned, found int)) error {
	for cluster != 0 && cluster < clusterEndMarker {
		if cluster < 2 {
			return nil // spec.md §4.1: reject start clusters below 2, they are not addressable data
		}
		if visited[cluster] {
			break
		}
		visited[cluster] = true

		*clustersSeen++
		if *clustersSeen%progressEvery == 0 {
			if cancelled != nil && cancelled.Load() {
				return forensicerr.Sentinel(forensicerr.Cancelled)
			}
			if reportProgress != nil {
				reportProgress(*clustersSeen, len(*entries))
			}
		}

		data, err := p.readCluster(cluster)
		if err != nil {
			return err
		}

		var lfnParts []string

		for i := 0; i+dirEntrySize <= len(data); i += dirEntrySize {
			raw := data[i : i+dirEntrySize]
			if raw[0] == 0x00 {
				break
			}

			if raw[11] == lfnAttribute {
				lfn := parseLFNEntry(raw)
				if raw[0]&0x40 != 0 {
					lfnParts = nil
				}
				lfnParts = append([]string{lfn}, lfnParts...)
				continue
			}

			if raw[11]&attrVolumeLabel != 0 {
				continue
			}

			isDeleted := raw[0] == deletedMarker
			isDir := raw[11]&attrDirectory != 0

			firstCluster := uint32(binary.LittleEndian.Uint16(raw[26:28])) |
				(uint32(binary.LittleEndian.Uint16(raw[20:22])) << 16)
			fileSize := binary.LittleEndian.Uint32(raw[28:32])

			shortName := parseShortName(raw[:11], isDeleted)
			longName := strings.Join(lfnParts, "")
			lfnParts = nil

			name := longName
			if name == "" {
				name = shortName
			}
			if name == "." || name == ".." {
				continue
			}

			e := dirEntry{
				name:         shortName,
				longName:     longName,
				path:         filepath.Join(path, name),
				firstCluster: firstCluster,
				size:         fileSize,
				isDirectory:  isDir,
				isDeleted:    isDeleted,
			}

			if isDeleted && !isDir && firstCluster >= 2 {
				*entries = append(*entries, e)
			}

			// Only recurse into live directories: a deleted directory's
			// clusters may already be reused by something else.
			if isDir && !isDeleted && firstCluster >= 2 {
				p.scanDirectory(firstCluster, e.path, entries, visited, clustersSeen, cancelled, reportProgress)
			}
			// followChain only changes how internal/extract walks the FAT
			// chain at recovery time; the directory walk itself only ever
			// needs the entry's first cluster.
			_ = followChain
		}

		if int(cluster) < len(p.fatTable) {
			cluster = p.fatTable[cluster]
		} else {
			break
		}
	}

	return nil
}

func parseLFNEntry(entry []byte) string {
	var chars []uint16
	for _, span := range [][2]int{{1, 5}, {14, 6}, {28, 2}} {
		off, count := span[0], span[1]
		for j := 0; j < count; j++ {
			c := binary.LittleEndian.Uint16(entry[off+j*2:])
			if c == 0 || c == 0xFFFF {
				break
			}
			chars = append(chars, c)
		}
	}
	return string(utf16.Decode(chars))
}

func parseShortName(name []byte, isDeleted bool) string {
	baseName := strings.TrimRight(string(name[:8]), " ")
	ext := strings.TrimRight(string(name[8:11]), " ")

	if isDeleted && len(baseName) > 0 {
		baseName = "?" + baseName[1:]
	}
	if ext != "" {
		return baseName + "." + ext
	}
	return baseName
}

func (e dirEntry) toRecord() record.FileRecord {
	name := e.longName
	if name == "" {
		name = e.name
	}
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	return record.FileRecord{
		Name:             e.path,
		Extension:        ext,
		SizeBytes:        int64(e.size),
		DeclaredSize:     int64(e.size),
		Method:           record.MethodFAT32,
		Status:           record.StatusIndexed,
		Cluster:          e.firstCluster,
		DiscoveredAt:     time.Now(),
		OriginalFilename: name,
	}
}

// ClusterSize returns the volume's cluster size in bytes.
func (p *Parser) ClusterSize() int { return p.clusterSz }

// ClusterOffset exposes clusterToOffset for internal/extract.
func (p *Parser) ClusterOffset(cluster uint32) int64 { return p.clusterToOffset(cluster) }

// maxChainBytes bounds ClusterChain the same way the MFT parser bounds
// a non-resident run: deleted-file FAT entries are frequently reused or
// corrupted, so a chain is never trusted past 100MB worth of clusters.
const maxChainBytes = 100 * 1024 * 1024

// ClusterChain walks the FAT starting at start and returns every cluster
// in the chain up to the end-of-chain marker, a cycle back to an already
// visited cluster, or the maxChainBytes cap (spec.md §9 Open Question (a)
// optional chain-following path; off by default via FollowFATChain).
func (p *Parser) ClusterChain(start uint32) []uint32 {
	var chain []uint32
	visited := make(map[uint32]bool)
	cluster := start
	maxClusters := maxChainBytes / p.clusterSz

	for cluster >= 2 && cluster < clusterEndMarker && !visited[cluster] {
		chain = append(chain, cluster)
		visited[cluster] = true
		if len(chain) >= maxClusters {
			break
		}
		if int(cluster) >= len(p.fatTable) {
			break
		}
		cluster = p.fatTable[cluster]
	}
	return chain
}
