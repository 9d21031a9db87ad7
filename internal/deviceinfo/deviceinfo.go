// Package deviceinfo enumerates block storage devices attached to the
// host, shelling out to each platform's native inventory tool the same
// way the teacher's device listing did. The hand-rolled byte-size
// formatter is replaced with go-humanize, which the rest of this module
// now depends on for every human-readable size.
package deviceinfo

import (
	"bufio"
	"bytes"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// Device describes one block device the host can see.
type Device struct {
	Path       string
	Name       string
	SizeBytes  int64
	SizeHuman  string
	Filesystem string
	Mountpoint string
	Removable  bool
}

// List returns every storage device visible to the current OS's native
// inventory tool.
func List() ([]Device, error) {
	switch runtime.GOOS {
	case "darwin":
		return listDarwin()
	case "linux":
		return listLinux()
	case "windows":
		return listWindows()
	default:
		return nil, fmt.Errorf("unsupported OS: %s", runtime.GOOS)
	}
}

func listDarwin() ([]Device, error) {
	cmd := exec.Command("diskutil", "list")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to run diskutil: %w", err)
	}

	var devices []Device
	scanner := bufio.NewScanner(bytes.NewReader(output))

	var currentDisk string
	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "/dev/disk") {
			parts := strings.Fields(line)
			if len(parts) >= 1 {
				currentDisk = strings.TrimSuffix(parts[0], ":")
			}
			continue
		}

		line = strings.TrimSpace(line)
		if len(line) == 0 || !strings.Contains(line, ":") || strings.HasPrefix(line, "#:") {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) < 4 {
			continue
		}

		deviceID := ""
		for _, p := range parts {
			if strings.HasPrefix(p, "disk") {
				deviceID = p
				break
			}
		}
		if deviceID == "" {
			continue
		}

		var sizeBytes int64
		for i, p := range parts {
			if i+1 < len(parts) {
				unit := parts[i+1]
				if unit == "KB" || unit == "MB" || unit == "GB" || unit == "TB" || unit == "B" {
					sizeBytes = parseSize(p, unit)
					break
				}
			}
		}

		fsType := ""
		name := deviceID
		if len(parts) >= 3 {
			fsType = parts[1]
			var nameParts []string
			for i := 2; i < len(parts)-2; i++ {
				nameParts = append(nameParts, parts[i])
			}
			if len(nameParts) > 0 {
				name = strings.Join(nameParts, " ")
			}
		}

		devices = append(devices, Device{
			Path:       "/dev/" + deviceID,
			Name:       name,
			SizeBytes:  sizeBytes,
			SizeHuman:  humanize.Bytes(uint64(sizeBytes)),
			Filesystem: fsType,
			Removable:  !strings.Contains(currentDisk, "internal"),
		})
	}

	return devices, nil
}

func listLinux() ([]Device, error) {
	cmd := exec.Command("lsblk", "-b", "-o", "NAME,SIZE,FSTYPE,MOUNTPOINT,RM", "-n", "-l")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to run lsblk: %w", err)
	}

	var devices []Device
	scanner := bufio.NewScanner(bytes.NewReader(output))

	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) < 2 {
			continue
		}

		name := parts[0]
		sizeBytes, _ := strconv.ParseInt(parts[1], 10, 64)

		fsType := ""
		if len(parts) >= 3 {
			fsType = parts[2]
		}
		mountpoint := ""
		if len(parts) >= 4 {
			mountpoint = parts[3]
		}
		removable := len(parts) >= 5 && parts[4] == "1"

		devices = append(devices, Device{
			Path:       "/dev/" + name,
			Name:       name,
			SizeBytes:  sizeBytes,
			SizeHuman:  humanize.Bytes(uint64(sizeBytes)),
			Filesystem: fsType,
			Mountpoint: mountpoint,
			Removable:  removable,
		})
	}

	return devices, nil
}

func listWindows() ([]Device, error) {
	cmd := exec.Command("powershell", "-Command",
		"Get-Disk | Select-Object Number,FriendlyName,Size,PartitionStyle | ConvertTo-Json")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to run Get-Disk: %w", err)
	}

	var devices []Device
	lines := strings.Split(string(output), "\n")
	for i, line := range lines {
		if !strings.Contains(line, "Number") {
			continue
		}
		fields := strings.SplitN(line, ":", 2)
		if len(fields) < 2 {
			continue
		}
		numStr := strings.Trim(strings.TrimSpace(fields[1]), ",")
		num, _ := strconv.Atoi(numStr)

		name := "Unknown"
		if i+1 < len(lines) && strings.Contains(lines[i+1], "FriendlyName") {
			nameFields := strings.SplitN(lines[i+1], ":", 2)
			if len(nameFields) == 2 {
				name = strings.Trim(strings.TrimSpace(nameFields[1]), `",`)
			}
		}

		devices = append(devices, Device{
			Path:      fmt.Sprintf(`\\.\PhysicalDrive%d`, num),
			Name:      name,
			SizeHuman: "unknown",
		})
	}

	return devices, nil
}

func parseSize(value, unit string) int64 {
	v, _ := strconv.ParseFloat(value, 64)
	switch unit {
	case "B":
		return int64(v)
	case "KB":
		return int64(v * 1024)
	case "MB":
		return int64(v * 1024 * 1024)
	case "GB":
		return int64(v * 1024 * 1024 * 1024)
	case "TB":
		return int64(v * 1024 * 1024 * 1024 * 1024)
	}
	return 0
}
