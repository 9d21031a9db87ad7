package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shubham/forensics/internal/record"
)

func writeSourceImage(t *testing.T, data []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "source.img")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestExtractCarvedRecordVerifiesHash(t *testing.T) {
	payload := []byte("recovered jpeg bytes")
	data := append(make([]byte, 512), payload...)
	srcPath := writeSourceImage(t, data)

	sum := sha256.Sum256(payload)
	rec := record.FileRecord{
		Name:         "photo.jpg",
		Extension:    "jpg",
		SizeBytes:    int64(len(payload)),
		SourceOffset: 512,
		SourceDevice: srcPath,
		SHA256:       hex.EncodeToString(sum[:]),
		Method:       record.MethodCarve,
		Status:       record.StatusIndexed,
	}

	outDir := t.TempDir()
	ext := New(outDir, record.ScanOptions{ValidateHashes: true, CreateSubdirectories: true})
	defer ext.Close()

	outcomes, err := ext.ExtractAll([]record.FileRecord{rec}, nil)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	require.Nil(t, outcomes[0].Failure)
	require.Equal(t, record.StatusRecovered, outcomes[0].Record.Status)

	written, readErr := os.ReadFile(outcomes[0].Written)
	require.NoError(t, readErr)
	require.Equal(t, payload, written)
}

func TestExtractDetectsHashMismatch(t *testing.T) {
	payload := []byte("tampered or truncated payload")
	srcPath := writeSourceImage(t, payload)

	rec := record.FileRecord{
		Name:         "doc.pdf",
		Extension:    "pdf",
		SizeBytes:    int64(len(payload)),
		SourceOffset: 0,
		SourceDevice: srcPath,
		SHA256:       "0000000000000000000000000000000000000000000000000000000000000",
		Method:       record.MethodCarve,
		Status:       record.StatusIndexed,
	}

	ext := New(t.TempDir(), record.ScanOptions{ValidateHashes: true})
	defer ext.Close()

	outcomes, err := ext.ExtractAll([]record.FileRecord{rec}, nil)
	require.Error(t, err)
	require.Len(t, outcomes, 1)
	require.NotNil(t, outcomes[0].Failure)
	require.Equal(t, FailureHashMismatch, outcomes[0].Failure.Kind)
}

func TestExtractReportsInvalidDeviceFailure(t *testing.T) {
	rec := record.FileRecord{
		Name:         "ghost.bin",
		SourceDevice: "/no/such/device-for-test",
		Method:       record.MethodCarve,
		SizeBytes:    10,
	}

	ext := New(t.TempDir(), record.ScanOptions{})
	defer ext.Close()

	outcomes, err := ext.ExtractAll([]record.FileRecord{rec}, nil)
	require.Error(t, err)
	require.Equal(t, FailureInvalidDevice, outcomes[0].Failure.Kind)
}
