package validate

import "testing"

func TestValidateJPEGWellFormedWithFooter(t *testing.T) {
	data := []byte{
		0xFF, 0xD8, // SOI
		0xFF, 0xE0, 0x00, 0x04, 0x00, 0x00, // APP0, length 4, 2 bytes payload
		0xFF, 0xD9, // EOI
	}
	r := Validate("jpeg", data, true)
	if r.Score <= baseScore {
		t.Errorf("expected structural + footer bonus, got %d", r.Score)
	}
	if r.IsPartial {
		t.Error("footer was found, should not be partial")
	}
}

func TestValidateJPEGRejectsBadMagic(t *testing.T) {
	r := Validate("jpeg", []byte{0x00, 0x01, 0x02, 0x03}, false)
	if r.Score != 0 || !r.IsPartial {
		t.Errorf("expected zero score and partial, got %+v", r)
	}
}

func TestValidateZIPFamilyRewardsCentralDirectory(t *testing.T) {
	data := append([]byte{0x50, 0x4B, 0x03, 0x04}, make([]byte, 100)...)
	withCD := append(data, []byte{0x50, 0x4B, 0x01, 0x02}...)

	plain := Validate("zip", data, false)
	withCDResult := Validate("zip", withCD, false)
	if withCDResult.Score <= plain.Score {
		t.Errorf("expected central directory to raise score: %d vs %d", withCDResult.Score, plain.Score)
	}
}

func TestValidateDOCXRequiresPackageMarkers(t *testing.T) {
	plainZip := append([]byte{0x50, 0x4B, 0x03, 0x04}, []byte("no office markers here, just bytes")...)
	r := Validate("docx", plainZip, false)
	if r.Score != 0 {
		t.Errorf("expected plain zip bytes to fail docx validation, got %+v", r)
	}

	docx := append([]byte{0x50, 0x4B, 0x03, 0x04}, []byte("[Content_Types].xml")...)
	docx = append(docx, make([]byte, 64)...)
	docx = append(docx, []byte("word/document.xml")...)
	r = Validate("docx", docx, false)
	if r.Score == 0 {
		t.Errorf("expected docx package markers to validate, got %+v", r)
	}
}

func TestValidateXLSXRejectsDOCXMarkers(t *testing.T) {
	data := append([]byte{0x50, 0x4B, 0x03, 0x04}, []byte("[Content_Types].xml")...)
	data = append(data, []byte("word/document.xml")...)
	r := Validate("xlsx", data, false)
	if r.Score != 0 {
		t.Errorf("expected xlsx validation to reject docx-only markers, got %+v", r)
	}
}

func TestValidateSQLitePageSizePowerOfTwo(t *testing.T) {
	data := make([]byte, 20)
	copy(data, "SQLite format 3\x00")
	data[16] = 0x10
	data[17] = 0x00 // page size 4096
	r := Validate("sqlite", data, false)
	if r.Score < baseScore+structuralBonus {
		t.Errorf("expected power-of-two page size bonus, got %d", r.Score)
	}
}

func TestUnregisteredFormatFallsBackToBaseScore(t *testing.T) {
	r := Validate("unknown-format", []byte{1, 2, 3}, true)
	if r.Score != baseScore || r.IsPartial {
		t.Errorf("unexpected fallback result: %+v", r)
	}
}
