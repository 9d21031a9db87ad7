package signature

import "testing"

func TestRegistryMatchAtJPEG(t *testing.T) {
	window := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10}
	hits := Registry.MatchAt(window)
	if len(hits) != 1 || hits[0].ID != "jpeg" {
		t.Fatalf("expected exactly jpeg, got %+v", hits)
	}
}

func TestRegistryBestMatchDisambiguatesZipFamily(t *testing.T) {
	header := []byte{0x50, 0x4B, 0x03, 0x04}
	checkWindow := []byte("garbage garbage xl/worksheets/sheet1.xml")

	s, ok := Registry.BestMatchAt(header, checkWindow)
	if !ok {
		t.Fatal("expected a match")
	}
	if s.ID != "xlsx" {
		t.Errorf("expected xlsx disambiguation, got %s", s.ID)
	}
}

func TestRegistryBestMatchFallsBackToPlainZip(t *testing.T) {
	header := []byte{0x50, 0x4B, 0x03, 0x04}
	s, ok := Registry.BestMatchAt(header, []byte("no office markers here"))
	if !ok {
		t.Fatal("expected a match")
	}
	if s.ID != "zip" {
		t.Errorf("expected plain zip fallback, got %s", s.ID)
	}
}

func TestAllSignaturesCarvableOrMetadataOnly(t *testing.T) {
	for _, s := range Registry.All() {
		if !s.Carvable() {
			t.Errorf("signature %s has neither header nor check bytes", s.ID)
		}
	}
}

func TestByCategoryReferencesKnownSignatures(t *testing.T) {
	for category, ids := range ByCategory {
		for _, id := range ids {
			if _, ok := Registry.ByID(id); !ok {
				t.Errorf("category %s references unknown signature %s", category, id)
			}
		}
	}
}
