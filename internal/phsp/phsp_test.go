package phsp

import (
	"encoding/binary"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeSource(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoad_ASCII(t *testing.T) {
	path := writeSource(t, "source.txt", `# phase-space export
# columns: x y z dx dy dz energy type [weight]
0.0 0.0 -10.0 0 0 1 6.0 22
1.5 -2.5 -10.0 0.1 0.0 0.995 1.25 11 0.5

# trailing comment
-1.5 2.5 -10.0 0 0 1 0.511 -11
`)

	src, err := Load(path, false, discardLogger())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if src.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", src.Len())
	}

	first := src.At(0)
	if first.Type != 22 || first.Energy != 6.0 || first.PosZ != -10.0 {
		t.Errorf("first particle = %+v", first)
	}
	if first.Weight != 1.0 {
		t.Errorf("default weight = %v, want 1.0", first.Weight)
	}

	second := src.At(1)
	if second.Weight != 0.5 {
		t.Errorf("explicit weight = %v, want 0.5", second.Weight)
	}
	if src.At(2).Type != -11 {
		t.Errorf("third type = %d, want -11", src.At(2).Type)
	}
}

func TestLoad_ASCIISkipsMalformedRows(t *testing.T) {
	path := writeSource(t, "source.txt", `0 0 0 0 0 1 6.0 22
not a data row at all
1 1 1 0 0 1 3.0 22
0 0 0 0 0 1 banana 22
`)

	src, err := Load(path, false, discardLogger())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if src.Len() != 2 {
		t.Errorf("Len() = %d, want 2 valid rows", src.Len())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.txt"), false, discardLogger())
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func appendIAEARecord(b []byte, typeByte int8, e, x, y, z, u, v float32) []byte {
	b = append(b, byte(typeByte))
	for _, f := range []float32{e, x, y, z, u, v} {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(f))
	}
	return b
}

func TestLoad_IAEABinary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "source.phsp")
	headerPath := filepath.Join(dir, "source.header")

	var data []byte
	// Type 1 = photon, forward-going.
	data = appendIAEARecord(data, 1, 6.0, 1, 2, 3, 0.6, 0.8)
	// Negative type byte flips the reconstructed Z cosine.
	data = appendIAEARecord(data, -2, 1.5, 0, 0, 0, 0, 0)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.WriteFile(headerPath, []byte("IAEA header"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	src, err := Load(path, false, discardLogger())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if src.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", src.Len())
	}

	first := src.At(0)
	if first.Type != 22 {
		t.Errorf("type = %d, want 22 (photon)", first.Type)
	}
	// U=0.6, V=0.8 leaves no Z component.
	if math.Abs(first.DirZ) > 1e-9 {
		t.Errorf("DirZ = %v, want 0", first.DirZ)
	}

	second := src.At(1)
	if second.Type != 11 {
		t.Errorf("type = %d, want 11 (electron)", second.Type)
	}
	if second.DirZ != -1.0 {
		t.Errorf("DirZ = %v, want -1 for negative type byte", second.DirZ)
	}
}

func TestLoad_IAEATruncated(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "source.phsp")

	var data []byte
	data = appendIAEARecord(data, 1, 6.0, 0, 0, 0, 0, 0)
	data = append(data, 0x01, 0x02, 0x03) // partial record

	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "source.header"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Load(path, false, discardLogger()); err == nil {
		t.Fatal("expected error for truncated IAEA file")
	}
}

func TestCursor_NoCycle(t *testing.T) {
	path := writeSource(t, "source.txt", `0 0 0 0 0 1 1.0 22
0 0 0 0 0 1 2.0 22
0 0 0 0 0 1 3.0 22
`)
	src, err := Load(path, false, discardLogger())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	c := src.Cursor(0)
	var energies []float64
	for {
		p, ok := c.Next()
		if !ok {
			break
		}
		energies = append(energies, p.Energy)
	}
	if len(energies) != 3 {
		t.Fatalf("cursor yielded %d particles, want 3", len(energies))
	}
	if energies[0] != 1.0 || energies[2] != 3.0 {
		t.Errorf("energies = %v", energies)
	}
	// Exhausted for good without cycling.
	if _, ok := c.Next(); ok {
		t.Error("cursor should stay exhausted")
	}
}

func TestCursor_Cycle(t *testing.T) {
	path := writeSource(t, "source.txt", `0 0 0 0 0 1 1.0 22
0 0 0 0 0 1 2.0 22
`)
	src, err := Load(path, true, discardLogger())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	c := src.Cursor(1) // start mid-source
	want := []float64{2, 1, 2, 1, 2}
	for i, w := range want {
		p, ok := c.Next()
		if !ok {
			t.Fatalf("cycling cursor exhausted at %d", i)
		}
		if p.Energy != w {
			t.Errorf("particle %d energy = %v, want %v", i, p.Energy, w)
		}
	}
}

func TestCursor_StartWraps(t *testing.T) {
	path := writeSource(t, "source.txt", "0 0 0 0 0 1 1.0 22\n")
	src, err := Load(path, false, discardLogger())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// A start index beyond the source wraps instead of starting exhausted.
	if p, ok := src.Cursor(5).Next(); !ok || p.Energy != 1.0 {
		t.Errorf("Next() = %+v, %v", p, ok)
	}
}
