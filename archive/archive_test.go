package archive

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func genTone(n int) []int16 {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(12000 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	return samples
}

func TestEncodeProducesFlac(t *testing.T) {
	samples := genTone(blockSize*2 + 100) // exercises the short tail block
	data, err := Encode(samples, 16000)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) < 4 || string(data[:4]) != "fLaC" {
		t.Fatal("output does not start with FLAC magic")
	}
}

func TestArchiverSave(t *testing.T) {
	dir := t.TempDir()
	a, err := New(filepath.Join(dir, "utterances"), 16000)
	if err != nil {
		t.Fatal(err)
	}

	path, err := a.Save("abc123", genTone(4096))
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data[:4]) != "fLaC" {
		t.Fatal("archived file is not FLAC")
	}
}

func TestArchiverSaveEmpty(t *testing.T) {
	a, err := New(t.TempDir(), 16000)
	if err != nil {
		t.Fatal(err)
	}
	path, err := a.Save("abc123", nil)
	if err != nil || path != "" {
		t.Fatalf("path = %q err = %v, want no-op", path, err)
	}
}
