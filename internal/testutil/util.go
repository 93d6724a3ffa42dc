package testutil

import (
	"bytes"
	"flag"
	"math"
	"os"
	"path/filepath"
	"testing"
)

var Update = flag.Bool(
	"update",
	false,
	"update golden files",
)

//
// --- Float helpers ---
//

// ApproxEqual checks if two float64 values are within tol of each other.
func ApproxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// AssertClose fails the test when got is not within tol of want.
func AssertClose(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if !ApproxEqual(got, want, tol) {
		t.Fatalf("%s: expected %.8f (±%g), got %.8f", name, want, tol, got)
	}
}

// AssertInRange fails the test when got is outside [lo, hi].
func AssertInRange(t *testing.T, name string, got, lo, hi float64) {
	t.Helper()
	if got < lo || got > hi {
		t.Fatalf("%s: expected value in [%g, %g], got %.8f", name, lo, hi, got)
	}
}

//
// --- Golden file helpers ---
//

func writeGolden(t *testing.T, name string, b []byte) {
	t.Helper()
	path := filepath.Join("testdata", name+".golden")

	if err := os.WriteFile(path, b, 0644); err != nil {
		t.Fatalf("failed to write golden file: %v", err)
	}
}

func loadGolden(t *testing.T, name string) []byte {
	t.Helper()
	path := filepath.Join("testdata", name+".golden")

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read golden file: %v", err)
	}
	return b
}

// CompareWithGolden compares actual against testdata/<name>.golden.
// Run the tests with -update to rewrite the golden file.
func CompareWithGolden(t *testing.T, name string, actual []byte) {
	t.Helper()

	if *Update {
		writeGolden(t, name, actual)
		return
	}

	expected := loadGolden(t, name)

	if !bytes.Equal(expected, actual) {
		t.Fatalf("golden mismatch for %s\nexpected:\n%s\nactual:\n%s",
			name, string(expected), string(actual))
	}
}
