package joint

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/kspalaiologos/xpar/internal/interlace"
	"pgregory.net/rapid"
)

func TestFileHeaderRoundTrip(t *testing.T) {
	for _, f := range []interlace.Factor{interlace.None, interlace.Two, interlace.Three} {
		hdr, err := BuildFileHeader(f)
		if err != nil {
			t.Fatalf("BuildFileHeader(%d): %v", f, err)
		}
		got, corrected, err := ParseFileHeader(hdr)
		if err != nil {
			t.Fatalf("ParseFileHeader(%d): %v", f, err)
		}
		if got != f {
			t.Fatalf("ParseFileHeader roundtrip = %d, want %d", got, f)
		}
		if corrected != 0 {
			t.Fatalf("unexpected corrections %d on a clean header", corrected)
		}
	}
}

func TestFileHeaderToleratesDamage(t *testing.T) {
	hdr, err := BuildFileHeader(interlace.Two)
	if err != nil {
		t.Fatalf("BuildFileHeader: %v", err)
	}
	// flip a handful of bytes within the RS(255,223) error-correction budget
	hdr[0] ^= 0xFF
	hdr[2] ^= 0xFF
	hdr[4] ^= 0xFF

	got, corrected, err := ParseFileHeader(hdr)
	if err != nil {
		t.Fatalf("ParseFileHeader(damaged): %v", err)
	}
	if got != interlace.Two {
		t.Fatalf("ParseFileHeader(damaged) = %d, want %d", got, interlace.Two)
	}
	if corrected == 0 {
		t.Fatalf("expected corrections to be reported for a damaged header")
	}
}

func TestEncodeDecodeRoundTripSmall(t *testing.T) {
	input := []byte("Hello, world! This is a small payload for xpar's joint container.")
	var encoded bytes.Buffer

	if _, err := Encode(bytes.NewReader(input), &encoded, Options{Ifactor: interlace.None}); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var decoded bytes.Buffer
	if _, err := Decode(&encoded, &decoded, Options{}); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(decoded.Bytes(), input) {
		t.Fatalf("round trip mismatch: got %q want %q", decoded.Bytes(), input)
	}
}

func TestEncodeDecodeRoundTripMultiLace(t *testing.T) {
	input := make([]byte, rs255K()*3+17)
	if _, err := rand.Read(input); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	var encoded bytes.Buffer
	if _, err := Encode(bytes.NewReader(input), &encoded, Options{Ifactor: interlace.None, Workers: 4}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var decoded bytes.Buffer
	if _, err := Decode(&encoded, &decoded, Options{Workers: 4}); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(decoded.Bytes(), input) {
		t.Fatalf("multi-lace round trip mismatch, got %d bytes want %d", decoded.Len(), len(input))
	}
}

func TestDecodeFailsOnCorruptionWithoutForce(t *testing.T) {
	input := []byte("a payload that will be corrupted in transit")
	var encoded bytes.Buffer
	if _, err := Encode(bytes.NewReader(input), &encoded, Options{Ifactor: interlace.None}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	corrupted := encoded.Bytes()
	// corrupt beyond the correction budget, inside the single codeword
	for i := FileHeaderSize; i < FileHeaderSize+18; i++ {
		corrupted[i] ^= 0xFF
	}
	var decoded bytes.Buffer
	if _, err := Decode(bytes.NewReader(corrupted), &decoded, Options{}); err == nil {
		t.Fatalf("Decode succeeded on an unrecoverable codeword without force")
	}
}

func TestDecodeForceRecoversBestEffort(t *testing.T) {
	input := []byte("a payload that will be corrupted in transit")
	var encoded bytes.Buffer
	if _, err := Encode(bytes.NewReader(input), &encoded, Options{Ifactor: interlace.None}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	corrupted := encoded.Bytes()
	for i := FileHeaderSize; i < FileHeaderSize+18; i++ {
		corrupted[i] ^= 0xFF
	}

	var warnings int
	var decoded bytes.Buffer
	if _, err := Decode(bytes.NewReader(corrupted), &decoded, Options{
		Force:     true,
		OnWarning: func(error) { warnings++ },
	}); err != nil {
		t.Fatalf("Decode(force): %v", err)
	}
	if warnings == 0 {
		t.Fatalf("expected at least one warning under force mode")
	}
}

func TestEncodeDecodeRoundTripRapid(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		size := rapid.IntRange(0, 2000).Draw(rt, "size")
		input := rapid.SliceOfN(rapid.Byte(), size, size).Draw(rt, "input")
		// ifactor=3 laces are 16MiB+; exercised separately in a fixed-size test instead.
		factor := interlace.Factor(rapid.SampledFrom([]int{1, 2}).Draw(rt, "ifactor"))

		var encoded bytes.Buffer
		if _, err := Encode(bytes.NewReader(input), &encoded, Options{Ifactor: factor}); err != nil {
			rt.Fatalf("Encode: %v", err)
		}
		var decoded bytes.Buffer
		if _, err := Decode(&encoded, &decoded, Options{}); err != nil {
			rt.Fatalf("Decode: %v", err)
		}
		if !bytes.Equal(decoded.Bytes(), input) {
			rt.Fatalf("round trip mismatch at size=%d ifactor=%d", size, factor)
		}
	})
}

func TestEncodeDecodeRoundTripIfactorThree(t *testing.T) {
	if testing.Short() {
		t.Skip("ifactor=3 laces are 16MiB+, skipped under -short")
	}
	input := []byte("burst-tolerant ifactor=3 lace, still just a small payload")
	var encoded bytes.Buffer
	if _, err := Encode(bytes.NewReader(input), &encoded, Options{Ifactor: interlace.Three, Workers: 8}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var decoded bytes.Buffer
	if _, err := Decode(&encoded, &decoded, Options{Workers: 8}); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(decoded.Bytes(), input) {
		t.Fatalf("ifactor=3 round trip mismatch")
	}
}

func rs255K() int { return 223 }
