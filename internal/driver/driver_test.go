package driver

import (
	"bytes"
	"io"
	"testing"
)

func TestEncodeDecodeJointRoundTrip(t *testing.T) {
	input := []byte("driver-level joint round trip")
	var encoded bytes.Buffer
	if _, err := EncodeJoint(bytes.NewReader(input), &encoded, 1, 2); err != nil {
		t.Fatalf("EncodeJoint: %v", err)
	}
	var decoded bytes.Buffer
	if _, err := DecodeJoint(&encoded, &decoded, false, 2, nil); err != nil {
		t.Fatalf("DecodeJoint: %v", err)
	}
	if !bytes.Equal(decoded.Bytes(), input) {
		t.Fatalf("round trip mismatch: got %q want %q", decoded.Bytes(), input)
	}
}

func TestEncodeJointRejectsBadIfactor(t *testing.T) {
	var out bytes.Buffer
	if _, err := EncodeJoint(bytes.NewReader(nil), &out, 7, 1); err == nil {
		t.Fatalf("EncodeJoint accepted ifactor=7")
	}
}

func TestEncodeDecodeShardedRoundTrip(t *testing.T) {
	input := []byte("driver-level sharded round trip, a bit longer this time around")
	shards, err := EncodeSharded(bytes.NewReader(input), 4, 2)
	if err != nil {
		t.Fatalf("EncodeSharded: %v", err)
	}
	if len(shards) != 6 {
		t.Fatalf("EncodeSharded produced %d shards, want 6", len(shards))
	}

	// drop two shards, the maximum tolerable loss for 2 parity shards.
	keep := shards[2:]
	readers := make([]io.Reader, len(keep))
	for i, s := range keep {
		readers[i] = bytes.NewReader(s.Bytes)
	}

	var decoded bytes.Buffer
	if err := DecodeSharded(readers, &decoded, nil); err != nil {
		t.Fatalf("DecodeSharded: %v", err)
	}
	if !bytes.Equal(decoded.Bytes(), input) {
		t.Fatalf("sharded round trip mismatch: got %q want %q", decoded.Bytes(), input)
	}
}

func TestDecodeShardedFailsWithTooFewShards(t *testing.T) {
	input := []byte("not enough shards survive")
	shards, err := EncodeSharded(bytes.NewReader(input), 4, 2)
	if err != nil {
		t.Fatalf("EncodeSharded: %v", err)
	}
	readers := []io.Reader{bytes.NewReader(shards[0].Bytes), bytes.NewReader(shards[1].Bytes)}

	var decoded bytes.Buffer
	if err := DecodeSharded(readers, &decoded, nil); err == nil {
		t.Fatalf("DecodeSharded succeeded with only 2 of 4 required data shards")
	}
}
