package shard

import (
	"bytes"
	"math/rand"
	"testing"

	"pgregory.net/rapid"
)

func encodeAll(t *testing.T, data []byte, d, p int) [][]byte {
	t.Helper()
	enc, err := NewEncoder(d, p)
	if err != nil {
		t.Fatalf("NewEncoder(%d,%d): %v", d, p, err)
	}
	payloads, _, err := enc.Encode(data)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	total := uint64(len(data))
	raw := make([][]byte, len(payloads))
	for i, pl := range payloads {
		hdr := WriteHeader(d, p, i, total, pl)
		raw[i] = append(append([]byte{}, hdr...), pl...)
	}
	return raw
}

func parseAll(t *testing.T, raw [][]byte) []*Candidate {
	t.Helper()
	out := make([]*Candidate, 0, len(raw))
	for i, r := range raw {
		c, err := Parse(r)
		if err != nil {
			t.Fatalf("Parse(shard %d): %v", i, err)
		}
		out = append(out, c)
	}
	return out
}

func TestRoundTripNoLoss(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	raw := encodeAll(t, data, 4, 2)
	cands := parseAll(t, raw)

	d, p, size, shardSize, kept, err := Consensus(cands)
	if err != nil {
		t.Fatalf("Consensus: %v", err)
	}
	out, err := Reconstruct(d, p, size, shardSize, kept)
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Fatalf("Reconstruct() = %q, want %q", out, data)
	}
}

func TestRoundTripWithPLossesTolerated(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB, 0xCD, 0xEF}, 500)
	d, p := 5, 3
	raw := encodeAll(t, data, d, p)

	// drop exactly p shards
	dropped := map[int]bool{1: true, 3: true, 6: true}
	var surviving [][]byte
	for i, r := range raw {
		if !dropped[i] {
			surviving = append(surviving, r)
		}
	}

	cands := parseAll(t, surviving)
	gotD, gotP, size, shardSize, kept, err := Consensus(cands)
	if err != nil {
		t.Fatalf("Consensus: %v", err)
	}
	out, err := Reconstruct(gotD, gotP, size, shardSize, kept)
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Fatalf("Reconstruct() mismatched original after losing %d shards", len(dropped))
	}
}

func TestTooManyLossesFails(t *testing.T) {
	data := []byte("a small file")
	d, p := 3, 2
	raw := encodeAll(t, data, d, p)

	// drop p+1 shards, leaving fewer than d
	surviving := raw[:d-1]
	cands := parseAll(t, surviving)

	_, _, _, _, _, err := Consensus(cands)
	if err == nil {
		t.Fatalf("Consensus succeeded with only %d shards (need %d)", len(surviving), d)
	}
}

func TestParseRejectsBadCRC(t *testing.T) {
	raw := encodeAll(t, []byte("hello"), 2, 1)[0]
	raw[len(raw)-1] ^= 0xFF
	if _, err := Parse(raw); err != ErrCRCMismatch {
		t.Fatalf("Parse(corrupted) = %v, want ErrCRCMismatch", err)
	}
}

func TestParseRejectsBadMagic(t *testing.T) {
	raw := encodeAll(t, []byte("hello"), 2, 1)[0]
	raw[0] = 'Y'
	if _, err := Parse(raw); err != ErrBadMagic {
		t.Fatalf("Parse(bad magic) = %v, want ErrBadMagic", err)
	}
}

func TestConsensusDropsMinority(t *testing.T) {
	data := []byte("consensus voting test payload")
	raw := encodeAll(t, data, 4, 2)
	cands := parseAll(t, raw)

	// tamper one shard's D field to a minority value
	cands[0].D = 99

	d, _, _, _, kept, err := Consensus(cands)
	if err != nil {
		t.Fatalf("Consensus: %v", err)
	}
	if d != 4 {
		t.Fatalf("Consensus picked D=%d, want majority 4", d)
	}
	for _, c := range kept {
		if c.Index == 0 {
			t.Fatalf("minority shard with tampered D was not dropped")
		}
	}
}

func TestConsensusDuplicateIndexFatal(t *testing.T) {
	data := []byte("dup index")
	raw := encodeAll(t, data, 3, 1)
	cands := parseAll(t, raw)
	dup := *cands[0]
	cands = append(cands, &dup)

	if _, _, _, _, _, err := Consensus(cands); err != ErrDuplicateIndex {
		t.Fatalf("Consensus(duplicate index) = %v, want ErrDuplicateIndex", err)
	}
}

func TestShardedRoundTripRapid(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		d := rapid.IntRange(1, 8).Draw(rt, "d")
		p := rapid.IntRange(1, 4).Draw(rt, "p")
		size := rapid.IntRange(0, 500).Draw(rt, "size")
		data := rapid.SliceOfN(rapid.Byte(), size, size).Draw(rt, "data")

		raw := make([][]byte, 0, d+p)
		enc, err := NewEncoder(d, p)
		if err != nil {
			rt.Fatalf("NewEncoder: %v", err)
		}
		payloads, _, err := enc.Encode(data)
		if err != nil {
			rt.Fatalf("Encode: %v", err)
		}
		for i, pl := range payloads {
			hdr := WriteHeader(d, p, i, uint64(len(data)), pl)
			raw = append(raw, append(append([]byte{}, hdr...), pl...))
		}

		r := rand.New(rand.NewSource(int64(d*1000 + p)))
		r.Shuffle(len(raw), func(i, j int) { raw[i], raw[j] = raw[j], raw[i] })
		keepCount := d + r.Intn(p+1)
		raw = raw[:keepCount]

		cands := make([]*Candidate, 0, len(raw))
		for _, rb := range raw {
			c, err := Parse(rb)
			if err != nil {
				rt.Fatalf("Parse: %v", err)
			}
			cands = append(cands, c)
		}

		gotD, gotP, size64, shardSize, kept, err := Consensus(cands)
		if err != nil {
			rt.Fatalf("Consensus: %v", err)
		}
		out, err := Reconstruct(gotD, gotP, size64, shardSize, kept)
		if err != nil {
			rt.Fatalf("Reconstruct: %v", err)
		}
		if !bytes.Equal(out, data) {
			rt.Fatalf("round trip mismatch: d=%d p=%d kept=%d", d, p, keepCount)
		}
	})
}
