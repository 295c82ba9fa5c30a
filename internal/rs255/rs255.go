// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package rs255 implements the systematic (255,223) Reed-Solomon code
// used by xpar's joint container: 223 data bytes protected by 32 parity
// bytes, correcting up to 16 byte errors per codeword via
// Berlekamp-Massey and Chien search. This is the BCH view of the code
// (as opposed to the matrix view used by package matrix/shard for
// erasure-only correction).
package rs255

import "github.com/kspalaiologos/xpar/internal/gf256"

const (
	// K is the number of data bytes per codeword.
	K = 223
	// T is the number of parity bytes per codeword.
	T = 32
	// N is the codeword length, K+T.
	N = K + T
)

// genPoly holds the 32 generator coefficients in increasing order of
// degree (genPoly[0] is the constant term); the leading, degree-32
// coefficient is always 1 in this field and is not stored. Its roots
// are alpha^1..alpha^32, the same roots syndromes() evaluates against.
// Built here as the product of those linear factors rather than
// hand-transcribed, so it can never drift out of sync with the field
// tables the rest of this package uses.
var genPoly [T]byte

func init() {
	poly := []byte{1}
	for i := 1; i <= T; i++ {
		root := gf256.AlphaPow(i)
		next := make([]byte, len(poly)+1)
		for j := range next {
			var lo, hi byte
			if j >= 1 {
				lo = poly[j-1]
			}
			if j < len(poly) {
				hi = gf256.Mul(root, poly[j])
			}
			next[j] = lo ^ hi
		}
		poly = next
	}
	copy(genPoly[:], poly[:T])
}

// prodGen[x][j] = x * genPoly[j], precomputed so encoding is a table
// lookup per register update instead of a field multiply.
var prodGen [256][T]byte

func init() {
	for x := 0; x < 256; x++ {
		for j := 0; j < T; j++ {
			prodGen[x][j] = gf256.Mul(byte(x), genPoly[j])
		}
	}
}

// Encode computes the systematic RS(255,223) codeword for a 223-byte
// data block: the output is the 223 data bytes followed by 32 parity
// bytes, obtained by polynomial division against the generator.
func Encode(data *[K]byte) (codeword [N]byte) {
	var reg [T]byte
	for i := K - 1; i >= 0; i-- {
		x := data[i] ^ reg[T-1]
		for j := T - 1; j > 0; j-- {
			reg[j] = reg[j-1] ^ prodGen[x][j]
		}
		reg[0] = prodGen[x][0]
	}
	copy(codeword[:K], data[:])
	copy(codeword[K:], reg[:])
	return codeword
}

// Decode corrects errors in a 255-byte codeword in place. It returns the
// number of symbols corrected, or -1 if the codeword has more than 16
// byte errors and cannot be reliably repaired.
func Decode(codeword *[N]byte) int {
	syn := syndromes(codeword)

	allZero := true
	for _, s := range syn {
		if s != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return 0
	}

	lambda, degLambda := berlekampMassey(syn)

	roots := chienSearch(lambda, degLambda)
	if len(roots) != degLambda {
		return -1
	}

	omega := errorEvaluator(syn, lambda, degLambda)

	for _, rt := range roots {
		var num byte
		for i := 0; i < T; i++ {
			num ^= gf256.Mul(gf256.AlphaPow(i*rt.k), omega[i])
		}

		var den byte
		for i := 0; i <= degLambda-1; i += 2 {
			den ^= gf256.Mul(gf256.AlphaPow(i*rt.k), lambda[i+1])
		}
		if den == 0 {
			return -1
		}

		magnitude := gf256.Div(num, den)
		codeword[rt.pos] ^= magnitude
	}

	return degLambda
}

// syndromes computes s[0..31], s[i] = sum_j data[j] * alpha^((i+1)*j),
// the textbook formula explicitly permitted by the specification in
// place of the accelerated batched variant.
func syndromes(codeword *[N]byte) [T]byte {
	var s [T]byte
	for i := 0; i < T; i++ {
		var acc byte
		root := i + 1
		for j := 0; j < N; j++ {
			acc ^= gf256.Mul(codeword[j], gf256.AlphaPow(root*j))
		}
		s[i] = acc
	}
	return s
}

// berlekampMassey derives the error-locator polynomial lambda from the
// syndromes, returning the coefficients (lambda[0]==1 always) and its
// degree. This is Massey's original shift-register synthesis algorithm
// run over GF(2^8): at each step a discrepancy is computed against the
// current connection polynomial, and the polynomial is updated from a
// retained "previous" polynomial b whenever doing so cannot decrease L
// below what's needed to explain the syndrome sequence so far.
func berlekampMassey(s [T]byte) (lambda [T + 1]byte, degLambda int) {
	var c, b [T + 1]byte
	c[0] = 1
	b[0] = 1
	l := 0
	m := 1
	lastDelta := byte(1)

	for n := 0; n < T; n++ {
		delta := s[n]
		for i := 1; i <= l; i++ {
			delta ^= gf256.Mul(c[i], s[n-i])
		}

		switch {
		case delta == 0:
			m++
		case 2*l <= n:
			t := c
			coef := gf256.Div(delta, lastDelta)
			for i := 0; i < len(b); i++ {
				if i+m < len(c) {
					c[i+m] ^= gf256.Mul(coef, b[i])
				}
			}
			l = n + 1 - l
			b = t
			lastDelta = delta
			m = 1
		default:
			coef := gf256.Div(delta, lastDelta)
			for i := 0; i < len(b); i++ {
				if i+m < len(c) {
					c[i+m] ^= gf256.Mul(coef, b[i])
				}
			}
			m++
		}
	}

	return c, l
}

// chienRoot pairs a located root index k (lambda(alpha^k)==0) with the
// codeword position it implicates.
type chienRoot struct {
	k   int
	pos int
}

// chienSearch evaluates lambda at alpha^k for an auxiliary index k that
// starts at 139 and advances by 139 modulo 255 (as in the reference
// implementation, which walks the 255 candidate roots in this order
// rather than 0..254 directly). Since gcd(139,255)=1 this still visits
// every residue exactly once. A root at k implicates codeword position
// (255-k) mod 255.
func chienSearch(lambda [T + 1]byte, degLambda int) []chienRoot {
	roots := make([]chienRoot, 0, degLambda)
	k := 0
	for i := 1; i <= 255 && len(roots) < degLambda; i++ {
		k = (k + 139) % 255
		acc := lambda[0]
		for j := 1; j <= degLambda; j++ {
			acc ^= gf256.Mul(lambda[j], gf256.AlphaPow(k*j))
		}
		if acc == 0 {
			pos := (255 - k) % 255
			roots = append(roots, chienRoot{k: k, pos: pos})
		}
	}
	return roots
}

// errorEvaluator computes omega[i] = sum_{j<=min(degLambda,i)} s[i-j]*lambda[j].
func errorEvaluator(s [T]byte, lambda [T + 1]byte, degLambda int) [T]byte {
	var omega [T]byte
	for i := 0; i < T; i++ {
		var acc byte
		for j := 0; j <= degLambda && j <= i; j++ {
			acc ^= gf256.Mul(s[i-j], lambda[j])
		}
		omega[i] = acc
	}
	return omega
}
