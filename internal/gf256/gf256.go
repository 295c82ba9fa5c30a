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

// Package gf256 implements arithmetic over GF(2^8) = GF(2)[x]/(x^8+x^7+x^2+x+1),
// the field xpar's Reed-Solomon codes are built on.
//
// Tables are generated once, from the primitive element alpha=2 and the
// reduction polynomial 0x87, the way smode_gf256_gentab does it in the
// reference C implementation: walk the multiplicative group by repeated
// doubling and record the discrete log at each step.
package gf256

// EXP[l] = alpha^l for l in 0..254. EXP[255] is a zero sentinel, mirrored
// from LOG[0]=255, so that table-driven code never needs to special-case
// the additive identity.
var EXP [256]byte

// LOG[b] is the discrete log of b to the base alpha, for b in 1..255.
// LOG[0] = 255 is a sentinel (there is no discrete log of zero).
var LOG [256]byte

// PROD[a][b] = a*b in GF(2^8). PROD[0][*] and PROD[*][0] are zero.
var PROD [256][256]byte

// DP[i][j] = alpha^i * j, i.e. multiply-by-a-power-of-alpha. DP[255][j] = 0,
// matching the convention that EXP[255] is the zero sentinel.
var DP [256][256]byte

func init() {
	b := 1
	for l := 0; l < 255; l++ {
		EXP[l] = byte(b)
		LOG[byte(b)] = byte(l)
		b <<= 1
		if b >= 256 {
			b = (b - 256) ^ 0x87
		}
	}
	EXP[255] = 0
	LOG[0] = 255

	for a := 1; a < 256; a++ {
		for c := 1; c < 256; c++ {
			PROD[a][c] = EXP[(int(LOG[byte(a)])+int(LOG[byte(c)]))%255]
		}
	}

	for i := 0; i < 256; i++ {
		for j := 0; j < 256; j++ {
			if j == 0 || i == 255 {
				DP[i][j] = 0
				continue
			}
			DP[i][j] = EXP[(i+int(LOG[byte(j)]))%255]
		}
	}
}

// Mul returns a*b in GF(2^8).
func Mul(a, b byte) byte {
	return PROD[a][b]
}

// Div returns a/b in GF(2^8). The caller must ensure b != 0; division by
// zero is undefined in the field and is not checked here, matching the
// reference implementation's contract.
func Div(a, b byte) byte {
	if a == 0 {
		return 0
	}
	d := int(LOG[a]) - int(LOG[b])
	if d < 0 {
		d += 255
	}
	return EXP[d]
}

// Exp returns a^n in GF(2^8), by reducing n modulo the order of the
// multiplicative group (255) and looking up the result. a==0 is defined
// to be 0 for n>0 and 1 for n==0, following the C reference's gf256_exp.
func Exp(a byte, n int) byte {
	if n == 0 {
		return 1
	}
	if a == 0 {
		return 0
	}
	r := (int(LOG[a]) * n) % 255
	if r < 0 {
		r += 255
	}
	return EXP[r]
}

// Inv returns the multiplicative inverse of a. a must be non-zero.
func Inv(a byte) byte {
	return EXP[(255-int(LOG[a]))%255]
}

// AlphaPow returns alpha^e for the field's primitive element alpha,
// reducing e modulo the multiplicative group order (255) first so
// callers may pass arbitrarily large products of exponents (as the
// Vandermonde construction and the RS(255,223) decoder do).
func AlphaPow(e int) byte {
	e %= 255
	if e < 0 {
		e += 255
	}
	return EXP[e]
}
