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

// Package interlace implements the in-place transposition used to
// scatter burst errors across RS(255,223) codewords. A lace of ifactor
// 2 is an N x N matrix of codeword bytes; ifactor 3 an N x N x N cube.
// Transposing after encoding and before decoding means a contiguous
// run of corrupted bytes in the transmitted stream lands on different
// codewords instead of piling up on one, since trans2D/trans3D are
// their own inverse.
package interlace

// Factor is an interlacing factor: 1 (no interlacing), 2, or 3.
type Factor int

const (
	None  Factor = 1
	Two   Factor = 2
	Three Factor = 3
)

// Valid reports whether f is one of the three supported factors.
func (f Factor) Valid() bool {
	return f == None || f == Two || f == Three
}

// BlockSize returns the number of codewords per lace for this factor:
// 1, N, or N*N.
func (f Factor) BlockSize(n int) int {
	switch f {
	case Two:
		return n
	case Three:
		return n * n
	default:
		return 1
	}
}

// Apply transposes buf in place according to f, where buf holds n*n (f=2)
// or n*n*n (f=3) bytes laid out row-major. f==1 is a no-op. Applying Apply
// twice returns buf to its original contents.
func Apply(f Factor, buf []byte, n int) {
	switch f {
	case Two:
		trans2D(buf, n)
	case Three:
		trans3D(buf, n)
	}
}

// trans2D swaps mat[i][j] with mat[j][i] for i<j, transposing an n x n
// byte matrix in place.
func trans2D(mat []byte, n int) {
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			mat[i*n+j], mat[j*n+i] = mat[j*n+i], mat[i*n+j]
		}
	}
}

// trans3D swaps mat[a][b][c] with mat[c][b][a] for a<c, transposing an
// n x n x n byte cube in place across its first and last axes.
func trans3D(mat []byte, n int) {
	for a := 0; a < n; a++ {
		for b := 0; b < n; b++ {
			for c := a + 1; c < n; c++ {
				i1 := a*n*n + b*n + c
				i2 := c*n*n + b*n + a
				mat[i1], mat[i2] = mat[i2], mat[i1]
			}
		}
	}
}
