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

// Package matrix implements dense matrices over GF(256) and the
// Vandermonde-based systematic encoder matrix construction that
// package shard builds its erasure code on top of. The representation
// follows the klauspost/reedsolomon matrix type used (via kcp-go's FEC
// layer) elsewhere in this module's dependency tree: a matrix is a
// slice of row slices, so swapping two rows during Gauss-Jordan
// elimination is a slice-header swap, not a byte copy.
package matrix

import (
	"errors"

	"github.com/templexxx/xorsimd"

	"github.com/kspalaiologos/xpar/internal/gf256"
)

// ErrSingular is returned by Invert when the matrix has no inverse.
var ErrSingular = errors.New("matrix: singular, cannot invert")

// ErrNotSquare is returned by operations that require a square matrix.
var ErrNotSquare = errors.New("matrix: not square")

// ErrSizeMismatch is returned when matrix dimensions are incompatible
// for the requested operation.
var ErrSizeMismatch = errors.New("matrix: size mismatch")

// Matrix is a dense r x c matrix over GF(256), stored row-major with
// one []byte per row.
type Matrix [][]byte

// New allocates a zero r x c matrix.
func New(rows, cols int) Matrix {
	m := make(Matrix, rows)
	buf := make([]byte, rows*cols)
	for i := range m {
		m[i] = buf[i*cols : (i+1)*cols]
	}
	return m
}

// Rows returns the number of rows.
func (m Matrix) Rows() int { return len(m) }

// Cols returns the number of columns, or 0 for an empty matrix.
func (m Matrix) Cols() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

// Identity returns the n x n identity matrix.
func Identity(n int) Matrix {
	m := New(n, n)
	for i := 0; i < n; i++ {
		m[i][i] = 1
	}
	return m
}

// Vandermonde returns the rows x cols Vandermonde matrix V[i][j] =
// alpha^(i*j), with the convention alpha^0 = 1 for all i (including
// i==0) and alpha^n = 0 for a base of 0 when the exponent n>0 -- i.e.
// row 0 is always all-ones, and within a row, column 0 is always 1.
// rows may be at most 255, the number of distinct powers of alpha, so
// that no two rows repeat.
func Vandermonde(rows, cols int) (Matrix, error) {
	if rows > 255 {
		return nil, ErrSizeMismatch
	}
	v := New(rows, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v[i][j] = gf256.AlphaPow(i * j)
		}
	}
	return v, nil
}

// Sub returns the rowOff..rowOff+rows, colOff..colOff+cols submatrix of
// m as a freshly allocated matrix.
func (m Matrix) Sub(rowOff, colOff, rows, cols int) (Matrix, error) {
	if rowOff+rows > m.Rows() || colOff+cols > m.Cols() {
		return nil, ErrSizeMismatch
	}
	out := New(rows, cols)
	for i := 0; i < rows; i++ {
		copy(out[i], m[rowOff+i][colOff:colOff+cols])
	}
	return out, nil
}

// Mul returns m*other.
func (m Matrix) Mul(other Matrix) (Matrix, error) {
	if m.Cols() != other.Rows() {
		return nil, ErrSizeMismatch
	}
	out := New(m.Rows(), other.Cols())
	term := make([]byte, other.Cols())
	for r := 0; r < m.Rows(); r++ {
		for k := 0; k < m.Cols(); k++ {
			a := m[r][k]
			if a == 0 {
				continue
			}
			row := PROD_ROW(a, other[k])
			copy(term, row)
			xorsimd.Bytes(out[r], out[r], term)
		}
	}
	return out, nil
}

// PROD_ROW returns a slice with PROD[a][row[j]] for every column j,
// the per-scalar row multiply used while accumulating matrix products
// and while combining data shards into a parity row.
func PROD_ROW(a byte, row []byte) []byte {
	out := make([]byte, len(row))
	lut := gf256.DP[gf256.LOG[a]]
	for j, v := range row {
		out[j] = lut[v]
	}
	return out
}

// ConcatRows appends a to b's rows, returning a new matrix of
// a.Rows()+b.Rows() rows. Both must share the same column count.
func ConcatRows(a, b Matrix) (Matrix, error) {
	if a.Cols() != b.Cols() {
		return nil, ErrSizeMismatch
	}
	out := make(Matrix, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out, nil
}

// SwapRows swaps rows i and j in place. This is O(1): it exchanges the
// two row slice headers, not their contents.
func (m Matrix) SwapRows(i, j int) {
	m[i], m[j] = m[j], m[i]
}

// Transpose returns the transpose of a square matrix.
func (m Matrix) Transpose() (Matrix, error) {
	n := m.Rows()
	if n != m.Cols() {
		return nil, ErrNotSquare
	}
	out := New(n, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out[j][i] = m[i][j]
		}
	}
	return out, nil
}

// Invert computes the inverse of a square matrix via Gauss-Jordan
// elimination over GF(256), returning ErrSingular if m has no inverse.
func (m Matrix) Invert() (Matrix, error) {
	n := m.Rows()
	if n != m.Cols() {
		return nil, ErrNotSquare
	}

	work := New(n, n)
	for i := range m {
		copy(work[i], m[i])
	}
	inv := Identity(n)

	for col := 0; col < n; col++ {
		if work[col][col] == 0 {
			swapped := false
			for row := col + 1; row < n; row++ {
				if work[row][col] != 0 {
					work.SwapRows(col, row)
					inv.SwapRows(col, row)
					swapped = true
					break
				}
			}
			if !swapped {
				return nil, ErrSingular
			}
		}

		pivInv := gf256.Inv(work[col][col])
		scaleRow(work[col], pivInv)
		scaleRow(inv[col], pivInv)

		for row := 0; row < n; row++ {
			if row == col {
				continue
			}
			factor := work[row][col]
			if factor == 0 {
				continue
			}
			eliminate(work[row], work[col], factor)
			eliminate(inv[row], inv[col], factor)
		}
	}

	return inv, nil
}

func scaleRow(row []byte, factor byte) {
	lut := gf256.DP[gf256.LOG[factor]]
	for i, v := range row {
		row[i] = lut[v]
	}
}

// eliminate does dst ^= factor*src, the row operation used to zero out
// a pivot column during Gauss-Jordan elimination. The XOR-accumulate is delegated to xorsimd the way
// kcp-go's FEC path accelerates its erasure-coding XORs.
func eliminate(dst, src []byte, factor byte) {
	lut := gf256.DP[gf256.LOG[factor]]
	scaled := make([]byte, len(src))
	for i, v := range src {
		scaled[i] = lut[v]
	}
	xorsimd.Bytes(dst, dst, scaled)
}
