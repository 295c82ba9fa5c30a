package matrix

import (
	"testing"

	"github.com/kspalaiologos/xpar/internal/gf256"
)

func TestIdentityIsNeutralForMul(t *testing.T) {
	v, err := Vandermonde(6, 4)
	if err != nil {
		t.Fatalf("Vandermonde: %v", err)
	}
	id := Identity(4)
	out, err := v.Mul(id)
	if err != nil {
		t.Fatalf("Mul: %v", err)
	}
	for i := range v {
		for j := range v[i] {
			if out[i][j] != v[i][j] {
				t.Fatalf("V*I != V at [%d][%d]", i, j)
			}
		}
	}
}

func TestVandermondeFirstRowAndColumn(t *testing.T) {
	v, err := Vandermonde(5, 5)
	if err != nil {
		t.Fatalf("Vandermonde: %v", err)
	}
	for j := 0; j < 5; j++ {
		if v[0][j] != 1 {
			t.Fatalf("V[0][%d] = %d, want 1 (alpha^0)", j, v[0][j])
		}
	}
	for i := 0; i < 5; i++ {
		if v[i][0] != 1 {
			t.Fatalf("V[%d][0] = %d, want 1 (alpha^0)", i, v[i][0])
		}
	}
}

func TestVandermondeMatchesAlphaPow(t *testing.T) {
	v, err := Vandermonde(10, 10)
	if err != nil {
		t.Fatalf("Vandermonde: %v", err)
	}
	for i := 0; i < 10; i++ {
		for j := 0; j < 10; j++ {
			want := gf256.AlphaPow(i * j)
			if v[i][j] != want {
				t.Fatalf("V[%d][%d] = %d, want %d", i, j, v[i][j], want)
			}
		}
	}
}

func TestInvertRoundTrip(t *testing.T) {
	top, err := Vandermonde(6, 6)
	if err != nil {
		t.Fatalf("Vandermonde: %v", err)
	}
	inv, err := top.Invert()
	if err != nil {
		t.Fatalf("Invert: %v", err)
	}
	prod, err := top.Mul(inv)
	if err != nil {
		t.Fatalf("Mul: %v", err)
	}
	id := Identity(6)
	for i := range prod {
		for j := range prod[i] {
			if prod[i][j] != id[i][j] {
				t.Fatalf("V*V^-1 != I at [%d][%d]: got %d want %d", i, j, prod[i][j], id[i][j])
			}
		}
	}
}

func TestInvertSingularMatrix(t *testing.T) {
	m := New(3, 3)
	// all-zero is trivially singular
	if _, err := m.Invert(); err != ErrSingular {
		t.Fatalf("Invert(zero matrix) = %v, want ErrSingular", err)
	}
}

func TestInvertRequiresSquare(t *testing.T) {
	m := New(2, 3)
	if _, err := m.Invert(); err != ErrNotSquare {
		t.Fatalf("Invert(2x3) = %v, want ErrNotSquare", err)
	}
}

func TestSubAndConcatRows(t *testing.T) {
	m, err := Vandermonde(8, 4)
	if err != nil {
		t.Fatalf("Vandermonde: %v", err)
	}
	top, err := m.Sub(0, 0, 4, 4)
	if err != nil {
		t.Fatalf("Sub top: %v", err)
	}
	bottom, err := m.Sub(4, 0, 4, 4)
	if err != nil {
		t.Fatalf("Sub bottom: %v", err)
	}
	combined, err := ConcatRows(top, bottom)
	if err != nil {
		t.Fatalf("ConcatRows: %v", err)
	}
	for i := range m {
		for j := range m[i] {
			if combined[i][j] != m[i][j] {
				t.Fatalf("ConcatRows(Sub,Sub) != original at [%d][%d]", i, j)
			}
		}
	}
}

func TestTransposeRequiresSquare(t *testing.T) {
	m := New(2, 3)
	if _, err := m.Transpose(); err != ErrNotSquare {
		t.Fatalf("Transpose(2x3) = %v, want ErrNotSquare", err)
	}
}

func TestSwapRows(t *testing.T) {
	m := New(3, 2)
	copy(m[0], []byte{1, 2})
	copy(m[1], []byte{3, 4})
	m.SwapRows(0, 1)
	if m[0][0] != 3 || m[1][0] != 1 {
		t.Fatalf("SwapRows did not exchange rows: %+v", m)
	}
}
