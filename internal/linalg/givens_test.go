package linalg

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestGivensColumnsIsOrthogonal(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	Givens(m, 3, 4, 0, 1, Columns) // c=3, s=4 -> r=5, cos=0.6, sin=0.8
	want := [][]float64{{0.6, 0.8}, {-0.8, 0.6}}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if math.Abs(m.At(i, j)-want[i][j]) > 1e-12 {
				t.Errorf("m[%d][%d] = %g, want %g", i, j, m.At(i, j), want[i][j])
			}
		}
	}
}

func TestGivensZeroRotationIsNoOp(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	before := mat.DenseCopyOf(m)
	Givens(m, 0, 0, 0, 1, Columns)
	if !mat.Equal(m, before) {
		t.Error("Givens with c=s=0 should leave m unchanged")
	}
}

func TestGivensRowsMatchesColumnsTransposed(t *testing.T) {
	cols := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	Givens(cols, 3, 4, 0, 1, Columns)

	rows := mat.NewDense(2, 2, []float64{1, 3, 2, 4}) // transpose of the original
	Givens(rows, 3, 4, 0, 1, Rows)

	var colsT mat.Dense
	colsT.CloneFrom(cols.T())
	if !mat.EqualApprox(&colsT, rows, 1e-12) {
		t.Errorf("row rotation does not match transposed column rotation:\ngot  %v\nwant %v", mat.Formatted(rows), mat.Formatted(&colsT))
	}
}
