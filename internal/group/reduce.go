package group

import (
	"gonum.org/v1/gonum/mat"
)

// svdBasis holds the right singular vectors of a matrix so several
// truncations can be taken from one factorisation.
type svdBasis struct {
	x    *mat.Dense
	v    mat.Dense
	rank int
}

func factorize(x *mat.Dense) (*svdBasis, bool) {
	var svd mat.SVD
	if !svd.Factorize(x, mat.SVDThin) {
		return nil, false
	}
	b := &svdBasis{x: x}
	svd.VTo(&b.v)
	r, c := x.Dims()
	b.rank = min(r, c)
	return b, true
}

// reduce projects the rows onto the top k singular directions: X·V_k.
func (b *svdBasis) reduce(k int) (*mat.Dense, bool) {
	if k < 1 || k > b.rank {
		return nil, false
	}
	rows, _ := b.v.Dims()
	vk := b.v.Slice(0, rows, 0, k)

	var out mat.Dense
	out.Mul(b.x, vk)
	return &out, true
}
