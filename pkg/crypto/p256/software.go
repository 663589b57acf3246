package p256

import (
	"crypto/rand"
	"io"
	"math/big"
)

// Software is the portable math/big and crypto/elliptic backend.
//
// The field operations are not constant time. Prefer ConstantTime for any
// deployment that handles real passcodes.
type Software struct {
	encoding
	rand io.Reader
}

// NewSoftware creates a software backend drawing randomness from r (nil
// selects crypto/rand).
func NewSoftware(r io.Reader) *Software {
	if r == nil {
		r = rand.Reader
	}
	return &Software{rand: r}
}

// Name implements Backend.
func (s *Software) Name() string { return BackendSoftware }

var bigOrder = new(big.Int).SetBytes(orderBytes)

func (s *Software) setFE(fe *FieldElement, v *big.Int) {
	r := new(big.Int).Mod(v, bigOrder)
	r.FillBytes(fe.b[:])
	wipeBig(r)
}

// wipeBig zeroes the words of a scratch integer. Temporaries allocated
// inside math/big are out of reach.
func wipeBig(v *big.Int) {
	clear(v.Bits())
	v.SetInt64(0)
}

// FEGenerate implements Backend using rejection sampling.
func (s *Software) FEGenerate(fe *FieldElement) error {
	buf := make([]byte, GroupSizeBytes)
	defer clear(buf)
	k := new(big.Int)
	defer wipeBig(k)
	for {
		if _, err := io.ReadFull(s.rand, buf); err != nil {
			return ErrRandom
		}
		k.SetBytes(buf)
		if k.Sign() > 0 && k.Cmp(bigOrder) < 0 {
			k.FillBytes(fe.b[:])
			return nil
		}
	}
}

// FELoad implements Backend.
func (s *Software) FELoad(fe *FieldElement, in []byte) error {
	k := new(big.Int).SetBytes(in)
	s.setFE(fe, k)
	wipeBig(k)
	return nil
}

// FEMul implements Backend.
func (s *Software) FEMul(r, a, b *FieldElement) error {
	x := new(big.Int).SetBytes(a.b[:])
	y := new(big.Int).SetBytes(b.b[:])
	xy := new(big.Int).Mul(x, y)
	s.setFE(r, xy)
	wipeBig(x)
	wipeBig(y)
	wipeBig(xy)
	return nil
}

func (s *Software) affine(p *Point) (*big.Int, *big.Int) {
	x, y := p.coords()
	return new(big.Int).SetBytes(x), new(big.Int).SetBytes(y)
}

func (s *Software) store(p *Point, x, y *big.Int) {
	if x.Sign() == 0 && y.Sign() == 0 {
		p.Zero()
		return
	}
	*p = encodeAffine(x.FillBytes(make([]byte, GroupSizeBytes)), y.FillBytes(make([]byte, GroupSizeBytes)))
}

// PointIsValid implements Backend.
func (s *Software) PointIsValid(p *Point) bool {
	if p.b[0] != 0x04 {
		return false
	}
	x, y := s.affine(p)
	return curve.IsOnCurve(x, y)
}

// PointMul implements Backend.
func (s *Software) PointMul(r, p *Point, fe *FieldElement) error {
	if !s.PointIsValid(p) {
		return ErrInvalidPoint
	}
	x, y := s.affine(p)
	rx, ry := curve.ScalarMult(x, y, fe.b[:])
	s.store(r, rx, ry)
	return nil
}

// PointAddMul implements Backend.
func (s *Software) PointAddMul(r, p1 *Point, fe1 *FieldElement, p2 *Point, fe2 *FieldElement) error {
	if !s.PointIsValid(p1) || !s.PointIsValid(p2) {
		return ErrInvalidPoint
	}
	x1, y1 := s.affine(p1)
	x2, y2 := s.affine(p2)
	ax, ay := curve.ScalarMult(x1, y1, fe1.b[:])
	bx, by := curve.ScalarMult(x2, y2, fe2.b[:])
	rx, ry := curve.Add(ax, ay, bx, by)
	s.store(r, rx, ry)
	return nil
}

// PointInvert implements Backend.
func (s *Software) PointInvert(p *Point) error {
	if !s.PointIsValid(p) {
		return ErrInvalidPoint
	}
	x, y := s.affine(p)
	y.Sub(curve.Params().P, y)
	s.store(p, x, y)
	return nil
}

// ComputeL implements Backend.
func (s *Software) ComputeL(out []byte, w1 *FieldElement) error {
	if len(out) < PointSizeBytes {
		return ErrBufferTooSmall
	}
	var L Point
	x, y := curve.ScalarBaseMult(w1.b[:])
	s.store(&L, x, y)
	copy(out, L.b[:])
	return nil
}
