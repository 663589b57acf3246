package p256

import (
	"crypto/rand"
	"io"

	"filippo.io/nistec"
	"github.com/cronokirby/saferith"
)

var (
	scalarModulus = saferith.ModulusFromBytes(orderBytes)
	fieldModulus  = saferith.ModulusFromBytes(primeBytes)
)

// ConstantTime is the backend for secret-dependent work: scalars use
// saferith's constant-time modular arithmetic, points use nistec.
type ConstantTime struct {
	encoding
	rand io.Reader
}

// NewConstantTime creates a constant-time backend drawing randomness from r
// (nil selects crypto/rand).
func NewConstantTime(r io.Reader) *ConstantTime {
	if r == nil {
		r = rand.Reader
	}
	return &ConstantTime{rand: r}
}

// Name implements Backend.
func (c *ConstantTime) Name() string { return BackendConstantTime }

func storeNat(fe *FieldElement, n *saferith.Nat) {
	out := n.Bytes()
	if len(out) > GroupSizeBytes {
		out = out[len(out)-GroupSizeBytes:]
	}
	fe.Zero()
	copy(fe.b[GroupSizeBytes-len(out):], out)
	clear(out)
}

// wipeNat overwrites the limbs of a scratch scalar. Temporaries allocated
// inside saferith are out of reach.
func wipeNat(n *saferith.Nat) {
	var zero [2 * GroupSizeBytes]byte
	n.SetBytes(zero[:])
}

// FEGenerate implements Backend using rejection sampling with
// constant-time range checks.
func (c *ConstantTime) FEGenerate(fe *FieldElement) error {
	buf := make([]byte, GroupSizeBytes)
	defer clear(buf)
	var k saferith.Nat
	defer wipeNat(&k)
	for {
		if _, err := io.ReadFull(c.rand, buf); err != nil {
			return ErrRandom
		}
		k.SetBytes(buf)
		_, _, lt := k.CmpMod(scalarModulus)
		if lt == 1 && k.EqZero() == 0 {
			storeNat(fe, &k)
			return nil
		}
	}
}

// FELoad implements Backend.
func (c *ConstantTime) FELoad(fe *FieldElement, in []byte) error {
	var k saferith.Nat
	defer wipeNat(&k)
	k.SetBytes(in)
	k.Mod(&k, scalarModulus)
	storeNat(fe, &k)
	return nil
}

// FEMul implements Backend.
func (c *ConstantTime) FEMul(r, a, b *FieldElement) error {
	var x, y saferith.Nat
	defer wipeNat(&x)
	defer wipeNat(&y)
	x.SetBytes(a.b[:])
	y.SetBytes(b.b[:])
	x.ModMul(&x, &y, scalarModulus)
	storeNat(r, &x)
	return nil
}

func toNistec(p *Point) (*nistec.P256Point, error) {
	if p.b[0] != 0x04 {
		return nil, ErrInvalidPoint
	}
	q, err := nistec.NewP256Point().SetBytes(p.b[:])
	if err != nil {
		return nil, ErrInvalidPoint
	}
	return q, nil
}

func fromNistec(p *Point, q *nistec.P256Point) {
	out := q.Bytes()
	if len(out) != PointSizeBytes {
		p.Zero()
		return
	}
	copy(p.b[:], out)
}

// PointIsValid implements Backend.
func (c *ConstantTime) PointIsValid(p *Point) bool {
	_, err := toNistec(p)
	return err == nil
}

// PointMul implements Backend.
func (c *ConstantTime) PointMul(r, p *Point, fe *FieldElement) error {
	q, err := toNistec(p)
	if err != nil {
		return err
	}
	if _, err := q.ScalarMult(q, fe.b[:]); err != nil {
		return ErrInvalidPoint
	}
	fromNistec(r, q)
	return nil
}

// PointAddMul implements Backend.
func (c *ConstantTime) PointAddMul(r, p1 *Point, fe1 *FieldElement, p2 *Point, fe2 *FieldElement) error {
	a, err := toNistec(p1)
	if err != nil {
		return err
	}
	b, err := toNistec(p2)
	if err != nil {
		return err
	}
	if _, err := a.ScalarMult(a, fe1.b[:]); err != nil {
		return ErrInvalidPoint
	}
	if _, err := b.ScalarMult(b, fe2.b[:]); err != nil {
		return ErrInvalidPoint
	}
	fromNistec(r, a.Add(a, b))
	return nil
}

// PointInvert implements Backend by replacing y with p - y.
func (c *ConstantTime) PointInvert(p *Point) error {
	if !c.PointIsValid(p) {
		return ErrInvalidPoint
	}
	_, yb := p.coords()
	var y, zero saferith.Nat
	y.SetBytes(yb)
	zero.SetUint64(0)
	y.ModSub(&zero, &y, fieldModulus)
	out := y.Bytes()
	for i := range yb {
		yb[i] = 0
	}
	copy(yb[GroupSizeBytes-len(out):], out)
	return nil
}

// ComputeL implements Backend.
func (c *ConstantTime) ComputeL(out []byte, w1 *FieldElement) error {
	if len(out) < PointSizeBytes {
		return ErrBufferTooSmall
	}
	q, err := nistec.NewP256Point().ScalarBaseMult(w1.b[:])
	if err != nil {
		return ErrInvalidPoint
	}
	var L Point
	fromNistec(&L, q)
	copy(out, L.b[:])
	return nil
}
