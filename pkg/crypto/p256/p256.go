// Package p256 is the field and point arithmetic layer the SPAKE2+ engine
// runs on.
//
// Scalars (FieldElement) and points (Point) are plain fixed-size values in
// their canonical encodings. All arithmetic goes through a Backend so the
// protocol code never knows whether it runs on the portable software
// implementation or on a constant-time (or hardware) one.
//
// Contracts every Backend honours:
//   - field results are always reduced into [0, N)
//   - PointIsValid rejects the point at infinity and off-curve encodings
//   - point operations refuse invalid inputs with ErrInvalidPoint
package p256

import (
	"crypto/elliptic"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
)

const (
	// GroupSizeBytes is the size of a scalar mod N.
	GroupSizeBytes = 32

	// PointSizeBytes is the size of an uncompressed SEC1 point (0x04 || X || Y).
	PointSizeBytes = 65

	// Cofactor of the P-256 group.
	Cofactor = 1
)

// Backend names accepted by ByName.
const (
	BackendSoftware     = "software"
	BackendConstantTime = "constant-time"
)

// Errors.
var (
	ErrInvalidEncoding = errors.New("p256: invalid encoding length")
	ErrInvalidPoint    = errors.New("p256: point is not a valid curve point")
	ErrBufferTooSmall  = errors.New("p256: output buffer too small")
	ErrRandom          = errors.New("p256: random source failure")
	ErrUnknownBackend  = errors.New("p256: unknown backend")
)

var (
	curve      = elliptic.P256()
	orderBytes = curve.Params().N.FillBytes(make([]byte, GroupSizeBytes))
	primeBytes = curve.Params().P.FillBytes(make([]byte, GroupSizeBytes))
	generator  = encodeAffine(curve.Params().Gx.FillBytes(make([]byte, GroupSizeBytes)),
		curve.Params().Gy.FillBytes(make([]byte, GroupSizeBytes)))
)

// FieldElement is an integer modulo the group order N stored as 32
// big-endian bytes. The zero value is the element 0.
type FieldElement struct {
	b [GroupSizeBytes]byte
}

// Bytes returns a copy of the canonical encoding.
func (fe *FieldElement) Bytes() []byte {
	out := make([]byte, GroupSizeBytes)
	copy(out, fe.b[:])
	return out
}

// IsZero reports whether fe is 0, in constant time.
func (fe *FieldElement) IsZero() bool {
	var zero [GroupSizeBytes]byte
	return subtle.ConstantTimeCompare(fe.b[:], zero[:]) == 1
}

// Zero wipes fe.
func (fe *FieldElement) Zero() {
	for i := range fe.b {
		fe.b[i] = 0
	}
}

// Point is an uncompressed P-256 point. The zero value is the point at
// infinity; any other value starts with 0x04.
type Point struct {
	b [PointSizeBytes]byte
}

// Generator returns the base point G.
func Generator() Point {
	return generator
}

// IsInfinity reports whether p is the point-at-infinity sentinel.
func (p *Point) IsInfinity() bool {
	var zero [PointSizeBytes]byte
	return subtle.ConstantTimeCompare(p.b[:], zero[:]) == 1
}

// Bytes returns a copy of the encoding.
func (p *Point) Bytes() []byte {
	out := make([]byte, PointSizeBytes)
	copy(out, p.b[:])
	return out
}

// Equal reports whether p and q hold the same encoding.
func (p *Point) Equal(q *Point) bool {
	return subtle.ConstantTimeCompare(p.b[:], q.b[:]) == 1
}

// Zero resets p to the point at infinity.
func (p *Point) Zero() {
	for i := range p.b {
		p.b[i] = 0
	}
}

func (p *Point) coords() (x, y []byte) {
	return p.b[1 : 1+GroupSizeBytes], p.b[1+GroupSizeBytes:]
}

func encodeAffine(x, y []byte) Point {
	var p Point
	p.b[0] = 0x04
	copy(p.b[1+GroupSizeBytes-len(x):1+GroupSizeBytes], x)
	copy(p.b[PointSizeBytes-len(y):], y)
	return p
}

// Backend performs field and point arithmetic for P-256.
//
// Implementations may be software or delegate to an accelerator. Any
// operation touching a secret scalar should run in constant time.
type Backend interface {
	// Name identifies the backend in logs and configuration.
	Name() string

	// FEGenerate draws a uniformly random element in [1, N).
	FEGenerate(fe *FieldElement) error
	// FELoad reduces the big-endian integer in into fe.
	FELoad(fe *FieldElement, in []byte) error
	// FEWrite writes the 32-byte canonical encoding of fe to out.
	FEWrite(fe *FieldElement, out []byte) error
	// FEMul sets r = a*b mod N.
	FEMul(r, a, b *FieldElement) error

	// PointLoad stores a 65-byte encoding in p without validating it.
	PointLoad(p *Point, in []byte) error
	// PointWrite writes the 65-byte encoding of p to out.
	PointWrite(p *Point, out []byte) error
	// PointMul sets r = fe*p.
	PointMul(r, p *Point, fe *FieldElement) error
	// PointAddMul sets r = fe1*p1 + fe2*p2.
	PointAddMul(r, p1 *Point, fe1 *FieldElement, p2 *Point, fe2 *FieldElement) error
	// PointInvert sets p = -p.
	PointInvert(p *Point) error
	// PointCofactorMul multiplies p by the cofactor.
	PointCofactorMul(p *Point) error
	// PointIsValid reports whether p is a finite point on the curve.
	PointIsValid(p *Point) bool

	// ComputeL writes L = w1*G to out (65 bytes).
	ComputeL(out []byte, w1 *FieldElement) error
}

// ByName returns the backend registered under name. A nil reader selects
// crypto/rand.
func ByName(name string, rand io.Reader) (Backend, error) {
	switch name {
	case BackendSoftware:
		return NewSoftware(rand), nil
	case BackendConstantTime, "":
		return NewConstantTime(rand), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
}

// encoding holds the operations that only move canonical bytes around and
// are therefore identical for every backend.
type encoding struct{}

func (encoding) FEWrite(fe *FieldElement, out []byte) error {
	if len(out) < GroupSizeBytes {
		return ErrBufferTooSmall
	}
	copy(out, fe.b[:])
	return nil
}

func (encoding) PointLoad(p *Point, in []byte) error {
	if len(in) != PointSizeBytes {
		return ErrInvalidEncoding
	}
	copy(p.b[:], in)
	return nil
}

func (encoding) PointWrite(p *Point, out []byte) error {
	if len(out) < PointSizeBytes {
		return ErrBufferTooSmall
	}
	copy(out, p.b[:])
	return nil
}

func (encoding) PointCofactorMul(p *Point) error {
	// h = 1 for P-256.
	return nil
}
