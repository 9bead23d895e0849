// Package numeric provides the interchangeable scalar kinds the simulator is
// parameterized by: fixed-point, fast fixed-point, float32 and float64.
package numeric

// Number is the arithmetic contract shared by every scalar kind.
//
// Values are immutable; compound assignment is written x = x.Add(y).
// The zero value of every kind is numeric zero.
type Number[T any] interface {
	comparable

	Add(T) T
	Sub(T) T
	Mul(T) T
	Div(T) T
	Neg() T
	Abs() T

	// Cmp returns -1, 0 or +1.
	Cmp(T) int

	Float64() float64
	FromFloat64(float64) T
	FromInt(int) T

	// Epsilon is the smallest meaningful positive increment.
	Epsilon() T
	// Infinity is large enough to act as an unconstrained capacity.
	Infinity() T

	Spec() Spec
	String() string
}

// Convert coerces a value of one kind into another through a float64 bridge.
func Convert[To Number[To], From Number[From]](v From) To {
	var z To
	return z.FromFloat64(v.Float64())
}

// Of builds a value of kind T from a float64.
func Of[T Number[T]](f float64) T {
	var z T
	return z.FromFloat64(f)
}

// OfInt builds a value of kind T from an int.
func OfInt[T Number[T]](n int) T {
	var z T
	return z.FromInt(n)
}

// Min returns the smaller of a and b, preferring a on ties.
func Min[T Number[T]](a, b T) T {
	if b.Cmp(a) < 0 {
		return b
	}
	return a
}

// Max returns the larger of a and b, preferring a on ties.
func Max[T Number[T]](a, b T) T {
	if b.Cmp(a) > 0 {
		return b
	}
	return a
}

// Sign reports -1, 0 or +1 for v relative to zero.
func Sign[T Number[T]](v T) int {
	var z T
	return v.Cmp(z)
}

// IsZero reports whether v equals the kind's zero.
func IsZero[T Number[T]](v T) bool {
	var z T
	return v == z
}

// Infinity returns the infinity sentinel of kind T.
func Infinity[T Number[T]]() T {
	var z T
	return z.Infinity()
}

// Epsilon returns the epsilon sentinel of kind T.
func Epsilon[T Number[T]]() T {
	var z T
	return z.Epsilon()
}

// AddMixed adds a value of another kind to a, coercing b through float64.
func AddMixed[T Number[T], U Number[U]](a T, b U) T {
	return a.Add(Convert[T](b))
}

// SubMixed subtracts a value of another kind from a.
func SubMixed[T Number[T], U Number[U]](a T, b U) T {
	return a.Sub(Convert[T](b))
}

// MulMixed multiplies a by a value of another kind.
func MulMixed[T Number[T], U Number[U]](a T, b U) T {
	return a.Mul(Convert[T](b))
}

// DivMixed divides a by a value of another kind.
func DivMixed[T Number[T], U Number[U]](a T, b U) T {
	return a.Div(Convert[T](b))
}

// CmpMixed compares a with b after coercing b into a's kind.
func CmpMixed[T Number[T], U Number[U]](a T, b U) int {
	return a.Cmp(Convert[T](b))
}
