package numeric

import (
	"math"
	"strconv"
)

// Float epsilon constants.
const (
	FloatEpsilon  = 1e-6
	DoubleEpsilon = 1e-9
)

// Float is the single-precision representation.
type Float float32

func (f Float) Add(o Float) Float { return f + o }
func (f Float) Sub(o Float) Float { return f - o }
func (f Float) Mul(o Float) Float { return f * o }
func (f Float) Div(o Float) Float { return f / o }
func (f Float) Neg() Float        { return -f }
func (f Float) Abs() Float        { return Float(math.Abs(float64(f))) }

func (f Float) Cmp(o Float) int {
	switch {
	case f < o:
		return -1
	case f > o:
		return 1
	}
	return 0
}

func (f Float) Float64() float64            { return float64(f) }
func (f Float) FromFloat64(x float64) Float { return Float(float32(x)) }
func (f Float) FromInt(n int) Float         { return Float(float32(n)) }
func (f Float) Epsilon() Float              { return FloatEpsilon }
func (f Float) Infinity() Float             { return math.MaxFloat32 }
func (f Float) Spec() Spec                  { return Spec{Kind: KindFloat} }
func (f Float) String() string              { return strconv.FormatFloat(float64(f), 'g', 6, 32) }

// Double is the double-precision representation.
type Double float64

func (d Double) Add(o Double) Double { return d + o }
func (d Double) Sub(o Double) Double { return d - o }
func (d Double) Mul(o Double) Double { return d * o }
func (d Double) Div(o Double) Double { return d / o }
func (d Double) Neg() Double         { return -d }
func (d Double) Abs() Double         { return Double(math.Abs(float64(d))) }

func (d Double) Cmp(o Double) int {
	switch {
	case d < o:
		return -1
	case d > o:
		return 1
	}
	return 0
}

func (d Double) Float64() float64             { return float64(d) }
func (d Double) FromFloat64(x float64) Double { return Double(x) }
func (d Double) FromInt(n int) Double         { return Double(n) }
func (d Double) Epsilon() Double              { return DoubleEpsilon }
func (d Double) Infinity() Double             { return math.MaxFloat64 }
func (d Double) Spec() Spec                   { return Spec{Kind: KindDouble} }
func (d Double) String() string               { return strconv.FormatFloat(float64(d), 'g', 6, 64) }
