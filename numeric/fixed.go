package numeric

import (
	"math"
	"strconv"
)

// Params names the declared (width, fraction) pair of a fixed-point kind.
//
// Width is the scaling shift used by every conversion and arithmetic
// operation. Fraction only contributes to type identity.
type Params interface {
	Width() uint
	Fraction() uint
}

// W32F16 declares FIXED(32,16) / FAST_FIXED(32,16).
type W32F16 struct{}

func (W32F16) Width() uint    { return 32 }
func (W32F16) Fraction() uint { return 16 }

// W31F17 declares FIXED(31,17) / FAST_FIXED(31,17).
type W31F17 struct{}

func (W31F17) Width() uint    { return 31 }
func (W31F17) Fraction() uint { return 17 }

// W16F8 declares FIXED(16,8) / FAST_FIXED(16,8).
type W16F8 struct{}

func (W16F8) Width() uint    { return 16 }
func (W16F8) Fraction() uint { return 8 }

// layout is the storage description shared by Fixed and FastFixed.
type layout struct {
	shift uint // scaling shift, always the declared width
	bits  uint // storage width: 8, 16, 32 or 64
}

// fixedLayout backs FIXED(W,F) with int32 up to 32 bits, else int64.
func fixedLayout(p Params) layout {
	w := p.Width()
	if w <= 32 {
		return layout{shift: w, bits: 32}
	}
	return layout{shift: w, bits: 64}
}

// fastLayout backs FAST_FIXED(W,F) with the narrowest native integer >= W.
func fastLayout(p Params) layout {
	w := p.Width()
	switch {
	case w <= 8:
		return layout{shift: w, bits: 8}
	case w <= 16:
		return layout{shift: w, bits: 16}
	case w <= 32:
		return layout{shift: w, bits: 32}
	default:
		return layout{shift: w, bits: 64}
	}
}

// narrow truncates raw to the storage width with two's-complement wrap.
func (l layout) narrow(raw int64) int64 {
	switch l.bits {
	case 8:
		return int64(int8(raw))
	case 16:
		return int64(int16(raw))
	case 32:
		return int64(int32(raw))
	default:
		return raw
	}
}

func (l layout) maxRaw() int64 {
	if l.bits >= 64 {
		return math.MaxInt64
	}
	return int64(1)<<(l.bits-1) - 1
}

func (l layout) minRaw() int64 {
	if l.bits >= 64 {
		return math.MinInt64
	}
	return -(int64(1) << (l.bits - 1))
}

func (l layout) fromInt(n int) int64 {
	return l.narrow(int64(n) << l.shift)
}

// fromFloat scales f by 2^shift. Values the storage cannot hold (and NaN)
// become the minimum raw value, matching the hardware conversion result.
func (l layout) fromFloat(f float64) int64 {
	x := math.Ldexp(f, int(l.shift))
	if math.IsNaN(x) || x >= float64(l.maxRaw())+1 || x < float64(l.minRaw()) {
		return l.minRaw()
	}
	return l.narrow(int64(x))
}

func (l layout) toFloat(raw int64) float64 {
	return math.Ldexp(float64(raw), -int(l.shift))
}

func (l layout) add(a, b int64) int64 { return l.narrow(a + b) }
func (l layout) sub(a, b int64) int64 { return l.narrow(a - b) }

func (l layout) mul(a, b int64) int64 {
	return l.narrow((a * b) >> l.shift)
}

// div saturates on a zero divisor instead of trapping.
func (l layout) div(a, b int64) int64 {
	if b == 0 {
		if a < 0 {
			return l.minRaw()
		}
		return l.maxRaw()
	}
	return l.narrow((a << l.shift) / b)
}

func cmpRaw(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', 6, 64)
}

// Fixed is the FIXED(W,F) representation.
type Fixed[W Params] struct {
	raw int64
}

func (Fixed[W]) layout() layout {
	var p W
	return fixedLayout(p)
}

// FixedFromRaw builds a Fixed from its raw storage value.
func FixedFromRaw[W Params](raw int64) Fixed[W] {
	var f Fixed[W]
	f.raw = f.layout().narrow(raw)
	return f
}

// Raw returns the stored integer.
func (f Fixed[W]) Raw() int64 { return f.raw }

func (f Fixed[W]) Add(o Fixed[W]) Fixed[W] { return Fixed[W]{f.layout().add(f.raw, o.raw)} }
func (f Fixed[W]) Sub(o Fixed[W]) Fixed[W] { return Fixed[W]{f.layout().sub(f.raw, o.raw)} }
func (f Fixed[W]) Mul(o Fixed[W]) Fixed[W] { return Fixed[W]{f.layout().mul(f.raw, o.raw)} }
func (f Fixed[W]) Div(o Fixed[W]) Fixed[W] { return Fixed[W]{f.layout().div(f.raw, o.raw)} }
func (f Fixed[W]) Neg() Fixed[W]           { return Fixed[W]{f.layout().narrow(-f.raw)} }

func (f Fixed[W]) Abs() Fixed[W] {
	if f.raw < 0 {
		return f.Neg()
	}
	return f
}

func (f Fixed[W]) Cmp(o Fixed[W]) int { return cmpRaw(f.raw, o.raw) }

func (f Fixed[W]) Float64() float64 { return f.layout().toFloat(f.raw) }

func (f Fixed[W]) FromFloat64(x float64) Fixed[W] { return Fixed[W]{f.layout().fromFloat(x)} }
func (f Fixed[W]) FromInt(n int) Fixed[W]         { return Fixed[W]{f.layout().fromInt(n)} }

func (f Fixed[W]) Epsilon() Fixed[W]  { return Fixed[W]{1} }
func (f Fixed[W]) Infinity() Fixed[W] { return Fixed[W]{f.layout().maxRaw()} }

func (f Fixed[W]) Spec() Spec {
	var p W
	return Spec{Kind: KindFixed, Width: p.Width(), Fraction: p.Fraction()}
}

func (f Fixed[W]) String() string { return formatFloat(f.Float64()) }

// FastFixed is the FAST_FIXED(W,F) representation. It scales exactly like
// Fixed but stores into the narrowest native integer that holds W bits.
type FastFixed[W Params] struct {
	raw int64
}

func (FastFixed[W]) layout() layout {
	var p W
	return fastLayout(p)
}

// FastFixedFromRaw builds a FastFixed from its raw storage value.
func FastFixedFromRaw[W Params](raw int64) FastFixed[W] {
	var f FastFixed[W]
	f.raw = f.layout().narrow(raw)
	return f
}

// Raw returns the stored integer.
func (f FastFixed[W]) Raw() int64 { return f.raw }

func (f FastFixed[W]) Add(o FastFixed[W]) FastFixed[W] {
	return FastFixed[W]{f.layout().add(f.raw, o.raw)}
}

func (f FastFixed[W]) Sub(o FastFixed[W]) FastFixed[W] {
	return FastFixed[W]{f.layout().sub(f.raw, o.raw)}
}

func (f FastFixed[W]) Mul(o FastFixed[W]) FastFixed[W] {
	return FastFixed[W]{f.layout().mul(f.raw, o.raw)}
}

func (f FastFixed[W]) Div(o FastFixed[W]) FastFixed[W] {
	return FastFixed[W]{f.layout().div(f.raw, o.raw)}
}

func (f FastFixed[W]) Neg() FastFixed[W] { return FastFixed[W]{f.layout().narrow(-f.raw)} }

func (f FastFixed[W]) Abs() FastFixed[W] {
	if f.raw < 0 {
		return f.Neg()
	}
	return f
}

func (f FastFixed[W]) Cmp(o FastFixed[W]) int { return cmpRaw(f.raw, o.raw) }

func (f FastFixed[W]) Float64() float64 { return f.layout().toFloat(f.raw) }

func (f FastFixed[W]) FromFloat64(x float64) FastFixed[W] {
	return FastFixed[W]{f.layout().fromFloat(x)}
}

func (f FastFixed[W]) FromInt(n int) FastFixed[W] { return FastFixed[W]{f.layout().fromInt(n)} }

func (f FastFixed[W]) Epsilon() FastFixed[W]  { return FastFixed[W]{1} }
func (f FastFixed[W]) Infinity() FastFixed[W] { return FastFixed[W]{f.layout().maxRaw()} }

func (f FastFixed[W]) Spec() Spec {
	var p W
	return Spec{Kind: KindFastFixed, Width: p.Width(), Fraction: p.Fraction()}
}

func (f FastFixed[W]) String() string { return formatFloat(f.Float64()) }
