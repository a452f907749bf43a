package canvas

import "math"

// HSVToRGB converts h,s,v in [0,1] to an opaque color.
func HSVToRGB(h, s, v float64) Color {
	h = math.Mod(h, 1.0)
	if h < 0 {
		h += 1.0
	}
	i := int(h * 6.0)
	f := h*6.0 - float64(i)
	p := v * (1.0 - s)
	q := v * (1.0 - f*s)
	t := v * (1.0 - (1.0-f)*s)
	var r, g, b float64
	switch i % 6 {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}
	return Color{
		R: quant(r*255.0, RoundNearest),
		G: quant(g*255.0, RoundNearest),
		B: quant(b*255.0, RoundNearest),
		A: 0xff,
	}
}

// HSLToRGB converts h in [0,1], s,l in [0,1] to an opaque color.
func HSLToRGB(h, s, l float64) Color {
	if s <= 0 {
		v := quant(l*255.0, RoundNearest)
		return Color{R: v, G: v, B: v, A: 0xff}
	}
	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q
	r := hueToChan(p, q, h+1.0/3.0)
	g := hueToChan(p, q, h)
	b := hueToChan(p, q, h-1.0/3.0)
	return Color{
		R: quant(r*255.0, RoundNearest),
		G: quant(g*255.0, RoundNearest),
		B: quant(b*255.0, RoundNearest),
		A: 0xff,
	}
}

func hueToChan(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	default:
		return p
	}
}

// Lerp interpolates between a and b channel-wise; t in [0,1].
func Lerp(a, b Color, t float64) Color {
	if t <= 0 {
		return a
	}
	if t >= 1 {
		return b
	}
	return Color{
		R: quant(float64(a.R)+(float64(b.R)-float64(a.R))*t, RoundNearest),
		G: quant(float64(a.G)+(float64(b.G)-float64(a.G))*t, RoundNearest),
		B: quant(float64(a.B)+(float64(b.B)-float64(a.B))*t, RoundNearest),
		A: quant(float64(a.A)+(float64(b.A)-float64(a.A))*t, RoundNearest),
	}
}
