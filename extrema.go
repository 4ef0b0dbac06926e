package binmedian

// IsExtremum reports whether values[center] is strictly greater than, or
// strictly less than, every other element. Any element equal to the centre
// disqualifies it, as does having no other elements to compare with.
// NaN elements compare neither way and are skipped; a NaN centre is never an
// extremum.
func IsExtremum(values []float64, center int) bool {
	x := values[center]
	above, below := false, false
	for i, v := range values {
		if i == center {
			continue
		}
		switch {
		case x > v:
			above = true
		case x < v:
			below = true
		case x == v:
			return false
		}
	}
	return above != below
}

// IsWindowExtremum reports whether the centre of w is an extremum along all
// four slices through it: NW–SE, N–S, NE–SW and W–E.
func IsWindowExtremum(w *Window) bool {
	var slice [maxWidth]float64
	width := w.width
	c := w.Center()
	s := slice[:width]

	for k := 0; k < width; k++ {
		s[k] = w.At(k, k)
	}
	if !IsExtremum(s, c) {
		return false
	}
	for k := 0; k < width; k++ {
		s[k] = w.At(k, c)
	}
	if !IsExtremum(s, c) {
		return false
	}
	for k := 0; k < width; k++ {
		s[k] = w.At(k, width-1-k)
	}
	if !IsExtremum(s, c) {
		return false
	}
	for k := 0; k < width; k++ {
		s[k] = w.At(c, k)
	}
	return IsExtremum(s, c)
}
