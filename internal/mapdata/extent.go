package mapdata

// Extent is a running minimum and maximum over a stream of values. The zero
// value is unset.
type Extent struct {
	min float64
	max float64
	set bool
}

// Add folds v into the extent.
func (e *Extent) Add(v float64) {
	if !e.set {
		e.min, e.max, e.set = v, v, true
		return
	}
	if v < e.min {
		e.min = v
	}
	if v > e.max {
		e.max = v
	}
}

// Bounds returns the extent.
//
// Postcondition: ok is false until at least one value has been added.
func (e Extent) Bounds() (lo, hi float64, ok bool) {
	return e.min, e.max, e.set
}

// Span returns max-min, or 0 when unset.
func (e Extent) Span() float64 {
	if !e.set {
		return 0
	}
	return e.max - e.min
}

// Extent3 tracks an Extent per component of a stream of Coord3.
type Extent3 struct {
	x, y, z Extent
}

// Add folds every component of c into the extent.
func (e *Extent3) Add(c Coord3) {
	e.x.Add(c.X)
	e.y.Add(c.Y)
	e.z.Add(c.Z)
}

// Axis returns the extent of a single component.
func (e Extent3) Axis(a Axis) Extent {
	switch a {
	case AxisX:
		return e.x
	case AxisY:
		return e.y
	default:
		return e.z
	}
}

// Bounds returns the componentwise minimum and maximum.
//
// Postcondition: ok is false until at least one point has been added.
func (e Extent3) Bounds() (lo, hi Coord3, ok bool) {
	if !e.x.set {
		return Coord3{}, Coord3{}, false
	}
	return Coord3{X: e.x.min, Y: e.y.min, Z: e.z.min},
		Coord3{X: e.x.max, Y: e.y.max, Z: e.z.max},
		true
}

// ExtentOf computes the extent of pts.
func ExtentOf(pts ...Coord3) Extent3 {
	var e Extent3
	for _, p := range pts {
		e.Add(p)
	}
	return e
}
