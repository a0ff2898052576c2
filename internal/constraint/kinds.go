package constraint

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/pbdsim/internal/kernel"
)

type Distance struct {
	group
	rest     []float64
	stretch  []float64
	compress []float64

	// Scale multiplies every rest length when pushed.
	Scale float64
}

func NewDistance() *Distance {
	g := &Distance{Scale: 1}
	g.init(kernel.Distance, g)
	return g
}

func (g *Distance) AddConstraint(i, j int, rest, stretch, compress float64) error {
	if err := g.add(i, j); err != nil {
		return err
	}
	g.rest = append(g.rest, rest)
	g.stretch = append(g.stretch, stretch)
	g.compress = append(g.compress, compress)
	return nil
}

func (g *Distance) RestLength(i int) float64 { return g.rest[i] }

func (g *Distance) params(i int) []float64 {
	return []float64{g.rest[i] * g.Scale, g.stretch[i], g.compress[i]}
}

func (g *Distance) removeAt(i int) {
	g.rest = removeAt(g.rest, i)
	g.stretch = removeAt(g.stretch, i)
	g.compress = removeAt(g.compress, i)
}

func (g *Distance) clear() {
	g.rest, g.stretch, g.compress = g.rest[:0], g.stretch[:0], g.compress[:0]
}

type Bending struct {
	group
	rest      []float64
	maxBend   []float64
	stiffness []float64
}

func NewBending() *Bending {
	g := &Bending{}
	g.init(kernel.Bending, g)
	return g
}

// AddConstraint bends mid relative to the segment i-j.
func (g *Bending) AddConstraint(i, j, mid int, rest, maxBend, stiffness float64) error {
	if err := g.add(i, j, mid); err != nil {
		return err
	}
	g.rest = append(g.rest, rest)
	g.maxBend = append(g.maxBend, maxBend)
	g.stiffness = append(g.stiffness, stiffness)
	return nil
}

func (g *Bending) params(i int) []float64 {
	return []float64{g.rest[i], g.maxBend[i], g.stiffness[i]}
}

func (g *Bending) removeAt(i int) {
	g.rest = removeAt(g.rest, i)
	g.maxBend = removeAt(g.maxBend, i)
	g.stiffness = removeAt(g.stiffness, i)
}

func (g *Bending) clear() {
	g.rest, g.maxBend, g.stiffness = g.rest[:0], g.maxBend[:0], g.stiffness[:0]
}

type Tether struct {
	group
	maxLength []float64
	scale     []float64
	stiffness []float64

	// Scale multiplies every per-tether scale when pushed.
	Scale float64
}

func NewTether() *Tether {
	g := &Tether{Scale: 1}
	g.init(kernel.Tether, g)
	return g
}

func (g *Tether) AddConstraint(i, anchor int, maxLength, scale, stiffness float64) error {
	if err := g.add(i, anchor); err != nil {
		return err
	}
	g.maxLength = append(g.maxLength, maxLength)
	g.scale = append(g.scale, scale)
	g.stiffness = append(g.stiffness, stiffness)
	return nil
}

func (g *Tether) MaxLength(i int) float64 { return g.maxLength[i] }

func (g *Tether) params(i int) []float64 {
	return []float64{g.maxLength[i], g.scale[i] * g.Scale, g.stiffness[i]}
}

func (g *Tether) removeAt(i int) {
	g.maxLength = removeAt(g.maxLength, i)
	g.scale = removeAt(g.scale, i)
	g.stiffness = removeAt(g.stiffness, i)
}

func (g *Tether) clear() {
	g.maxLength, g.scale, g.stiffness = g.maxLength[:0], g.scale[:0], g.stiffness[:0]
}

// Pin attaches particles to a body. Body is an arena slot, or -1 for a
// fixed point in arena space; it is not translated through the owner.
type Pin struct {
	group
	body      []int
	offsets   []r3.Vec
	stiffness []float64
}

func NewPin() *Pin {
	g := &Pin{}
	g.init(kernel.Pin, g)
	return g
}

func (g *Pin) AddConstraint(i, body int, offset r3.Vec, stiffness float64) error {
	if err := g.add(i); err != nil {
		return err
	}
	g.body = append(g.body, body)
	g.offsets = append(g.offsets, offset)
	g.stiffness = append(g.stiffness, stiffness)
	return nil
}

func (g *Pin) params(i int) []float64 {
	o := g.offsets[i]
	return []float64{float64(g.body[i]), o.X, o.Y, o.Z, g.stiffness[i]}
}

func (g *Pin) removeAt(i int) {
	g.body = removeAt(g.body, i)
	g.offsets = removeAt(g.offsets, i)
	g.stiffness = removeAt(g.stiffness, i)
}

func (g *Pin) clear() {
	g.body, g.offsets, g.stiffness = g.body[:0], g.offsets[:0], g.stiffness[:0]
}

type Chain struct {
	group
	rest []float64

	// Tightness is the fraction of the rest length below which links push apart.
	Tightness float64
}

func NewChain() *Chain {
	g := &Chain{Tightness: 1}
	g.init(kernel.Chain, g)
	return g
}

func (g *Chain) AddConstraint(indices []int, rest float64) error {
	if err := g.add(indices...); err != nil {
		return err
	}
	g.rest = append(g.rest, rest)
	return nil
}

func (g *Chain) params(i int) []float64 {
	return []float64{g.rest[i] * g.Tightness, g.rest[i]}
}

func (g *Chain) removeAt(i int) { g.rest = removeAt(g.rest, i) }
func (g *Chain) clear()         { g.rest = g.rest[:0] }

type Aerodynamic struct {
	group
	area []float64
	drag []float64
	lift []float64

	Wind       r3.Vec
	AirDensity float64
}

func NewAerodynamic() *Aerodynamic {
	g := &Aerodynamic{AirDensity: 1.225}
	g.init(kernel.Aerodynamic, g)
	return g
}

func (g *Aerodynamic) AddConstraint(i int, area, drag, lift float64) error {
	if err := g.add(i); err != nil {
		return err
	}
	g.area = append(g.area, area)
	g.drag = append(g.drag, drag)
	g.lift = append(g.lift, lift)
	return nil
}

func (g *Aerodynamic) params(i int) []float64 {
	w := g.Wind
	return []float64{g.area[i], g.drag[i], g.lift[i], w.X, w.Y, w.Z, g.AirDensity}
}

func (g *Aerodynamic) removeAt(i int) {
	g.area = removeAt(g.area, i)
	g.drag = removeAt(g.drag, i)
	g.lift = removeAt(g.lift, i)
}

func (g *Aerodynamic) clear() {
	g.area, g.drag, g.lift = g.area[:0], g.drag[:0], g.lift[:0]
}
