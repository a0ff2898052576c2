package actor

import "strings"

// DataMask selects which particle fields a push or pull synchronizes.
type DataMask uint32

const (
	ActiveStatus DataMask = 1 << iota
	Positions
	Velocities
	Vorticities
	InvMasses
	SolidRadii
	Phases

	AllFields = ActiveStatus | Positions | Velocities | Vorticities | InvMasses | SolidRadii | Phases
)

var maskNames = []struct {
	bit  DataMask
	name string
}{
	{ActiveStatus, "active"},
	{Positions, "positions"},
	{Velocities, "velocities"},
	{Vorticities, "vorticities"},
	{InvMasses, "inv_masses"},
	{SolidRadii, "solid_radii"},
	{Phases, "phases"},
}

func (m DataMask) Has(bit DataMask) bool { return m&bit != 0 }

func (m DataMask) String() string {
	if m == 0 {
		return "none"
	}
	var parts []string
	for _, n := range maskNames {
		if m.Has(n.bit) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}
