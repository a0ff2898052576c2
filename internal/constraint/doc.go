// Package constraint implements per-actor constraint groups and the offset
// bookkeeping that places each group's window inside the kernel's flat
// per-type constraint arrays.
//
// For every constraint type, the windows of all registered groups ordered by
// actor id tile [0, total) with no gaps or overlaps:
//
//	actor 0  [0, 3)
//	actor 1  [3, 8)
//	actor 2  [8, 10)
//
// Adding a group opens its window at the computed offset; removing one
// closes it and shifts every successor's cached offset down. Topology is
// frozen while a group is registered.
//
// # Kinds
//
//   - [Distance]: pairwise rest length
//   - [Bending]: three-particle bend limit
//   - [Tether]: maximum distance to an anchor particle
//   - [Pin]: particle attached to a point
//   - [Chain]: ordered particle list with min/max spacing
//   - [Aerodynamic]: per-particle drag and lift
package constraint
