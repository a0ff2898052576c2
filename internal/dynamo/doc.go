// Package dynamo provides the shared primitives of the particle simulation.
//
// Everything above the kernel boundary uses these types:
//
//   - [Transform]: placement of an actor in arena space
//   - [MakePhase]: packs a collision group and phase flags
//   - [ParallelFor]: chunked fan-out for kernel passes
//
// # Example
//
//	tr := dynamo.Transform{Position: r3.Vec{Y: 2}, Axis: r3.Vec{Z: 1}, Angle: math.Pi / 2}
//	world := tr.TransformPoint(local)
//	back := tr.InverseTransformPoint(world)
//
// # Thread Safety
//
// Transform is a value type and safe to copy. Nothing in this package holds state.
package dynamo
