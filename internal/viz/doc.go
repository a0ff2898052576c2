// Package viz draws a running rope scene in the terminal.
//
// [Model] is a Bubble Tea model that advances the scene's driver once per
// tick and renders every rope onto a Braille [Canvas] through a rotatable
// [Camera]. [RunInteractive] adds a preset picker in front of it.
//
// # Key Bindings
//
//	Space - Pause/Resume
//	R     - Reset ropes to their generated shape
//	B     - Toggle recording into the frame cache
//	P     - Toggle playback of the frame cache
//	[ ]   - Scrub the playhead while playing
//	X/Y   - Rotate the camera
//	+/-   - Zoom
//	T     - Cycle color themes
//	?     - Show help overlay
package viz
