package dynamo

// PhaseFlag modifies how a particle collides.
type PhaseFlag int32

const (
	PhaseSelfCollide PhaseFlag = 1 << 24
	PhaseFluid       PhaseFlag = 1 << 25

	phaseGroupMask = 0x00ffffff
)

// MakePhase packs a collision group and flags into a particle phase.
func MakePhase(group int, flags PhaseFlag) int32 {
	return int32(group&phaseGroupMask) | int32(flags)
}

func PhaseGroup(phase int32) int {
	return int(phase & phaseGroupMask)
}

func PhaseHas(phase int32, flag PhaseFlag) bool {
	return phase&int32(flag) != 0
}
