package actor

// PushFields copies the selected local fields into the actor's arena slots.
func (a *Actor) PushFields(mask DataMask) {
	if !a.inArena {
		return
	}
	ar := a.host.Arena()
	f := ar.Fields()
	tr := a.Transform

	if mask.Has(ActiveStatus) {
		for i, s := range a.slots {
			ar.SetActive(s, a.enabled && a.Active[i])
		}
		ar.SyncActive()
	}
	if mask.Has(Positions) {
		render := ar.Renderable()
		for i, s := range a.slots {
			f.Positions[s] = tr.TransformPoint(a.Positions[i])
			render[s] = f.Positions[s]
		}
	}
	if mask.Has(Velocities) {
		for i, s := range a.slots {
			f.Velocities[s] = tr.TransformVector(a.Velocities[i])
		}
	}
	if mask.Has(Vorticities) {
		for i, s := range a.slots {
			f.Vorticities[s] = tr.TransformVector(a.Vorticities[i])
		}
	}
	if mask.Has(InvMasses) {
		for i, s := range a.slots {
			f.InvMasses[s] = a.InvMasses[i]
		}
	}
	if mask.Has(SolidRadii) {
		for i, s := range a.slots {
			f.SolidRadii[s] = a.SolidRadii[i]
		}
	}
	if mask.Has(Phases) {
		for i, s := range a.slots {
			f.Phases[s] = a.Phases[i]
		}
	}
}

// PullFields copies the selected fields from the arena back into local space.
// Active flags are only pulled while the actor is enabled.
func (a *Actor) PullFields(mask DataMask) {
	if !a.inArena {
		return
	}
	ar := a.host.Arena()
	f := ar.Fields()
	tr := a.Transform

	if mask.Has(ActiveStatus) && a.enabled {
		for i, s := range a.slots {
			a.Active[i] = ar.IsActive(s)
		}
	}
	if mask.Has(Positions) {
		for i, s := range a.slots {
			a.Positions[i] = tr.InverseTransformPoint(f.Positions[s])
		}
	}
	if mask.Has(Velocities) {
		for i, s := range a.slots {
			a.Velocities[i] = tr.InverseTransformVector(f.Velocities[s])
		}
	}
	if mask.Has(Vorticities) {
		for i, s := range a.slots {
			a.Vorticities[i] = tr.InverseTransformVector(f.Vorticities[s])
		}
	}
	if mask.Has(InvMasses) {
		for i, s := range a.slots {
			a.InvMasses[i] = f.InvMasses[s]
		}
	}
	if mask.Has(SolidRadii) {
		for i, s := range a.slots {
			a.SolidRadii[i] = f.SolidRadii[s]
		}
	}
	if mask.Has(Phases) {
		for i, s := range a.slots {
			a.Phases[i] = f.Phases[s]
		}
	}
}
