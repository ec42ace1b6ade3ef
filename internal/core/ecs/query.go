package ecs

// Matches reports whether an entity bitmask satisfies a signature. The
// entity must hold every required kind. It is excluded only when it holds
// every excluded kind at once; holding some of them is not enough. A zero
// excluded mask excludes nothing.
func Matches(mask, required, excluded Mask) bool {
	if !mask.Valid() || !mask.Contains(required) {
		return false
	}
	return !Excluded(mask, excluded)
}

// Excluded applies the exclusion half of Matches on its own.
func Excluded(mask, excluded Mask) bool {
	return excluded != 0 && mask.Contains(excluded)
}

// EntitiesMatching scans published slots in ascending order and returns
// those whose bitmask satisfies (required, excluded).
func (w *World) EntitiesMatching(required, excluded Mask) []EntityID {
	var out []EntityID
	for i := 0; i < w.table.columns(); i++ {
		if !w.table.published[i] {
			continue
		}
		id := EntityID(i)
		if Matches(w.table.bitmask(id), required, excluded) {
			out = append(out, id)
		}
	}
	return out
}

// Each calls fn for every published entity holding a T.
func Each[T Component](w *World, fn func(EntityID, T)) {
	mask, ok := w.registry.Lookup(KindFor[T]())
	if !ok {
		return
	}
	row := rowOf(mask)
	for i := 0; i < w.table.columns(); i++ {
		if !w.table.published[i] {
			continue
		}
		if c, ok := w.table.get(row, EntityID(i)).(T); ok {
			fn(EntityID(i), c)
		}
	}
}

// Each2 calls fn for every published entity holding both an A and a B.
func Each2[A, B Component](w *World, fn func(EntityID, A, B)) {
	ma, okA := w.registry.Lookup(KindFor[A]())
	mb, okB := w.registry.Lookup(KindFor[B]())
	if !okA || !okB {
		return
	}
	ra, rb := rowOf(ma), rowOf(mb)
	for i := 0; i < w.table.columns(); i++ {
		if !w.table.published[i] {
			continue
		}
		id := EntityID(i)
		a, okA := w.table.get(ra, id).(A)
		b, okB := w.table.get(rb, id).(B)
		if okA && okB {
			fn(id, a, b)
		}
	}
}
