package booking

// Conflicting returns the first reservation whose interval overlaps the
// candidate. Cancelled reservations never conflict; every other status
// holds its slot. The check is stateless: it operates over whatever
// reservation set the caller supplies at decision time, so callers are
// responsible for reading that set inside the same transaction that writes
// the new reservation.
func Conflicting(candidate Interval, existing []Reservation) (Reservation, bool) {
	for _, r := range existing {
		if r.Status == StatusCancelled {
			continue
		}
		if candidate.Overlaps(r.Slot()) {
			return r, true
		}
	}
	return Reservation{}, false
}

// CheckOverlap reports whether the candidate interval conflicts with any
// reservation for the equipment in the supplied set. Reservations for other
// equipment are ignored.
func CheckOverlap(equipmentID string, candidate Interval, existing []Reservation) bool {
	same := existing[:0:0]
	for _, r := range existing {
		if r.EquipmentID == equipmentID {
			same = append(same, r)
		}
	}
	_, conflict := Conflicting(candidate, same)
	return conflict
}
