package train

// AdvanceCursor computes how much of one epoch's stream must be discarded
// while resuming. It is pure: callers perform the actual skipping.
//
// Given an epoch of streamLen batches and a resume budget of remaining
// already-consumed batches:
//
//   - remaining >= streamLen: the whole epoch was consumed; skipEpoch is
//     true and newRemaining carries the rest to the next epoch.
//   - 0 < remaining < streamLen: discard exactly skip leading batches and
//     resume mid-epoch; the budget is exhausted.
//   - remaining <= 0: no skip.
func AdvanceCursor(streamLen, remaining int) (skip, newRemaining int, skipEpoch bool) {
	if remaining >= streamLen {
		return 0, remaining - streamLen, true
	} else if remaining > 0 {
		return remaining, 0, false
	}
	return 0, 0, false
}
