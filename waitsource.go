package fiber

// sourceRecord is one waiter on an fd: the event mask it asked for, and the
// fiber to resume when any of those bits (or an error bit) is reported.
type sourceRecord struct {
	mask  IOEvents
	fiber *Fiber
}

// waitSourceEntry is the per-fd composite: the currently-armed aggregate
// mask (cleared once fully drained) plus the ordered waiter list.
type waitSourceEntry struct {
	aggregate IOEvents
	armed     bool
	sources   []sourceRecord
}

// waitSourceTable maps fd -> waitSourceEntry. It is owned by, and mutated
// only from, its scheduler's own goroutine, so no lock is needed.
type waitSourceTable struct {
	backend   readinessBackend
	entries   map[int]*waitSourceEntry
	activeFDs int
}

func newWaitSourceTable(backend readinessBackend) *waitSourceTable {
	return &waitSourceTable{
		backend: backend,
		entries: make(map[int]*waitSourceEntry),
	}
}

// resumeOnFDEvents registers fiber to be resumed the next time fd reports
// any bit in mask.
func (t *waitSourceTable) resumeOnFDEvents(fd int, mask IOEvents, f *Fiber) error {
	entry, ok := t.entries[fd]
	if !ok {
		entry = &waitSourceEntry{aggregate: mask, armed: true}
		entry.sources = append(entry.sources, sourceRecord{mask: mask, fiber: f})
		t.entries[fd] = entry
		t.activeFDs++
		return t.backend.register(fd, mask)
	}

	entry.sources = append(entry.sources, sourceRecord{mask: mask, fiber: f})

	if !entry.armed {
		// The entry was kept after an error delivery, so fd is still known to
		// the backend (disarmed by oneshot): re-arm it rather than re-add it.
		t.activeFDs++
		entry.aggregate = mask
		entry.armed = true
		return t.backend.modify(fd, mask)
	}

	if entry.aggregate&mask != mask {
		entry.aggregate |= mask
		return t.backend.modify(fd, entry.aggregate)
	}
	return nil
}

// dispatch handles one reported (fd, events) pair: it disarms the entry and
// returns the fibers to resume, each paired with the
// reported event mask that should be delivered as the suspend() return
// value. A delivery for an fd absent from the table yields ok=false: the
// caller is responsible for surfacing a KindUnknownFd diagnostic.
func (t *waitSourceTable) dispatch(fd int, reported IOEvents) (resumes []sourceRecord, ok bool) {
	entry, exists := t.entries[fd]
	if !exists {
		return nil, false
	}

	t.activeFDs--

	for _, rec := range entry.sources {
		if (rec.mask|EventError)&reported != 0 {
			resumes = append(resumes, sourceRecord{mask: reported, fiber: rec.fiber})
		}
	}

	if reported&EventError == 0 {
		delete(t.entries, fd)
		_ = t.backend.remove(fd)
	} else {
		entry.sources = nil
		entry.aggregate = 0
		entry.armed = false
	}

	return resumes, true
}

// removeFD drops fd from the table (e.g. on fd close), decrementing
// activeFDs exactly once if it was armed. Safe to call for an fd not
// present.
func (t *waitSourceTable) removeFD(fd int) {
	entry, ok := t.entries[fd]
	if !ok {
		return
	}
	if entry.armed {
		t.activeFDs--
	}
	delete(t.entries, fd)
	_ = t.backend.remove(fd)
}

func (t *waitSourceTable) activeCount() int {
	return t.activeFDs
}
