package pmm

// frameList is an intrusive doubly-linked list of Frame records that belong
// to a single region. The zero value is an empty list. Slot 0 is reserved
// as the nil link.
type frameList struct {
	head, tail uint32
	len        uint32
}

// pushBack appends f to the list. f must not be on any list.
func (l *frameList) pushBack(ix *frameIndexer, f *Frame) {
	slot := ix.slotOf(f)
	tail := l.tail

	f.withLink(func(link *frameLink) {
		link.prev = tail
		link.next = 0
	})

	if tail == 0 {
		l.head = slot
	} else {
		ix.frameForSlot(tail).withLink(func(link *frameLink) {
			link.next = slot
		})
	}

	l.tail = slot
	l.len++
}

// popBack removes and returns the last frame in the list or nil if the list
// is empty.
func (l *frameList) popBack(ix *frameIndexer) *Frame {
	if l.tail == 0 {
		return nil
	}

	var (
		f    = ix.frameForSlot(l.tail)
		prev uint32
	)

	f.withLink(func(link *frameLink) {
		prev = link.prev
		*link = frameLink{}
	})

	if prev == 0 {
		l.head = 0
	} else {
		ix.frameForSlot(prev).withLink(func(link *frameLink) {
			link.next = 0
		})
	}

	l.tail = prev
	l.len--
	return f
}
