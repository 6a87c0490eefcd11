package usecase

import (
	"time"

	"github.com/mmuslimabdulj/goban-live/internal/domain"
)

// Discard records an inbound event or history entry that was not applied
type Discard struct {
	Type   domain.MessageType
	Reason string
	At     time.Time
}

// Journal is a fixed-size circular buffer of recent discards.
// It is owned by one view loop and is not safe for concurrent use.
type Journal struct {
	data []Discard
	head int // next write position
	size int // current number of elements
	cap  int // maximum capacity
}

// NewJournal creates a new journal with the given capacity
func NewJournal(capacity int) *Journal {
	if capacity <= 0 {
		capacity = domain.DefaultJournalSize
	}
	return &Journal{
		data: make([]Discard, capacity),
		cap:  capacity,
	}
}

// Add appends an entry, overwriting the oldest if full
func (j *Journal) Add(d Discard) {
	j.data[j.head] = d
	j.head = (j.head + 1) % j.cap

	if j.size < j.cap {
		j.size++
	}
}

// GetAll returns all entries in chronological order (oldest first)
func (j *Journal) GetAll() []Discard {
	if j.size == 0 {
		return nil
	}

	result := make([]Discard, j.size)

	if j.size < j.cap {
		copy(result, j.data[:j.size])
	} else {
		// Full: head points to the oldest entry
		copy(result, j.data[j.head:])
		copy(result[j.cap-j.head:], j.data[:j.head])
	}

	return result
}

// Len returns the current number of entries
func (j *Journal) Len() int {
	return j.size
}

// Clear removes all entries
func (j *Journal) Clear() {
	j.head = 0
	j.size = 0
	clear(j.data)
}
