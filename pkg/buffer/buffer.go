// Package buffer defines interfaces for record buffering operations.
//
// Buffers batch fixed-layout records in memory before they are written to
// the binary stream file, so that producer threads touch the disk (and each
// other) as rarely as possible.
package buffer

import (
	"github.com/cherenkovlab/phspstore/pkg/record"
)

// Buffer is a bounded, ordered record buffer owned by a single thread.
// Implementations are NOT thread-safe: exclusive ownership is the point.
type Buffer[T record.Binary] interface {
	// Append adds a record at the end of the buffer.
	Append(rec T)

	// IsFull reports whether the buffer has reached its capacity.
	IsFull() bool

	// Len returns the number of records currently buffered.
	Len() int

	// Cap returns the buffer's capacity in records.
	Cap() int

	// Total returns the lifetime count of records that passed through
	// the buffer.
	Total() int64

	// Records returns the buffered records in insertion order. The slice
	// is owned by the buffer and is only valid until the next Append or
	// Clear.
	Records() []T

	// Clear resets the record count without releasing reserved storage.
	Clear()
}

// Absorber is the shared master side of the buffer protocol: it takes
// ownership of a worker buffer's records under exclusive access, flushing
// itself to disk first when the absorption would overflow it.
type Absorber[T record.Binary] interface {
	// Absorb moves all records from the worker buffer into the master
	// and clears the worker.
	Absorb(worker Buffer[T])
}
