package stats

import "time"

// timestampRing is a fixed-capacity ring of raw event times. Once full,
// each push evicts the oldest entry.
type timestampRing struct {
	buf   []time.Time
	head  int
	count int
}

func newTimestampRing(capacity int) *timestampRing {
	if capacity < 1 {
		capacity = 1
	}
	return &timestampRing{buf: make([]time.Time, capacity)}
}

func (r *timestampRing) push(t time.Time) {
	if r.count < len(r.buf) {
		r.buf[(r.head+r.count)%len(r.buf)] = t
		r.count++
		return
	}
	r.buf[r.head] = t
	r.head = (r.head + 1) % len(r.buf)
}

func (r *timestampRing) len() int { return r.count }

// countSince returns how many stored timestamps fall at or after cutoff.
func (r *timestampRing) countSince(cutoff time.Time) int {
	n := 0
	for i := 0; i < r.count; i++ {
		if !r.buf[(r.head+i)%len(r.buf)].Before(cutoff) {
			n++
		}
	}
	return n
}

func (r *timestampRing) reset() {
	r.head = 0
	r.count = 0
}

// bucketRing is a fixed-capacity ring of per-second request counts,
// oldest first.
type bucketRing struct {
	buf   []int
	head  int
	count int
}

func newBucketRing(capacity int) *bucketRing {
	if capacity < 1 {
		capacity = 1
	}
	return &bucketRing{buf: make([]int, capacity)}
}

func (r *bucketRing) push(n int) {
	if r.count < len(r.buf) {
		r.buf[(r.head+r.count)%len(r.buf)] = n
		r.count++
		return
	}
	r.buf[r.head] = n
	r.head = (r.head + 1) % len(r.buf)
}

// values returns a copy of the stored counts in insertion order.
func (r *bucketRing) values() []int {
	if r.count == 0 {
		return nil
	}
	out := make([]int, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

func (r *bucketRing) reset() {
	r.head = 0
	r.count = 0
}
