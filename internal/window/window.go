package window

// #region rolling
// Rolling is a fixed-capacity FIFO of float samples. When full, pushing a new
// sample evicts exactly the oldest one.
type Rolling struct {
	buf   []float64
	start int
	n     int
}

// New returns an empty window. Capacities below 1 are treated as 1.
func New(capacity int) *Rolling {
	if capacity < 1 {
		capacity = 1
	}
	return &Rolling{buf: make([]float64, capacity)}
}

// Push appends v, evicting the oldest sample when the window is full.
func (r *Rolling) Push(v float64) {
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = v
		r.n++
		return
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
}

// Mean returns the arithmetic mean of the samples currently held.
// ok is false when the window is empty.
func (r *Rolling) Mean() (mean float64, ok bool) {
	if r.n == 0 {
		return 0, false
	}
	var sum float64
	for i := 0; i < r.n; i++ {
		sum += r.buf[(r.start+i)%len(r.buf)]
	}
	return sum / float64(r.n), true
}

// Len reports how many samples are held.
func (r *Rolling) Len() int { return r.n }

// Cap reports the configured capacity.
func (r *Rolling) Cap() int { return len(r.buf) }

// Values returns a copy of the samples, oldest first.
func (r *Rolling) Values() []float64 {
	out := make([]float64, r.n)
	for i := range out {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// Reset drops every sample, keeping the capacity.
func (r *Rolling) Reset() {
	r.start = 0
	r.n = 0
}

// #endregion rolling
