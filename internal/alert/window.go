package alert

// violationWindow is a fixed-capacity FIFO of 0/1 flags backed by a circular
// buffer, with a running count of set flags so the rate is O(1) per sample.
type violationWindow struct {
	buf   []bool
	head  int // index of the oldest entry
	size  int
	count int
}

func newViolationWindow(capacity int) *violationWindow {
	return &violationWindow{buf: make([]bool, capacity)}
}

// push appends v, evicting the oldest entry once the window is full.
func (w *violationWindow) push(v bool) {
	capacity := len(w.buf)
	if capacity == 0 {
		return
	}
	if w.size == capacity {
		if w.buf[w.head] {
			w.count--
		}
		w.buf[w.head] = v
		w.head = (w.head + 1) % capacity
	} else {
		w.buf[(w.head+w.size)%capacity] = v
		w.size++
	}
	if v {
		w.count++
	}
}

func (w *violationWindow) length() int   { return w.size }
func (w *violationWindow) capacity() int { return len(w.buf) }
func (w *violationWindow) ones() int     { return w.count }
func (w *violationWindow) full() bool    { return w.size == len(w.buf) }

func (w *violationWindow) reset() {
	clear(w.buf)
	w.head, w.size, w.count = 0, 0, 0
}

// values returns the flags oldest first.
func (w *violationWindow) values() []bool {
	out := make([]bool, w.size)
	for i := range out {
		out[i] = w.buf[(w.head+i)%len(w.buf)]
	}
	return out
}
