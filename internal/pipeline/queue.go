package pipeline

// Item is a unit of work travelling between stages: the owning unit key and
// the directory the previous stage produced for it.
type Item struct {
	Key  string
	Path string
}

// identity is used to drop duplicate deliveries within a run.
func (i Item) identity() string {
	if i.Path != "" {
		return i.Path
	}
	return i.Key
}

type message struct {
	item Item
	end  bool
}

// Queue is a fixed-capacity FIFO carrying items and an end-of-stream sentinel.
// Put and Get block; there are no timeouts.
type Queue struct {
	name string
	ch   chan message
}

// NewQueue returns a queue holding at most capacity items. Capacities below
// one are raised to one.
func NewQueue(name string, capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{name: name, ch: make(chan message, capacity)}
}

// Put appends item, blocking while the queue is full.
func (q *Queue) Put(item Item) {
	q.ch <- message{item: item}
}

// PutSentinel appends the end-of-stream marker, blocking while the queue is full.
func (q *Queue) PutSentinel() {
	q.ch <- message{end: true}
}

// Get removes the next entry, blocking while the queue is empty. ok is false
// when the entry is the sentinel.
func (q *Queue) Get() (item Item, ok bool) {
	msg := <-q.ch
	if msg.end {
		return Item{}, false
	}
	return msg.item, true
}

func (q *Queue) Name() string { return q.name }

func (q *Queue) Len() int { return len(q.ch) }

func (q *Queue) Cap() int { return cap(q.ch) }
