package queue

// Queue represents a basic queue.
type Queue interface {
	Enqueue(item interface{}) error
	Chan() <-chan interface{}
	Size() int
}
