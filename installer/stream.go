package installer

import (
	"sync"
)

type queued struct {
	event    Event
	progress bool
}

// stream delivers the events of one run in order without ever blocking the
// engine. Step transitions and the terminal event are always delivered.
// Progress updates pending behind a slow consumer collapse into the latest
// one, and once the run is cancelled only the terminal event gets through.
type stream struct {
	out     chan Event
	done    <-chan struct{}
	mutex   sync.Mutex
	queue   []queued
	final   *Event
	wake    chan struct{}
	sending sync.Mutex
}

func newStream(done <-chan struct{}) *stream {
	s := &stream{
		out:  make(chan Event),
		done: done,
		wake: make(chan struct{}, 1),
	}
	go s.deliver()
	return s
}

func (s *stream) push(event Event, progress bool) {
	s.mutex.Lock()
	n := len(s.queue)
	if progress && n > 0 && s.queue[n-1].progress && s.queue[n-1].event.Step == event.Step {
		s.queue[n-1].event = event
	} else {
		s.queue = append(s.queue, queued{event: event, progress: progress})
	}
	s.mutex.Unlock()
	s.notify()
}

// finish queues the terminal event; the channel is closed after it.
func (s *stream) finish(event Event) {
	s.mutex.Lock()
	s.final = &event
	s.mutex.Unlock()
	s.notify()
}

func (s *stream) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *stream) deliver() {
	defer close(s.out)
	for {
		s.mutex.Lock()
		if len(s.queue) > 0 {
			item := s.queue[0]
			s.queue = s.queue[1:]
			s.mutex.Unlock()
			s.send(item.event)
			continue
		}
		final := s.final
		s.mutex.Unlock()
		if final != nil && final.Step.Terminal() {
			s.out <- *final
			return
		}
		<-s.wake
	}
}

func (s *stream) send(event Event) {
	s.sending.Lock()
	defer s.sending.Unlock()
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.out <- event:
	case <-s.done:
	}
}

// settle waits for a send in flight to complete. Called after the done
// channel is closed, nothing but the terminal event is delivered afterwards.
func (s *stream) settle() {
	s.sending.Lock()
	defer s.sending.Unlock()
}
