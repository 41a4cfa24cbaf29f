package domain

import "sync/atomic"

// IDSequence: явный генератор монотонно растущих идентификаторов заказов.
type IDSequence struct {
	last atomic.Int64
}

// NewIDSequence возвращает генератор, первый Next которого вернёт start (минимум 1).
func NewIDSequence(start int64) *IDSequence {
	if start < 1 {
		start = 1
	}
	seq := &IDSequence{}
	seq.last.Store(start - 1)
	return seq
}

// Next возвращает следующий идентификатор.
func (s *IDSequence) Next() int64 {
	return s.last.Add(1)
}

// Observe сдвигает генератор так, чтобы следующий ID был больше id.
func (s *IDSequence) Observe(id int64) {
	for {
		current := s.last.Load()
		if id <= current || s.last.CompareAndSwap(current, id) {
			return
		}
	}
}
