package engine

import "sync"

// symbolLocks сериализует защитные последовательности по символу:
// не более одной защитной последовательности на символ одновременно,
// иначе сверка и ручной вход могут наперегонки закрывать одну позицию.
type symbolLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newSymbolLocks() *symbolLocks {
	return &symbolLocks{locks: make(map[string]*sync.Mutex)}
}

// get возвращает mutex символа, создавая его при первом обращении
func (s *symbolLocks) get(symbol string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[symbol]
	if !ok {
		l = &sync.Mutex{}
		s.locks[symbol] = l
	}
	return l
}
