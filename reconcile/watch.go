package reconcile

// Watch returns a channel that receives a signal after the collection changes.
// Signals coalesce: a slow reader sees at most one pending signal. Call the
// returned func to stop watching.
func (s *Store) Watch() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.wmu.Lock()
	s.watchers[ch] = struct{}{}
	s.wmu.Unlock()
	return ch, func() {
		s.wmu.Lock()
		delete(s.watchers, ch)
		s.wmu.Unlock()
	}
}

func (s *Store) notify() {
	s.wmu.Lock()
	for ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	s.wmu.Unlock()
}
