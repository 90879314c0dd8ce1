package ratelimit

import "sync"

// Store holds the mutable rate counters for one trading session: the
// decaying general API counter, open-order counts per symbol, and the
// accumulated cancellation weight per symbol.
//
// Each family has its own lock so unrelated categories never contend;
// the scheduler and the checker both go through these primitives.
type Store struct {
	genMu   sync.Mutex
	general float64

	ordMu  sync.Mutex
	orders map[string]int

	cxlMu   sync.Mutex
	cancels map[string]float64
}

func NewStore() *Store {
	return &Store{
		orders:  make(map[string]int),
		cancels: make(map[string]float64),
	}
}

// IncrementGeneral bumps the general counter and returns the new value.
func (s *Store) IncrementGeneral() float64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	s.general++
	return s.general
}

// DecayGeneral subtracts amount from the general counter, flooring at zero.
func (s *Store) DecayGeneral(amount float64) {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	s.general -= amount
	if s.general < 0 {
		s.general = 0
	}
}

// General returns the current general counter value.
func (s *Store) General() float64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.general
}

// IncrementOrders bumps the open-order count for symbol and returns it.
func (s *Store) IncrementOrders(symbol string) int {
	s.ordMu.Lock()
	defer s.ordMu.Unlock()
	s.orders[symbol]++
	return s.orders[symbol]
}

// DecrementOrders drops the open-order count for symbol by one, flooring
// at zero. Entries that reach zero are removed so symbols no longer
// traded do not linger in the map.
func (s *Store) DecrementOrders(symbol string) {
	s.ordMu.Lock()
	defer s.ordMu.Unlock()
	n, ok := s.orders[symbol]
	if !ok {
		return
	}
	if n <= 1 {
		delete(s.orders, symbol)
		return
	}
	s.orders[symbol] = n - 1
}

// Orders returns the tracked open-order count for symbol.
func (s *Store) Orders(symbol string) int {
	s.ordMu.Lock()
	defer s.ordMu.Unlock()
	return s.orders[symbol]
}

// AddCancelWeight adds weight to the symbol's cancellation accumulator
// and returns the new value.
func (s *Store) AddCancelWeight(symbol string, weight float64) float64 {
	s.cxlMu.Lock()
	defer s.cxlMu.Unlock()
	s.cancels[symbol] += weight
	return s.cancels[symbol]
}

// DecayAllCancels subtracts amount from every cancellation accumulator,
// flooring at zero and pruning entries that hit it.
func (s *Store) DecayAllCancels(amount float64) {
	s.cxlMu.Lock()
	defer s.cxlMu.Unlock()
	for sym, v := range s.cancels {
		v -= amount
		if v <= 0 {
			delete(s.cancels, sym)
			continue
		}
		s.cancels[sym] = v
	}
}

// CancelWeight returns the accumulated cancellation weight for symbol.
func (s *Store) CancelWeight(symbol string) float64 {
	s.cxlMu.Lock()
	defer s.cxlMu.Unlock()
	return s.cancels[symbol]
}
