package ratelimit

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kmauer/krakenlimit/tier"
)

// decayLoop periodically bleeds the general counter and every
// cancellation accumulator toward zero. Open-order counts are never
// time-decayed; they only drop on OrderClosedDecay.
type decayLoop struct {
	store    *Store
	rates    tier.Decay
	interval time.Duration
	log      zerolog.Logger
	obs      Observer

	// step is the work done per tick; replaced in tests.
	step func()

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func newDecayLoop(store *Store, rates tier.Decay, interval time.Duration, log zerolog.Logger, obs Observer) *decayLoop {
	d := &decayLoop{
		store:    store,
		rates:    rates,
		interval: interval,
		log:      log,
		obs:      obs,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	d.step = d.applyDecay
	return d
}

func (d *decayLoop) Start() {
	go d.run()
}

func (d *decayLoop) run() {
	defer close(d.done)
	t := time.NewTicker(d.interval)
	defer t.Stop()
	for {
		select {
		case <-d.stop:
			return
		case <-t.C:
			d.tick()
		}
	}
}

// tick applies one decay step. A panic inside the step is logged and
// swallowed so a bad tick never kills the loop.
func (d *decayLoop) tick() {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Interface("panic", r).Msg("decay tick failed")
		}
	}()
	d.step()
}

func (d *decayLoop) applyDecay() {
	d.store.DecayGeneral(d.rates.General)
	d.store.DecayAllCancels(d.rates.Cancel)
	d.obs.GeneralLevel(d.store.General())
	d.obs.DecayTick()
}

// Stop halts the loop and waits for any in-flight tick to finish.
// Safe to call more than once.
func (d *decayLoop) Stop() {
	d.stopOnce.Do(func() { close(d.stop) })
	<-d.done
}
