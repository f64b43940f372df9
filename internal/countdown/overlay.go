package countdown

import (
	"sync"
	"time"
)

// DefaultFrameInterval is the overlay redraw period.
const DefaultFrameInterval = 50 * time.Millisecond

// Overlay re-renders a Tracker on a fixed frame timer, independent of the
// metronome's poll loop, and hands every frame to a callback.
type Overlay struct {
	tracker *Tracker
	onFrame func(Directives)

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewOverlay starts the frame loop. Close must be called to stop it.
func NewOverlay(t *Tracker, interval time.Duration, onFrame func(Directives)) *Overlay {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	o := &Overlay{
		tracker: t,
		onFrame: onFrame,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go o.run(interval)
	return o
}

func (o *Overlay) run(interval time.Duration) {
	defer close(o.done)
	tk := time.NewTicker(interval)
	defer tk.Stop()
	for {
		select {
		case <-o.stop:
			return
		case <-tk.C:
			d := o.tracker.Render()
			select {
			case <-o.stop:
				return
			default:
			}
			if o.onFrame != nil {
				o.onFrame(d)
			}
		}
	}
}

// Close stops the frame loop and waits for it to exit. No frame callback
// runs after Close returns. It is safe to call more than once, but not
// from inside the frame callback.
func (o *Overlay) Close() {
	o.once.Do(func() { close(o.stop) })
	<-o.done
}

// Done is closed once the frame loop has exited.
func (o *Overlay) Done() <-chan struct{} {
	return o.done
}
