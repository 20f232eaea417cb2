package link

import "github.com/aidee-health/embody-serial-go/pkg/codec"

// dispatcher routes a decoded frame to the response slot and the
// appropriate fan-out lane. It has no goroutine of its own: routing is
// synchronous bookkeeping, delivery to subscribers always happens on one
// of the pools.
type dispatcher struct {
	reg          *registry
	notification *pool
	response     *pool
	slot         *responseSlot
}

func newDispatcher(reg *registry, notification, response *pool, slot *responseSlot) *dispatcher {
	return &dispatcher{reg: reg, notification: notification, response: response, slot: slot}
}

// dispatch is called from the reader goroutine for every frame decoded in
// framing mode.
func (d *dispatcher) dispatch(msg codec.Message) {
	if codec.IsResponse(msg.Type()) {
		d.slot.put(msg)
		for _, l := range d.reg.responseListeners() {
			l := l
			d.response.Submit(func() { l(msg) })
		}
		return
	}
	for _, l := range d.reg.messageListeners() {
		l := l
		d.notification.Submit(func() { l(msg) })
	}
}
