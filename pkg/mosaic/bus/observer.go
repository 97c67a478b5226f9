package bus

// Call is one Notify invocation, as captured by the halt buffer and as
// reported to observers.
type Call struct {
	Topic         string
	Event         string
	Payload       any
	FirstTimeOnly bool
	// Nested is set when the call was made from inside a handler.
	Nested bool
}

// Observer receives bus activity. Observers run synchronously on the bus
// goroutine and must not call back into the Bus.
type Observer interface {
	// OnCapture is called when a Notify is buffered because the bus is halted.
	OnCapture(c Call)

	// OnApply is called once a Notify has been logged, before any handler
	// sees it. Calls made by handlers are therefore reported after the
	// call that triggered them.
	OnApply(c Call)

	// OnNotify is called after a Notify has been applied to its channel.
	// delivered counts handler invocations made by this call.
	OnNotify(c Call, delivered int)

	// OnSubscribe is called for each handler registered by Subscribe.
	// replayed counts payloads delivered before Subscribe returned.
	OnSubscribe(topic, event string, replayed int)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Capture   func(c Call)
	Apply     func(c Call)
	Notify    func(c Call, delivered int)
	Subscribe func(topic, event string, replayed int)
}

// OnCapture implements Observer.
func (o ObserverFuncs) OnCapture(c Call) {
	if o.Capture != nil {
		o.Capture(c)
	}
}

// OnApply implements Observer.
func (o ObserverFuncs) OnApply(c Call) {
	if o.Apply != nil {
		o.Apply(c)
	}
}

// OnNotify implements Observer.
func (o ObserverFuncs) OnNotify(c Call, delivered int) {
	if o.Notify != nil {
		o.Notify(c, delivered)
	}
}

// OnSubscribe implements Observer.
func (o ObserverFuncs) OnSubscribe(topic, event string, replayed int) {
	if o.Subscribe != nil {
		o.Subscribe(topic, event, replayed)
	}
}
