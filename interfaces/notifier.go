package interfaces

// Notifier is the channel through which contract operations push structured
// results back to the caller. Payloads are tagged with the request ID of the
// transaction that produced them and serialized as JSON by the
// implementation.
type Notifier interface {
	Notify(requestID RequestID, payload any) error
}
