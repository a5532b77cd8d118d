package inspection

// FailError is a terminal inspection failure: inspection of the node
// stops and the message becomes the definitive reason it stopped.
type FailError struct {
	Message string
}

// Error returns the failure message.
func (e *FailError) Error() string {
	return e.Message
}
