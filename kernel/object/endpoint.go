package object

// EndpointState tracks which side of a rendezvous an Endpoint is
// currently waiting to pair, mirroring the seL4-style
// Idle/SendersWaiting/ReceiversWaiting state machine.
type EndpointState uint8

const (
	EpIdle EndpointState = iota
	EpSendersWaiting
	EpReceiversWaiting
)

func (s EndpointState) String() string {
	switch s {
	case EpIdle:
		return "Idle"
	case EpSendersWaiting:
		return "SendersWaiting"
	case EpReceiversWaiting:
		return "ReceiversWaiting"
	default:
		return "Unknown"
	}
}

// Endpoint is a synchronous rendezvous point. The send/recv state
// machine and queue manipulation live in kernel/ipc; this struct is
// purely the object's storage, the same plain-struct-no-behavior split
// the teacher uses between its vmm page-table data and the functions
// that walk it.
type Endpoint struct {
	State EndpointState
	Queue TCBQueue
}
