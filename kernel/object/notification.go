package object

// Notification is an asynchronous OR-accumulator. Signals sent while no
// thread is waiting accumulate in Word via bitwise OR; a waiting thread
// either consumes the current Word immediately or blocks on WaitQueue.
// Logic lives in kernel/ipc; this is storage only.
type Notification struct {
	Word      uint64
	BitIsSet  bool
	WaitQueue TCBQueue
	BoundTCB  *TCB
}
