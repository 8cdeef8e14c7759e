package quorum

import "fmt"

// NotMetError is returned by callers (the node facade) wrapping a
// FanoutResult that did not reach its threshold. It carries the full
// per-replica outcome map so an operator can see which replicas ack'd.
type NotMetError struct {
	Op     string // "write", "delete"
	Result FanoutResult
}

func (e *NotMetError) Error() string {
	return fmt.Sprintf("%s quorum not met: %d/%d acks", e.Op, e.Result.Acks, e.Result.Needed)
}
