package scheduler

import "github.com/AnyUserName/imgpress-cli/internal/codec"

// EventType is the lifecycle stage a run reached.
type EventType int

const (
	Started EventType = iota
	Succeeded
	Failed
	Skipped
	Discarded // finished after its image stopped being active
)

func (t EventType) String() string {
	switch t {
	case Started:
		return "started"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	case Discarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// Event reports one step of a codec run.
type Event struct {
	Type    EventType
	ImageID string
	Kind    codec.Kind
	Result  *codec.Result // Succeeded only
	Err     error         // *codec.RunError on Failed
}
