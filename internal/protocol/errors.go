package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Colony routing/state.
	ErrColonyBusy = "E_COLONY_BUSY"
	ErrTimeout    = "E_TIMEOUT"

	// Scheduling layer.
	ErrUnknownWorker = "E_UNKNOWN_WORKER"
	ErrUnknownTask   = "E_UNKNOWN_TASK"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrColonyBusy:      {},
	ErrTimeout:         {},
	ErrUnknownWorker:   {},
	ErrUnknownTask:     {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
