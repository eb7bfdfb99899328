package observerproto

// Version is the observer protocol version (separate from the operator WS protocol).
const Version = "1.0"

// Client -> Server. First message on the observer WS connection.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}

// HTTP response for GET /v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string         `json:"protocol_version"`
	ColonyID        string         `json:"colony_id"`
	RunID           string         `json:"run_id"`
	Tick            uint64         `json:"tick"`
	Params          ColonyParams   `json:"params"`
	Stations        []StationInfo  `json:"stations"`
	Colonists       []ColonistInfo `json:"colonists"`
	MetaTasks       []string       `json:"meta_tasks"`
}

type ColonyParams struct {
	TickRateHz    int     `json:"tick_rate_hz"`
	TimePerTick   float64 `json:"time_per_tick"`
	SolLength     float64 `json:"sol_length"`
	Seed          int64   `json:"seed"`
	BoundaryR     float64 `json:"boundary_r"`
	PolarLatitude float64 `json:"polar_latitude"`
}

type StationInfo struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Capacity int    `json:"capacity"`
}

type ColonistInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Shift string `json:"shift"`
}
