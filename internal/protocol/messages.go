package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	OperatorName    string `json:"operator_name"`
	MaxQueue        int    `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	ColonyID        string         `json:"colony_id"`
	RunID           string         `json:"run_id"`
	Tick            uint64         `json:"tick"`
	Params          ColonyParams   `json:"params"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type ColonyParams struct {
	TickRateHz  int     `json:"tick_rate_hz"`
	TimePerTick float64 `json:"time_per_tick"`
	SolLength   float64 `json:"sol_length"`
	Seed        int64   `json:"seed"`
	BoundaryR   float64 `json:"boundary_r"`
}

type CatalogDigests struct {
	Stations  DigestRef `json:"stations"`
	Colonists DigestRef `json:"colonists"`
	Behaviors DigestRef `json:"behaviors"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// CATALOG (server -> client). Each catalog is sent as a single part.
type CatalogMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Name            string      `json:"name"`   // e.g. "meta_tasks"
	Digest          string      `json:"digest"` // sha256 hex
	Part            int         `json:"part"`
	TotalParts      int         `json:"total_parts"`
	Data            interface{} `json:"data"`
}

// QUEUE_TASK (client -> server) asks a worker to start a MetaTask next.
type QueueTaskMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id"`
	WorkerID        string `json:"worker_id"`
	Task            string `json:"task"`
}

type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AckFor          string `json:"ack_for"`
	Accepted        bool   `json:"accepted"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	ServerTick      uint64 `json:"server_tick,omitempty"`
	ColonyID        string `json:"colony_id,omitempty"`
}
