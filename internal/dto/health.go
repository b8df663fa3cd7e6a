package dto

const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
)

type ReplicationStats struct {
	Enabled  bool   `json:"enabled"`
	Enqueued uint64 `json:"enqueued"`
	Acked    uint64 `json:"acked"`
	Failed   uint64 `json:"failed"`
	Dropped  uint64 `json:"dropped"`
	Pending  int    `json:"pending"`
}

type Health struct {
	Status      string            `json:"status"`
	Storage     string            `json:"storage"`
	Checks      map[string]string `json:"checks,omitempty"`
	Replication ReplicationStats  `json:"replication"`
}
