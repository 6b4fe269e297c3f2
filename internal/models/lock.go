package models

import "time"

// InstanceLockRecord is the single lease row guaranteeing one active
// pipeline per deployment. A record whose heartbeat is older than the
// liveness window is abandoned and may be reclaimed.
type InstanceLockRecord struct {
	Name        string    `bson:"_id" json:"name"`
	OwnerToken  string    `bson:"owner_token" json:"owner_token"`
	OwnerPID    int       `bson:"owner_pid" json:"owner_pid"`
	Hostname    string    `bson:"hostname" json:"hostname"`
	StartedAt   time.Time `bson:"started_at" json:"started_at"`
	HeartbeatAt time.Time `bson:"heartbeat_at" json:"heartbeat_at"`
}
