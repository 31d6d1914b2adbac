package lightnode

import (
	"fmt"
	"time"
)

// NodeState tracks the local liveness lifecycle for one node.
type NodeState uint8

const (
	StateUnregistered NodeState = iota
	StateRegistering
	StateActive
	StateDegraded
)

func (s NodeState) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistering:
		return "registering"
	case StateActive:
		return "active"
	case StateDegraded:
		return "degraded"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// PushKind identifies the channel challenges are delivered over.
type PushKind string

const (
	// PushKindNative is the vendor push service addressed by a device token.
	PushKindNative PushKind = "native"
	// PushKindUnified is a self-hosted push distributor addressed by an
	// endpoint URL.
	PushKindUnified PushKind = "unified_push"
	// PushKindPolling means no push channel is available and the node wakes
	// itself on a schedule instead.
	PushKindPolling PushKind = "polling"
)

// NodeRegistration is the locally owned record of a successful registration.
// It is created once per activation and destroyed on wallet deletion or
// logout, which also cancels any outstanding scheduled wake-up.
type NodeRegistration struct {
	NodeID         string        `json:"node_id"`
	WalletAddress  string        `json:"wallet_address"`
	DeviceID       string        `json:"device_id"`
	PushKind       PushKind      `json:"push_type"`
	PushHandle     string        `json:"push_handle,omitempty"`
	RegisteredAt   time.Time     `json:"registered_at"`
	NextPingTime   time.Time     `json:"next_ping_time"`
	NextPingWindow time.Duration `json:"next_ping_window"`
}

// PingChallenge is an ephemeral nonce issued by the remote service. It is
// consumed exactly once by a signed response.
type PingChallenge struct {
	NodeID   string
	Nonce    string
	IssuedAt time.Time
}

// LivenessStatus mirrors the remote's view of the node. It is cached only to
// decide when to schedule the next wake-up; reward eligibility is decided
// remotely and never inferred from this copy.
type LivenessStatus struct {
	NodeID              string
	IsActive            bool
	ConsecutiveFailures int
	LastSeen            time.Time
	PushKind            PushKind
	NextPingTime        time.Time
	NextPingWindow      time.Duration
	NeedsReactivation   bool
}

// PingSchedule is the authoritative next ping window returned by the remote.
type PingSchedule struct {
	NextPingTime   time.Time
	NextPingWindow time.Duration
}

// ServerNodeStatus is the read-only monitoring view of a server-class node.
// The client has no liveness obligation for these.
type ServerNodeStatus struct {
	NodeID             string
	IsOnline           bool
	HeartbeatCount     uint64
	RequiredHeartbeats uint64
	IsRewardEligible   bool
	PendingRewards     string
}
