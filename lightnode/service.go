package lightnode

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"qnetclient/crypto"
	"qnetclient/observability/logging"
	"qnetclient/observability/metrics"
)

var (
	// ErrNotActive indicates a challenge arrived before registration
	// completed or while the node is degraded.
	ErrNotActive = errors.New("lightnode: node not active")
	// ErrAlreadyRegistered guards against double registration.
	ErrAlreadyRegistered = errors.New("lightnode: node already registered")
	// ErrNotRegistered is returned by operations that need a registration.
	ErrNotRegistered = errors.New("lightnode: no node registered")
)

// ServiceConfig wires the collaborators of a liveness service.
type ServiceConfig struct {
	Client   *Client
	Signer   crypto.Signer
	Store    *Store
	Probes   []ChannelProbe
	DeviceID string
	Logger   *slog.Logger
	Clock    func() time.Time
}

// Service runs the liveness protocol for the device's light node: it
// registers the node, answers signed ping challenges delivered over any
// channel, keeps the one-shot wake-up armed for the polling fallback, and
// reactivates the node after too many missed proofs.
//
// Challenges from push deliveries, the websocket feed and polling all land on
// one channel, so there is a single handling path regardless of how a
// challenge arrived.
type Service struct {
	client     *Client
	signer     crypto.Signer
	store      *Store
	sched      *WakeScheduler
	probes     []ChannelProbe
	challenges chan PingChallenge
	log        *slog.Logger
	telemetry  *metrics.LightnodeMetrics
	deviceID   string
	clock      func() time.Time
	wakePoll   time.Duration

	mu    sync.Mutex
	state NodeState
	reg   *NodeRegistration
}

func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		client:     cfg.Client,
		signer:     cfg.Signer,
		store:      cfg.Store,
		sched:      NewWakeScheduler(),
		probes:     cfg.Probes,
		challenges: make(chan PingChallenge, 4),
		log:        logger,
		telemetry:  metrics.Lightnode(),
		deviceID:   cfg.DeviceID,
		clock:      clock,
		wakePoll:   30 * time.Second,
	}
}

// Challenges is the inbound event channel push receivers and feeds write to.
func (s *Service) Challenges() chan<- PingChallenge {
	return s.challenges
}

// State returns the current lifecycle state.
func (s *Service) State() NodeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Registration returns a copy of the current registration, if any.
func (s *Service) Registration() *NodeRegistration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reg == nil {
		return nil
	}
	clone := *s.reg
	return &clone
}

// Register detects the best available push channel, announces the node to the
// bootstrap service and stores the resulting registration. Challenge handling
// only begins once this has completed.
func (s *Service) Register(ctx context.Context, nodeID, walletAddress string) error {
	s.mu.Lock()
	if s.reg != nil || s.state != StateUnregistered {
		s.mu.Unlock()
		return ErrAlreadyRegistered
	}
	s.state = StateRegistering
	s.mu.Unlock()

	reg, err := s.register(ctx, nodeID, walletAddress)
	if err == nil {
		if saveErr := s.store.Save(reg); saveErr != nil {
			err = fmt.Errorf("persist registration: %w", saveErr)
		}
	}
	if err != nil {
		// All-or-nothing: a failed persist rolls the state machine back so the
		// caller can retry instead of hitting ErrAlreadyRegistered with no
		// stored record.
		s.mu.Lock()
		s.state = StateUnregistered
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.reg = reg
	s.state = StateActive
	s.mu.Unlock()

	s.telemetry.IncRegistration(string(reg.PushKind))
	s.telemetry.SetNextPingUnix(float64(reg.NextPingTime.Unix()))
	s.scheduleWake()
	s.log.Info("light node registered",
		"node_id", reg.NodeID,
		logging.WalletAttr(reg.WalletAddress),
		"push_type", string(reg.PushKind),
		"next_ping", reg.NextPingTime)
	return nil
}

func (s *Service) register(ctx context.Context, nodeID, walletAddress string) (*NodeRegistration, error) {
	kind, handle := DetectChannel(ctx, s.log, s.probes)

	pubKey, err := s.signer.PubKeyHex()
	if err != nil {
		return nil, err
	}
	message := fmt.Sprintf("register:%s:%s:%s", nodeID, walletAddress, s.deviceID)
	sig, err := s.signer.Sign([]byte(message))
	if err != nil {
		return nil, err
	}

	params := RegisterParams{
		NodeID:           nodeID,
		WalletAddress:    walletAddress,
		DeviceID:         s.deviceID,
		QuantumPubKey:    pubKey,
		QuantumSignature: hex.EncodeToString(sig),
		PushKind:         kind,
	}
	switch kind {
	case PushKindNative:
		params.DeviceToken = handle
	case PushKindUnified:
		params.UnifiedPushEndpoint = handle
	}

	schedule, err := s.client.Register(ctx, params)
	if err != nil {
		return nil, err
	}

	return &NodeRegistration{
		NodeID:         nodeID,
		WalletAddress:  walletAddress,
		DeviceID:       s.deviceID,
		PushKind:       kind,
		PushHandle:     handle,
		RegisteredAt:   s.clock(),
		NextPingTime:   schedule.NextPingTime,
		NextPingWindow: schedule.NextPingWindow,
	}, nil
}

// Resume restores a stored registration after a restart, refreshes the ping
// schedule from the remote and re-arms the wake-up.
func (s *Service) Resume(ctx context.Context) error {
	reg, err := s.store.Load()
	if err != nil {
		return err
	}
	if reg == nil {
		return nil
	}

	if schedule, err := s.client.NextPing(ctx, reg.NodeID); err == nil {
		reg.NextPingTime = schedule.NextPingTime
		reg.NextPingWindow = schedule.NextPingWindow
	} else {
		s.log.Warn("could not refresh ping schedule on resume", "error", err.Error())
	}

	s.mu.Lock()
	s.reg = reg
	s.state = StateActive
	s.mu.Unlock()

	s.telemetry.SetNextPingUnix(float64(reg.NextPingTime.Unix()))
	s.scheduleWake()
	s.log.Info("light node resumed", "node_id", reg.NodeID, "push_type", string(reg.PushKind))
	return nil
}

// Run consumes the challenge channel until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	defer s.sched.Cancel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case challenge := <-s.challenges:
			if err := s.HandleChallenge(ctx, challenge); err != nil {
				if errors.Is(err, crypto.ErrWalletLocked) {
					s.log.Warn("challenge dropped, wallet locked", "node_id", challenge.NodeID)
					continue
				}
				s.log.Error("challenge handling failed", "node_id", challenge.NodeID, "error", err.Error())
			}
		}
	}
}

// HandleChallenge signs the nonce and submits the response, then refreshes
// the ping schedule. Challenges are only honored while the node is active.
func (s *Service) HandleChallenge(ctx context.Context, challenge PingChallenge) error {
	s.mu.Lock()
	reg := s.reg
	state := s.state
	s.mu.Unlock()

	if reg == nil || state != StateActive {
		return ErrNotActive
	}
	if challenge.NodeID != "" && challenge.NodeID != reg.NodeID {
		return fmt.Errorf("challenge for unknown node %s", challenge.NodeID)
	}

	sig, err := s.signer.Sign([]byte(challenge.Nonce))
	if err != nil {
		if errors.Is(err, crypto.ErrWalletLocked) {
			s.telemetry.IncChallengeFailure("wallet_locked")
		} else {
			s.telemetry.IncChallengeFailure("signing")
		}
		return err
	}

	if err := s.client.PingResponse(ctx, reg.NodeID, challenge.Nonce, hex.EncodeToString(sig)); err != nil {
		s.telemetry.IncChallengeFailure("submit")
		return err
	}

	s.telemetry.IncChallengeAnswered()
	s.log.Info("ping challenge answered", "node_id", reg.NodeID)
	return s.refreshSchedule(ctx)
}

// PeriodicCheck is the entry point for platform-forced background wake-ups.
// Outside the allowed window around the next ping time it performs no remote
// calls at all.
func (s *Service) PeriodicCheck(ctx context.Context) error {
	s.mu.Lock()
	reg := s.reg
	s.mu.Unlock()
	if reg == nil {
		return nil
	}
	if !WithinCheckWindow(s.clock(), reg.NextPingTime) {
		return nil
	}
	_, err := s.pollOnce(ctx)
	return err
}

// pollOnce checks for a pending challenge, handles it when present, and
// refreshes the schedule either way. The bool reports whether a challenge was
// actually answered.
func (s *Service) pollOnce(ctx context.Context) (bool, error) {
	s.mu.Lock()
	reg := s.reg
	s.mu.Unlock()
	if reg == nil {
		return false, ErrNotRegistered
	}

	challenge, err := s.client.PendingChallenge(ctx, reg.NodeID)
	if err != nil {
		return false, err
	}
	if challenge != nil {
		return true, s.HandleChallenge(ctx, *challenge)
	}
	return false, s.refreshSchedule(ctx)
}

// refreshSchedule re-derives the next ping window from the remote, persists
// it and re-arms the wake-up for polling nodes.
func (s *Service) refreshSchedule(ctx context.Context) error {
	s.mu.Lock()
	reg := s.reg
	s.mu.Unlock()
	if reg == nil {
		return ErrNotRegistered
	}

	schedule, err := s.client.NextPing(ctx, reg.NodeID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.reg == nil {
		// Logged out while the call was in flight; discard the result.
		s.mu.Unlock()
		return nil
	}
	moved := !schedule.NextPingTime.Equal(s.reg.NextPingTime)
	s.reg.NextPingTime = schedule.NextPingTime
	s.reg.NextPingWindow = schedule.NextPingWindow
	updated := *s.reg
	s.mu.Unlock()

	if err := s.store.Save(&updated); err != nil {
		return err
	}
	s.telemetry.SetNextPingUnix(float64(schedule.NextPingTime.Unix()))
	// Re-arm only when the remote moved the window. Re-arming an unchanged
	// ping time whose wake moment has already passed would fire again
	// immediately and spin against the remote until the window opens.
	if moved {
		s.scheduleWake()
	}
	return nil
}

// RefreshStatus pulls the remote's liveness view and transitions to Degraded
// when reactivation is required.
func (s *Service) RefreshStatus(ctx context.Context) (LivenessStatus, error) {
	s.mu.Lock()
	reg := s.reg
	s.mu.Unlock()
	if reg == nil {
		return LivenessStatus{}, ErrNotRegistered
	}

	status, err := s.client.Status(ctx, reg.NodeID)
	if err != nil {
		return LivenessStatus{}, err
	}

	s.telemetry.SetConsecutiveFailures(float64(status.ConsecutiveFailures))
	if status.NeedsReactivation {
		s.mu.Lock()
		s.state = StateDegraded
		s.mu.Unlock()
		s.log.Warn("node needs reactivation",
			"node_id", reg.NodeID,
			"consecutive_failures", status.ConsecutiveFailures)
	}
	return status, nil
}

// Reactivate submits a signed reactivation request. Idempotent: reactivating
// an already active node is a harmless no-op reported by the remote.
func (s *Service) Reactivate(ctx context.Context) (bool, error) {
	s.mu.Lock()
	reg := s.reg
	s.mu.Unlock()
	if reg == nil {
		return false, ErrNotRegistered
	}

	timestamp := s.clock().Unix()
	message := fmt.Sprintf("reactivate:%s:%d", reg.NodeID, timestamp)
	sig, err := s.signer.Sign([]byte(message))
	if err != nil {
		return false, err
	}

	result, err := s.client.Reactivate(ctx, reg.NodeID, reg.WalletAddress, hex.EncodeToString(sig), timestamp)
	if err != nil {
		s.telemetry.IncReactivation("error")
		return false, err
	}

	s.mu.Lock()
	if s.reg == nil {
		s.mu.Unlock()
		return result.WasReactivated, nil
	}
	s.state = StateActive
	if result.Schedule.NextPingTime.Unix() > 0 {
		s.reg.NextPingTime = result.Schedule.NextPingTime
		s.reg.NextPingWindow = result.Schedule.NextPingWindow
	}
	updated := *s.reg
	s.mu.Unlock()

	if err := s.store.Save(&updated); err != nil {
		return result.WasReactivated, err
	}
	s.telemetry.SetConsecutiveFailures(0)
	s.telemetry.SetNextPingUnix(float64(updated.NextPingTime.Unix()))
	s.scheduleWake()

	if result.WasReactivated {
		s.telemetry.IncReactivation("reactivated")
		s.log.Info("node reactivated", "node_id", reg.NodeID)
	} else {
		s.telemetry.IncReactivation("noop")
	}
	return result.WasReactivated, nil
}

// Logout cancels any pending wake-up and destroys the local registration.
// In-flight calls may still complete; their results are discarded.
func (s *Service) Logout() error {
	s.sched.Cancel()
	s.mu.Lock()
	s.reg = nil
	s.state = StateUnregistered
	s.mu.Unlock()
	return s.store.Delete()
}

// scheduleWake arms the one-shot wake-up for polling nodes. Push-driven nodes
// do not self-wake; their challenges arrive as events.
func (s *Service) scheduleWake() {
	s.mu.Lock()
	reg := s.reg
	s.mu.Unlock()
	if reg == nil || reg.PushKind != PushKindPolling {
		return
	}
	wakeAt := s.sched.Schedule(reg.NextPingTime, s.onWake)
	s.log.Debug("wake-up scheduled", "node_id", reg.NodeID, "wake_at", wakeAt)
}

// onWake runs when the one-shot wake fires, WakeLead ahead of the expected
// ping time. The remote does not always issue the challenge that early, so
// after an empty poll the wake keeps watching at a coarse interval until the
// window closes. It never re-arms the scheduler itself; only a moved window
// does that.
func (s *Service) onWake() {
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		handled, err := s.pollOnce(ctx)
		cancel()
		if err != nil {
			if !errors.Is(err, ErrNotRegistered) {
				s.log.Warn("scheduled wake-up failed", "error", err.Error())
			}
			return
		}
		if handled {
			return
		}

		reg := s.Registration()
		if reg == nil {
			return
		}
		now := s.clock()
		if now.Before(reg.NextPingTime.Add(-WakeLead)) {
			// The window moved out; a fresh wake is armed for it.
			return
		}
		if now.After(reg.NextPingTime.Add(checkWindowAfter)) {
			s.log.Warn("ping window passed without a challenge", "node_id", reg.NodeID)
			return
		}
		time.Sleep(s.wakePoll)
	}
}
