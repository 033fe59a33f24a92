package keymanager

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kenneth/pq-encryption-service/internal/crypto"
	"github.com/kenneth/pq-encryption-service/internal/provider"
)

// State is the manager lifecycle state.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateReady         State = "ready"
	StateRotating      State = "rotating"
)

// DefaultGracePeriod is how long the previous key pair stays usable for
// decryption after a rotation.
const DefaultGracePeriod = 5 * time.Minute

// Config configures a Manager.
type Config struct {
	Preset       string
	StoragePath  string
	AllowedRoot  string
	ExpiryMonths int
	GracePeriod  time.Duration
	// AutoGenerate controls whether Initialize generates a fresh pair when
	// no usable persisted keys exist.
	AutoGenerate    bool
	BackupEnabled   bool
	BackupRetention int
}

// rotationCall is the single-flight slot: the first rotating caller
// installs one and performs the work, later callers await the same result.
type rotationCall struct {
	done chan struct{}
	kp   *provider.KeyPair
	err  error
}

// Manager owns the current and previous key pairs, the expiry policy and
// the rotation state machine. It is the only component with mutable shared
// state; all mutation funnels through Initialize, RotateKeys and
// EnsureValidKeys. Construct one per storage directory and share the
// handle; there is no process-wide singleton.
type Manager struct {
	cfg      Config
	provider provider.Provider
	storage  *Storage
	logger   *logrus.Logger

	mu            sync.Mutex
	state         State
	currentKeys   *provider.KeyPair
	previousKeys  *provider.KeyPair
	rotating      bool
	rotationStart time.Time
	inflight      *rotationCall
	graceTimer    *time.Timer

	now func() time.Time
}

// NewManager validates the configuration and creates an uninitialized
// manager. Initialize must be called before any key operation.
func NewManager(cfg Config, logger *logrus.Logger) (*Manager, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}

	prov, err := provider.ForPreset(cfg.Preset, cfg.ExpiryMonths)
	if err != nil {
		return nil, err
	}

	storage, err := NewStorage(cfg.StoragePath, cfg.AllowedRoot)
	if err != nil {
		return nil, err
	}

	return &Manager{
		cfg:      cfg,
		provider: prov,
		storage:  storage,
		logger:   logger,
		state:    StateUninitialized,
		now:      time.Now,
	}, nil
}

// Provider returns the manager's key provider.
func (m *Manager) Provider() provider.Provider {
	return m.provider
}

// Preset returns the configured preset.
func (m *Manager) Preset() string {
	return m.cfg.Preset
}

// Initialize is idempotent: it ensures the storage location exists, loads
// persisted keys or generates fresh ones when AutoGenerate is set, and
// validates the result. Any validation failure is fatal to initialization.
func (m *Manager) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return crypto.WrapError(crypto.KindKeyManager, "Manager.Initialize", "context cancelled", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateUninitialized {
		return nil
	}
	m.state = StateInitializing

	if err := m.loadOrGenerateKeys(); err != nil {
		m.state = StateUninitialized
		return err
	}

	m.state = StateReady
	return nil
}

// loadOrGenerateKeys runs with m.mu held.
func (m *Manager) loadOrGenerateKeys() error {
	const op = "Manager.Initialize"

	if err := m.storage.EnsureDir(); err != nil {
		return err
	}

	kp, loadErr := m.storage.LoadKeyPair()
	if loadErr != nil {
		if !m.cfg.AutoGenerate {
			return crypto.WrapError(crypto.KindKeyManager, op, "no usable persisted keys and auto-generation is disabled", loadErr)
		}

		m.logger.WithError(loadErr).Info("No usable persisted keys, generating a fresh key pair")

		history, err := m.storage.LoadHistory()
		if err != nil {
			m.logger.WithError(err).Warn("Failed to load rotation history, starting a fresh one")
			history = NewRotationHistory(m.now())
		}

		kp, err = m.provider.GenerateKeyPair(&provider.MetadataOverrides{Version: history.NextVersion()})
		if err != nil {
			return crypto.WrapError(crypto.KindKeyManager, op, "key generation failed", err)
		}

		if result := m.provider.ValidateKeyPair(kp); !result.OK {
			return crypto.Errorf(crypto.KindKeyManager, op, "generated key pair failed validation: %s", strings.Join(result.Errors, "; "))
		}

		if err := m.storage.SaveKeyPair(kp); err != nil {
			return err
		}

		history.Append(kp.Metadata.Version, kp.Metadata.CreatedAt, kp.Metadata.ExpiresAt, m.now(), ReasonInitialGeneration)
		if err := m.storage.SaveHistory(history); err != nil {
			m.logger.WithError(err).Warn("Failed to persist rotation history")
		}
	} else if result := m.provider.ValidateKeyPair(kp); !result.OK {
		return crypto.Errorf(crypto.KindKeyManager, op, "persisted key pair failed validation: %s", strings.Join(result.Errors, "; "))
	}

	m.currentKeys = kp
	m.logger.WithFields(logrus.Fields{
		"preset":    kp.Metadata.Preset,
		"version":   kp.Metadata.Version,
		"expiresAt": kp.Metadata.ExpiresAt,
	}).Info("Key manager initialized")
	return nil
}

// NeedsRotation reports whether the current pair is missing, has no expiry
// recorded, or has expired.
func (m *Manager) NeedsRotation() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.needsRotationLocked()
}

func (m *Manager) needsRotationLocked() bool {
	if m.currentKeys == nil {
		return true
	}
	if m.currentKeys.Metadata.ExpiresAt.IsZero() {
		return true
	}
	return m.now().After(m.currentKeys.Metadata.ExpiresAt)
}

// EnsureValidKeys returns a valid current key pair, awaiting any in-flight
// rotation and triggering one when the current pair needs it. The decision
// to rotate and the single-flight installation happen under one lock
// acquisition, so concurrent callers can never start duplicate rotations.
func (m *Manager) EnsureValidKeys(ctx context.Context) (*provider.KeyPair, error) {
	const op = "Manager.EnsureValidKeys"

	m.mu.Lock()
	if m.state == StateUninitialized || m.state == StateInitializing {
		m.mu.Unlock()
		return nil, crypto.NewError(crypto.KindKeyManager, op, "manager is not initialized")
	}
	if call := m.inflight; call != nil {
		m.mu.Unlock()
		return awaitRotation(ctx, call)
	}
	if !m.needsRotationLocked() {
		kp := m.currentKeys
		m.mu.Unlock()
		return kp, nil
	}
	call := &rotationCall{done: make(chan struct{})}
	m.inflight = call
	m.mu.Unlock()

	return m.runRotation(call, ReasonScheduledRotation)
}

// RotateKeys rotates to a fresh key pair. Rotation is single-flight: a
// second caller arriving while one is in progress receives the same
// in-flight result instead of starting a duplicate rotation. On failure
// the in-flight slot is cleared so a future call can retry.
func (m *Manager) RotateKeys(ctx context.Context, reason RotationReason) (*provider.KeyPair, error) {
	m.mu.Lock()
	if m.state == StateUninitialized || m.state == StateInitializing {
		m.mu.Unlock()
		return nil, crypto.NewError(crypto.KindKeyManager, "Manager.RotateKeys", "manager is not initialized")
	}
	if call := m.inflight; call != nil {
		m.mu.Unlock()
		return awaitRotation(ctx, call)
	}
	call := &rotationCall{done: make(chan struct{})}
	m.inflight = call
	m.mu.Unlock()

	return m.runRotation(call, reason)
}

// runRotation performs the rotation and publishes the result to every
// caller awaiting the single-flight slot.
func (m *Manager) runRotation(call *rotationCall, reason RotationReason) (*provider.KeyPair, error) {
	kp, err := m.rotate(reason)

	m.mu.Lock()
	call.kp, call.err = kp, err
	m.inflight = nil
	m.mu.Unlock()
	close(call.done)

	return kp, err
}

// rotate performs the rotation sequence outside the lock: only the final
// key swap mutates shared state. Persistence failures are logged and
// swallowed because the in-memory key state is authoritative for live
// traffic; generation and validation failures are fatal.
func (m *Manager) rotate(reason RotationReason) (*provider.KeyPair, error) {
	const op = "Manager.RotateKeys"

	history, err := m.storage.LoadHistory()
	if err != nil {
		m.logger.WithError(err).Warn("Failed to load rotation history, starting a fresh one")
		history = NewRotationHistory(m.now())
	}

	next := history.NextVersion()
	m.mu.Lock()
	current := m.currentKeys
	if current != nil && current.Metadata.Version >= next {
		next = current.Metadata.Version + 1
	}
	m.mu.Unlock()

	newKeys, err := m.provider.GenerateKeyPair(&provider.MetadataOverrides{Version: next})
	if err != nil {
		return nil, crypto.WrapError(crypto.KindKeyManager, op, "key generation failed", err)
	}
	if result := m.provider.ValidateKeyPair(newKeys); !result.OK {
		return nil, crypto.Errorf(crypto.KindKeyManager, op, "generated key pair failed validation: %s", strings.Join(result.Errors, "; "))
	}

	now := m.now()
	if current != nil && m.cfg.BackupEnabled {
		if err := m.storage.BackupKeyPair(current, now); err != nil {
			m.logger.WithError(err).Warn("Failed to back up superseded key pair")
		}
		if err := m.storage.PruneBackups(m.cfg.BackupRetention); err != nil {
			m.logger.WithError(err).Warn("Failed to prune old key backups")
		}
	}

	if err := m.storage.SaveKeyPair(newKeys); err != nil {
		m.logger.WithError(err).Warn("Failed to persist rotated key pair")
	}

	history.Append(next, newKeys.Metadata.CreatedAt, newKeys.Metadata.ExpiresAt, now, reason)
	if err := m.storage.SaveHistory(history); err != nil {
		m.logger.WithError(err).Warn("Failed to persist rotation history")
	}

	m.mu.Lock()
	if m.previousKeys != nil {
		// A back-to-back rotation supersedes the old previous pair before
		// its grace window ended.
		m.previousKeys.Zero()
	}
	m.previousKeys = m.currentKeys
	m.currentKeys = newKeys
	m.rotating = true
	m.rotationStart = now
	m.state = StateRotating
	if m.graceTimer != nil {
		m.graceTimer.Stop()
	}
	m.graceTimer = time.AfterFunc(m.cfg.GracePeriod, m.finishGracePeriod)
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"version":     next,
		"reason":      reason,
		"gracePeriod": m.cfg.GracePeriod,
	}).Info("Key rotation complete")

	return newKeys, nil
}

// finishGracePeriod clears the previous pair once the grace window ends.
func (m *Manager) finishGracePeriod() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.previousKeys != nil {
		m.previousKeys.Zero()
		m.previousKeys = nil
	}
	m.rotating = false
	m.rotationStart = time.Time{}
	m.graceTimer = nil
	if m.state == StateRotating {
		m.state = StateReady
	}
}

// GetDecryptionKeys returns the ordered candidate secret keys: the current
// key first, the previous key second and only while inside the grace
// window. The returned slices are independent copies, so the grace-period
// cleanup can never zero bytes a decryption is still reading. Callers
// should zero the copies once done with them.
func (m *Manager) GetDecryptionKeys() ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.currentKeys == nil {
		return nil, crypto.NewError(crypto.KindKeyManager, "Manager.GetDecryptionKeys", "no current key pair")
	}

	keys := [][]byte{append([]byte(nil), m.currentKeys.SecretKey...)}
	if m.previousKeys != nil && m.now().Sub(m.rotationStart) < m.cfg.GracePeriod {
		keys = append(keys, append([]byte(nil), m.previousKeys.SecretKey...))
	}
	return keys, nil
}

// PublicKeyInfo describes the current public key for distribution.
type PublicKeyInfo struct {
	Preset    string    `json:"preset"`
	PublicKey string    `json:"publicKey"`
	Version   int       `json:"version"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CurrentPublicKey returns a copy of the current public key material.
func (m *Manager) CurrentPublicKey() (*PublicKeyInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.currentKeys == nil {
		return nil, crypto.NewError(crypto.KindKeyManager, "Manager.CurrentPublicKey", "no current key pair")
	}

	return &PublicKeyInfo{
		Preset:    m.currentKeys.Metadata.Preset,
		PublicKey: crypto.EncodeBase64(m.currentKeys.PublicKey),
		Version:   m.currentKeys.Metadata.Version,
		ExpiresAt: m.currentKeys.Metadata.ExpiresAt,
	}, nil
}

// Status is the health surface, derived entirely from manager state.
type Status struct {
	State          State      `json:"state"`
	KeysExist      bool       `json:"keysExist"`
	KeysValid      bool       `json:"keysValid"`
	KeysExpired    bool       `json:"keysExpired"`
	Rotating       bool       `json:"rotating"`
	Version        int        `json:"version,omitempty"`
	CreatedAt      *time.Time `json:"createdAt,omitempty"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
	RotationStart  *time.Time `json:"rotationStart,omitempty"`
	GraceRemaining string     `json:"graceRemaining,omitempty"`
}

// Status reports the manager's health surface.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := Status{
		State:    m.state,
		Rotating: m.rotating,
	}

	if m.currentKeys != nil {
		status.KeysExist = true
		status.KeysValid = m.provider.ValidateKeyPair(m.currentKeys).OK
		status.KeysExpired = m.currentKeys.Expired(m.now())
		status.Version = m.currentKeys.Metadata.Version
		createdAt := m.currentKeys.Metadata.CreatedAt
		expiresAt := m.currentKeys.Metadata.ExpiresAt
		status.CreatedAt = &createdAt
		status.ExpiresAt = &expiresAt
	}

	if m.rotating {
		start := m.rotationStart
		status.RotationStart = &start
		if remaining := m.cfg.GracePeriod - m.now().Sub(m.rotationStart); remaining > 0 {
			status.GraceRemaining = remaining.Round(time.Millisecond).String()
		}
	}

	return status
}

// SecurelyClearKeys overwrites every held secret and public key byte with
// zero and drops the references. Callable at manager teardown.
func (m *Manager) SecurelyClearKeys() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.graceTimer != nil {
		m.graceTimer.Stop()
		m.graceTimer = nil
	}
	if m.currentKeys != nil {
		m.currentKeys.Zero()
		m.currentKeys = nil
	}
	if m.previousKeys != nil {
		m.previousKeys.Zero()
		m.previousKeys = nil
	}
	m.rotating = false
	m.rotationStart = time.Time{}
}

// Reset clears all keys and returns the manager to the uninitialized
// state. It exists for test isolation and must not race an in-flight
// rotation.
func (m *Manager) Reset() {
	m.SecurelyClearKeys()

	m.mu.Lock()
	m.state = StateUninitialized
	m.mu.Unlock()
}

// awaitRotation waits for an in-flight rotation to finish.
func awaitRotation(ctx context.Context, call *rotationCall) (*provider.KeyPair, error) {
	select {
	case <-call.done:
		return call.kp, call.err
	case <-ctx.Done():
		return nil, crypto.WrapError(crypto.KindKeyManager, "Manager.RotateKeys", "context cancelled while awaiting rotation", ctx.Err())
	}
}
