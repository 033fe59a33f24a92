package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kenneth/pq-encryption-service/internal/audit"
	"github.com/kenneth/pq-encryption-service/internal/crypto"
	"github.com/kenneth/pq-encryption-service/internal/keymanager"
	"github.com/kenneth/pq-encryption-service/internal/metrics"
	"github.com/kenneth/pq-encryption-service/internal/middleware"
)

// maxRequestBody bounds request bodies; the largest legitimate payload is
// an EncryptedData record, which stays far below this.
const maxRequestBody = 4 << 20 // 4MB

// Handler serves the service's HTTP boundary. All key state lives in the
// manager; handlers only translate between HTTP and the core.
type Handler struct {
	manager *keymanager.Manager
	engine  *crypto.Engine
	metrics *metrics.Metrics
	audit   *audit.Logger
	logger  *logrus.Logger
}

// NewHandler creates a Handler.
func NewHandler(manager *keymanager.Manager, engine *crypto.Engine, m *metrics.Metrics, auditLog *audit.Logger, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		manager: manager,
		engine:  engine,
		metrics: m,
		audit:   auditLog,
		logger:  logger,
	}
}

// HandleGetPublicKey exposes the current public key for out-of-band
// distribution to encrypting parties.
func (h *Handler) HandleGetPublicKey(w http.ResponseWriter, r *http.Request) {
	info, err := h.manager.CurrentPublicKey()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// encryptRequest is the body for the convenience encrypt endpoint.
type encryptRequest struct {
	Data interface{} `json:"data"`
}

// HandleEncrypt encrypts the request payload against the current public
// key. It exists as a demonstration path; real callers encrypt client-side
// with the distributed public key and the same wire format.
func (h *Handler) HandleEncrypt(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req encryptRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, r, crypto.WrapError(crypto.KindFormat, "api.Encrypt", "invalid request body", err))
		return
	}

	info, err := h.manager.CurrentPublicKey()
	if err != nil {
		writeError(w, r, err)
		return
	}
	publicKey, err := crypto.DecodeBase64(info.PublicKey)
	if err != nil {
		writeError(w, r, err)
		return
	}

	encrypted, err := h.engine.Encrypt(req.Data, publicKey)
	h.recordCrypto("encrypt", audit.EventTypeEncrypt, r, 0, err, time.Since(start))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, encrypted)
}

// decryptResponse wraps the decrypted value.
type decryptResponse struct {
	Data interface{} `json:"data"`
}

// HandleDecrypt accepts an EncryptedData record and decrypts it with the
// manager's candidate key set, so records sealed against the previous key
// keep decrypting throughout the rotation grace window.
func (h *Handler) HandleDecrypt(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var encrypted crypto.EncryptedData
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&encrypted); err != nil {
		writeError(w, r, crypto.WrapError(crypto.KindFormat, "api.Decrypt", "invalid request body", err))
		return
	}

	keys, err := h.manager.GetDecryptionKeys()
	if err != nil {
		writeError(w, r, err)
		return
	}

	data, err := h.engine.DecryptWithGracePeriod(&encrypted, keys)
	for _, key := range keys {
		crypto.ZeroBytes(key)
	}
	h.recordCrypto("decrypt", audit.EventTypeDecrypt, r, len(keys), err, time.Since(start))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, decryptResponse{Data: data})
}

// rotateResponse reports the outcome of a manual rotation.
type rotateResponse struct {
	Version   int       `json:"version"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// HandleRotate triggers a manual key rotation.
func (h *Handler) HandleRotate(w http.ResponseWriter, r *http.Request) {
	kp, err := h.manager.RotateKeys(r.Context(), keymanager.ReasonManualRotation)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordRotationFailure()
		}
		if h.audit != nil {
			h.audit.LogKeyRotation(0, false, err)
		}
		writeError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordRotation(string(keymanager.ReasonManualRotation), kp.Metadata.Version)
	}
	if h.audit != nil {
		h.audit.LogKeyRotation(kp.Metadata.Version, true, nil)
	}

	writeJSON(w, http.StatusOK, rotateResponse{
		Version:   kp.Metadata.Version,
		ExpiresAt: kp.Metadata.ExpiresAt,
	})
}

// statusResponse is the health surface plus recent audit events.
type statusResponse struct {
	keymanager.Status
	RecentEvents []*audit.Event `json:"recentEvents,omitempty"`
}

// HandleStatus reports manager state; everything is derived from the
// manager, with no independent logic.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status := h.manager.Status()

	if h.metrics != nil {
		h.metrics.SetRotationActive(status.Rotating)
		if status.Version > 0 {
			h.metrics.SetKeyVersion(status.Version)
		}
	}

	resp := statusResponse{Status: status}
	if h.audit != nil {
		resp.RecentEvents = h.audit.Recent(20)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) recordCrypto(operation string, eventType audit.EventType, r *http.Request, keysTried int, err error, duration time.Duration) {
	if h.metrics != nil {
		h.metrics.RecordCryptoOperation(operation, h.engine.Preset(), duration, string(crypto.KindOf(err)))
	}
	if h.audit != nil {
		h.audit.LogCrypto(eventType, h.engine.Preset(), middleware.RequestIDFromContext(r.Context()), keysTried, err == nil, err, duration)
	}
}
