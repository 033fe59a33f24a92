package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kenneth/pq-encryption-service/internal/audit"
	"github.com/kenneth/pq-encryption-service/internal/crypto"
	"github.com/kenneth/pq-encryption-service/internal/keymanager"
	"github.com/kenneth/pq-encryption-service/internal/middleware"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// newTestServer wires a full service against a temp key directory. Metrics
// stay nil here: the default registry is process-global and handler
// behavior does not depend on them.
func newTestServer(t *testing.T) (*httptest.Server, *keymanager.Manager) {
	t.Helper()

	logger := testLogger()
	manager, err := keymanager.NewManager(keymanager.Config{
		Preset:       crypto.PresetNormal,
		StoragePath:  t.TempDir(),
		ExpiryMonths: 6,
		GracePeriod:  time.Minute,
		AutoGenerate: true,
	}, logger)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := manager.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(manager.SecurelyClearKeys)

	engine, err := crypto.NewEngine(crypto.PresetNormal)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	auditLog := audit.NewLogger(100, logger)
	handler := NewHandler(manager, engine, nil, auditLog, logger)
	server := httptest.NewServer(NewRouter(handler, logger, nil))
	t.Cleanup(server.Close)

	return server, manager
}

func getJSON(t *testing.T, url string, wantStatus int, out interface{}) *http.Response {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s: status = %d, want %d", url, resp.StatusCode, wantStatus)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp
}

func postJSON(t *testing.T, url string, body interface{}, wantStatus int, out interface{}) {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		t.Fatalf("POST %s: status = %d, want %d", url, resp.StatusCode, wantStatus)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
}

func TestGetPublicKey(t *testing.T) {
	server, _ := newTestServer(t)

	var info keymanager.PublicKeyInfo
	resp := getJSON(t, server.URL+"/v1/public-key", http.StatusOK, &info)

	if info.Preset != crypto.PresetNormal {
		t.Errorf("preset = %s, want %s", info.Preset, crypto.PresetNormal)
	}
	if info.Version != 1 {
		t.Errorf("version = %d, want 1", info.Version)
	}
	publicKey, err := crypto.DecodeBase64(info.PublicKey)
	if err != nil {
		t.Fatalf("public key is not valid base64: %v", err)
	}
	if len(publicKey) != 1184 {
		t.Errorf("public key size = %d, want 1184", len(publicKey))
	}
	if resp.Header.Get(middleware.RequestIDHeader) == "" {
		t.Error("response is missing the request ID header")
	}
}

func TestEncryptDecryptEndpoints(t *testing.T) {
	server, _ := newTestServer(t)

	var encrypted crypto.EncryptedData
	postJSON(t, server.URL+"/v1/encrypt", map[string]interface{}{
		"data": map[string]interface{}{"message": "hi", "count": 3},
	}, http.StatusOK, &encrypted)

	if encrypted.Preset != crypto.PresetNormal {
		t.Errorf("preset = %s, want %s", encrypted.Preset, crypto.PresetNormal)
	}
	if err := encrypted.Validate(); err != nil {
		t.Fatalf("encrypt endpoint produced an invalid record: %v", err)
	}

	var decrypted struct {
		Data map[string]interface{} `json:"data"`
	}
	postJSON(t, server.URL+"/v1/decrypt", encrypted, http.StatusOK, &decrypted)

	if decrypted.Data["message"] != "hi" {
		t.Errorf("message = %v, want hi", decrypted.Data["message"])
	}
	if decrypted.Data["count"] != 3.0 {
		t.Errorf("count = %v, want 3", decrypted.Data["count"])
	}
}

func TestDecryptMalformedBody(t *testing.T) {
	server, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "not json"},
		{name: "missing fields", body: `{"preset":"NORMAL"}`},
		{name: "unknown preset", body: `{"preset":"ULTRA","encryptedContent":"aGk=","cipherText":"aGk=","nonce":"aGk="}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(server.URL+"/v1/decrypt", "application/json", bytes.NewReader([]byte(tt.body)))
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
			}

			var errResp ErrorResponse
			if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if errResp.Kind != string(crypto.KindFormat) {
				t.Errorf("kind = %s, want %s", errResp.Kind, crypto.KindFormat)
			}
			if errResp.RequestID == "" {
				t.Error("error response is missing the request ID")
			}
		})
	}
}

func TestDecryptTamperedRecord(t *testing.T) {
	server, _ := newTestServer(t)

	var encrypted crypto.EncryptedData
	postJSON(t, server.URL+"/v1/encrypt", map[string]interface{}{"data": "hi"}, http.StatusOK, &encrypted)

	chars := []byte(encrypted.EncryptedContent)
	if chars[0] == 'A' {
		chars[0] = 'B'
	} else {
		chars[0] = 'A'
	}
	encrypted.EncryptedContent = string(chars)

	payload, _ := json.Marshal(encrypted)
	resp, err := http.Post(server.URL+"/v1/decrypt", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
	}
}

func TestRotateEndpoint(t *testing.T) {
	server, manager := newTestServer(t)

	// Seal a record against the pre-rotation key.
	var encrypted crypto.EncryptedData
	postJSON(t, server.URL+"/v1/encrypt", map[string]interface{}{"data": "old"}, http.StatusOK, &encrypted)

	var rotated struct {
		Version   int       `json:"version"`
		ExpiresAt time.Time `json:"expiresAt"`
	}
	postJSON(t, server.URL+"/v1/rotate", nil, http.StatusOK, &rotated)

	if rotated.Version != 2 {
		t.Errorf("version = %d, want 2", rotated.Version)
	}

	info, err := manager.CurrentPublicKey()
	if err != nil {
		t.Fatalf("CurrentPublicKey: %v", err)
	}
	if info.Version != 2 {
		t.Errorf("manager version = %d, want 2", info.Version)
	}

	// Pre-rotation ciphertext keeps decrypting inside the grace window.
	var decrypted struct {
		Data interface{} `json:"data"`
	}
	postJSON(t, server.URL+"/v1/decrypt", encrypted, http.StatusOK, &decrypted)
	if decrypted.Data != "old" {
		t.Errorf("data = %v, want old", decrypted.Data)
	}
}

func TestStatusEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	// Generate some audit traffic first.
	var encrypted crypto.EncryptedData
	postJSON(t, server.URL+"/v1/encrypt", map[string]interface{}{"data": "hi"}, http.StatusOK, &encrypted)

	var status struct {
		State        string         `json:"state"`
		KeysExist    bool           `json:"keysExist"`
		KeysValid    bool           `json:"keysValid"`
		Version      int            `json:"version"`
		RecentEvents []*audit.Event `json:"recentEvents"`
	}
	getJSON(t, server.URL+"/v1/status", http.StatusOK, &status)

	if status.State != string(keymanager.StateReady) {
		t.Errorf("state = %s, want %s", status.State, keymanager.StateReady)
	}
	if !status.KeysExist || !status.KeysValid {
		t.Errorf("expected valid keys, got %+v", status)
	}
	if status.Version != 1 {
		t.Errorf("version = %d, want 1", status.Version)
	}
	if len(status.RecentEvents) == 0 {
		t.Error("expected recent audit events")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/v1/rotate")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusMethodNotAllowed)
	}
}
