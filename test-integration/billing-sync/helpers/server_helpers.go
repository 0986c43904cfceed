package helpers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/onsi/gomega"

	"github.com/stacklok/billing-sync-server/internal/app"
	"github.com/stacklok/billing-sync-server/internal/auth"
	"github.com/stacklok/billing-sync-server/internal/config"
)

// ServerTestHelper manages the billing sync server lifecycle for testing
type ServerTestHelper struct {
	ctx        context.Context
	configPath string
	baseURL    string
	address    string
	httpClient *http.Client
	app        *app.BillingSyncApp
}

// NewServerTestHelper creates a helper bound to a free local port
func NewServerTestHelper(ctx context.Context, configPath string) (*ServerTestHelper, error) {
	port, err := freePort()
	if err != nil {
		return nil, fmt.Errorf("failed to find free port: %w", err)
	}
	address := fmt.Sprintf("127.0.0.1:%d", port)

	return &ServerTestHelper{
		ctx:        ctx,
		configPath: configPath,
		baseURL:    "http://" + address,
		address:    address,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = l.Close()
	}()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// StartServer builds the application from the config file and starts it
func (s *ServerTestHelper) StartServer() error {
	cfg, err := config.LoadConfig(config.WithConfigPath(s.configPath))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	billingApp, err := app.NewBillingSyncApp(s.ctx,
		app.WithConfig(cfg),
		app.WithAddress(s.address),
	)
	if err != nil {
		return fmt.Errorf("failed to build app: %w", err)
	}

	s.app = billingApp

	go func() {
		if err := billingApp.Start(); err != nil {
			// The test fails when it tries to connect
			fmt.Fprintf(os.Stderr, "Server start failed: %v\n", err)
		}
	}()

	return nil
}

// StopServer gracefully stops the server
func (s *ServerTestHelper) StopServer() error {
	if s.app != nil {
		return s.app.Stop(5 * time.Second)
	}
	return nil
}

// WaitForServerReady waits for the server to be ready to accept requests
func (s *ServerTestHelper) WaitForServerReady(timeout time.Duration) {
	gomega.Eventually(func() error {
		resp, err := s.httpClient.Get(s.baseURL + "/readiness")
		if err != nil {
			return err
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("server returned status %d", resp.StatusCode)
		}
		return nil
	}, timeout, 200*time.Millisecond).Should(gomega.Succeed(), "Server should be ready")
}

// Notify makes a POST request to /v1/notify
func (s *ServerTestHelper) Notify(entityID string) (*http.Response, error) {
	body, err := json.Marshal(map[string]string{"entityId": entityID})
	if err != nil {
		return nil, err
	}
	return s.httpClient.Post(s.baseURL+"/v1/notify", "application/json", bytes.NewReader(body))
}

// PostWebhook delivers a provider event, signed with secret when it is not empty
func (s *ServerTestHelper) PostWebhook(event []byte, secret string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(s.ctx, http.MethodPost, s.baseURL+"/v1/webhooks/billing", bytes.NewReader(event))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(auth.SignatureHeader, auth.Sign(secret, event, time.Now()))
	}
	return s.httpClient.Do(req)
}

// GetPending makes a GET request to /v1/pending/{entityId}
func (s *ServerTestHelper) GetPending(entityID string) (*http.Response, error) {
	return s.httpClient.Get(fmt.Sprintf("%s/v1/pending/%s", s.baseURL, entityID))
}

// PendingWork is the body of GET /v1/pending/{entityId}
type PendingWork struct {
	EntityID  string `json:"entityId"`
	Count     int64  `json:"count"`
	Attempts  int64  `json:"attempts"`
	LastError string `json:"lastError"`
}

// GetPendingWork returns the pending row of the entity, or nil when there is none
func (s *ServerTestHelper) GetPendingWork(entityID string) (*PendingWork, error) {
	resp, err := s.GetPending(entityID)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusNotFound:
		return nil, nil
	case http.StatusOK:
		var work PendingWork
		if err := json.NewDecoder(resp.Body).Decode(&work); err != nil {
			return nil, err
		}
		return &work, nil
	default:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}

// WaitForSynced waits until the entity no longer has pending work
func (s *ServerTestHelper) WaitForSynced(entityID string, timeout time.Duration) {
	gomega.Eventually(func() (*PendingWork, error) {
		return s.GetPendingWork(entityID)
	}, timeout, 200*time.Millisecond).Should(gomega.BeNil(), "pending work for %s should be drained", entityID)
}

// GetStatus makes a GET request to /v1/status
func (s *ServerTestHelper) GetStatus() (*http.Response, error) {
	return s.httpClient.Get(s.baseURL + "/v1/status")
}

// GetHealth makes a GET request to /health
func (s *ServerTestHelper) GetHealth() (*http.Response, error) {
	return s.httpClient.Get(s.baseURL + "/health")
}

// GetBaseURL returns the base URL of the server
func (s *ServerTestHelper) GetBaseURL() string {
	return s.baseURL
}
