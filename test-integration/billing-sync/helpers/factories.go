package helpers

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/onsi/gomega"
)

// Subscription is the provider representation of a customer's subscription
type Subscription struct {
	ID                 string            `json:"id"`
	Customer           string            `json:"customer"`
	Status             string            `json:"status"`
	Items              SubscriptionItems `json:"items"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
}

// SubscriptionItems is the list of priced items of a subscription
type SubscriptionItems struct {
	Data []SubscriptionItem `json:"data"`
}

// SubscriptionItem is one priced item
type SubscriptionItem struct {
	Price struct {
		ID string `json:"id"`
	} `json:"price"`
}

// NewSubscription creates an active subscription on a single price
func NewSubscription(customer, id, priceID string) Subscription {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	item := SubscriptionItem{}
	item.Price.ID = priceID
	return Subscription{
		ID:                 id,
		Customer:           customer,
		Status:             "active",
		Items:              SubscriptionItems{Data: []SubscriptionItem{item}},
		CurrentPeriodStart: start.Unix(),
		CurrentPeriodEnd:   start.AddDate(0, 1, 0).Unix(),
	}
}

// NewEvent builds a provider event about customer
func NewEvent(id, eventType, customer string) []byte {
	data, err := json.Marshal(map[string]any{
		"id":   id,
		"type": eventType,
		"data": map[string]any{
			"object": map[string]any{"customer": customer},
		},
	})
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	return data
}

// ConfigOptions describes the server configuration written for a test
type ConfigOptions struct {
	// StorageType is "file" or "sqlite"
	StorageType         string
	DataDir             string
	UpstreamEndpoint    string
	BatchSize           int
	SyncIntervalSeconds int
	// WebhookSecret enables signature verification when set
	WebhookSecret string
}

// WriteSecret writes a secret to a file in dir and returns its path
func WriteSecret(dir, name, value string) string {
	path := filepath.Join(dir, name)
	err := os.WriteFile(path, []byte(value), 0600)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	return path
}

// WriteConfigYAML writes a YAML configuration file for testing.
// apiKeyFile holds the bearer token of the fake provider.
func WriteConfigYAML(dir, apiKeyFile string, opts ConfigOptions) string {
	if opts.BatchSize == 0 {
		opts.BatchSize = 10
	}
	if opts.SyncIntervalSeconds == 0 {
		opts.SyncIntervalSeconds = 1
	}

	configContent := fmt.Sprintf(`sync:
  batchSize: %d
  syncIntervalSeconds: %d
  concurrency: 2
  pollInterval: 500ms

upstream:
  endpoint: %s
  apiKeyFile: %s
  timeout: 5s
  maxRetries: 0
`, opts.BatchSize, opts.SyncIntervalSeconds, opts.UpstreamEndpoint, apiKeyFile)

	switch opts.StorageType {
	case "sqlite":
		configContent += fmt.Sprintf(`
storage:
  type: sqlite
  sqlite:
    path: %s
`, filepath.Join(opts.DataDir, "billing-sync.db"))
	default:
		configContent += fmt.Sprintf(`
storage:
  type: file
  file:
    dir: %s
`, opts.DataDir)
	}

	if opts.WebhookSecret != "" {
		configContent += fmt.Sprintf(`
ingress:
  webhook:
    secretFile: %s
`, WriteSecret(dir, "webhook-secret", opts.WebhookSecret))
	}

	configPath := filepath.Join(dir, "config.yaml")
	err := os.WriteFile(configPath, []byte(configContent), 0600)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	return configPath
}
