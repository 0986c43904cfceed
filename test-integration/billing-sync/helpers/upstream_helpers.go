package helpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// FakeBillingProvider serves the subscription list endpoint of a billing provider
type FakeBillingProvider struct {
	server *httptest.Server
	apiKey string

	mu            sync.Mutex
	subscriptions map[string]Subscription
	failures      map[string]int
	requests      map[string]int
}

// NewFakeBillingProvider starts a provider that requires apiKey as bearer token
func NewFakeBillingProvider(apiKey string) *FakeBillingProvider {
	p := &FakeBillingProvider{
		apiKey:        apiKey,
		subscriptions: make(map[string]Subscription),
		failures:      make(map[string]int),
		requests:      make(map[string]int),
	}
	p.server = httptest.NewServer(http.HandlerFunc(p.handle))
	return p
}

// URL returns the endpoint to configure as upstream
func (p *FakeBillingProvider) URL() string {
	return p.server.URL
}

// Close shuts the provider down
func (p *FakeBillingProvider) Close() {
	p.server.Close()
}

// SetSubscription makes sub the latest subscription of its customer
func (p *FakeBillingProvider) SetSubscription(sub Subscription) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscriptions[sub.Customer] = sub
}

// FailWith makes every request for customer answer with status until cleared
func (p *FakeBillingProvider) FailWith(customer string, status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if status == 0 {
		delete(p.failures, customer)
		return
	}
	p.failures[customer] = status
}

// Requests returns how many times the customer was fetched
func (p *FakeBillingProvider) Requests(customer string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[customer]
}

func (p *FakeBillingProvider) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/subscriptions" || r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	if strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ") != p.apiKey {
		http.Error(w, `{"error":{"message":"invalid api key"}}`, http.StatusUnauthorized)
		return
	}

	customer := r.URL.Query().Get("customer")

	p.mu.Lock()
	p.requests[customer]++
	status, failing := p.failures[customer]
	sub, found := p.subscriptions[customer]
	p.mu.Unlock()

	if failing {
		http.Error(w, `{"error":{"message":"simulated failure"}}`, status)
		return
	}

	data := []Subscription{}
	if found {
		data = append(data, sub)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"data":   data,
	})
}
