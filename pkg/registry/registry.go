// Package registry keeps the set of known Files backend instances and the
// retry-decorated client used to reach each one.
//
// Backends are registered by base URL. The transport variant is chosen by
// URL scheme through registered dialers ("http" and "https" for REST,
// "local" for in-process backends). Clients are dialed on first use and
// cached for the lifetime of the registry.
package registry

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/marmos91/dittodir/internal/logger"
	"github.com/marmos91/dittodir/pkg/client"
	"github.com/marmos91/dittodir/pkg/service"
)

// Dialer builds a transport client for one backend address.
type Dialer func(address string) (service.Files, error)

// Registry maps backend addresses to decorated clients.
//
// Thread safety:
// All methods are safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	addresses []string
	known     map[string]struct{}
	clients   map[string]*client.Files
	dialers   map[string]Dialer

	policy  client.Policy
	metrics client.Metrics
}

// New returns an empty registry whose clients retry according to policy.
func New(policy client.Policy, metrics client.Metrics) *Registry {
	return &Registry{
		known:   make(map[string]struct{}),
		clients: make(map[string]*client.Files),
		dialers: make(map[string]Dialer),
		policy:  policy,
		metrics: metrics,
	}
}

// RegisterDialer installs the dialer for addresses with the given scheme.
func (r *Registry) RegisterDialer(scheme string, d Dialer) error {
	if scheme == "" {
		return fmt.Errorf("cannot register dialer with empty scheme")
	}
	if d == nil {
		return fmt.Errorf("cannot register nil dialer for %q", scheme)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	scheme = strings.ToLower(scheme)
	if _, exists := r.dialers[scheme]; exists {
		return fmt.Errorf("dialer for %q already registered", scheme)
	}
	r.dialers[scheme] = d
	return nil
}

// AddBackend makes address a placement candidate. Adding a known address
// is a no-op.
func (r *Registry) AddBackend(address string) error {
	address = normalize(address)
	scheme, err := schemeOf(address)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.dialers[scheme]; !ok {
		return fmt.Errorf("no dialer for scheme %q (backend %s)", scheme, address)
	}
	if _, exists := r.known[address]; exists {
		return nil
	}

	r.known[address] = struct{}{}
	r.addresses = append(r.addresses, address)
	logger.Info("Registered files backend %s", address)
	return nil
}

// RemoveBackend stops offering address for new placements. Existing
// replicas on it stay reachable through Files.
func (r *Registry) RemoveBackend(address string) {
	address = normalize(address)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.known[address]; !exists {
		return
	}
	delete(r.known, address)
	for i, a := range r.addresses {
		if a == address {
			r.addresses = append(r.addresses[:i], r.addresses[i+1:]...)
			break
		}
	}
	logger.Info("Removed files backend %s", address)
}

// Addresses lists the placement candidates in registration order.
func (r *Registry) Addresses() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.addresses))
	copy(out, r.addresses)
	return out
}

// Files returns the decorated client for address, dialing it on first use.
// The address does not need to be a registered candidate.
func (r *Registry) Files(address string) (service.Files, error) {
	address = normalize(address)

	r.mu.RLock()
	c, ok := r.clients[address]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}

	scheme, err := schemeOf(address)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[address]; ok {
		return c, nil
	}
	dial, ok := r.dialers[scheme]
	if !ok {
		return nil, fmt.Errorf("no dialer for scheme %q (backend %s)", scheme, address)
	}
	inner, err := dial(address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}

	c = client.NewFiles(address, inner, r.policy, r.metrics)
	r.clients[address] = c
	return c, nil
}

func normalize(address string) string {
	return strings.TrimSuffix(strings.TrimSpace(address), "/")
}

func schemeOf(address string) (string, error) {
	u, err := url.Parse(address)
	if err != nil {
		return "", fmt.Errorf("invalid backend address %q: %w", address, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid backend address %q: scheme and host are required", address)
	}
	return strings.ToLower(u.Scheme), nil
}
