package sshexec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Pool caches one SSH connection per (user, address, port) key so that a
// host's owner and super credential sets each get their own connection,
// reused across every task run against that host.
type Pool struct {
	connections map[string]*Client
	mu          sync.RWMutex
	timeout     time.Duration
	newClient   func(config *ConnectionConfig) (*Client, error)
}

// NewPool creates a connection pool with a default per-connection timeout.
func NewPool(timeout time.Duration) *Pool {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Pool{
		connections: make(map[string]*Client),
		timeout:     timeout,
		newClient:   NewClient,
	}
}

func connKey(config *ConnectionConfig) string {
	return fmt.Sprintf("%s@%s:%d", config.User, config.Address, config.Port)
}

// Get returns a cached connection for config's (user, address, port), or
// dials a new one.
func (p *Pool) Get(config *ConnectionConfig) (*Client, error) {
	key := connKey(config)
	if p.newClient == nil {
		p.newClient = NewClient
	}

	p.mu.RLock()
	if client, exists := p.connections[key]; exists {
		p.mu.RUnlock()
		return client, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if client, exists := p.connections[key]; exists {
		return client, nil
	}

	if config.Timeout == 0 {
		config.Timeout = p.timeout
	}

	client, err := p.newClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create SSH client for %s: %w", key, err)
	}
	p.connections[key] = client
	return client, nil
}

func (p *Pool) pingTimeout() time.Duration {
	timeout := 5 * time.Second
	if p.timeout > 0 && p.timeout < timeout {
		timeout = p.timeout
	}
	return timeout
}

func (p *Pool) getHealthyClient(ctx context.Context, config *ConnectionConfig) (*Client, error) {
	client, err := p.Get(config)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, p.pingTimeout())
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		_ = p.CloseHost(config)
		client, err = p.Get(config)
		if err != nil {
			return nil, err
		}
	}
	return client, nil
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, io.EOF) {
		return true
	}
	errText := err.Error()
	return strings.Contains(errText, "EOF") ||
		strings.Contains(errText, "connection reset by peer") ||
		strings.Contains(errText, "use of closed network connection")
}

// Run executes a command against a host under the given credential config,
// retrying once on a detected connection error after reconnecting.
func (p *Pool) Run(ctx context.Context, config *ConnectionConfig, command string) (*CommandResult, error) {
	client, err := p.getHealthyClient(ctx, config)
	if err != nil {
		return nil, err
	}

	result, err := client.Run(ctx, command)
	if err != nil && isConnectionError(err) {
		_ = p.CloseHost(config)
		client, retryErr := p.getHealthyClient(ctx, config)
		if retryErr != nil {
			return result, retryErr
		}
		return client.Run(ctx, command)
	}
	return result, err
}

// Upload transfers a file to a host under the given credential config, with
// the same reconnect-and-retry behavior as Run.
func (p *Pool) Upload(ctx context.Context, config *ConnectionConfig, opts UploadOptions) error {
	client, err := p.getHealthyClient(ctx, config)
	if err != nil {
		return err
	}

	if err := client.Upload(ctx, opts); err != nil {
		if !isConnectionError(err) {
			return err
		}
		_ = p.CloseHost(config)
		client, retryErr := p.getHealthyClient(ctx, config)
		if retryErr != nil {
			return retryErr
		}
		return client.Upload(ctx, opts)
	}
	return nil
}

// Close closes every connection held by the pool.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for key, client := range p.connections {
		if err := client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection %s: %w", key, err))
		}
	}
	p.connections = make(map[string]*Client)
	return errors.Join(errs...)
}

// CloseHost closes and discards the cached connection for config, if any.
func (p *Pool) CloseHost(config *ConnectionConfig) error {
	key := connKey(config)

	p.mu.Lock()
	defer p.mu.Unlock()
	if client, exists := p.connections[key]; exists {
		err := client.Close()
		delete(p.connections, key)
		return err
	}
	return nil
}

// Stats reports the number of currently pooled connections.
func (p *Pool) Stats() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return map[string]any{
		"active_connections": len(p.connections),
		"timeout":            p.timeout,
	}
}
