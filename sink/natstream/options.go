package natstream

import (
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// Option is a functional option for configuring the Sink
type Option func(*Sink) error

// WithName sets the client name reported to the server
func WithName(name string) Option {
	return func(s *Sink) error {
		if name != "" {
			s.clientName = name
		}
		return nil
	}
}

// WithCredentials sets username and password for authentication
func WithCredentials(username, password string) Option {
	return func(s *Sink) error {
		s.username = username
		s.password = password
		return nil
	}
}

// WithToken sets a token for authentication
func WithToken(token string) Option {
	return func(s *Sink) error {
		s.token = token
		return nil
	}
}

// WithTimeout sets the connection timeout
func WithTimeout(d time.Duration) Option {
	return func(s *Sink) error {
		if d > 0 {
			s.timeout = d
		}
		return nil
	}
}

// WithReconnectWait sets the wait time between reconnection attempts
func WithReconnectWait(d time.Duration) Option {
	return func(s *Sink) error {
		if d > 0 {
			s.reconnectWait = d
		}
		return nil
	}
}

// WithSubjectPrefix sets the first token of every publish subject.
// The prefix must be a single subject token without wildcards.
func WithSubjectPrefix(prefix string) Option {
	return func(s *Sink) error {
		if prefix == "" || strings.ContainsAny(prefix, ".*> \t") {
			return fmt.Errorf("invalid subject prefix %q", prefix)
		}
		s.subjectPrefix = prefix
		return nil
	}
}

// WithStorage sets the storage backend for created streams
func WithStorage(storage jetstream.StorageType) Option {
	return func(s *Sink) error {
		s.storage = storage
		return nil
	}
}

// WithReplicas sets the replication factor for created streams
func WithReplicas(n int) Option {
	return func(s *Sink) error {
		if n < 1 || n > 5 {
			return fmt.Errorf("replicas must be between 1 and 5, got %d", n)
		}
		s.replicas = n
		return nil
	}
}
