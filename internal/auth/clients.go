package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"cloud.google.com/go/pubsub/v2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/bigquery/v2"
	"google.golang.org/api/language/v1"
	"google.golang.org/api/option"
)

// NewPubSubClient creates a Pub/Sub client for projectID.
// With nil creds the client library finds Application Default Credentials
// itself.
func NewPubSubClient(ctx context.Context, projectID string, creds *google.Credentials, opts ...option.ClientOption) (*pubsub.Client, error) {
	return pubsub.NewClient(ctx, projectID, withCredentials(creds, opts)...)
}

// NewBigQueryService creates a BigQuery REST service.
func NewBigQueryService(ctx context.Context, creds *google.Credentials, opts ...option.ClientOption) (*bigquery.Service, error) {
	return bigquery.NewService(ctx, withCredentials(creds, opts)...)
}

// NewLanguageService creates a Cloud Natural Language REST service.
func NewLanguageService(ctx context.Context, creds *google.Credentials, opts ...option.ClientOption) (*language.Service, error) {
	return language.NewService(ctx, withCredentials(creds, opts)...)
}

func withCredentials(creds *google.Credentials, opts []option.ClientOption) []option.ClientOption {
	if creds == nil {
		return opts
	}
	return append([]option.ClientOption{option.WithCredentials(creds)}, opts...)
}

// ClientFactory creates a Pub/Sub client for one project.
type ClientFactory func(ctx context.Context, projectID string) (*pubsub.Client, error)

// Clients caches one Pub/Sub client per project.
type Clients struct {
	mu      sync.RWMutex // Protects clients map for concurrent access
	clients map[string]*pubsub.Client
	factory ClientFactory
}

// NewClients returns an empty cache that creates clients with factory.
func NewClients(factory ClientFactory) *Clients {
	return &Clients{
		clients: make(map[string]*pubsub.Client),
		factory: factory,
	}
}

// Get returns the cached client for the project, or creates a new one.
// Client creation happens outside the lock so other projects are not
// blocked behind it.
func (c *Clients) Get(ctx context.Context, projectID string) (*pubsub.Client, error) {
	c.mu.RLock()
	client, exists := c.clients[projectID]
	c.mu.RUnlock()
	if exists {
		return client, nil
	}

	newClient, err := c.factory(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client for project %s: %w", projectID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another goroutine might have stored a client while we were creating ours
	if existingClient, exists := c.clients[projectID]; exists {
		_ = newClient.Close()
		return existingClient, nil
	}

	c.clients[projectID] = newClient
	return newClient, nil
}

// Close closes all clients, collecting all errors.
// Even if some clients fail to close, all others will still be closed.
func (c *Clients) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for projectID, client := range c.clients {
		if err := client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close client for project %s: %w", projectID, err))
		}
		delete(c.clients, projectID)
	}
	return errors.Join(errs...)
}

// SplitResource splits a Pub/Sub resource name of the form
// projects/{project}/{kind}/{id} into project and id. Anything else is
// taken as a bare id with an empty project.
//
// Examples:
//   - ("projects/p/topics/t", "topics") -> ("p", "t")
//   - ("t", "topics") -> ("", "t")
//   - ("projects/p/subscriptions/s", "topics") -> ("", "projects/p/subscriptions/s")
func SplitResource(name, kind string) (project, id string) {
	parts := strings.Split(strings.Trim(name, "/"), "/")
	if len(parts) == 4 && parts[0] == "projects" && parts[2] == kind && parts[1] != "" && parts[3] != "" {
		return parts[1], parts[3]
	}
	return "", name
}
