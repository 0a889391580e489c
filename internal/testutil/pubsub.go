// Package testutil provides an in-memory Pub/Sub server for tests.
package testutil

import (
	"context"
	"fmt"
	"testing"

	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"cloud.google.com/go/pubsub/v2/pstest"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// NewPubSubServer starts a pstest server that is closed when the test ends.
func NewPubSubServer(t testing.TB) *pstest.Server {
	t.Helper()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

// NewPubSubClient returns a client for projectID connected to srv.
func NewPubSubClient(t testing.TB, srv *pstest.Server, projectID string) *pubsub.Client {
	t.Helper()

	client, err := DialPubSub(context.Background(), srv, projectID)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// DialPubSub connects a new client for projectID to srv. The caller owns the
// returned client.
func DialPubSub(ctx context.Context, srv *pstest.Server, projectID string) (*pubsub.Client, error) {
	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	return pubsub.NewClient(ctx, projectID, option.WithGRPCConn(conn))
}

// CreateTopic creates a topic and returns its full resource name.
func CreateTopic(t testing.TB, client *pubsub.Client, projectID, topicID string) string {
	t.Helper()

	name := fmt.Sprintf("projects/%s/topics/%s", projectID, topicID)
	_, err := client.TopicAdminClient.CreateTopic(context.Background(), &pubsubpb.Topic{Name: name})
	require.NoError(t, err)
	return name
}

// CreateSubscription creates a subscription to topic and returns its full
// resource name.
func CreateSubscription(t testing.TB, client *pubsub.Client, projectID, subID, topic string) string {
	t.Helper()

	name := fmt.Sprintf("projects/%s/subscriptions/%s", projectID, subID)
	_, err := client.SubscriptionAdminClient.CreateSubscription(context.Background(), &pubsubpb.Subscription{
		Name:               name,
		Topic:              topic,
		AckDeadlineSeconds: 10,
	})
	require.NoError(t, err)
	return name
}
