package pubsub

import (
	"context"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func newTestClient(t *testing.T) (*pstest.Server, *pubsub.Client) {
	t.Helper()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(context.Background(), "test-project", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return srv, client
}

func TestPublishEncodesPayload(t *testing.T) {
	srv, client := newTestClient(t)
	ctx := context.Background()
	_, err := client.CreateTopic(ctx, "crawls")
	require.NoError(t, err)

	pub := New(client, "crawls")
	defer func() { require.NoError(t, pub.Close()) }()

	id, err := pub.Publish(ctx, "", map[string]any{"book_id": 7, "total_quotes": 42})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	require.JSONEq(t, `{"book_id":7,"total_quotes":42}`, string(msgs[0].Data))
	require.Equal(t, "application/json", msgs[0].Attributes["content_type"])
}

func TestPublishInjectsTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	srv, client := newTestClient(t)
	ctx := context.Background()
	_, err := client.CreateTopic(ctx, "crawls")
	require.NoError(t, err)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx = trace.ContextWithSpanContext(ctx, sc)

	pub := New(client, "")
	defer func() { require.NoError(t, pub.Close()) }()
	_, err = pub.Publish(ctx, "crawls", "done")
	require.NoError(t, err)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", msgs[0].Attributes["traceparent"])
}

func TestPublishValidation(t *testing.T) {
	var nilPub *Publisher
	_, err := nilPub.Publish(context.Background(), "t", "x")
	require.Error(t, err)
	require.NoError(t, nilPub.Close())

	_, client := newTestClient(t)
	pub := New(client, "")
	_, err = pub.Publish(context.Background(), "", "x")
	require.ErrorContains(t, err, "topic is required")

	_, err = pub.Publish(context.Background(), "crawls", make(chan int))
	require.ErrorContains(t, err, "marshal payload")

	_, err = Open(context.Background(), "", "crawls")
	require.Error(t, err)
}
