package ingestion_test

import (
	"DSCEngine/internal/core"
	"DSCEngine/internal/event"
	"DSCEngine/internal/ingestion"
	"DSCEngine/internal/observability"
	"DSCEngine/internal/testutil"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
)

func connectTestNATS(t *testing.T) jetstream.JetStream {
	t.Helper()
	testutil.RequireIntegration(t)

	nc, js, err := ingestion.ConnectNATS(testutil.TestNATSURL(), observability.NopLogger())
	if err != nil {
		t.Skipf("test nats not available: %v (set DSC_TEST_NATS_URL)", err)
	}
	t.Cleanup(nc.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ingestion.EnsureStreams(ctx, js, observability.NopLogger()); err != nil {
		t.Fatalf("ensure streams: %v", err)
	}
	for _, name := range []string{ingestion.CommandStream, ingestion.EventStream} {
		stream, err := js.Stream(ctx, name)
		if err != nil {
			t.Fatalf("stream %s: %v", name, err)
		}
		if err := stream.Purge(ctx); err != nil {
			t.Fatalf("purge %s: %v", name, err)
		}
	}
	return js
}

// ============================================================================
// Test: JetStream round trip
// ============================================================================

func TestNATS_CommandDeliveredToSubscriber(t *testing.T) {
	js := connectTestNATS(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmdChan := make(chan ingestion.RawCommand, 1)
	sub := ingestion.NewNATSSubscriber(js, cmdChan, observability.NopLogger())
	if err := sub.Subscribe(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Stop()

	data, _ := json.Marshal(mintCommand())
	if _, err := js.Publish(ctx, "dsc.commands.mintDsc", data); err != nil {
		t.Fatalf("publish command: %v", err)
	}

	select {
	case raw := <-cmdChan:
		cmd, err := ingestion.ParseRawCommand(raw)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if cmd.Operation != core.OpMintDsc || cmd.ID != commandID {
			t.Errorf("command: got %+v", cmd)
		}
		raw.AckFunc()
	case <-ctx.Done():
		t.Fatal("command not delivered")
	}
}

func TestNATS_PublishedEventReadable(t *testing.T) {
	js := connectTestNATS(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pub := ingestion.NewOutboundPublisher(js, nil, observability.NewMetrics(prometheus.NewRegistry()), observability.NopLogger())
	out := liquidationOutput()
	// The event stream deduplicates on sequence-index.
	out.Sequence = time.Now().UnixNano()
	if err := pub.Publish(ctx, out); err != nil {
		t.Fatalf("publish: %v", err)
	}

	consumer, err := js.OrderedConsumer(ctx, ingestion.EventStream, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{ingestion.EventSubject("CollateralRedeemed")},
	})
	if err != nil {
		t.Fatalf("consumer: %v", err)
	}
	msg, err := consumer.Next(jetstream.FetchMaxWait(5 * time.Second))
	if err != nil {
		t.Fatalf("next: %v", err)
	}

	var env event.Envelope
	if err := json.Unmarshal(msg.Data(), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Sequence != out.Sequence || env.Event != "CollateralRedeemed" {
		t.Errorf("envelope: got %+v", env)
	}
}
