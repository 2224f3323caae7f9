//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/storm-hazard-routing/internal/adapter/kafka"
	"github.com/couchcryptid/storm-hazard-routing/internal/config"
	"github.com/couchcryptid/storm-hazard-routing/internal/domain"
	"github.com/couchcryptid/storm-hazard-routing/internal/engine"
	"github.com/couchcryptid/storm-hazard-routing/internal/observability"
	"github.com/couchcryptid/storm-hazard-routing/internal/pipeline"
	"github.com/couchcryptid/storm-hazard-routing/internal/roadnet"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const (
	testSourceTopic = "test-reports"
	testSinkTopic   = "test-events"

	mockNetworkPath = "../../data/mock/network.geojson"
	mockReportsPath = "../../data/mock/reports.json"
)

var scenarioStart = time.Date(2024, time.September, 27, 10, 0, 0, 0, time.UTC)

// publishedUpdate holds a deserialized message read from the sink topic.
type publishedUpdate struct {
	Update  domain.EventUpdate
	Key     string
	Headers map[string]string
}

// readUpdate reads a single message from the sink consumer and deserializes it.
func readUpdate(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedUpdate {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var update domain.EventUpdate
	require.NoError(t, json.Unmarshal(msg.Value, &update), "unmarshal sink message")

	return publishedUpdate{Update: update, Key: string(msg.Key), Headers: headers}
}

// TestKafkaReaderWriter verifies the adapter layer: kafka.Reader (extractor)
// and kafka.Writer (loader) round-trip a report through Kafka and the engine.
func TestKafkaReaderWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-reader")

	reports := loadMockReports(t)
	payload, err := json.Marshal(reports[0])
	require.NoError(t, err)

	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })
	require.NoError(t, producer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(reports[0].ID),
		Value: payload,
		Time:  scenarioStart,
	}))

	// The consumer group may need time to rebalance before partitions are
	// assigned, so empty batches are retried.
	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	var batch []domain.RawEvent
	for len(batch) == 0 {
		if ctx.Err() != nil {
			t.Fatal("timed out waiting for message from source topic")
		}
		batch, err = reader.ExtractBatch(ctx, 1)
		require.NoError(t, err)
	}
	require.Len(t, batch, 1)
	raw := batch[0]
	assert.Equal(t, []byte("r-001"), raw.Key)
	assert.Equal(t, payload, raw.Value)
	assert.Equal(t, testSourceTopic, raw.Topic)
	require.NotNil(t, raw.Commit, "commit callback should be set")
	require.NoError(t, raw.Commit(ctx))

	report, err := pipeline.NewTransformer(nil, discardLogger()).Transform(ctx, raw)
	require.NoError(t, err)

	eng := newEngine(t)
	update, err := eng.Ingest(ctx, report)
	require.NoError(t, err)

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })
	require.NoError(t, writer.LoadBatch(ctx, []domain.EventUpdate{update}))

	consumer := sinkConsumer(t, broker)
	got := readUpdate(ctx, t, consumer)
	assert.Equal(t, update.Event.ID, got.Key)
	assert.Equal(t, "created", got.Headers["action"])
	assert.Equal(t, "road_closure", got.Headers["event_type"])
	_, err = time.Parse(time.RFC3339, got.Headers["processed_at"])
	assert.NoError(t, err, "processed_at should be valid RFC3339")

	assert.Equal(t, "r-001", got.Update.ReportID)
	assert.Equal(t, domain.OutcomeCreated, got.Update.Outcome)
	assert.True(t, got.Update.Event.IsActive)
}

// TestPipelineEndToEnd wires the full pipeline (Reader, Transformer, Engine,
// Writer) against real Kafka and replays the mock report log.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-pipeline")

	reports := loadMockReports(t)
	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })

	msgs := make([]kafkago.Message, 0, len(reports))
	for _, r := range reports {
		payload, err := json.Marshal(r)
		require.NoError(t, err)
		msgs = append(msgs, kafkago.Message{Key: []byte(r.ID), Value: payload, Time: r.Timestamp})
	}
	require.NoError(t, producer.WriteMessages(ctx, msgs...))

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	eng := newEngine(t)
	p := pipeline.New(reader, pipeline.NewTransformer(nil, discardLogger()), eng, writer, discardLogger(), metrics, 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	// One report is a redelivery, which changes nothing and is not published.
	want := len(reports) - 1
	consumer := sinkConsumer(t, broker)
	received := make([]publishedUpdate, 0, want)
	for len(received) < want {
		received = append(received, readUpdate(ctx, t, consumer))
	}

	pipelineCancel()
	require.NoError(t, <-errCh)

	actions := map[string]int{}
	for _, got := range received {
		actions[got.Headers["action"]]++
		assert.Equal(t, got.Update.Event.ID, got.Key)
		assert.Equal(t, string(got.Update.Event.EventType), got.Headers["event_type"])
		_, err := time.Parse(time.RFC3339, got.Headers["processed_at"])
		assert.NoError(t, err, "invalid processed_at format")
	}
	assert.Equal(t, 8, actions["created"], "created")
	assert.Equal(t, 2, actions["corroborated"], "corroborated")
	assert.Equal(t, 1, actions["cleared"], "cleared")
	assert.Equal(t, 1, actions["superseded"], "superseded")

	// The clearance retired the Patton Ave closure.
	for _, got := range received {
		if got.Update.ReportID != "r-008" {
			continue
		}
		require.Len(t, got.Update.Cleared, 1)
		assert.False(t, got.Update.Cleared[0].IsActive)
		assert.Equal(t, []string{"r-001", "r-002"}, got.Update.Cleared[0].ReportIDs)
	}

	require.NoError(t, p.CheckReadiness(ctx))
	status, err := eng.NetworkStatus(ctx)
	require.NoError(t, err)
	assert.Positive(t, status.BlockedSegments)
}

// TestPipelineTransformError verifies that a poison message is skipped and
// the pipeline keeps processing valid messages.
func TestPipelineTransformError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-poison")

	reports := loadMockReports(t)
	validPayload, err := json.Marshal(reports[0])
	require.NoError(t, err)

	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })
	require.NoError(t, producer.WriteMessages(ctx,
		kafkago.Message{Key: []byte("bad"), Value: []byte("not-json{{{"), Time: scenarioStart},
		kafkago.Message{Key: []byte("invalid"), Value: []byte(`{"id":"x","event_type":"tornado","source":"news","confidence":0.5}`), Time: scenarioStart},
		kafkago.Message{Key: []byte("good"), Value: validPayload, Time: scenarioStart},
	))

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(reader, pipeline.NewTransformer(nil, discardLogger()), newEngine(t), writer, discardLogger(), metrics, 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := sinkConsumer(t, broker)
	got := readUpdate(ctx, t, consumer)
	assert.Equal(t, "r-001", got.Update.ReportID)
	assert.Equal(t, "road_closure", got.Headers["event_type"])

	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err = consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no second message on sink topic")

	pipelineCancel()
	require.NoError(t, <-errCh)
}

// --- helpers ---

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("hazard-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func testConfig(broker, group string) *config.Config {
	return &config.Config{
		KafkaEnabled:       true,
		KafkaBrokers:       []string{broker},
		KafkaSourceTopic:   testSourceTopic,
		KafkaSinkTopic:     testSinkTopic,
		KafkaGroupID:       fmt.Sprintf("%s-%d", group, time.Now().UnixNano()),
		BatchFlushInterval: 5 * time.Second,
	}
}

func sinkConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	network, err := roadnet.Load(mockNetworkPath)
	require.NoError(t, err)
	opts := engine.DefaultOptions
	opts.ScenarioStart = scenarioStart
	return engine.New(network, opts, discardLogger(), observability.NewMetricsForTesting())
}

func loadMockReports(t *testing.T) []domain.Report {
	t.Helper()
	data, err := os.ReadFile(mockReportsPath)
	require.NoError(t, err)
	var reports []domain.Report
	require.NoError(t, json.Unmarshal(data, &reports))
	require.Len(t, reports, 13)
	return reports
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
