package analytics_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/behzodk/shortlink/internal/analytics"
	"github.com/behzodk/shortlink/internal/model"
	"github.com/behzodk/shortlink/internal/repository"
	"github.com/behzodk/shortlink/internal/testutil"
)

var (
	testDB     *testutil.TestDB
	testBroker *testutil.TestBroker
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	testDB, err = testutil.SetupTestDB(ctx)
	if err != nil {
		panic("failed to setup test database: " + err.Error())
	}

	testBroker, err = testutil.SetupTestBroker(ctx)
	if err != nil {
		panic("failed to setup test broker: " + err.Error())
	}

	code := m.Run()

	testBroker.Teardown(ctx)
	testDB.Teardown(ctx)
	os.Exit(code)
}

func seedLink(t *testing.T, ctx context.Context) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := testDB.Pool.Exec(ctx, `
		INSERT INTO short_links (id, slug, destination_url, visibility, require_passcode)
		VALUES ($1, $2, 'https://example.com', 'public', false)
	`, id, "pipe-"+id.String()[:8])
	require.NoError(t, err)
	return id
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestVisitPipeline(t *testing.T) {
	ctx := context.Background()

	t.Run("published visits land in the database", func(t *testing.T) {
		testDB.Cleanup(ctx)

		linkID := seedLink(t, ctx)
		queue := analytics.VisitQueue + ".roundtrip"

		publisher, err := analytics.NewPublisher(testBroker.Channel, queue)
		require.NoError(t, err, "failed to create publisher")

		visits := repository.NewVisitRepository(testDB.Pool)
		consumer, err := analytics.NewConsumer(testBroker.Channel, queue, visits, discardLogger())
		require.NoError(t, err, "failed to create consumer")

		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go consumer.Run(runCtx)

		ip := "203.0.113.7"
		err = publisher.Record(ctx, &model.Visit{
			ShortLinkID: linkID,
			VisitedAt:   time.Now().UTC(),
			IPAddress:   &ip,
			DeviceType:  "mobile",
			Browser:     "safari",
		})
		require.NoError(t, err, "failed to publish visit")

		assert.Eventually(t, func() bool {
			stored, err := visits.ListByLink(ctx, linkID, 10)
			return err == nil && len(stored) == 1
		}, 10*time.Second, 100*time.Millisecond, "expected visit to be consumed and stored")

		stored, err := visits.ListByLink(ctx, linkID, 10)
		require.NoError(t, err)
		require.Len(t, stored, 1)
		require.NotNil(t, stored[0].IPAddress)
		assert.Equal(t, "203.0.113.7", *stored[0].IPAddress)
		assert.Equal(t, "mobile", stored[0].DeviceType)
	})

	t.Run("malformed messages are dropped without wedging the queue", func(t *testing.T) {
		testDB.Cleanup(ctx)

		linkID := seedLink(t, ctx)
		queue := analytics.VisitQueue + ".malformed"

		publisher, err := analytics.NewPublisher(testBroker.Channel, queue)
		require.NoError(t, err)

		visits := repository.NewVisitRepository(testDB.Pool)
		consumer, err := analytics.NewConsumer(testBroker.Channel, queue, visits, discardLogger())
		require.NoError(t, err)

		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go consumer.Run(runCtx)

		// Garbage first, then a valid visit. The valid one must still
		// make it through.
		err = testBroker.Channel.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
			ContentType: "application/json",
			Body:        []byte("not json"),
		})
		require.NoError(t, err)

		err = publisher.Record(ctx, &model.Visit{
			ShortLinkID: linkID,
			VisitedAt:   time.Now().UTC(),
			DeviceType:  "desktop",
			Browser:     "chrome",
		})
		require.NoError(t, err)

		assert.Eventually(t, func() bool {
			stored, err := visits.ListByLink(ctx, linkID, 10)
			return err == nil && len(stored) == 1
		}, 10*time.Second, 100*time.Millisecond, "expected only the valid visit to be stored")
	})

	t.Run("visits for unknown links are requeued once then dropped", func(t *testing.T) {
		testDB.Cleanup(ctx)

		queue := analytics.VisitQueue + ".poison"

		publisher, err := analytics.NewPublisher(testBroker.Channel, queue)
		require.NoError(t, err)

		visits := repository.NewVisitRepository(testDB.Pool)
		consumer, err := analytics.NewConsumer(testBroker.Channel, queue, visits, discardLogger())
		require.NoError(t, err)

		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go consumer.Run(runCtx)

		// No matching short link, so the insert fails on the foreign key.
		err = publisher.Record(ctx, &model.Visit{
			ShortLinkID: uuid.New(),
			VisitedAt:   time.Now().UTC(),
			DeviceType:  "desktop",
			Browser:     "chrome",
		})
		require.NoError(t, err)

		// Give the consumer time to fail, requeue and fail again; the
		// queue must end up empty rather than cycling forever.
		assert.Eventually(t, func() bool {
			q, err := testBroker.Channel.QueueDeclarePassive(queue, true, false, false, false, nil)
			return err == nil && q.Messages == 0
		}, 10*time.Second, 200*time.Millisecond, "expected poison message to be dropped")
	})
}
