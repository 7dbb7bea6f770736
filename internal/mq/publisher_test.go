package mq

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/dandantas/vigil/internal/model"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
)

func TestNewMessage(t *testing.T) {
	event := model.LeasesOfferedEvent{
		CycleID:  "cycle-1",
		WorkerID: "w1",
		Leases:   []model.OpenLease{{TaskID: "t1"}},
	}

	msg := NewMessage(MessageTypeLeasesOffered, event)

	_, err := uuid.Parse(msg.ID)
	require.NoError(t, err)
	require.Equal(t, MessageTypeLeasesOffered, msg.Type)
	require.WithinDuration(t, time.Now().UTC(), msg.Timestamp, time.Minute)

	body, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	require.Equal(t, "lease.offered", decoded["type"])
	payload := decoded["payload"].(map[string]any)
	require.Equal(t, "w1", payload["worker_id"])
}

func TestNewMessage_UniqueIDs(t *testing.T) {
	a := NewMessage(MessageTypeCheckRecorded, nil)
	b := NewMessage(MessageTypeCheckRecorded, nil)

	require.NotEqual(t, a.ID, b.ID)
}

func TestWithChannel_Closed(t *testing.T) {
	c := &Connection{closed: true}

	err := c.WithChannel(context.Background(), nil)

	require.ErrorIs(t, err, ErrClosed)
}

func TestWithChannel_CanceledContext(t *testing.T) {
	c := &Connection{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.WithChannel(ctx, nil)

	require.ErrorIs(t, err, context.Canceled)
}

func TestTopologyBindings(t *testing.T) {
	require.Len(t, bindings, 2)
	for _, b := range bindings {
		require.NotEmpty(t, b.exchange)
		require.NotEmpty(t, b.queue)
		require.NotEmpty(t, b.key)
	}
}

// silentBroker accepts TCP connections and never speaks AMQP
func silentBroker(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()

	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	})
	return "amqp://guest:guest@" + ln.Addr().String() + "/"
}

func TestPublish_RedialHonoursContextDeadline(t *testing.T) {
	p := NewPublisher(&Connection{url: silentBroker(t), dialTimeout: time.Minute}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := p.PublishCheckRecorded(ctx, model.CheckRecordedEvent{CheckID: "c1"})

	require.Error(t, err)
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestPublish_RedialHonoursCancellation(t *testing.T) {
	c := &Connection{url: silentBroker(t), dialTimeout: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	start := time.Now()
	err := c.WithChannel(ctx, func(*amqp.Channel) error { return nil })

	require.Error(t, err)
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestConnection_CloseDuringRedial(t *testing.T) {
	c := &Connection{url: silentBroker(t), dialTimeout: time.Minute}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	errs := make(chan error, 1)
	go func() {
		errs <- c.WithChannel(ctx, func(*amqp.Channel) error { return nil })
	}()
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	require.NoError(t, c.Close())
	require.Less(t, time.Since(start), 500*time.Millisecond, "Close must not wait for the dial")

	require.Error(t, <-errs)
}

func TestPublisher_BreakerFailsFast(t *testing.T) {
	p := NewPublisher(&Connection{closed: true}, NewBreaker(2, time.Minute))
	ctx := context.Background()

	require.ErrorIs(t, p.PublishCheckRecorded(ctx, model.CheckRecordedEvent{}), ErrClosed)
	require.ErrorIs(t, p.PublishCheckRecorded(ctx, model.CheckRecordedEvent{}), ErrClosed)
	require.ErrorIs(t, p.PublishLeasesOffered(ctx, model.LeasesOfferedEvent{}), ErrCircuitOpen)
	require.Equal(t, StateOpen, p.breaker.State())
}
