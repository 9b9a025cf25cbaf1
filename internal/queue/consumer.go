package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	bookingLogQueue = "booking.log"
	bookingLogFile  = "booking.log"
)

// ConsumerConfig configures the booking event log sink.
type ConsumerConfig struct {
	URL      string
	Exchange string
	LogDir   string // directory that receives booking.log
}

// StartBookingConsumer binds a durable queue to every booking.* event and
// appends one line per event to LogDir/booking.log.  It reconnects with
// exponential backoff and only returns once ctx is cancelled.
func StartBookingConsumer(ctx context.Context, cfg ConsumerConfig, log *zap.Logger) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(cfg.URL)
		if err != nil {
			log.Warn("queue.Consumer dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, cfg, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("queue.Consumer loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, cfg ConsumerConfig, log *zap.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn("queue.Consumer set QoS failed", zap.Error(err))
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	if _, err := ch.QueueDeclare(bookingLogQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(bookingLogQueue, "booking.#", cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}
	msgs, err := ch.Consume(bookingLogQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := handleMessage(cfg.LogDir, d.Body); err != nil {
				log.Warn("queue.Consumer handle message failed", zap.Error(err), zap.String("message_id", d.MessageId))
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// handleMessage decodes a BookingEvent and appends it to dir/booking.log.
func handleMessage(dir string, body []byte) error {
	var ev BookingEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Event == "" || ev.BookingID == 0 {
		return errors.New("event and booking_id are required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, bookingLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(formatEvent(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func formatEvent(ev BookingEvent) string {
	ids := make([]string, len(ev.SlotIDs))
	for i, id := range ev.SlotIDs {
		ids[i] = fmt.Sprint(id)
	}
	line := fmt.Sprintf("[%s] %s | booking_id=%d | user_id=%d | venue_id=%d | facility_id=%d | date=%s | window=%s-%s | amount=%d | status=%s/%s | slots=[%s]",
		ev.OccurredAt, ev.Event, ev.BookingID, ev.UserID, ev.VenueID, ev.FacilityID,
		ev.BookedDate, ev.StartTime, ev.EndTime, ev.Amount, ev.BookingStatus, ev.PaymentStatus,
		strings.Join(ids, ","))
	if ev.Reason != "" {
		line += " | reason=" + ev.Reason
	}
	return line + "\n"
}
