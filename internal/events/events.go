// Package events publishes notifications about finished captions so other
// services (indexers, notifiers) can react without polling the API.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"captionapi/internal/model"
)

// CaptionCompleted is the payload published when a caption pipeline succeeds.
type CaptionCompleted struct {
	ID             string    `json:"id"`
	Language       string    `json:"language"`
	Caption        string    `json:"caption"`
	Translation    string    `json:"translation"`
	ImagePath      string    `json:"image_path"`
	EnAudioPath    string    `json:"en_audio_path"`
	TransAudioPath string    `json:"trans_audio_path"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewCaptionCompleted builds the event for c.
func NewCaptionCompleted(c *model.Caption) CaptionCompleted {
	return CaptionCompleted{
		ID:             c.ID,
		Language:       c.Language,
		Caption:        c.Caption,
		Translation:    c.Translation,
		ImagePath:      c.ImagePath,
		EnAudioPath:    c.EnAudioPath,
		TransAudioPath: c.TransAudioPath,
		CreatedAt:      c.CreatedAt,
	}
}

// Publisher delivers caption events.
type Publisher interface {
	PublishCaptionCompleted(ctx context.Context, evt CaptionCompleted) error
	Close() error
}

// closeTimeout bounds how long Close waits for buffered messages to reach the server.
const closeTimeout = 5 * time.Second

// ErrDrainTimeout is returned by Close when the connection did not finish
// draining in time. The connection is closed regardless.
var ErrDrainTimeout = errors.New("nats drain timed out")

// NATSPublisher publishes events as JSON messages on a NATS subject.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	closed  chan struct{}
}

// NewNATSPublisher wraps an existing connection. The publisher takes over the
// connection's closed handler.
func NewNATSPublisher(conn *nats.Conn, subject string) *NATSPublisher {
	closed := make(chan struct{})
	var once sync.Once
	conn.SetClosedHandler(func(*nats.Conn) { once.Do(func() { close(closed) }) })
	return &NATSPublisher{conn: conn, subject: subject, closed: closed}
}

// ConnectNATS dials url and returns a publisher that owns the connection.
func ConnectNATS(url, subject string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("captionapi"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return NewNATSPublisher(conn, subject), nil
}

// PublishCaptionCompleted marshals evt and publishes it, with the caption id as
// the Nats-Msg-Id header so JetStream consumers can deduplicate.
func (p *NATSPublisher) PublishCaptionCompleted(ctx context.Context, evt CaptionCompleted) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := nats.NewMsg(p.subject)
	msg.Header.Set(nats.MsgIdHdr, evt.ID)
	msg.Data = data
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish to %s: %w", p.subject, err)
	}
	return nil
}

// Close flushes pending messages, drains the connection and waits until it
// is closed. Calling Close on a closed publisher is a no-op.
func (p *NATSPublisher) Close() error {
	if p.conn.IsClosed() {
		return nil
	}
	flushErr := p.conn.FlushTimeout(closeTimeout)
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return errors.Join(flushErr, fmt.Errorf("drain nats: %w", err))
	}

	timer := time.NewTimer(closeTimeout)
	defer timer.Stop()
	select {
	case <-p.closed:
	case <-timer.C:
		p.conn.Close()
		return errors.Join(flushErr, ErrDrainTimeout)
	}
	if flushErr != nil {
		return fmt.Errorf("flush nats: %w", flushErr)
	}
	return nil
}

// Nop discards events. It is used when NATS is not configured.
type Nop struct{}

func (Nop) PublishCaptionCompleted(context.Context, CaptionCompleted) error { return nil }
func (Nop) Close() error                                                  { return nil }
