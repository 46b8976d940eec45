package publish

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"netsentinel/pkg/auth"
	"netsentinel/pkg/model"
)

// ErrNotConnected is returned while the websocket is (re)connecting.
var ErrNotConnected = errors.New("websocket not connected")

// WSPublisher keeps a single websocket to the collector and streams envelopes over it.
// The connection is re-dialed in the background after any failure.
type WSPublisher struct {
	mu       sync.Mutex
	conn     *websocket.Conn
	endpoint string
	agentID  string
	signer   *auth.Signer
	tls      *tls.Config
	retry    time.Duration
	timeout  time.Duration
	log      *zap.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewWSPublisher(endpoint, agentID string, signer *auth.Signer, tlsConfig *tls.Config, timeout time.Duration, log *zap.Logger) *WSPublisher {
	return &WSPublisher{
		endpoint: endpoint,
		agentID:  agentID,
		signer:   signer,
		tls:      tlsConfig,
		retry:    5 * time.Second,
		timeout:  timeout,
		log:      log,
		done:     make(chan struct{}),
	}
}

// Start launches the dial loop; it stops when ctx is cancelled or Close is called.
func (p *WSPublisher) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	go p.loop(ctx)
}

func (p *WSPublisher) loop(ctx context.Context) {
	defer close(p.done)
	for {
		conn, err := p.dial(ctx)
		if err != nil {
			p.log.Warn("ws dial failed", zap.String("url", p.endpoint), zap.Error(err))
		} else if !p.attach(ctx, conn) {
			return
		} else {
			p.log.Info("ws connected to collector", zap.String("url", p.endpoint))
			p.readLoop(conn)
			p.dropConn(conn)
			p.log.Info("ws disconnected", zap.Duration("retry", p.retry))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.retry):
		}
	}
}

func (p *WSPublisher) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if p.signer != nil {
		token, err := p.signer.Generate(p.agentID)
		if err != nil {
			return nil, err
		}
		header.Set("Authorization", "Bearer "+token)
	}
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = p.timeout
	dialer.TLSClientConfig = p.tls
	conn, resp, err := dialer.DialContext(ctx, p.endpoint, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// readLoop drains control frames and returns once the connection breaks.
func (p *WSPublisher) readLoop(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// attach publishes conn for writers. It closes conn instead when ctx ended
// during the dial, since Close may already have looked for a connection.
func (p *WSPublisher) attach(ctx context.Context, conn *websocket.Conn) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ctx.Err() != nil {
		_ = conn.Close()
		return false
	}
	p.conn = conn
	return true
}

func (p *WSPublisher) dropConn(conn *websocket.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == conn {
		p.conn = nil
	}
	_ = conn.Close()
}

func (p *WSPublisher) Publish(_ context.Context, s model.Sample) error {
	b, err := encode(p.agentID, s)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return ErrNotConnected
	}
	_ = p.conn.SetWriteDeadline(time.Now().Add(p.timeout))
	if err := p.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		_ = p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}

func (p *WSPublisher) Close() error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	p.mu.Lock()
	if p.conn != nil {
		_ = p.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = p.conn.Close()
	}
	p.mu.Unlock()
	<-p.done
	return nil
}
