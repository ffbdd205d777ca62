package db

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/parisxmas/OxiDB/OxiLeads/internal/logging"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/oxidb"
)

const (
	dialTimeout       = 5 * time.Second
	keepaliveInterval = 10 * time.Second
)

// Pool is a round-robin connection pool for OxiDB with auto-reconnect.
// A slot is held for the whole of a Do call, so a transaction never shares
// its connection with another caller.
type Pool struct {
	addr    string
	log     *logging.Logger
	clients []*oxidb.Client
	mu      []sync.Mutex
	idx     uint64
	stop    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// NewPool creates a pool of size OxiDB connections.
func NewPool(ctx context.Context, addr string, size int, log *logging.Logger) (*Pool, error) {
	if size < 1 {
		size = 1
	}
	p := &Pool{
		addr:    addr,
		log:     log.Named("db"),
		clients: make([]*oxidb.Client, size),
		mu:      make([]sync.Mutex, size),
		stop:    make(chan struct{}),
	}
	for i := 0; i < size; i++ {
		c, err := oxidb.Connect(ctx, addr, dialTimeout)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("pool: connect client %d: %w", i, err)
		}
		p.clients[i] = c
	}
	// Keepalive pings prevent idle timeout on the server side.
	p.wg.Add(1)
	go p.keepalive()
	return p, nil
}

// Size is the number of slots.
func (p *Pool) Size() int { return len(p.clients) }

// Do runs fn with the next client in round-robin order, reconnecting the
// slot first when its client is missing or broken.
func (p *Pool) Do(ctx context.Context, fn func(*oxidb.Client) error) error {
	n := atomic.AddUint64(&p.idx, 1)
	i := int(n % uint64(len(p.clients)))

	p.mu[i].Lock()
	defer p.mu[i].Unlock()

	if c := p.clients[i]; c == nil || c.Broken() {
		if err := p.reconnectLocked(ctx, i); err != nil {
			return err
		}
	}
	return fn(p.clients[i])
}

// Ping checks one connection.
func (p *Pool) Ping(ctx context.Context) error {
	return p.Do(ctx, func(c *oxidb.Client) error {
		_, err := c.Ping(ctx)
		return err
	})
}

// reconnectLocked replaces the client at index i. Caller holds mu[i].
func (p *Pool) reconnectLocked(ctx context.Context, i int) error {
	if p.clients[i] != nil {
		p.clients[i].Close()
		p.clients[i] = nil
	}
	c, err := oxidb.Connect(ctx, p.addr, dialTimeout)
	if err != nil {
		p.log.Warn(ctx, "reconnect failed", zap.Int("client", i), zap.Error(err))
		return fmt.Errorf("pool: reconnect client %d: %w", i, err)
	}
	p.clients[i] = c
	return nil
}

func (p *Pool) keepalive() {
	defer p.wg.Done()
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			for i := range p.clients {
				p.pingSlot(i)
			}
		}
	}
}

func (p *Pool) pingSlot(i int) {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	p.mu[i].Lock()
	defer p.mu[i].Unlock()

	c := p.clients[i]
	if c != nil && !c.Broken() {
		_, err := c.Ping(ctx)
		if err == nil {
			return
		}
		p.log.Warn(ctx, "ping failed, reconnecting", zap.Int("client", i), zap.Error(err))
	}
	_ = p.reconnectLocked(ctx, i)
}

// Close stops the keepalive loop and closes all connections.
func (p *Pool) Close() {
	p.once.Do(func() {
		close(p.stop)
		p.wg.Wait()
		for i := range p.clients {
			p.mu[i].Lock()
			if p.clients[i] != nil {
				p.clients[i].Close()
				p.clients[i] = nil
			}
			p.mu[i].Unlock()
		}
	})
}
