package publisher

import (
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/pulse.report/internal/ppg"
)

// Config contains configuration for the gRPC publisher.
type Config struct {
	// ListenAddr is the gRPC server address (e.g., "localhost:50061")
	ListenAddr string

	// MaxClients is the maximum number of concurrent streaming clients
	MaxClients int

	// ClientBuffer is the per-client queue length; results beyond it are
	// dropped for that client.
	ClientBuffer int
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		ListenAddr:   "localhost:50061",
		MaxClients:   8,
		ClientBuffer: 16,
	}
}

// Publisher is a ppg.ResultListener that fans results out to gRPC
// subscribers.
type Publisher struct {
	ppg.NopListener

	config   Config
	server   *grpc.Server
	listener net.Listener

	clients   map[string]*clientStream
	clientsMu sync.RWMutex
	nextID    atomic.Uint64

	// Stats
	published   atomic.Uint64
	dropped     atomic.Uint64
	clientCount atomic.Int32

	// Lifecycle
	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// clientStream represents a connected streaming client.
type clientStream struct {
	id       string
	resultCh chan *structpb.Struct
}

// NewPublisher creates a new Publisher with the given configuration.
func NewPublisher(cfg Config) *Publisher {
	def := DefaultConfig()
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = def.MaxClients
	}
	if cfg.ClientBuffer <= 0 {
		cfg.ClientBuffer = def.ClientBuffer
	}
	return &Publisher{
		config:  cfg,
		clients: make(map[string]*clientStream),
		stopCh:  make(chan struct{}),
	}
}

// Start listens on the configured address and serves in the background.
func (p *Publisher) Start() error {
	lis, err := net.Listen("tcp", p.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	if err := p.Serve(lis); err != nil {
		lis.Close()
		return err
	}
	return nil
}

// Serve serves the result stream on lis in the background.
func (p *Publisher) Serve(lis net.Listener) error {
	if !p.running.CompareAndSwap(false, true) {
		return fmt.Errorf("publisher already running")
	}
	p.listener = lis
	p.server = grpc.NewServer()
	RegisterService(p.server, p)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		log.Printf("[publisher] gRPC server listening on %s", lis.Addr())
		if err := p.server.Serve(lis); err != nil && p.running.Load() {
			log.Printf("[publisher] gRPC server error: %v", err)
		}
	}()
	return nil
}

// Stop ends every stream and stops the server. It is safe to call more
// than once.
func (p *Publisher) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.stopCh)

	if p.server != nil {
		p.server.GracefulStop()
	}
	p.wg.Wait()
	log.Printf("[publisher] gRPC server stopped")
}

// OnResult implements ppg.ResultListener.
func (p *Publisher) OnResult(r ppg.Result) {
	if !p.running.Load() {
		return
	}
	msg := ResultToStruct(r)
	p.published.Add(1)

	p.clientsMu.RLock()
	defer p.clientsMu.RUnlock()
	for _, c := range p.clients {
		select {
		case c.resultCh <- msg:
		default:
			p.dropped.Add(1)
		}
	}
}

// Subscribe implements ResultStreamServer.
func (p *Publisher) Subscribe(_ *emptypb.Empty, stream grpc.ServerStream) error {
	client, err := p.addClient()
	if err != nil {
		return err
	}
	defer p.removeClient(client.id)

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case msg := <-client.resultCh:
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		}
	}
}

func (p *Publisher) addClient() (*clientStream, error) {
	p.clientsMu.Lock()
	defer p.clientsMu.Unlock()
	if len(p.clients) >= p.config.MaxClients {
		return nil, status.Errorf(codes.ResourceExhausted, "max clients (%d) reached", p.config.MaxClients)
	}
	client := &clientStream{
		id:       fmt.Sprintf("grpc-%d", p.nextID.Add(1)),
		resultCh: make(chan *structpb.Struct, p.config.ClientBuffer),
	}
	p.clients[client.id] = client
	p.clientCount.Add(1)
	log.Printf("[publisher] client connected: %s (total: %d)", client.id, len(p.clients))
	return client, nil
}

func (p *Publisher) removeClient(id string) {
	p.clientsMu.Lock()
	defer p.clientsMu.Unlock()
	if _, ok := p.clients[id]; ok {
		delete(p.clients, id)
		p.clientCount.Add(-1)
		log.Printf("[publisher] client disconnected: %s (remaining: %d)", id, len(p.clients))
	}
}

// Stats returns current publisher statistics.
func (p *Publisher) Stats() Stats {
	return Stats{
		Published:   p.published.Load(),
		Dropped:     p.dropped.Load(),
		ClientCount: p.clientCount.Load(),
		Running:     p.running.Load(),
	}
}

// Stats contains publisher statistics.
type Stats struct {
	Published   uint64 `json:"published"`
	Dropped     uint64 `json:"dropped"`
	ClientCount int32  `json:"client_count"`
	Running     bool   `json:"running"`
}
