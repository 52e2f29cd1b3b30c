package electrum

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"math/rand"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// peerState tracks whether a registered Client is currently connected.
type peerState int32

const (
	peerDown peerState = iota
	peerUp
)

type peer struct {
	key    string
	client *Client
	state  peerState
}

// ClusterOptions configures a pool of Clients fanned requests out across,
// with quorum-style result agreement.
type ClusterOptions struct {
	// Application and Version are shared by every Client the cluster
	// creates via AddServer.
	Application string `validate:"required"`
	Version     string `validate:"required"`

	// Confidence is the number of peers that must agree on a canonical
	// result before a cluster Request resolves. Must be between 1 and
	// Distribution.
	Confidence int `validate:"required,min=1"`

	// Distribution is the number of peers one Request fans out to. Zero
	// means "no fan-out requested"; the operational minimum is 1.
	Distribution int

	Order Order

	KeepAlive time.Duration
	Retry     time.Duration
	Timeout   time.Duration

	TLS *tls.Config
	Log logrus.FieldLogger
}

func (o *ClusterOptions) applyDefaults() {
	if o.Confidence == 0 {
		o.Confidence = DefaultConfidence
	}
	if o.Distribution < 1 {
		o.Distribution = 1
	}
	if o.KeepAlive == 0 {
		o.KeepAlive = DefaultKeepAlive
	}
	if o.Retry == 0 {
		o.Retry = DefaultRetry
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
}

// Status is the Cluster readiness state machine's current value.
type Status int32

const (
	Degraded Status = iota
	Ready
)

func (s Status) String() string {
	if s == Ready {
		return "ready"
	}
	return "degraded"
}

// Cluster manages a pool of Clients against independent peers, answering
// each Request only once Confidence of the Distribution peers fanned out
// to return a canonically identical result.
type Cluster struct {
	application string
	version     string
	confidence  int
	distrib     int
	order       Order
	keepAlive   time.Duration
	retry       time.Duration
	timeout     time.Duration
	tlsConfig   *tls.Config
	hooks       *Hooks

	mu          sync.Mutex
	registry    map[string]*peer
	insertOrder []string // insertion order, for PRIORITY selection
	live        int
	status      Status
}

// NewCluster constructs an empty, DEGRADED Cluster.
func NewCluster(options ClusterOptions) (*Cluster, error) {
	options.applyDefaults()
	if err := validate.Struct(&options); err != nil {
		return nil, fmt.Errorf("electrum: cluster options: %w", err)
	}
	if options.Confidence > options.Distribution {
		return nil, ErrInvalidConfidence
	}

	return &Cluster{
		application: options.Application,
		version:     options.Version,
		confidence:  options.Confidence,
		distrib:     options.Distribution,
		order:       options.Order,
		keepAlive:   options.KeepAlive,
		retry:       options.Retry,
		timeout:     options.Timeout,
		tlsConfig:   options.TLS,
		hooks:       NewHooks(options.Log),
		registry:    make(map[string]*peer),
		status:      Degraded,
	}, nil
}

// Status reports the cluster's current readiness.
func (cl *Cluster) Status() Status {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.status
}

// Ready blocks, polling every 50ms, until the cluster reaches READY or ctx
// is done, returning which happened first.
func (cl *Cluster) Ready(ctx context.Context) bool {
	if cl.Status() == Ready {
		return true
	}
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if cl.Status() == Ready {
				return true
			}
		case <-ctx.Done():
			return false
		}
	}
}

// AddServer constructs a Client for host:port, registers it DOWN, wires
// its Closed() channel to the readiness state machine, and connects it.
func (cl *Cluster) AddServer(ctx context.Context, host string, port uint16) error {
	if port == 0 {
		port = DefaultPort
	}
	key := net.JoinHostPort(host, strconv.Itoa(int(port)))

	client, err := New(ClientOptions{
		Application: cl.application,
		Version:     cl.version,
		Host:        host,
		Port:        port,
		KeepAlive:   cl.keepAlive,
		Retry:       cl.retry,
		Timeout:     cl.timeout,
		TLS:         cl.tlsConfig,
		Log:         cl.hooks.log,
	})
	if err != nil {
		return err
	}

	p := &peer{key: key, client: client, state: peerDown}
	cl.mu.Lock()
	cl.registry[key] = p
	cl.insertOrder = append(cl.insertOrder, key)
	cl.mu.Unlock()

	if _, err := client.Connect(ctx); err != nil {
		cl.hooks.Errors("cluster: connecting %s: %v", key, err)
		return err
	}

	cl.mu.Lock()
	p.state = peerUp
	cl.live++
	if cl.status == Degraded && cl.live >= cl.distrib {
		cl.status = Ready
		cl.hooks.Status("cluster: status -> ready (%d/%d live)", cl.live, cl.distrib)
	}
	cl.mu.Unlock()

	go cl.watchPeer(p)
	return nil
}

// watchPeer marks p DOWN and re-evaluates cluster readiness exactly once,
// when the peer's Connection eventually closes. It mirrors the
// edge-triggered transitions the teacher's transport-event hooks drove,
// expressed over the Client's Closed() channel instead.
func (cl *Cluster) watchPeer(p *peer) {
	<-p.client.conn.Closed()

	cl.mu.Lock()
	if p.state == peerUp {
		cl.live--
		p.state = peerDown
	}
	if cl.status == Ready && cl.live < cl.distrib {
		cl.status = Degraded
		cl.hooks.Status("cluster: status -> degraded (%d/%d live)", cl.live, cl.distrib)
	}
	cl.mu.Unlock()
}

// selectPeers snapshots the registry and picks up to cl.distrib peers,
// skipping DOWN ones without counting them toward the selection, per
// cl.order.
func (cl *Cluster) selectPeers() []*peer {
	cl.mu.Lock()
	keys := append([]string{}, cl.insertOrder...)
	registry := make(map[string]*peer, len(cl.registry))
	for k, p := range cl.registry {
		registry[k] = p
	}
	distrib := cl.distrib
	orderMode := cl.order
	cl.mu.Unlock()

	var chosen []*peer
	switch orderMode {
	case OrderPriority:
		for _, k := range keys {
			if len(chosen) == distrib {
				break
			}
			if p := registry[k]; p != nil && p.state == peerUp {
				chosen = append(chosen, p)
			}
		}
	default:
		remaining := append([]string{}, keys...)
		rand.Shuffle(len(remaining), func(i, j int) { remaining[i], remaining[j] = remaining[j], remaining[i] })
		for _, k := range remaining {
			if len(chosen) == distrib {
				break
			}
			if p := registry[k]; p != nil && p.state == peerUp {
				chosen = append(chosen, p)
			}
		}
	}
	return chosen
}

// Request fans method/params out to Distribution peers and resolves with
// the first canonical result Confidence of them agree on.
func (cl *Cluster) Request(ctx context.Context, method string, params ...any) (Result, error) {
	if cl.Status() != Ready {
		return Result{}, ErrClusterNotReady
	}

	chosen := cl.selectPeers()
	if len(chosen) == 0 {
		return Result{}, ErrClusterNotReady
	}

	type tally struct {
		result Result
		count  int
	}
	tallies := make(map[string]*tally)
	var mu sync.Mutex
	winner := make(chan Result, 1)
	var winnerOnce sync.Once

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(len(chosen))
	for _, p := range chosen {
		p := p
		grp.Go(func() error {
			res, err := p.client.Request(gctx, method, params...)
			if err != nil {
				cl.hooks.Errors("cluster: request to %s failed: %v", p.key, err)
				return nil
			}
			key, err := canonicalJSON(res.Raw())
			if err != nil {
				return nil
			}
			if res.IsError() {
				key = "error:" + res.Error().Error()
			}

			mu.Lock()
			defer mu.Unlock()
			t, ok := tallies[key]
			if !ok {
				t = &tally{result: res}
				tallies[key] = t
			}
			t.count++
			if t.count >= cl.confidence {
				winnerOnce.Do(func() { winner <- t.result })
			}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		grp.Wait()
		close(done)
	}()

	select {
	case res := <-winner:
		return res, nil
	case <-done:
		select {
		case res := <-winner:
			return res, nil
		default:
			return Result{}, ErrInsufficientIntegrity
		}
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Subscribe installs an aggregating interceptor on every registered peer's
// notifications for method: each arriving payload is canonicalized and
// tallied, and the application callback fires the first time any distinct
// canonical value reaches Confidence occurrences. It also issues an
// initial Request through the cluster and delivers that quorum-backed
// result to callback once.
func (cl *Cluster) Subscribe(ctx context.Context, method string, callback func(json.RawMessage), params ...any) error {
	var mu sync.Mutex
	tallies := make(map[string]int)
	fired := make(map[string]bool)

	intercept := func(raw json.RawMessage) {
		key, err := canonicalJSON(raw)
		if err != nil {
			return
		}
		mu.Lock()
		tallies[key]++
		count := tallies[key]
		already := fired[key]
		if count >= cl.confidence && !already {
			fired[key] = true
		}
		mu.Unlock()
		if count >= cl.confidence && !already {
			callback(raw)
		}
	}

	cl.mu.Lock()
	peers := make([]*peer, 0, len(cl.registry))
	for _, p := range cl.registry {
		peers = append(peers, p)
	}
	cl.mu.Unlock()

	for _, p := range peers {
		p.client.mu.Lock()
		p.client.subs[method] = append(p.client.subs[method], intercept)
		p.client.mu.Unlock()
	}

	res, err := cl.Request(ctx, method, params...)
	if err != nil {
		return err
	}
	if res.IsError() {
		return res.Error()
	}
	callback(res.Raw())
	return nil
}

// Shutdown sets status to DEGRADED (terminal) and force-disconnects every
// registered Client in parallel, waiting for all of them to settle.
func (cl *Cluster) Shutdown() {
	cl.mu.Lock()
	cl.status = Degraded
	peers := make([]*peer, 0, len(cl.registry))
	for _, p := range cl.registry {
		peers = append(peers, p)
	}
	cl.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(len(peers))
	for _, p := range peers {
		p := p
		go func() {
			defer wg.Done()
			p.client.Disconnect(true)
		}()
	}
	wg.Wait()
	cl.hooks.Status("cluster: shutdown complete")
}
