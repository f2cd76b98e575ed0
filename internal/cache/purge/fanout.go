package purge

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/samsarahq/go/oops"

	"github.com/graphweave/fedgate/internal/cache"
)

// purgeEnvelope is the wire shape exchanged between gateway replicas,
// modeled on graphql/server.go's inEnvelope/outEnvelope JSON framing.
type purgeEnvelope struct {
	Tags []string `json:"tags"`
}

// Fanout broadcasts locally-triggered cache purges to every connected
// peer replica over a websocket, and applies purges received from
// peers to the local Backend. Wrapping the Backend in
// BroadcastingBackend makes every PurgeByTags call (including the ones
// purge.Listener.OnCommit makes) also call Fanout.Broadcast, so a
// mutation committed on one replica evicts the response cache held by
// every other replica in the fleet.
type Fanout struct {
	Backend cache.Backend

	mu    sync.Mutex
	peers map[*websocket.Conn]struct{}
}

// NewFanout constructs a Fanout purging the given Backend whenever a
// peer reports tags.
func NewFanout(backend cache.Backend) *Fanout {
	return &Fanout{Backend: backend, peers: make(map[*websocket.Conn]struct{})}
}

// Broadcast pushes tags to every connected peer. Best-effort: a dead
// peer connection is dropped rather than failing the caller, matching
// purge.Listener's own "purge failures never fail the triggering
// mutation" contract.
func (f *Fanout) Broadcast(tags []string) {
	if len(tags) == 0 {
		return
	}

	f.mu.Lock()
	peers := make([]*websocket.Conn, 0, len(f.peers))
	for c := range f.peers {
		peers = append(peers, c)
	}
	f.mu.Unlock()

	for _, c := range peers {
		if err := c.WriteJSON(purgeEnvelope{Tags: tags}); err != nil {
			log.Printf("fanout: dropping dead peer: %v", err)
			f.removePeer(c)
		}
	}
}

func (f *Fanout) removePeer(c *websocket.Conn) {
	f.mu.Lock()
	delete(f.peers, c)
	f.mu.Unlock()
	_ = c.Close()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler accepts inbound peer connections on the gateway's admin
// surface (spec.md's cache-purge fan-out between replicas) and
// applies every tag set a peer reports to Backend.
func (f *Fanout) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		socket, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("fanout: upgrade failed: %v", err)
			return
		}

		f.mu.Lock()
		f.peers[socket] = struct{}{}
		f.mu.Unlock()

		go f.readLoop(socket)
	})
}

func (f *Fanout) readLoop(socket *websocket.Conn) {
	defer f.removePeer(socket)

	for {
		var envelope purgeEnvelope
		if err := socket.ReadJSON(&envelope); err != nil {
			return
		}
		if len(envelope.Tags) == 0 {
			continue
		}
		if err := f.Backend.PurgeByTags(context.Background(), envelope.Tags); err != nil {
			log.Printf("fanout: purging tags from peer: %v", oops.Wrapf(err, "applying peer purge"))
		}
	}
}

// Join dials a peer gateway's admin surface and keeps the connection
// registered as an outbound fanout target until the peer closes it or
// Close is called.
func (f *Fanout) Join(url string) error {
	socket, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return oops.Wrapf(err, "dialing peer gateway %q", url)
	}

	f.mu.Lock()
	f.peers[socket] = struct{}{}
	f.mu.Unlock()

	go f.readLoop(socket)
	return nil
}

// Close disconnects every peer.
func (f *Fanout) Close() {
	f.mu.Lock()
	peers := f.peers
	f.peers = make(map[*websocket.Conn]struct{})
	f.mu.Unlock()

	for c := range peers {
		_ = c.Close()
	}
}

// BroadcastingBackend decorates a cache.Backend so that every local
// PurgeByTags call (whether triggered by Listener.OnCommit or any
// other caller) also fans the tags out to peer replicas.
type BroadcastingBackend struct {
	cache.Backend
	Fanout *Fanout
}

func (b *BroadcastingBackend) PurgeByTags(ctx context.Context, tags []string) error {
	if err := b.Backend.PurgeByTags(ctx, tags); err != nil {
		return err
	}
	b.Fanout.Broadcast(tags)
	return nil
}

var _ cache.Backend = (*BroadcastingBackend)(nil)
