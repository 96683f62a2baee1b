package server

import (
	"sync"

	"newsdeck/models"

	log "github.com/sirupsen/logrus"
)

// Broadcaster fans new reports out to SSE clients
type Broadcaster struct {
	sync.RWMutex
	clients map[string]chan models.AggregationReport
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[string]chan models.AggregationReport),
	}
}

// Broadcast never blocks; a client that has not drained its channel misses
// the report.
func (b *Broadcaster) Broadcast(report models.AggregationReport) {
	b.RLock()
	defer b.RUnlock()

	for id, client := range b.clients {
		select {
		case client <- report:
		default:
			log.Warnf("Client channel full, skipping report for client: %v", id)
		}
	}
}

func (b *Broadcaster) AddClient(key string, client chan models.AggregationReport) {
	b.Lock()
	defer b.Unlock()
	b.clients[key] = client
	log.WithFields(log.Fields{
		"key":   key,
		"count": len(b.clients),
	}).Info("Adding client to broadcaster")
}

func (b *Broadcaster) RemoveClient(key string) {
	b.Lock()
	defer b.Unlock()

	if client, ok := b.clients[key]; ok {
		close(client)
		delete(b.clients, key)
	}

	log.WithFields(log.Fields{
		"key":   key,
		"count": len(b.clients),
	}).Info("Removed client from broadcaster")
}

func (b *Broadcaster) Count() int {
	b.RLock()
	defer b.RUnlock()
	return len(b.clients)
}

func (b *Broadcaster) Shutdown() {
	log.Info("Shutting down broadcaster")
	b.Lock()
	defer b.Unlock()
	for key, client := range b.clients {
		close(client)
		delete(b.clients, key)
	}
}
