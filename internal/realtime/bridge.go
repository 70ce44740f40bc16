package realtime

import (
	"context"
	"strings"
	"sync"

	"github.com/carepoint/portal-api/internal/docstore"
	"github.com/carepoint/portal-api/internal/subscription"
	"github.com/carepoint/portal-api/pkg/logger"
)

// Bridge ties hub topics to wrapper subscriptions: the first subscriber
// on a topic opens one subscription, further subscribers share it, and
// the last one leaving disposes it. Two screens watching different
// topics get two independent feeds; there is no cross-topic query
// de-duplication.
type Bridge struct {
	ctx     context.Context
	hub     *Hub
	manager *subscription.Manager
	logger  *logger.Logger

	mu        sync.Mutex
	disposers map[string]func()
}

// NewBridge wires the hub's topic lifecycle to the subscription
// manager. ctx bounds the lifetime of every feed the bridge opens.
func NewBridge(ctx context.Context, hub *Hub, manager *subscription.Manager, log *logger.Logger) *Bridge {
	b := &Bridge{
		ctx:       ctx,
		hub:       hub,
		manager:   manager,
		logger:    log.WithComponent("realtime-bridge"),
		disposers: make(map[string]func()),
	}
	hub.OnTopicActive = b.topicActive
	hub.OnTopicIdle = b.topicIdle
	return b
}

// RosterTargets lists the doctor IDs with an active roster topic; the
// roster refresher polls exactly this set.
func (b *Bridge) RosterTargets() []string {
	var ids []string
	for _, topic := range b.hub.ActiveTopics() {
		if rest, ok := strings.CutPrefix(topic, KindRoster+":"+ScopeDoctor+":"); ok {
			ids = append(ids, rest)
		}
	}
	return ids
}

// PublishRoster pushes a roster snapshot to the doctor's roster topic.
// Shaped to plug straight into the refresher's publish hook.
func (b *Bridge) PublishRoster(doctorID string, entries interface{}) {
	topic := Topic{Kind: KindRoster, Scope: ScopeDoctor, ID: doctorID}.String()
	b.hub.BroadcastSnapshot(topic, KindRoster, entries)
}

func (b *Bridge) topicActive(topic string) {
	t, err := ParseTopic(topic)
	if err != nil {
		b.logger.Error(err, "ignoring malformed active topic", "topic", topic)
		return
	}

	opts, ok := t.SubscriptionOptions()
	if !ok {
		// Roster topics are fed by the refresher's publish hook.
		return
	}

	dispose, err := b.manager.Subscribe(b.ctx, opts, func(docs []docstore.Document) {
		b.hub.BroadcastSnapshot(topic, t.Kind, docs)
	})
	if err != nil {
		b.logger.Error(err, "failed to open topic feed", "topic", topic)
		return
	}

	b.mu.Lock()
	b.disposers[topic] = dispose
	b.mu.Unlock()
}

func (b *Bridge) topicIdle(topic string) {
	b.mu.Lock()
	dispose, ok := b.disposers[topic]
	delete(b.disposers, topic)
	b.mu.Unlock()

	if ok {
		dispose()
	}
}

// Close disposes every open feed.
func (b *Bridge) Close() {
	b.mu.Lock()
	disposers := b.disposers
	b.disposers = make(map[string]func())
	b.mu.Unlock()

	for _, dispose := range disposers {
		dispose()
	}
}
