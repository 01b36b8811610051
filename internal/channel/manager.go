package channel

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// Manager owns the registered channels. They start in registration order and stop
// in reverse.
type Manager struct {
	mu    sync.RWMutex
	byKey map[string]Channel
	order []Channel
}

func NewManager() *Manager {
	return &Manager{byKey: make(map[string]Channel)}
}

// Register adds ch, replacing a channel with the same name in place.
func (m *Manager) Register(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := ch.Name()
	if _, ok := m.byKey[name]; ok {
		for i, c := range m.order {
			if c.Name() == name {
				m.order[i] = ch
			}
		}
	} else {
		m.order = append(m.order, ch)
	}
	m.byKey[name] = ch
}

func (m *Manager) snapshot() []Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Channel(nil), m.order...)
}

// StartAll starts every channel. If one fails, those already started are stopped
// and the error names the failing channel.
func (m *Manager) StartAll(ctx context.Context) error {
	chans := m.snapshot()
	for i, ch := range chans {
		if err := ch.Start(ctx); err != nil {
			log.Printf("[channel] failed to start %s: %v", ch.Name(), err)
			for j := i - 1; j >= 0; j-- {
				_ = chans[j].Stop(ctx)
			}
			return fmt.Errorf("start %s: %w", ch.Name(), err)
		}
		log.Printf("[channel] started %s", ch.Name())
	}
	return nil
}

// StopAll stops the running channels, last registered first.
func (m *Manager) StopAll(ctx context.Context) {
	chans := m.snapshot()
	for i := len(chans) - 1; i >= 0; i-- {
		ch := chans[i]
		if !ch.IsRunning() {
			continue
		}
		if err := ch.Stop(ctx); err != nil {
			log.Printf("[channel] failed to stop %s: %v", ch.Name(), err)
			continue
		}
		log.Printf("[channel] stopped %s", ch.Name())
	}
}

// Listen installs h on every channel. Each message is tagged with the name of the
// channel it came from.
func (m *Manager) Listen(h Handler) {
	for _, ch := range m.snapshot() {
		name := ch.Name()
		ch.OnMessage(func(msg InboundMessage) {
			msg.ChannelName = name
			h(msg)
		})
	}
}

// Send delivers msg through the named channel.
func (m *Manager) Send(ctx context.Context, channelName string, msg OutboundMessage) error {
	ch, ok := m.Get(channelName)
	if !ok {
		return fmt.Errorf("channel %s not registered", channelName)
	}
	return ch.Send(ctx, msg)
}

func (m *Manager) Get(name string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.byKey[name]
	return ch, ok
}

// Names returns the channel names in registration order.
func (m *Manager) Names() []string {
	chans := m.snapshot()
	names := make([]string, len(chans))
	for i, ch := range chans {
		names[i] = ch.Name()
	}
	return names
}

// List maps each channel name to whether it is running.
func (m *Manager) List() map[string]bool {
	result := make(map[string]bool)
	for _, ch := range m.snapshot() {
		result[ch.Name()] = ch.IsRunning()
	}
	return result
}
