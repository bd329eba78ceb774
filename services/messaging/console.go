package messagingsvc

import (
	"context"
	"log"
	"sync"

	"github.com/trezcool/halaqat/core"
)

// Sent is a message delivered by the console messenger.
type Sent struct {
	Target string
	Text   string
}

type consoleMessenger struct {
	mu            sync.Mutex
	sent          []Sent
	disableOutput bool
}

var _ core.Messenger = (*consoleMessenger)(nil)

// NewConsoleMessenger prints messages instead of delivering them.
func NewConsoleMessenger() *consoleMessenger {
	return &consoleMessenger{}
}

func (m *consoleMessenger) Send(ctx context.Context, target, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.sent = append(m.sent, Sent{Target: target, Text: text})
	m.mu.Unlock()
	if !m.disableOutput {
		log.Printf("message to %s:\n%s\n", target, text)
	}
	return nil
}

// Sent returns a copy of the delivered messages.
func (m *consoleMessenger) Sent() []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Sent(nil), m.sent...)
}

// Mock is a silent console messenger whose deliveries can be made to fail.
type Mock struct {
	consoleMessenger
	failMu  sync.Mutex
	failing map[string]error
}

func NewMock() *Mock {
	return &Mock{
		consoleMessenger: consoleMessenger{disableOutput: true},
		failing:          make(map[string]error),
	}
}

// FailFor makes every delivery to target fail with err. A nil err restores delivery.
func (m *Mock) FailFor(target string, err error) {
	m.failMu.Lock()
	defer m.failMu.Unlock()
	if err == nil {
		delete(m.failing, target)
		return
	}
	m.failing[target] = err
}

func (m *Mock) Send(ctx context.Context, target, text string) error {
	m.failMu.Lock()
	err := m.failing[target]
	m.failMu.Unlock()
	if err != nil {
		return err
	}
	return m.consoleMessenger.Send(ctx, target, text)
}
