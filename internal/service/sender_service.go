package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"wacampaign/internal/whatsapp"

	"github.com/google/uuid"
)

// Sender delivers messages to the messaging provider.
// whatsapp.Client and SimulatedSender implement it.
type Sender interface {
	SendTemplate(ctx context.Context, to string, template whatsapp.TemplatePayload) (*whatsapp.SendResult, error)
	SendText(ctx context.Context, to string, body string) (*whatsapp.SendResult, error)
}

// SimulatedSender accepts messages without calling the provider.
// Used for local runs and load tests.
type SimulatedSender struct {
	successRate float64 // 0.0 to 1.0 (e.g., 0.95 = 95% success)
	minLatency  time.Duration
	maxLatency  time.Duration

	mu   sync.Mutex
	rand *rand.Rand
}

// NewSimulatedSender creates a simulated sender
// successRate: probability of successful send (0.0 to 1.0)
func NewSimulatedSender(successRate float64) *SimulatedSender {
	return &SimulatedSender{
		successRate: clampRate(successRate),
		minLatency:  50 * time.Millisecond,
		maxLatency:  200 * time.Millisecond,
		rand:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithLatency overrides the simulated network latency range
func (s *SimulatedSender) WithLatency(min, max time.Duration) *SimulatedSender {
	if max < min {
		max = min
	}
	s.minLatency = min
	s.maxLatency = max
	return s
}

// SendTemplate simulates a template send
func (s *SimulatedSender) SendTemplate(ctx context.Context, to string, template whatsapp.TemplatePayload) (*whatsapp.SendResult, error) {
	return s.send(ctx, to)
}

// SendText simulates a free-form text send
func (s *SimulatedSender) SendText(ctx context.Context, to string, body string) (*whatsapp.SendResult, error) {
	return s.send(ctx, to)
}

func (s *SimulatedSender) send(ctx context.Context, to string) (*whatsapp.SendResult, error) {
	latency, roll, failure := s.draw()

	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if roll >= s.successRate {
		return nil, fmt.Errorf("failed to send to %s: %s", to, failure)
	}

	return &whatsapp.SendResult{
		MessagingProduct: "whatsapp",
		Contacts:         []whatsapp.ResultContact{{Input: to, WaID: whatsapp.NormalizePhone(to)}},
		Messages:         []whatsapp.ResultMessage{{ID: "wamid.sim-" + uuid.NewString()}},
	}, nil
}

func (s *SimulatedSender) draw() (time.Duration, float64, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	latency := s.minLatency
	if spread := s.maxLatency - s.minLatency; spread > 0 {
		latency += time.Duration(s.rand.Int63n(int64(spread)))
	}

	// Simulate different types of failures
	failures := []string{
		"network timeout",
		"recipient phone number not in allowed list",
		"rate limit exceeded",
		"service temporarily unavailable",
		"template paused due to low quality",
	}

	return latency, s.rand.Float64(), failures[s.rand.Intn(len(failures))]
}

// SuccessRate returns the configured success rate
func (s *SimulatedSender) SuccessRate() float64 {
	return s.successRate
}

func clampRate(rate float64) float64 {
	if rate < 0.0 {
		return 0.0
	}
	if rate > 1.0 {
		return 1.0
	}
	return rate
}
