package services

import (
	"context"
	"sync"
)

// SentEmail is one call recorded by MockEmailSender.
type SentEmail struct {
	Template  string
	Recipient string
	Data      map[string]interface{}
}

// MockEmailSender is a mock implementation of EmailSender for testing
type MockEmailSender struct {
	mu   sync.Mutex
	sent []SentEmail
	fail map[string]bool
}

// NewMockEmailSender creates a mock sender that accepts every message
func NewMockEmailSender() *MockEmailSender {
	return &MockEmailSender{fail: make(map[string]bool)}
}

// FailTemplate makes every send of template report failure
func (m *MockEmailSender) FailTemplate(template string) {
	m.mu.Lock()
	m.fail[template] = true
	m.mu.Unlock()
}

func (m *MockEmailSender) Send(_ context.Context, template, recipient string, data map[string]interface{}) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[template] {
		return false
	}
	m.sent = append(m.sent, SentEmail{Template: template, Recipient: recipient, Data: data})
	return true
}

// Sent returns a copy of the accepted messages
func (m *MockEmailSender) Sent() []SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentEmail, len(m.sent))
	copy(out, m.sent)
	return out
}

// SentTemplates returns the template names of accepted messages in order
func (m *MockEmailSender) SentTemplates() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sent))
	for _, s := range m.sent {
		out = append(out, s.Template)
	}
	return out
}
