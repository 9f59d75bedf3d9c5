package mocks

import "github.com/stretchr/testify/mock"

// MockMailer expects template patterns as a single []string argument, e.g.
// On("Send", "ada@example.com", mock.Anything, []string{"welcome.tmpl"}).
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(recipient string, data any, patterns ...string) error {
	return m.Called(recipient, data, patterns).Error(0)
}
