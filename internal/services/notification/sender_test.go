package notification

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/gregai-backend/internal/lib/smtp"
	"github.com/magabrotheeeer/gregai-backend/internal/models"
)

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Connect(ctx context.Context) (smtp.Client, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(smtp.Client), args.Error(1)
}

func (m *MockTransport) From() string {
	return m.Called().String(0)
}

func (m *MockTransport) FromHeader() string {
	return m.Called().String(0)
}

type MockSMTPClient struct {
	mock.Mock
}

func (m *MockSMTPClient) Mail(from string) error {
	return m.Called(from).Error(0)
}

func (m *MockSMTPClient) Rcpt(to string) error {
	return m.Called(to).Error(0)
}

func (m *MockSMTPClient) Data() (io.WriteCloser, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.WriteCloser), args.Error(1)
}

func (m *MockSMTPClient) Close() error {
	return m.Called().Error(0)
}

func (m *MockSMTPClient) Quit() error {
	return m.Called().Error(0)
}

type bufferWriter struct {
	bytes.Buffer
	closeErr error
}

func (b *bufferWriter) Close() error { return b.closeErr }

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func testEmail() models.Email {
	return models.Email{
		Kind:    models.EmailWaitList,
		To:      "test@example.com",
		Subject: "Registration Confirmation",
		Text:    "plain",
		HTML:    "<p>html</p>",
	}
}

func TestSender_Send(t *testing.T) {
	tests := []struct {
		name          string
		setupMocks    func(*MockTransport, *MockSMTPClient, *bufferWriter)
		expectedError string
	}{
		{
			name: "success",
			setupMocks: func(tr *MockTransport, c *MockSMTPClient, w *bufferWriter) {
				tr.On("Connect", mock.Anything).Return(c, nil).Once()
				c.On("Mail", "noreply@example.com").Return(nil).Once()
				c.On("Rcpt", "test@example.com").Return(nil).Once()
				c.On("Data").Return(w, nil).Once()
				c.On("Quit").Return(nil).Once()
				c.On("Close").Return(nil).Once()
			},
		},
		{
			name: "SMTP connection error",
			setupMocks: func(tr *MockTransport, _ *MockSMTPClient, _ *bufferWriter) {
				tr.On("Connect", mock.Anything).Return(nil, errors.New("connection error")).Once()
			},
			expectedError: "connection error",
		},
		{
			name: "recipient rejected",
			setupMocks: func(tr *MockTransport, c *MockSMTPClient, _ *bufferWriter) {
				tr.On("Connect", mock.Anything).Return(c, nil).Once()
				c.On("Mail", "noreply@example.com").Return(nil).Once()
				c.On("Rcpt", "test@example.com").Return(errors.New("550 no such user")).Once()
				c.On("Close").Return(nil).Once()
			},
			expectedError: "550 no such user",
		},
		{
			name: "data close error",
			setupMocks: func(tr *MockTransport, c *MockSMTPClient, w *bufferWriter) {
				w.closeErr = errors.New("552 too big")
				tr.On("Connect", mock.Anything).Return(c, nil).Once()
				c.On("Mail", "noreply@example.com").Return(nil).Once()
				c.On("Rcpt", "test@example.com").Return(nil).Once()
				c.On("Data").Return(w, nil).Once()
				c.On("Close").Return(nil).Once()
			},
			expectedError: "552 too big",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := new(MockTransport)
			client := new(MockSMTPClient)
			writer := &bufferWriter{}
			transport.On("From").Return("noreply@example.com").Maybe()
			transport.On("FromHeader").Return(`"GregAI" <noreply@example.com>`).Maybe()
			tt.setupMocks(transport, client, writer)

			err := NewSender(transport, newNoopLogger()).Send(context.Background(), testEmail())

			if tt.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
			} else {
				require.NoError(t, err)
				assert.Contains(t, writer.String(), "multipart/alternative")
				assert.Contains(t, writer.String(), "To: test@example.com")
			}
			transport.AssertExpectations(t)
			client.AssertExpectations(t)
		})
	}
}

func TestSender_HandleMessage_InvalidJSON(t *testing.T) {
	transport := new(MockTransport)
	err := NewSender(transport, newNoopLogger()).HandleMessage(context.Background(), []byte("invalid json"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "error unmarshalling message")
	transport.AssertNotCalled(t, "Connect", mock.Anything)
}

func TestSender_HandleMessage(t *testing.T) {
	transport := new(MockTransport)
	client := new(MockSMTPClient)
	writer := &bufferWriter{}
	transport.On("From").Return("noreply@example.com")
	transport.On("FromHeader").Return("noreply@example.com")
	transport.On("Connect", mock.Anything).Return(client, nil).Once()
	client.On("Mail", "noreply@example.com").Return(nil)
	client.On("Rcpt", "a@example.com").Return(nil)
	client.On("Data").Return(writer, nil)
	client.On("Quit").Return(nil)
	client.On("Close").Return(nil)

	body := []byte(`{"kind":"verification","to":"a@example.com","subject":"Verify","text":"hi"}`)
	require.NoError(t, NewSender(transport, newNoopLogger()).HandleMessage(context.Background(), body))
	assert.Contains(t, writer.String(), "Subject: Verify")
}
