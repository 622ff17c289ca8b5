package llm

import (
	"context"
	"errors"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// MockResponse is one scripted reply for MockChatClient.
type MockResponse struct {
	Content string
	Error   error
}

// MockChatClient is a deterministic model.ToolCallingChatModel for tests.
// It replays either a single fixed response or a scripted sequence, and
// records every message it receives.
type MockChatClient struct {
	ExpectedResponse string
	ExpectedError    error

	SequentialResponses []MockResponse
	ResponseIndex       int
	IsSequential        bool

	ReceivedMessages []*schema.Message
}

var _ model.ToolCallingChatModel = (*MockChatClient)(nil)

// NewMockChatClient returns a mock that always replies with the same
// content or error.
func NewMockChatClient(expectedResponse string, expectedError error) *MockChatClient {
	return &MockChatClient{
		ExpectedResponse: expectedResponse,
		ExpectedError:    expectedError,
		ReceivedMessages: make([]*schema.Message, 0),
	}
}

// NewMockChatClientSequential returns a mock replaying responses in order.
func NewMockChatClientSequential(responses []MockResponse) *MockChatClient {
	if len(responses) == 0 {
		responses = []MockResponse{{Error: errors.New("mock client has no responses configured")}}
	}
	return &MockChatClient{
		SequentialResponses: responses,
		IsSequential:        true,
		ReceivedMessages:    make([]*schema.Message, 0),
	}
}

// Generate replays the next scripted response.
func (m *MockChatClient) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	received := make([]*schema.Message, len(input))
	copy(received, input)
	m.ReceivedMessages = append(m.ReceivedMessages, received...)

	if m.IsSequential {
		if m.ResponseIndex >= len(m.SequentialResponses) {
			return nil, errors.New("mock client has run out of sequential responses")
		}
		resp := m.SequentialResponses[m.ResponseIndex]
		m.ResponseIndex++
		if resp.Error != nil {
			return nil, resp.Error
		}
		return schema.AssistantMessage(resp.Content, nil), nil
	}

	if m.ExpectedError != nil {
		return nil, m.ExpectedError
	}
	return schema.AssistantMessage(m.ExpectedResponse, nil), nil
}

// Stream is not supported by the mock.
func (m *MockChatClient) Stream(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	received := make([]*schema.Message, len(input))
	copy(received, input)
	m.ReceivedMessages = append(m.ReceivedMessages, received...)
	return nil, errors.New("streaming not implemented in MockChatClient")
}

// BindTools records nothing; the mock ignores tools.
func (m *MockChatClient) BindTools(_ []*schema.ToolInfo) error {
	return nil
}

// WithTools satisfies model.ToolCallingChatModel.
func (m *MockChatClient) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	if err := m.BindTools(tools); err != nil {
		return nil, err
	}
	return m, nil
}
