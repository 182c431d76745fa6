// Package genie implements the structured-query backend adapter for the
// Databricks Genie conversational API. The Client speaks the raw REST
// surface; the Adapter layers the polling, session-continuity and
// degradation semantics the orchestration graph depends on.
package genie

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	// ErrNotSetAuth is returned when no API token is configured.
	ErrNotSetAuth = errors.New("genie API token not set")

	// ErrNotSetSpace is returned when no space id is configured.
	ErrNotSetSpace = errors.New("genie space id not set")
)

// Client is a client for the Genie conversational query API of one space.
type Client struct {
	baseURL    string
	token      string
	spaceID    string
	httpClient *http.Client
}

// Option is a function that configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	workspace  string
	baseURL    string
	token      string
	spaceID    string
	httpClient *http.Client
}

// WithWorkspace sets the workspace host (e.g. "dbc-123.cloud.databricks.com").
func WithWorkspace(workspace string) Option {
	return func(opts *clientOptions) {
		opts.workspace = workspace
	}
}

// WithBaseURL sets the full base URL, overriding the workspace host.
// Mainly useful for pointing the client at a test server.
func WithBaseURL(baseURL string) Option {
	return func(opts *clientOptions) {
		opts.baseURL = baseURL
	}
}

// WithToken sets the bearer token used for authentication.
func WithToken(token string) Option {
	return func(opts *clientOptions) {
		opts.token = token
	}
}

// WithSpaceID sets the Genie space the client talks to.
func WithSpaceID(spaceID string) Option {
	return func(opts *clientOptions) {
		opts.spaceID = spaceID
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(opts *clientOptions) {
		opts.httpClient = client
	}
}

// NewClient creates a new Client with the given options.
func NewClient(opts ...Option) (*Client, error) {
	options := &clientOptions{
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(options)
	}

	if options.token == "" {
		return nil, ErrNotSetAuth
	}
	if options.spaceID == "" {
		return nil, ErrNotSetSpace
	}

	baseURL := options.baseURL
	if baseURL == "" {
		baseURL = "https://" + options.workspace
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      options.token,
		spaceID:    options.spaceID,
		httpClient: options.httpClient,
	}, nil
}

// MessageRef identifies one message within a Genie conversation. The field
// names mirror the upstream API and must not change.
type MessageRef struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

// Message is the status/attachments view of a Genie message.
type Message struct {
	ConversationID string       `json:"conversation_id"`
	MessageID      string       `json:"message_id"`
	Status         string       `json:"status"`
	Attachments    []Attachment `json:"attachments"`
}

// Attachment carries either an executable query block or a plain text block.
type Attachment struct {
	AttachmentID string           `json:"attachment_id"`
	Query        *QueryAttachment `json:"query,omitempty"`
	Text         *TextAttachment  `json:"text,omitempty"`
}

// QueryAttachment describes the SQL Genie generated for the question.
type QueryAttachment struct {
	Description string `json:"description"`
	Query       string `json:"query"`
}

// TextAttachment carries a narrative answer with no executable query.
type TextAttachment struct {
	Content string `json:"content"`
}

// QueryResult is the result payload of an executed query attachment.
type QueryResult struct {
	StatementResponse StatementResponse `json:"statement_response"`
}

// StatementResponse mirrors the statement execution response shape.
type StatementResponse struct {
	Manifest Manifest   `json:"manifest"`
	Result   ResultData `json:"result"`
}

// Manifest describes the result schema.
type Manifest struct {
	Schema Schema `json:"schema"`
}

// Schema lists the result columns in order.
type Schema struct {
	Columns []Column `json:"columns"`
}

// Column is a named result column.
type Column struct {
	Name string `json:"name"`
}

// ResultData holds the raw result rows. Cell values are untyped because the
// upstream service mixes strings and numbers.
type ResultData struct {
	DataArray [][]any `json:"data_array"`
}

// StartConversation opens a new conversation in the space with the given
// question and returns the identifiers needed for follow-up calls.
func (c *Client) StartConversation(ctx context.Context, question string) (MessageRef, error) {
	var ref MessageRef
	path := fmt.Sprintf("/api/2.0/genie/spaces/%s/start-conversation", c.spaceID)
	err := c.do(ctx, http.MethodPost, path, map[string]string{"content": question}, &ref)
	return ref, err
}

// CreateMessage posts a follow-up question into an existing conversation.
func (c *Client) CreateMessage(ctx context.Context, conversationID, question string) (MessageRef, error) {
	var ref MessageRef
	path := fmt.Sprintf("/api/2.0/genie/spaces/%s/conversations/%s/messages", c.spaceID, conversationID)
	err := c.do(ctx, http.MethodPost, path, map[string]string{"content": question}, &ref)
	return ref, err
}

// GetMessage fetches the current status and attachments of a message.
func (c *Client) GetMessage(ctx context.Context, conversationID, messageID string) (*Message, error) {
	var msg Message
	path := fmt.Sprintf("/api/2.0/genie/spaces/%s/conversations/%s/messages/%s", c.spaceID, conversationID, messageID)
	if err := c.do(ctx, http.MethodGet, path, nil, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetQueryResult fetches the tabular result of a query attachment.
func (c *Client) GetQueryResult(ctx context.Context, conversationID, messageID, attachmentID string) (*QueryResult, error) {
	var result QueryResult
	path := fmt.Sprintf("/api/2.0/genie/spaces/%s/conversations/%s/messages/%s/query-result/%s",
		c.spaceID, conversationID, messageID, attachmentID)
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request failed: %d, %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
