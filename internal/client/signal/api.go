package signal

import (
	"context"
	"encoding/json"
	"fmt"
)

// Wire shapes of the signal-cli JSON-RPC API. Only the fields the pipeline
// reads are declared; unknown fields are ignored on decode.

type Envelope struct {
	Source         string          `json:"source"`
	SourceUUID     string          `json:"sourceUuid"`
	SourceName     string          `json:"sourceName"`
	Timestamp      int64           `json:"timestamp"`
	DataMessage    *DataMessage    `json:"dataMessage,omitempty"`
	SyncMessage    json.RawMessage `json:"syncMessage,omitempty"`
	TypingMessage  json.RawMessage `json:"typingMessage,omitempty"`
	ReceiptMessage json.RawMessage `json:"receiptMessage,omitempty"`
}

type DataMessage struct {
	Timestamp   int64            `json:"timestamp"`
	Message     string           `json:"message"`
	GroupInfo   *GroupInfo       `json:"groupInfo,omitempty"`
	GroupV2     *GroupInfo       `json:"groupV2,omitempty"`
	Attachments []WireAttachment `json:"attachments,omitempty"`
	Sticker     json.RawMessage  `json:"sticker,omitempty"`
	Reaction    json.RawMessage  `json:"reaction,omitempty"`
}

type GroupInfo struct {
	GroupID string `json:"groupId"`
	Name    string `json:"name"`
}

type WireAttachment struct {
	ID          string `json:"id"`
	ContentType string `json:"contentType"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
}

// ReceiveEntry is one element of a receive result or notification payload.
type ReceiveEntry struct {
	Envelope *Envelope `json:"envelope"`
	Account  string    `json:"account"`
}

type SendReactionParams struct {
	Account         string `json:"account"`
	GroupID         string `json:"groupId"`
	Emoji           string `json:"emoji"`
	TargetAuthor    string `json:"targetAuthor"`
	TargetTimestamp int64  `json:"targetTimestamp"`
}

type receiveParams struct {
	Account string  `json:"account"`
	Timeout float64 `json:"timeout"`
}

type listGroupsParams struct {
	Account string `json:"account"`
}

// ListedGroup is one entry of a listGroups result.
type ListedGroup struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Receive drains pending envelopes, blocking at most timeoutSeconds on the
// daemon side.
func Receive(ctx context.Context, c Client, account string, timeoutSeconds float64) ([]ReceiveEntry, error) {
	result, err := c.Call(ctx, "receive", receiveParams{Account: account, Timeout: timeoutSeconds})
	if err != nil {
		return nil, err
	}

	var entries []ReceiveEntry
	if err := json.Unmarshal(result, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode receive result: %w", err)
	}
	return entries, nil
}

func SendReaction(ctx context.Context, c Client, params SendReactionParams) error {
	_, err := c.Call(ctx, "sendReaction", params)
	return err
}

func ListGroups(ctx context.Context, c Client, account string) ([]ListedGroup, error) {
	result, err := c.Call(ctx, "listGroups", listGroupsParams{Account: account})
	if err != nil {
		return nil, err
	}

	var groups []ListedGroup
	if err := json.Unmarshal(result, &groups); err != nil {
		return nil, fmt.Errorf("failed to decode listGroups result: %w", err)
	}
	return groups, nil
}
