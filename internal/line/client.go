package line

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// DefaultBaseURL is the Messaging API root.
const DefaultBaseURL = "https://api.line.me"

// MaxMessages is how many messages one reply or push may carry.
const MaxMessages = 5

// Profile is a chat member's public profile.
type Profile struct {
	UserID      string
	DisplayName string
	PictureURL  string
}

// Client calls the Messaging API with a channel access token.
type Client struct {
	api *messaging_api.MessagingApiAPI
}

// NewClient creates a Client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL, accessToken string) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	api, err := messaging_api.NewMessagingApiAPI(accessToken,
		messaging_api.WithEndpoint(baseURL),
		messaging_api.WithHTTPClient(&http.Client{Timeout: 10 * time.Second}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging api client: %w", err)
	}
	return &Client{api: api}, nil
}

// Reply answers an event with its single-use reply token.
func (c *Client) Reply(ctx context.Context, replyToken string, msgs ...Message) error {
	if replyToken == "" {
		return fmt.Errorf("line: reply without token")
	}
	_, err := c.api.WithContext(ctx).ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   toSDK(msgs),
	})
	if err != nil {
		return fmt.Errorf("line: reply: %w", err)
	}
	return nil
}

// Push sends messages to a user, group or room id.
func (c *Client) Push(ctx context.Context, to string, msgs ...Message) error {
	if to == "" {
		return fmt.Errorf("line: push without recipient")
	}
	_, err := c.api.WithContext(ctx).PushMessage(&messaging_api.PushMessageRequest{
		To:       to,
		Messages: toSDK(msgs),
	}, "")
	if err != nil {
		return fmt.Errorf("line: push: %w", err)
	}
	return nil
}

// GroupMemberProfile looks up a member's display name inside a group.
func (c *Client) GroupMemberProfile(ctx context.Context, groupID, userID string) (*Profile, error) {
	resp, err := c.api.WithContext(ctx).GetGroupMemberProfile(groupID, userID)
	if err != nil {
		return nil, fmt.Errorf("line: group member profile: %w", err)
	}
	return &Profile{UserID: resp.UserId, DisplayName: resp.DisplayName, PictureURL: resp.PictureUrl}, nil
}

// DisplayName returns the member's display name, or "" when the lookup
// fails.
func (c *Client) DisplayName(ctx context.Context, groupID, userID string) string {
	p, err := c.GroupMemberProfile(ctx, groupID, userID)
	if err != nil {
		slog.Warn("Profile lookup failed", "group_id", groupID, "line_user_id", userID, "error", err)
		return ""
	}
	return p.DisplayName
}

// toSDK converts at most MaxMessages messages to SDK text messages with
// postback quick replies.
func toSDK(msgs []Message) []messaging_api.MessageInterface {
	if len(msgs) > MaxMessages {
		msgs = msgs[:MaxMessages]
	}
	out := make([]messaging_api.MessageInterface, 0, len(msgs))
	for _, m := range msgs {
		text := messaging_api.TextMessage{Text: m.Text}
		if len(m.QuickActions) > 0 {
			items := make([]messaging_api.QuickReplyItem, 0, len(m.QuickActions))
			for _, a := range m.QuickActions {
				items = append(items, messaging_api.QuickReplyItem{
					Action: &messaging_api.PostbackAction{Label: a.Label, Data: a.Data, DisplayText: a.Label},
				})
			}
			text.QuickReply = &messaging_api.QuickReply{Items: items}
		}
		out = append(out, text)
	}
	return out
}
