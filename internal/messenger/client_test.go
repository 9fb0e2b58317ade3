package messenger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoattend/internal/conversation"
)

func TestReplyWithLocationQuickReply(t *testing.T) {
	var got replyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/bot/message/reply", r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, "secret-token")
	err := c.Reply(context.Background(), "rt-1", []conversation.Reply{
		{Text: "hello"},
		{Text: "share please", AskLocation: true},
	})
	require.NoError(t, err)

	assert.Equal(t, "rt-1", got.ReplyToken)
	require.Len(t, got.Messages, 2)
	assert.Nil(t, got.Messages[0].QuickReply)
	require.NotNil(t, got.Messages[1].QuickReply)
	assert.Equal(t, "location", got.Messages[1].QuickReply.Items[0].Action.Type)
	assert.Equal(t, "Send location", got.Messages[1].QuickReply.Items[0].Action.Label)
}

func TestReplySkipsEmpty(t *testing.T) {
	c := New("http://127.0.0.1:0", "t")
	assert.NoError(t, c.Reply(context.Background(), "rt", nil))
	assert.Error(t, c.Reply(context.Background(), "", []conversation.Reply{{Text: "x"}}))
}

func TestPushErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req pushRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "U1", req.To)
		http.Error(w, `{"message":"bad"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	err := New(srv.URL, "t").Push(context.Background(), "U1", "class moved")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestToMessagesCapsAtPlatformLimit(t *testing.T) {
	replies := make([]conversation.Reply, 7)
	assert.Len(t, toMessages(replies), maxMessagesPerCall)
}
