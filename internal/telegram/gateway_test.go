package telegram

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "123456:TEST"

type apiResponse struct {
	Result      interface{} `json:"result,omitempty"`
	Description string      `json:"description,omitempty"`
	ErrorCode   int         `json:"error_code,omitempty"`
	OK          bool        `json:"ok"`
}

// newTestGateway поднимает фейковый Bot API. handlers по имени метода (getUpdates, sendMessage)
func newTestGateway(t *testing.T, handlers map[string]http.HandlerFunc) *Gateway {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix := "/bot" + testToken + "/"
		require.True(t, strings.HasPrefix(r.URL.Path, prefix), r.URL.Path)
		method := strings.TrimPrefix(r.URL.Path, prefix)

		if method == "getMe" {
			writeAPI(t, w, apiResponse{OK: true, Result: map[string]interface{}{
				"id": 777, "is_bot": true, "first_name": "Bridge", "username": "bridge_bot",
			}})
			return
		}

		h, ok := handlers[method]
		if !ok {
			t.Errorf("unexpected method %s", method)
			return
		}
		require.NoError(t, r.ParseForm())
		h(w, r)
	}))
	t.Cleanup(server.Close)

	gw, err := NewWithEndpoint(testToken, server.URL+"/bot%s/%s", server.Client())
	require.NoError(t, err)
	return gw
}

func writeAPI(t *testing.T, w http.ResponseWriter, resp apiResponse) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(resp))
}

func TestNewWithEndpoint_RequiresToken(t *testing.T) {
	_, err := NewWithEndpoint("", "http://localhost/bot%s/%s", http.DefaultClient)
	assert.ErrorIs(t, err, ErrBotTokenRequired)
}

func TestNewWithEndpoint_InvalidToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeAPI(t, w, apiResponse{OK: false, ErrorCode: 401, Description: "Unauthorized"})
	}))
	defer server.Close()

	_, err := NewWithEndpoint(testToken, server.URL+"/bot%s/%s", server.Client())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unauthorized")
}

func TestGateway_Me(t *testing.T) {
	gw := newTestGateway(t, nil)

	me := gw.Me()
	assert.Equal(t, int64(777), me.ID)
	assert.Equal(t, "bridge_bot", me.Username)
	assert.Equal(t, "Bridge", me.FirstName)
}

func TestGateway_Updates(t *testing.T) {
	gw := newTestGateway(t, map[string]http.HandlerFunc{
		"getUpdates": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "10", r.FormValue("offset"))
			assert.Equal(t, "50", r.FormValue("limit"))

			writeAPI(t, w, apiResponse{OK: true, Result: []map[string]interface{}{
				{
					"update_id": 10,
					"message": map[string]interface{}{
						"message_id": 1,
						"date":       1700000000,
						"text":       "/start",
						"from":       map[string]interface{}{"id": 42, "is_bot": false, "first_name": "Ivan", "username": "ivan"},
						"chat":       map[string]interface{}{"id": 42, "type": "private"},
					},
				},
				{
					"update_id": 11,
					"channel_post": map[string]interface{}{
						"message_id": 2,
						"date":       1700000001,
						"chat":       map[string]interface{}{"id": -100, "type": "channel"},
					},
				},
				{
					"update_id": 12,
					"callback_query": map[string]interface{}{
						"id":   "cb-1",
						"data": "confirm",
						"from": map[string]interface{}{"id": 43, "is_bot": false, "first_name": "Petr"},
						"message": map[string]interface{}{
							"message_id": 3,
							"date":       1700000002,
							"chat":       map[string]interface{}{"id": -500, "type": "group"},
						},
					},
				},
				{
					"update_id": 13,
					"my_chat_member": map[string]interface{}{
						"chat": map[string]interface{}{"id": 44, "type": "private"},
						"from": map[string]interface{}{"id": 44, "is_bot": false, "first_name": "Olga"},
						"date": 1700000003,
						"old_chat_member": map[string]interface{}{
							"status": "member",
							"user":   map[string]interface{}{"id": 777, "is_bot": true, "first_name": "Bridge"},
						},
						"new_chat_member": map[string]interface{}{
							"status": "kicked",
							"user":   map[string]interface{}{"id": 777, "is_bot": true, "first_name": "Bridge"},
						},
					},
				},
			}})
		},
	})

	updates, next, err := gw.Updates(10, 50)
	require.NoError(t, err)
	assert.Equal(t, 14, next, "offset moves past skipped updates too")
	require.Len(t, updates, 3)

	assert.Equal(t, 10, updates[0].ID)
	assert.Equal(t, int64(42), updates[0].Sender.ID)
	assert.Equal(t, "ivan", updates[0].Sender.Username)
	assert.Equal(t, "/start", updates[0].Text)
	assert.Equal(t, int64(1700000000), updates[0].Date.Unix())

	assert.Equal(t, int64(43), updates[1].Sender.ID)
	assert.Equal(t, int64(-500), updates[1].Sender.ChatID)
	assert.Equal(t, "confirm", updates[1].Text)

	assert.Equal(t, int64(44), updates[2].Sender.ID)
	assert.Equal(t, "Olga", updates[2].Sender.FirstName)
}

func TestGateway_Updates_Empty(t *testing.T) {
	gw := newTestGateway(t, map[string]http.HandlerFunc{
		"getUpdates": func(w http.ResponseWriter, r *http.Request) {
			writeAPI(t, w, apiResponse{OK: true, Result: []interface{}{}})
		},
	})

	updates, next, err := gw.Updates(5, 100)
	require.NoError(t, err)
	assert.Empty(t, updates)
	assert.Equal(t, 5, next)
}

func TestGateway_Updates_Error(t *testing.T) {
	gw := newTestGateway(t, map[string]http.HandlerFunc{
		"getUpdates": func(w http.ResponseWriter, r *http.Request) {
			writeAPI(t, w, apiResponse{OK: false, ErrorCode: 409, Description: "Conflict: terminated by other getUpdates request"})
		},
	})

	_, next, err := gw.Updates(5, 100)
	require.Error(t, err)
	assert.Equal(t, 5, next)
}

func TestGateway_SendMessage(t *testing.T) {
	gw := newTestGateway(t, map[string]http.HandlerFunc{
		"sendMessage": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "42", r.FormValue("chat_id"))
			assert.Equal(t, "hello", r.FormValue("text"))

			writeAPI(t, w, apiResponse{OK: true, Result: map[string]interface{}{
				"message_id": 99,
				"date":       1700000000,
				"chat":       map[string]interface{}{"id": 42, "type": "private"},
			}})
		},
	})

	id, err := gw.SendMessage(42, "hello")
	require.NoError(t, err)
	assert.Equal(t, 99, id)
}
