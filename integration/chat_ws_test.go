package integration

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatWS_BroadcastBetweenClients(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	tokenA, _ := ts.RegisterAndLogin(t, UniqueID("ha"))
	tokenB, _ := ts.RegisterAndLogin(t, UniqueID("hb"))

	wsA := ts.ConnectWS(t, tokenA)
	defer wsA.Close()
	wsB := ts.ConnectWS(t, tokenB)
	defer wsB.Close()

	wsA.Send("chat_send", map[string]string{"content": "hello arena"})

	for _, wc := range []*WSClient{wsA, wsB} {
		pkt := wc.RecvType("chat_recv", 5*time.Second)
		payload := PayloadMap(t, pkt)
		assert.Equal(t, "hello arena", payload["content"])
	}
}

func TestChatWS_HistoryReplayOnJoin(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	tokenA, _ := ts.RegisterAndLogin(t, UniqueID("ha"))
	wsA := ts.ConnectWS(t, tokenA)
	defer wsA.Close()

	wsA.Send("chat_send", map[string]string{"content": "first"})
	wsA.RecvType("chat_recv", 5*time.Second)
	wsA.Send("chat_send", map[string]string{"content": "second"})
	wsA.RecvType("chat_recv", 5*time.Second)

	// A late joiner gets the room history, oldest first.
	tokenB, _ := ts.RegisterAndLogin(t, UniqueID("hb"))
	wsB := ts.ConnectWS(t, tokenB)
	defer wsB.Close()

	first := PayloadMap(t, wsB.RecvType("chat_recv", 5*time.Second))
	second := PayloadMap(t, wsB.RecvType("chat_recv", 5*time.Second))
	assert.Equal(t, "first", first["content"])
	assert.Equal(t, "second", second["content"])
}

func TestChatWS_RejectsInvalidToken(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/ws?token=garbage")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestChatWS_MessagesVisibleOnPublicEndpoint(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	token, _ := ts.RegisterAndLogin(t, UniqueID("hunter"))
	ws := ts.ConnectWS(t, token)
	defer ws.Close()

	ws.Send("chat_send", map[string]string{"content": "for the log"})
	ws.RecvType("chat_recv", 5*time.Second)

	resp := ts.Get(t, "/api/messages", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	ReadJSON(t, resp, &body)
	msgs := body["messages"].([]interface{})
	require.NotEmpty(t, msgs)
	assert.Equal(t, "for the log", msgs[0].(map[string]interface{})["content"])
}
