package live

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/motion-tracker/internal/types"
)

func TestServerBroadcastsToConnectedClient(t *testing.T) {
	s := NewServer(logrus.NewEntry(logrus.New()))

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWS)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	s.Broadcast(types.FusedReading{Timestamp: 1.5})

	var got types.FusedReading
	require.NoError(t, conn.ReadJSON(&got))
	require.Equal(t, 1.5, got.Timestamp)
}
