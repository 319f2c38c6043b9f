package sendgrid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sendgrid/sendgrid-go"
	"github.com/stretchr/testify/require"

	"github.com/mailfan/massmail/internal/core"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tr, err := New(core.Settings{"api_key": "SG.test-key"})
	require.NoError(t, err)
	require.Equal(t, "sendgrid", tr.Name())

	conn, err := tr.Connect(context.Background())
	require.NoError(t, err)
	require.NoError(t, conn.Close())
}

func TestNew_RequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := New(core.Settings{})
	require.Error(t, err)

	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "api_key", verr.Field)
}

func TestSgAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in       string
		wantName string
		wantAddr string
	}{
		{in: "ann@example.com", wantName: "", wantAddr: "ann@example.com"},
		{in: "Ann Lovell <ann@example.com>", wantName: "Ann Lovell", wantAddr: "ann@example.com"},
		{in: "not an address", wantName: "", wantAddr: "not an address"},
	}

	for _, tt := range tests {
		got := sgAddress(tt.in)
		require.Equal(t, tt.wantName, got.Name, tt.in)
		require.Equal(t, tt.wantAddr, got.Address, tt.in)
	}
}

// testConn builds a connection whose client talks to a local test server
// instead of the SendGrid API.
func testConn(host string) *Conn {
	request := sendgrid.GetRequest("SG.test-key", "/v3/mail/send", host)
	request.Method = "POST"
	return &Conn{client: &sendgrid.Client{Request: request}}
}

func TestConn_Send(t *testing.T) {
	t.Parallel()

	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	err := testConn(srv.URL).Send(context.Background(), &core.Envelope{
		To:      "ann@example.com",
		From:    "news@example.com",
		Subject: "Hello",
		Body:    "Hi Ann,",
	})
	require.NoError(t, err)
	require.Equal(t, http.MethodPost, gotMethod)
}

func TestConn_Send_APIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"message":"bad request"}]}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	err := testConn(srv.URL).Send(context.Background(), &core.Envelope{
		To:      "ann@example.com",
		From:    "news@example.com",
		Subject: "Hello",
		Body:    "Hi Ann,",
	})
	require.Error(t, err)

	terr, ok := core.AsTransportError(err)
	require.True(t, ok)
	require.Equal(t, "sendgrid", terr.Transport)
	require.Equal(t, "api", terr.Op)
	require.Contains(t, terr.Message, "bad request")
}
