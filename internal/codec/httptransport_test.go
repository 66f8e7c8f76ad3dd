package codec

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tsgate/internal/logger"
	"tsgate/internal/storemodel"
)

func TestHTTPTransport_Send_RoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req wireCodecRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "req-1", req.RequestId)
		assert.Equal(t, "stream-a", req.StreamName)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, int64(7), req.Messages[0].SequenceId)

		resp := wireCodecResponse{
			RequestId: req.RequestId,
			Messages: []wireDecodedMessage{
				{SequenceId: 7, DecodedType: "text", DecodedBody: []byte("hello")},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	broker := NewBroker(nil, Config{ResponseTimeout: time.Second, RequestThreadPoolSize: 1, CallbackThreadPoolSize: 1}, logger.NopLogger())
	transport := NewHTTPTransport(server.URL, time.Second, broker, logger.NopLogger())
	broker.transport = transport

	ctx := t.Context()
	req := CodecRequest{
		RequestId:  "req-1",
		StreamName: "stream-a",
		Messages: []storemodel.Message{
			{Id: storemodel.MessageId{Sequence: 7}, Payload: []byte("raw")},
		},
	}

	done, err := broker.Send(ctx, req)
	require.NoError(t, err)

	select {
	case resp := <-done:
		require.NotNil(t, resp)
		require.Len(t, resp.Messages, 1)
		assert.Equal(t, "text", resp.Messages[0].DecodedType)
		assert.Equal(t, []byte("hello"), resp.Messages[0].DecodedBody)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for codec response")
	}

	server.Close()
}

func TestHTTPTransport_Send_TransportFailureResolvesNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	broker := NewBroker(nil, Config{ResponseTimeout: 200 * time.Millisecond, RequestThreadPoolSize: 1, CallbackThreadPoolSize: 1}, logger.NopLogger())
	transport := NewHTTPTransport(server.URL, time.Second, broker, logger.NopLogger())
	broker.transport = transport

	req := CodecRequest{
		RequestId:  "req-2",
		StreamName: "stream-b",
		Messages: []storemodel.Message{
			{Id: storemodel.MessageId{Sequence: 1}, Payload: []byte("raw")},
		},
	}

	done, err := broker.Send(t.Context(), req)
	require.NoError(t, err)

	select {
	case resp := <-done:
		assert.Nil(t, resp)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for codec deadline")
	}
}

func TestHTTPTransport_ToCodecResponse_DropsUnmatchedSequences(t *testing.T) {
	transport := NewHTTPTransport("http://unused", time.Second, nil, logger.NopLogger())

	req := CodecRequest{
		RequestId: "req-3",
		Messages: []storemodel.Message{
			{Id: storemodel.MessageId{Sequence: 1}},
			{Id: storemodel.MessageId{Sequence: 2}},
		},
	}
	wire := wireCodecResponse{
		RequestId: "req-3",
		Messages: []wireDecodedMessage{
			{SequenceId: 2, DecodedType: "text", DecodedBody: []byte("b")},
		},
	}

	resp := transport.toCodecResponse(req, wire)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, int64(2), resp.Messages[0].Id.Sequence)
}
