package secutls

import (
	"io"
	"net"
	"testing"
	"time"
)

func TestHandshakeAndRoundTrip(t *testing.T) {
	cert, err := GenerateReceiverCertificate()
	if err != nil {
		t.Fatalf("GenerateReceiverCertificate: %v", err)
	}

	serverRaw, clientRaw := net.Pipe()
	defer serverRaw.Close()
	defer clientRaw.Close()

	type result struct {
		stream *EncryptedStream
		err    error
	}
	serverDone := make(chan result, 1)
	go func() {
		s, err := WrapServer(serverRaw, cert)
		serverDone <- result{s, err}
	}()

	client, err := WrapClient(clientRaw)
	if err != nil {
		t.Fatalf("WrapClient: %v", err)
	}
	defer client.Close()

	var server *EncryptedStream
	select {
	case r := <-serverDone:
		if r.err != nil {
			t.Fatalf("WrapServer: %v", r.err)
		}
		server = r.stream
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for server handshake")
	}
	defer server.Close()

	go func() {
		if _, err := client.Write([]byte("hello")); err != nil {
			t.Errorf("client write: %v", err)
		}
	}()

	buf := make([]byte, 5)
	n, err := server.Read(buf)
	if err != nil {
		t.Fatalf("server read: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("got %q", buf[:n])
	}

	// net.Pipe is unbuffered, so the server's close_notify alert is only
	// written once the client side reads it.
	go io.Copy(io.Discard, client)

	if err := server.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := server.Close(); err != nil {
		t.Fatalf("second Close should be idempotent, got: %v", err)
	}
}
