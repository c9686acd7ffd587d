package core

import (
	"testing"
	"time"
)

func newTestClient(t *testing.T, name string) *Client {
	t.Helper()

	c := NewClient("id-"+name, nil, 8)
	c.SetIdentity(name, 15)
	t.Cleanup(c.Close)
	return c
}

func mustFrame(t *testing.T, c *Client) []byte {
	t.Helper()

	select {
	case frame := <-c.Events:
		return frame
	case <-time.After(2 * time.Second):
		t.Fatalf("expected frame for %s not received", c.Name())
		return nil
	}
}

func mustNoFrame(t *testing.T, c *Client) {
	t.Helper()

	select {
	case frame := <-c.Events:
		t.Fatalf("unexpected frame for %s: %s", c.Name(), frame)
	default:
	}
}
