package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestServerHandlesRequest(t *testing.T) {
	input := "{\"jsonrpc\":\"2.0\",\"id\":1,\"method\":\"Ping\",\"api_version\":\"1\"}\n"
	reader := strings.NewReader(input)
	var output bytes.Buffer
	server := NewServer("1", reader, &output, nil)
	server.Register("Ping", func(ctx context.Context, params json.RawMessage) (any, *Error) {
		return map[string]any{"pong": true}, nil
	})

	if err := server.Serve(context.Background()); err != nil {
		t.Fatalf("serve: %v", err)
	}
	respLine := strings.TrimSpace(output.String())
	if respLine == "" {
		t.Fatalf("expected response")
	}
	var resp Response
	if err := json.Unmarshal([]byte(respLine), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	result := resp.Result.(map[string]any)
	if result["pong"] != true {
		t.Fatalf("expected pong true")
	}
}

func TestServerHandlesRequestsInOrder(t *testing.T) {
	input := "{\"jsonrpc\":\"2.0\",\"id\":1,\"method\":\"Mark\",\"params\":{\"n\":1}}\n" +
		"{\"jsonrpc\":\"2.0\",\"id\":2,\"method\":\"Mark\",\"params\":{\"n\":2}}\n"
	var output bytes.Buffer
	server := NewServer("1", strings.NewReader(input), &output, nil)
	var order []float64
	server.Register("Mark", func(ctx context.Context, params json.RawMessage) (any, *Error) {
		var p struct {
			N float64 `json:"n"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			t.Fatalf("params: %v", err)
		}
		order = append(order, p.N)
		return map[string]any{"n": p.N}, nil
	})

	if err := server.Serve(context.Background()); err != nil {
		t.Fatalf("serve: %v", err)
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("expected in-order handling, got %v", order)
	}
	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(lines))
	}
}

func TestServerRejectsUnknownMethod(t *testing.T) {
	input := "{\"jsonrpc\":\"2.0\",\"id\":7,\"method\":\"Nope\"}\n"
	var output bytes.Buffer
	server := NewServer("1", strings.NewReader(input), &output, nil)
	if err := server.Serve(context.Background()); err != nil {
		t.Fatalf("serve: %v", err)
	}
	var resp Response
	if err := json.Unmarshal([]byte(strings.TrimSpace(output.String())), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error == nil || !strings.Contains(resp.Error.Message, "method not found") {
		t.Fatalf("expected method not found error, got %+v", resp.Error)
	}
}
