package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"crm_routing_backend/platform/logger"
)

type capturedRequest struct {
	path    string
	auth    string
	payload map[string]any
}

func gatewayStub(t *testing.T, status int, captured *capturedRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.path = r.URL.Path
		captured.auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&captured.payload); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		w.WriteHeader(status)
	}))
}

func TestSendTextNormalizesPhoneAndEncodesAPIKey(t *testing.T) {
	var captured capturedRequest
	server := gatewayStub(t, http.StatusOK, &captured)
	defer server.Close()

	client := NewClient(logger.New("development"))
	inst := Instance{BaseURL: server.URL + "/", APIKey: "user:secret"}

	err := client.SendText(context.Background(), inst, "(11) 99999-0000", "Olá!")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if captured.path != "/send/message" {
		t.Fatalf("expected /send/message, got %s", captured.path)
	}
	// base64 of "user:secret"
	if captured.auth != "Basic dXNlcjpzZWNyZXQ=" {
		t.Fatalf("unexpected auth header %q", captured.auth)
	}
	if captured.payload["phone"] != "5511999990000" {
		t.Fatalf("expected E.164 digits without plus, got %v", captured.payload["phone"])
	}
	if captured.payload["message"] != "Olá!" {
		t.Fatalf("unexpected message %v", captured.payload["message"])
	}
}

func TestSetTypingSendsComposingPresence(t *testing.T) {
	var captured capturedRequest
	server := gatewayStub(t, http.StatusOK, &captured)
	defer server.Close()

	client := NewClient(logger.New("development"))
	inst := Instance{BaseURL: server.URL, APIKey: "Basic preencoded"}

	err := client.SetTyping(context.Background(), inst, "+5511999990000", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if captured.path != "/chat/presence" {
		t.Fatalf("expected /chat/presence, got %s", captured.path)
	}
	if captured.auth != "Basic preencoded" {
		t.Fatalf("a pre-encoded key must pass through untouched, got %q", captured.auth)
	}
	if captured.payload["presence"] != "composing" {
		t.Fatalf("unexpected presence %v", captured.payload["presence"])
	}
	if captured.payload["duration"] != float64(5) {
		t.Fatalf("unexpected duration %v", captured.payload["duration"])
	}
}

func TestGatewayErrorStatusSurfacesAsError(t *testing.T) {
	var captured capturedRequest
	server := gatewayStub(t, http.StatusUnauthorized, &captured)
	defer server.Close()

	client := NewClient(logger.New("development"))
	inst := Instance{BaseURL: server.URL, APIKey: "user:secret"}

	if err := client.SendText(context.Background(), inst, "+5511999990000", "Olá!"); err == nil {
		t.Fatal("expected an error for a 401 response")
	}
}
