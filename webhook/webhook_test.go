package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDeliverSignsPayload(t *testing.T) {
	var gotBody []byte
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-Chatprobe-Signature")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	event := &Event{
		Type:         "eval.completed",
		ExperimentID: "01ARZ3NDEKTSV4RRFFQ69G5FAV",
		Timestamp:    time.Now().Unix(),
		Data:         map[string]any{"pass_rate": 0.8},
	}

	if err := Deliver(context.Background(), srv.URL, "topsecret", event); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}

	if gotSig != "sha256="+Sign(gotBody, "topsecret") {
		t.Errorf("signature mismatch: %s", gotSig)
	}

	var decoded Event
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("body is not valid JSON: %v", err)
	}
	if decoded.Type != "eval.completed" || decoded.ExperimentID != event.ExperimentID {
		t.Errorf("payload mismatch: %+v", decoded)
	}
}

func TestDeliverWithoutSecretOmitsSignature(t *testing.T) {
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Chatprobe-Signature")
	}))
	defer srv.Close()

	if err := Deliver(context.Background(), srv.URL, "", &Event{Type: "eval.completed"}); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if gotSig != "" {
		t.Errorf("unexpected signature header: %s", gotSig)
	}
}

func TestDeliverErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if err := Deliver(context.Background(), srv.URL, "", &Event{Type: "eval.completed"}); err == nil {
		t.Error("expected error for 5xx response")
	}
}
