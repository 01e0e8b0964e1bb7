package dapnet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewNewsValidation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		rubric string
		number int
		text   string
		want   error
	}{
		{"ok", "emfcamp", 1, "Stg A: Opening Talk", nil},
		{"no rubric", " ", 1, "x", ErrNoRubric},
		{"number low", "emfcamp", 0, "x", ErrNumberOutRange},
		{"number high", "emfcamp", 11, "x", ErrNumberOutRange},
		{"empty text", "emfcamp", 3, "  ", ErrEmptyText},
		{"too long", "emfcamp", 3, strings.Repeat("x", MaxTextLen+1), ErrTextTooLong},
		{"max length", "emfcamp", 3, strings.Repeat("x", MaxTextLen), nil},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewNews(tt.rubric, tt.number, tt.text)
			if !errors.Is(err, tt.want) {
				t.Fatalf("NewNews() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewCallCopiesSlices(t *testing.T) {
	t.Parallel()
	rcpt := []string{"m0abc"}
	c, err := NewCall(rcpt, []string{"uk-all"}, "hello")
	if err != nil {
		t.Fatalf("NewCall: %v", err)
	}
	rcpt[0] = "changed"
	if c.Recipients[0] != "m0abc" {
		t.Fatalf("recipients aliased caller slice: %v", c.Recipients)
	}
	if _, err := NewCall(nil, nil, "hello"); !errors.Is(err, ErrNoRecipients) {
		t.Fatalf("NewCall(nil) error = %v", err)
	}
}

func TestClientSendNews(t *testing.T) {
	t.Parallel()
	var got News
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/news" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "m0abc" || pass != "secret" {
			t.Errorf("basic auth = %q/%q/%v", user, pass, ok)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL + "/api", Username: "m0abc", Password: "secret"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	n := News{Rubric: "emfcamp", Number: 1, Text: "Stg A: Opening Talk"}
	if err := c.SendNews(context.Background(), n); err != nil {
		t.Fatalf("SendNews: %v", err)
	}
	if got != n {
		t.Fatalf("server got %+v, want %+v", got, n)
	}
}

func TestClientSendCallStatusError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/calls" {
			t.Errorf("path = %s", r.URL.Path)
		}
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, Username: "m0abc", Password: "wrong", RatePerSec: 100})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = c.SendCall(context.Background(), Call{Text: "hi", Recipients: []string{"m0abc"}, TransmitterGroups: []string{"uk-all"}})
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusUnauthorized || se.Op != "calls" {
		t.Fatalf("SendCall() error = %v, want 401 StatusError", err)
	}
}

func TestClientRejectsInvalidPayloadWithoutRequest(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, Username: "u", Password: "p"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.SendNews(context.Background(), News{Rubric: "r", Number: 1}); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("SendNews() error = %v", err)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{Password: "p"}); err == nil {
		t.Fatal("expected error for missing username")
	}
	if _, err := New(Config{Username: "u"}); err == nil {
		t.Fatal("expected error for missing password")
	}
	if _, err := New(Config{Username: "u", Password: "p", BaseURL: "ftp://x"}); err == nil {
		t.Fatal("expected error for bad scheme")
	}
}
