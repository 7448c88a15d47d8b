package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bynour1/projet-planni/internal/config"
)

func TestTelegramSender_SendCode(t *testing.T) {
	var gotPath string
	var gotBody telegramSendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := &TelegramSender{
		cfg:     &config.TelegramConfig{BotToken: "bot-token", ChatID: "42"},
		baseURL: srv.URL,
		client:  &http.Client{Timeout: time.Second},
	}

	if err := sender.SendCode(context.Background(), "+33612345678", "123456", Meta{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/botbot-token/sendMessage" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotBody.ChatID != "42" {
		t.Fatalf("unexpected chat id %q", gotBody.ChatID)
	}
	if !strings.Contains(gotBody.Text, "123456") {
		t.Fatalf("expected code in message, got %q", gotBody.Text)
	}
}

func TestTelegramSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok":false}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	sender := &TelegramSender{
		cfg:     &config.TelegramConfig{BotToken: "bad", ChatID: "42"},
		baseURL: srv.URL,
		client:  &http.Client{Timeout: time.Second},
	}

	err := sender.SendCode(context.Background(), "+33612345678", "123456", Meta{})
	if err == nil {
		t.Fatalf("expected error on 401")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestTwilioSender_SendCode(t *testing.T) {
	var gotPath, gotTo, gotFrom, gotBody string
	var gotUser, gotPass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotTo = r.PostFormValue("To")
		gotFrom = r.PostFormValue("From")
		gotBody = r.PostFormValue("Body")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	sender := &TwilioSender{
		cfg:     &config.TwilioConfig{AccountSID: "AC123", AuthToken: "secret", FromNumber: "+19990001111"},
		baseURL: srv.URL,
		client:  &http.Client{Timeout: time.Second},
	}

	if err := sender.SendCode(context.Background(), "+33612345678", "654321", Meta{PasswordReset: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/2010-04-01/Accounts/AC123/Messages.json" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotUser != "AC123" || gotPass != "secret" {
		t.Fatalf("unexpected basic auth %q/%q", gotUser, gotPass)
	}
	if gotTo != "+33612345678" || gotFrom != "+19990001111" {
		t.Fatalf("unexpected to/from %q/%q", gotTo, gotFrom)
	}
	if !strings.Contains(gotBody, "654321") {
		t.Fatalf("expected code in body, got %q", gotBody)
	}
}
