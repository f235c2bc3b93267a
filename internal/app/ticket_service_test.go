package app

import (
	"errors"
	"testing"
	"time"

	"github.com/form3tech-oss/jwt-go"
)

func TestTicketServiceRoundTrip(t *testing.T) {
	svc := NewTicketService("test-secret", time.Minute)
	ticket, err := svc.Issue("p1", "session-1")
	if err != nil {
		t.Fatalf("issue ticket error: %v", err)
	}

	sid, err := svc.Verify(ticket, "p1")
	if err != nil {
		t.Fatalf("verify ticket error: %v", err)
	}
	if sid != "session-1" {
		t.Fatalf("sid = %s, want session-1", sid)
	}
}

func TestTicketServiceRejectsOtherParticipant(t *testing.T) {
	svc := NewTicketService("test-secret", time.Minute)
	ticket, _ := svc.Issue("p1", "session-1")
	if _, err := svc.Verify(ticket, "p2"); !errors.Is(err, ErrInvalidTicket) {
		t.Fatalf("err = %v, want ErrInvalidTicket", err)
	}
}

func TestTicketServiceRejectsExpired(t *testing.T) {
	svc := NewTicketService("test-secret", time.Minute)
	svc.now = func() time.Time { return time.Now().Add(-time.Hour) }
	ticket, err := svc.Issue("p1", "session-1")
	if err != nil {
		t.Fatalf("issue ticket error: %v", err)
	}
	if _, err := svc.Verify(ticket, "p1"); !errors.Is(err, ErrInvalidTicket) {
		t.Fatalf("err = %v, want ErrInvalidTicket", err)
	}
}

func TestTicketServiceRejectsForeignSignature(t *testing.T) {
	other := NewTicketService("other-secret", time.Minute)
	ticket, _ := other.Issue("p1", "session-1")

	svc := NewTicketService("test-secret", time.Minute)
	if _, err := svc.Verify(ticket, "p1"); !errors.Is(err, ErrInvalidTicket) {
		t.Fatalf("err = %v, want ErrInvalidTicket", err)
	}
}

func TestTicketServiceRejectsForeignIssuer(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "someone-else",
		"sub": "p1",
		"sid": "session-1",
		"exp": time.Now().Add(time.Minute).Unix(),
	})
	ticket, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign error: %v", err)
	}

	svc := NewTicketService("test-secret", time.Minute)
	if _, err := svc.Verify(ticket, "p1"); !errors.Is(err, ErrInvalidTicket) {
		t.Fatalf("err = %v, want ErrInvalidTicket", err)
	}
}

func TestTicketServiceDisabledWithoutSecret(t *testing.T) {
	svc := NewTicketService("", time.Minute)
	if svc.Enabled() {
		t.Fatal("service without secret should be disabled")
	}
	if _, err := svc.Issue("p1", "s"); !errors.Is(err, ErrTicketsDisabled) {
		t.Fatalf("err = %v, want ErrTicketsDisabled", err)
	}
}
