package app

import (
	"fmt"
	"time"

	"github.com/form3tech-oss/jwt-go"
	"github.com/google/uuid"
)

const ticketIssuer = "quarrel"

// TicketService signs and checks session join tickets. A ticket lets one
// participant join one session until it expires.
type TicketService struct {
	secret string
	ttl    time.Duration
	now    func() time.Time
}

// NewTicketService returns nil when secret is empty; a nil service accepts
// no tickets and issues none.
func NewTicketService(secret string, ttl time.Duration) *TicketService {
	if secret == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &TicketService{secret: secret, ttl: ttl, now: time.Now}
}

// Enabled reports whether tickets are checked.
func (s *TicketService) Enabled() bool {
	return s != nil
}

// Issue signs a ticket for participantID to join sessionID.
func (s *TicketService) Issue(participantID, sessionID string) (string, error) {
	if s == nil {
		return "", ErrTicketsDisabled
	}
	if participantID == "" || sessionID == "" {
		return "", fmt.Errorf("participant and session are required")
	}

	now := s.now()
	claims := jwt.MapClaims{
		"iss": ticketIssuer,
		"sub": participantID,
		"sid": sessionID,
		"iat": now.Unix(),
		"exp": now.Add(s.ttl).Unix(),
		"jti": uuid.NewString(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.secret))
}

// Verify checks that ticket was issued by this server for participantID and
// returns the session it grants.
func (s *TicketService) Verify(ticket, participantID string) (string, error) {
	if s == nil {
		return "", ErrTicketsDisabled
	}

	token, err := jwt.Parse(ticket, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.secret), nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidTicket
	}
	if !claims.VerifyIssuer(ticketIssuer, true) {
		return "", fmt.Errorf("%w: wrong issuer", ErrInvalidTicket)
	}
	if sub, _ := claims["sub"].(string); sub != participantID {
		return "", fmt.Errorf("%w: issued to another participant", ErrInvalidTicket)
	}
	sid, _ := claims["sid"].(string)
	if sid == "" {
		return "", fmt.Errorf("%w: missing session", ErrInvalidTicket)
	}
	return sid, nil
}
