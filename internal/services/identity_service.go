package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/festpay/backend/internal/models"
)

// IdentityService resolves scanned or typed wallet codes to active
// participants. It performs reads only.
type IdentityService struct {
	db *sql.DB
}

func NewIdentityService(db *sql.DB) *IdentityService {
	return &IdentityService{db: db}
}

// NormalizeCode turns a raw scanned/typed code into its canonical form:
// NFKC normalization, whitespace trim, C0/C1 control characters
// stripped. Scanners occasionally inject control bytes mid-string.
func NormalizeCode(raw string) string {
	normalized := norm.NFKC.String(raw)
	normalized = strings.Map(func(r rune) rune {
		if r < 0x20 || (r >= 0x7F && r <= 0x9F) {
			return -1
		}
		return r
	}, normalized)
	return strings.TrimSpace(normalized)
}

// Resolve looks up the active participant owning the given raw code.
// Inactive participants are reported as not found so a stale QR code
// cannot reactivate a disabled wallet.
func (s *IdentityService) Resolve(ctx context.Context, rawCode string) (*models.Participant, error) {
	code := NormalizeCode(rawCode)
	if code == "" {
		return nil, ErrInvalidCode
	}

	participant, err := s.scanParticipant(s.db.QueryRowContext(ctx, `
		SELECT id, name, email, balance, event_id, identity_code, status
		FROM participants
		WHERE identity_code = $1 AND status = 'active'
	`, code))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("identity lookup failed: %w", err)
	}

	return participant, nil
}

// LookupByID fetches an active participant by primary key. Used when
// the terminal already knows the participant instead of scanning.
func (s *IdentityService) LookupByID(ctx context.Context, participantID string) (*models.Participant, error) {
	participant, err := s.scanParticipant(s.db.QueryRowContext(ctx, `
		SELECT id, name, email, balance, event_id, identity_code, status
		FROM participants
		WHERE id = $1 AND status = 'active'
	`, participantID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("participant lookup failed: %w", err)
	}

	return participant, nil
}

func (s *IdentityService) scanParticipant(row *sql.Row) (*models.Participant, error) {
	var p models.Participant
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.Balance, &p.EventID, &p.IdentityCode, &p.Status)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
