package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"
)

// walletQRTTL bounds how long a generated scan token stays valid.
const walletQRTTL = 5 * time.Minute

// WalletQRService renders participant wallet codes as QR images. The
// token embedded in the QR is one-time: stored in Redis with a TTL and
// deleted on first scan.
type WalletQRService struct {
	db    *sql.DB
	redis *redis.Client
}

func NewWalletQRService(db *sql.DB, redisClient *redis.Client) *WalletQRService {
	return &WalletQRService{db: db, redis: redisClient}
}

// Generate produces a one-time scan token and its QR PNG (base64) for
// the participant's wallet. Tokens live in Redis, so the whole QR flow
// is unavailable while the service runs in Redis-less degraded mode.
func (s *WalletQRService) Generate(ctx context.Context, participantID string) (string, string, error) {
	if s.redis == nil {
		return "", "", ErrQRUnavailable
	}

	var identityCode string
	err := s.db.QueryRowContext(ctx, `
		SELECT identity_code FROM participants WHERE id = $1 AND status = 'active'
	`, participantID).Scan(&identityCode)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", "", ErrParticipantNotFound
		}
		return "", "", fmt.Errorf("wallet lookup failed: %w", err)
	}

	payload := map[string]any{
		"participantId": participantID,
		"timestamp":     time.Now().Unix(),
		"nonce":         s.generateNonce(),
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", "", err
	}

	token := base64.URLEncoding.EncodeToString(jsonData)

	key := fmt.Sprintf("walletqr:%s", token)
	if err := s.redis.Set(ctx, key, identityCode, walletQRTTL).Err(); err != nil {
		return "", "", err
	}

	qr, err := qrcode.New(token, qrcode.Medium)
	if err != nil {
		return "", "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", "", err
	}

	return token, base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ResolveScan exchanges a scanned one-time token for the wallet's
// identity code, consuming the token.
func (s *WalletQRService) ResolveScan(ctx context.Context, token string) (string, error) {
	if s.redis == nil {
		return "", ErrQRUnavailable
	}

	key := fmt.Sprintf("walletqr:%s", token)

	identityCode, err := s.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", fmt.Errorf("%w: token expired or already used", ErrInvalidCode)
	}
	if err != nil {
		return "", err
	}

	s.redis.Del(ctx, key)

	return identityCode, nil
}

func (s *WalletQRService) generateNonce() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
