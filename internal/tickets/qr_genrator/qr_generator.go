package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/skip2/go-qrcode"

	"ms-checkout/internal/models"
)

const defaultSize = 256

var ErrInvalidPayload = errors.New("invalid qr payload")

// Payload is what a scanner recovers from a ticket QR image.
type Payload struct {
	TicketID   string    `json:"ticketId"`
	Code       string    `json:"code"`
	PurchaseID string    `json:"purchaseId"`
	IssuedAt   time.Time `json:"issuedAt"`
}

type QRGenerator struct {
	secret []byte
	size   int
}

func NewQRGenerator(secret string, size int) *QRGenerator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	if size <= 0 {
		size = defaultSize
	}
	return &QRGenerator{secret: hashed[:], size: size}
}

// Encrypt returns the base64 token embedded in the QR image.
func (q *QRGenerator) Encrypt(ticket models.Ticket) (string, error) {
	data, err := json.Marshal(Payload{
		TicketID:   ticket.ID,
		Code:       ticket.Code,
		PurchaseID: ticket.PurchaseID,
		IssuedAt:   ticket.IssuedAt,
	})
	if err != nil {
		return "", err
	}
	return encryptAES(data, q.secret)
}

// GenerateEncryptedQR renders the encrypted payload as a PNG.
func (q *QRGenerator) GenerateEncryptedQR(ticket models.Ticket) ([]byte, error) {
	token, err := q.Encrypt(ticket)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(token, qrcode.Medium, q.size)
}

// Decrypt parses a token produced by Encrypt with the same secret.
func (q *QRGenerator) Decrypt(token string) (*Payload, error) {
	plain, err := decryptAES(token, q.secret)
	if err != nil {
		return nil, err
	}
	var p Payload
	if err := json.Unmarshal(plain, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if p.Code == "" {
		return nil, fmt.Errorf("%w: missing code", ErrInvalidPayload)
	}
	return &p, nil
}

func encryptAES(data []byte, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	ciphertext := make([]byte, aes.BlockSize+len(data))
	iv := ciphertext[:aes.BlockSize]

	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	stream := cipher.NewCFBEncrypter(block, iv)
	stream.XORKeyStream(ciphertext[aes.BlockSize:], data)

	return base64.URLEncoding.EncodeToString(ciphertext), nil
}

func decryptAES(token string, key []byte) ([]byte, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if len(raw) <= aes.BlockSize {
		return nil, fmt.Errorf("%w: too short", ErrInvalidPayload)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	iv, body := raw[:aes.BlockSize], raw[aes.BlockSize:]
	plain := make([]byte, len(body))
	cipher.NewCFBDecrypter(block, iv).XORKeyStream(plain, body)
	return plain, nil
}
