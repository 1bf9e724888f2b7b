// Package audit computes tamper-evident digests for transfer records.
//
// A record's digest covers every field a reader relies on (parties, amount,
// note, time, status, keys). Recomputing it later detects any in-place
// edit of the log; reconciliation detects deletions.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/mangobank/ledger/internal/ledger"
)

// DomainTransfer separates transfer digests from any other hash in the
// system. The version suffix allows a future encoding change.
const DomainTransfer = "mangobank/transfer/v1"

// hashWithDomain computes SHA256(domain || 0x00 || data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fields returns the canonical field map a digest is computed over.
// Seq and Digest are excluded: Seq is assigned by the store after the
// digest exists.
func Fields(rec ledger.TransferRecord) map[string]any {
	return map[string]any{
		"amount":       rec.Amount.String(),
		"id":           rec.ID,
		"key":          rec.IdempotencyKey,
		"note":         rec.Note,
		"recipient_id": rec.RecipientAccountID,
		"sender_id":    rec.SenderAccountID,
		"status":       string(rec.Status),
		"timestamp":    rec.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

// Digest computes the content digest of rec.
func Digest(rec ledger.TransferRecord) (string, error) {
	canonical, err := MarshalCanonical(Fields(rec))
	if err != nil {
		return "", fmt.Errorf("digest transfer %s: %w", rec.ID, err)
	}
	return hashWithDomain(DomainTransfer, canonical), nil
}

// MustDigest is like Digest but panics on error.
// Use only in tests.
func MustDigest(rec ledger.TransferRecord) string {
	d, err := Digest(rec)
	if err != nil {
		panic(err)
	}
	return d
}

// Seal returns rec with its Digest set.
func Seal(rec ledger.TransferRecord) (ledger.TransferRecord, error) {
	d, err := Digest(rec)
	if err != nil {
		return ledger.TransferRecord{}, err
	}
	rec.Digest = d
	return rec, nil
}

// Verify reports whether rec's stored digest matches its content.
func Verify(rec ledger.TransferRecord) bool {
	d, err := Digest(rec)
	if err != nil {
		return false
	}
	return d == rec.Digest
}
