package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// VoucherCodeChars is the alphabet used for voucher codes. Visually
// ambiguous characters (0/O, 1/I/L) are excluded so codes survive being
// read aloud or printed.
const VoucherCodeChars = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// DefaultVoucherCodeLength is the code length used for generated batches.
const DefaultVoucherCodeLength = 16

// GenerateVoucherCode generates a cryptographically random voucher code
// of the given length.
func GenerateVoucherCode(length int) (string, error) {
	if length < 4 {
		return "", fmt.Errorf("voucher code length %d too short", length)
	}

	max := big.NewInt(int64(len(VoucherCodeChars)))
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate voucher code: %v", err)
		}
		code[i] = VoucherCodeChars[n.Int64()]
	}
	return string(code), nil
}

// NewBatchID creates a batch identifier for tracking generated voucher
// batches, in the form BATCH_YYYYMMDD_HHMMSS_XXXX.
func NewBatchID() string {
	suffix, err := GenerateVoucherCode(4)
	if err != nil {
		suffix = "XXXX"
	}
	return fmt.Sprintf("BATCH_%s_%s", time.Now().UTC().Format("20060102_150405"), suffix)
}
