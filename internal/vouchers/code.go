package vouchers

import (
	"encoding/base32"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	codePrefix     = "BK"
	codeSuffixLen  = 5
	maxCodeLength  = 32
	reservationHex = 8
)

var suffixEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// newCode returns BK-<reservation fragment>-<base36 millis>-<random suffix>,
// uppercased. Codes are display identifiers, not secrets.
func newCode(reservationID uuid.UUID, now time.Time, random io.Reader) (string, error) {
	fragment := strings.ReplaceAll(reservationID.String(), "-", "")[:reservationHex]

	buf := make([]byte, codeSuffixLen)
	if _, err := io.ReadFull(random, buf); err != nil {
		return "", fmt.Errorf("read voucher suffix: %w", err)
	}
	suffix := suffixEncoding.EncodeToString(buf)[:codeSuffixLen]

	code := strings.ToUpper(strings.Join([]string{
		codePrefix,
		fragment,
		strconv.FormatInt(now.UnixMilli(), 36),
		suffix,
	}, "-"))
	if len(code) > maxCodeLength {
		code = code[:maxCodeLength]
	}
	return code, nil
}

type qrContent struct {
	ReservationID string `json:"reservationId"`
	VoucherCode   string `json:"voucherCode"`
}

// qrPayload is opaque to clients; scanners decode base64url JSON.
func qrPayload(reservationID uuid.UUID, code string) (string, error) {
	raw, err := json.Marshal(qrContent{ReservationID: reservationID.String(), VoucherCode: code})
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
