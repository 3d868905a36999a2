package vouchers

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var codePattern = regexp.MustCompile(`^BK-[0-9A-F]{8}-[0-9A-Z]+-[A-Z2-7]{5}$`)

func TestNewCode(t *testing.T) {
	id := uuid.MustParse("5f3a9c1e-0000-4000-8000-000000000001")
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	code, err := newCode(id, now, bytes.NewReader(make([]byte, codeSuffixLen)))
	require.NoError(t, err)
	assert.Regexp(t, codePattern, code)
	assert.LessOrEqual(t, len(code), maxCodeLength)
	assert.Equal(t, "BK-5F3A9C1E-", code[:12])
	assert.Equal(t, "AAAAA", code[len(code)-5:])

	again, err := newCode(id, now, bytes.NewReader(bytes.Repeat([]byte{0xff}, codeSuffixLen)))
	require.NoError(t, err)
	assert.NotEqual(t, code, again)
}

func TestNewCodeShortRandom(t *testing.T) {
	_, err := newCode(uuid.New(), time.Now(), bytes.NewReader([]byte{1, 2}))
	require.Error(t, err)
}

func TestQRPayloadRoundTrip(t *testing.T) {
	id := uuid.New()
	payload, err := qrPayload(id, "BK-TEST")
	require.NoError(t, err)
	assert.NotContains(t, payload, "=")

	raw, err := base64.RawURLEncoding.DecodeString(payload)
	require.NoError(t, err)
	var decoded map[string]string
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, id.String(), decoded["reservationId"])
	assert.Equal(t, "BK-TEST", decoded["voucherCode"])
}
