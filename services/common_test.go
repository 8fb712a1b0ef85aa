package services

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeImageDataURI(t *testing.T) {
	payload := []byte{0x89, 0x50, 0x4E, 0x47}
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(payload)

	mimeType, raw, err := DecodeImageDataURI(uri)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mimeType)
	assert.Equal(t, payload, raw)
}

func TestDecodeImageDataURIRejectsNonImage(t *testing.T) {
	_, _, err := DecodeImageDataURI("data:text/plain;base64,aGVsbG8=")
	assert.Error(t, err)
}

func TestDecodeImageDataURIRejectsPlainString(t *testing.T) {
	_, _, err := DecodeImageDataURI("nothing uri like")
	assert.Error(t, err)
}

func TestDecodeImageDataURIRejectsBadBase64(t *testing.T) {
	_, _, err := DecodeImageDataURI("data:image/png;base64,!!!not-base64!!!")
	assert.Error(t, err)
}
