package queue

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

const (
	// ContentEncodingAttribute is set on messages whose body is compressed.
	ContentEncodingAttribute = "ContentEncoding"
	// ContentEncodingZstd marks a base64 encoded zstd body.
	ContentEncodingZstd = "zstd+base64"

	// CompressThreshold is the body size above which bodies are compressed.
	// SQS and SNS reject bodies over 256 KiB.
	CompressThreshold = 200 * 1024
)

// Encode returns the wire body for payload and the attributes describing it.
// Payloads over CompressThreshold are zstd compressed and base64 encoded.
func Encode(payload []byte) (string, map[string]string, error) {
	if len(payload) <= CompressThreshold {
		return string(payload), nil, nil
	}

	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return "", nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	if _, err := enc.Write(payload); err != nil {
		_ = enc.Close()
		return "", nil, fmt.Errorf("failed to compress: %w", err)
	}

	// Close encoder to flush
	if err := enc.Close(); err != nil {
		return "", nil, fmt.Errorf("failed to flush encoder: %w", err)
	}

	attrs := map[string]string{ContentEncodingAttribute: ContentEncodingZstd}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), attrs, nil
}

// Decode returns the payload of a message, reversing Encode.
func Decode(msg Message) ([]byte, error) {
	switch encoding := msg.Attributes[ContentEncodingAttribute]; encoding {
	case "":
		return []byte(msg.Body), nil
	case ContentEncodingZstd:
		raw, err := base64.StdEncoding.DecodeString(msg.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to decode body: %w", err)
		}

		dec, err := zstd.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to create decoder: %w", err)
		}
		defer dec.Close()

		payload, err := io.ReadAll(dec)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress: %w", err)
		}
		return payload, nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}
}
