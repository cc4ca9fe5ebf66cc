package storage

import (
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Encode compresses data according to compression ("none" or "zstd").
func Encode(data []byte, compression string) ([]byte, error) {
	switch compression {
	case "", "none":
		return data, nil
	case "zstd":
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		defer enc.Close()
		return enc.EncodeAll(data, make([]byte, 0, len(data)/4)), nil
	default:
		return nil, fmt.Errorf("unknown compression %q", compression)
	}
}

// Decode reverses Encode, choosing the codec from the key suffix.
func Decode(key string, data []byte) ([]byte, error) {
	if !strings.HasSuffix(key, ZstdSuffix) {
		return data, nil
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()

	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", key, err)
	}
	return out, nil
}
