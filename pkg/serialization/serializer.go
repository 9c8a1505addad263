// Package serialization encodes canvas snapshots for storage.
//
// Every payload starts with a small header naming the codec and compression
// that produced it, so a store can be read back after the process switches
// to a different configuration.
// PRINCIPLES:
// - KISS: Simple interface with multiple codec implementations
// - DRY: Reusable across all snapshot savers
package serialization

import (
	"bytes"
	"compress/gzip"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec interface for serialization
// PRINCIPLES:
// - ISP: Simple interface with ≤5 methods
type Codec interface {
	Encode(v interface{}) ([]byte, error)
	Decode(data []byte, v interface{}) error
	Name() string
}

// CompressionType represents compression algorithms
type CompressionType string

const (
	CompressionNone CompressionType = "none"
	CompressionGzip CompressionType = "gzip"
	CompressionZstd CompressionType = "zstd"
)

const (
	headerMagic   byte = 'P'
	headerVersion byte = 1
	headerSize         = 5
	flagEncrypted byte = 1
)

var (
	ErrShortPayload      = errors.New("payload too short")
	ErrBadHeader         = errors.New("payload header not recognised")
	ErrUnknownCodec      = errors.New("unknown codec")
	ErrUnknownCompressor = errors.New("unknown compression")
	ErrMissingKey        = errors.New("payload is encrypted but no key is configured")
	ErrInvalidKey        = errors.New("encryption key must be 16, 24 or 32 bytes")
)

var codecIDs = map[string]byte{"json": 1, "msgpack": 2}
var compressionIDs = map[CompressionType]byte{CompressionNone: 0, CompressionGzip: 1, CompressionZstd: 2}

// SerializationConfig holds serialization settings
type SerializationConfig struct {
	Codec       Codec
	Compression CompressionType
	EncryptKey  []byte // AES key (16, 24 or 32 bytes)
}

// Serializer runs the encode, compress, encrypt pipeline and its reverse
type Serializer struct {
	config SerializationConfig
}

// NewSerializer creates a new serializer with configuration
func NewSerializer(config SerializationConfig) *Serializer {
	if config.Codec == nil {
		config.Codec = NewMsgPackCodec()
	}
	if config.Compression == "" {
		config.Compression = CompressionNone
	}
	return &Serializer{config: config}
}

// FromOptions builds a serializer from configuration strings
func FromOptions(codec, compression string, key []byte) (*Serializer, error) {
	c, err := CodecByName(codec)
	if err != nil {
		return nil, err
	}
	comp := CompressionType(compression)
	if _, ok := compressionIDs[comp]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCompressor, compression)
	}
	if n := len(key); n != 0 && n != 16 && n != 24 && n != 32 {
		return nil, ErrInvalidKey
	}
	return NewSerializer(SerializationConfig{Codec: c, Compression: comp, EncryptKey: key}), nil
}

// CodecByName returns the codec registered under name
func CodecByName(name string) (Codec, error) {
	switch name {
	case "json":
		return NewJSONCodec(), nil
	case "msgpack", "":
		return NewMsgPackCodec(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCodec, name)
	}
}

// Serialize encodes, compresses, and encrypts data
func (s *Serializer) Serialize(v interface{}) ([]byte, error) {
	data, err := s.config.Codec.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("codec encoding failed: %w", err)
	}

	data, err = compress(s.config.Compression, data)
	if err != nil {
		return nil, fmt.Errorf("compression failed: %w", err)
	}

	var flags byte
	if len(s.config.EncryptKey) > 0 {
		data, err = encrypt(s.config.EncryptKey, data)
		if err != nil {
			return nil, fmt.Errorf("encryption failed: %w", err)
		}
		flags |= flagEncrypted
	}

	header := []byte{
		headerMagic,
		headerVersion,
		codecIDs[s.config.Codec.Name()],
		compressionIDs[s.config.Compression],
		flags,
	}
	return append(header, data...), nil
}

// Deserialize reverses Serialize using the codec and compression named in
// the payload header, not the serializer's current configuration.
func (s *Serializer) Deserialize(data []byte, v interface{}) error {
	if len(data) < headerSize {
		return ErrShortPayload
	}
	if data[0] != headerMagic || data[1] != headerVersion {
		return ErrBadHeader
	}
	codec, err := codecByID(data[2])
	if err != nil {
		return err
	}
	comp, err := compressionByID(data[3])
	if err != nil {
		return err
	}
	body := data[headerSize:]

	if data[4]&flagEncrypted != 0 {
		if len(s.config.EncryptKey) == 0 {
			return ErrMissingKey
		}
		body, err = decrypt(s.config.EncryptKey, body)
		if err != nil {
			return fmt.Errorf("decryption failed: %w", err)
		}
	}

	body, err = decompress(comp, body)
	if err != nil {
		return fmt.Errorf("decompression failed: %w", err)
	}

	if err := codec.Decode(body, v); err != nil {
		return fmt.Errorf("codec decoding failed: %w", err)
	}
	return nil
}

func codecByID(id byte) (Codec, error) {
	for name, cid := range codecIDs {
		if cid == id {
			return CodecByName(name)
		}
	}
	return nil, fmt.Errorf("%w: id %d", ErrUnknownCodec, id)
}

func compressionByID(id byte) (CompressionType, error) {
	for ct, cid := range compressionIDs {
		if cid == id {
			return ct, nil
		}
	}
	return "", fmt.Errorf("%w: id %d", ErrUnknownCompressor, id)
}

func compress(ct CompressionType, data []byte) ([]byte, error) {
	switch ct {
	case CompressionGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	default:
		return data, nil
	}
}

func decompress(ct CompressionType, data []byte) ([]byte, error) {
	switch ct {
	case CompressionGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case CompressionZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(data, nil)
	default:
		return data, nil
	}
}

// encrypt seals data with AES-GCM, prefixing the nonce
func encrypt(key, data []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, data, nil), nil
}

func decrypt(key, data []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	n := gcm.NonceSize()
	if len(data) < n {
		return nil, ErrShortPayload
	}
	return gcm.Open(nil, data[:n], data[n:], nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// JSONCodec implements JSON serialization
type JSONCodec struct{}

func (c *JSONCodec) Encode(v interface{}) ([]byte, error)    { return json.Marshal(v) }
func (c *JSONCodec) Decode(data []byte, v interface{}) error { return json.Unmarshal(data, v) }
func (c *JSONCodec) Name() string                            { return "json" }

// MsgPackCodec implements MessagePack serialization. Struct fields use
// their json tag names when no msgpack tag is present.
type MsgPackCodec struct{}

func (c *MsgPackCodec) Encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *MsgPackCodec) Decode(data []byte, v interface{}) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

func (c *MsgPackCodec) Name() string { return "msgpack" }

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() Codec { return &JSONCodec{} }

// NewMsgPackCodec creates a new MessagePack codec
func NewMsgPackCodec() Codec { return &MsgPackCodec{} }

// DefaultSerializer creates a serializer with sensible defaults
func DefaultSerializer() *Serializer {
	return NewSerializer(SerializationConfig{
		Codec:       NewMsgPackCodec(),
		Compression: CompressionZstd,
	})
}
