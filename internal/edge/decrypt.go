package edge

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Cluster types accepted by DecryptNodes.
const (
	TypeLocal     = "local"
	TypeAccount   = "account"
	TypeProximity = "proximity"
)

var (
	ErrMissingToken  = errors.New("missing access token")
	errNotNodeArray  = errors.New("nodes data must be a JSON array")
	errBadNodeCipher = errors.New("node ciphertext is malformed")
)

type DecryptRequest struct {
	Type  string
	Data  json.RawMessage
	Token string
}

// Decrypter opens node records sealed by the discovery service. Each
// record is keyed by HKDF-SHA256 over the caller's access token.
type Decrypter struct {
	salt []byte
}

func NewDecrypter(salt string) *Decrypter {
	return &Decrypter{salt: []byte(salt)}
}

// DecryptNodes returns a JSON array with every sealed node opened.
// Elements that are already objects pass through untouched.
func (d *Decrypter) DecryptNodes(ctx context.Context, req DecryptRequest) ([]byte, error) {
	if req.Token == "" {
		return nil, ErrMissingToken
	}
	key, err := deriveKey(req.Token, d.salt, req.Type)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create AEAD: %w", err)
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(req.Data, &elems); err != nil {
		return nil, errNotNodeArray
	}

	nodes := make([]json.RawMessage, 0, len(elems))
	for i, elem := range elems {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		elem = bytes.TrimSpace(elem)
		if len(elem) > 0 && elem[0] == '{' {
			nodes = append(nodes, elem)
			continue
		}

		var sealed string
		if err := json.Unmarshal(elem, &sealed); err != nil {
			return nil, fmt.Errorf("node %d: %w", i, errBadNodeCipher)
		}
		raw, err := base64.StdEncoding.DecodeString(sealed)
		if err != nil || len(raw) < aead.NonceSize()+aead.Overhead() {
			return nil, fmt.Errorf("node %d: %w", i, errBadNodeCipher)
		}
		nonce, ct := raw[:aead.NonceSize()], raw[aead.NonceSize():]
		plain, err := aead.Open(nil, nonce, ct, []byte(req.Type))
		if err != nil {
			return nil, fmt.Errorf("node %d: decrypt failed", i)
		}
		if !json.Valid(plain) {
			return nil, fmt.Errorf("node %d: decrypted node is not JSON", i)
		}
		nodes = append(nodes, plain)
	}

	return json.Marshal(nodes)
}

// SealNode encrypts one node object the way DecryptNodes expects it.
func SealNode(token, salt, typ string, node []byte) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}
	key, err := deriveKey(token, []byte(salt), typ)
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", fmt.Errorf("create AEAD: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(node)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, node, []byte(typ))
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func deriveKey(token string, salt []byte, typ string) ([]byte, error) {
	switch typ {
	case TypeLocal, TypeAccount, TypeProximity:
	default:
		return nil, fmt.Errorf("unsupported cluster type: %q", typ)
	}

	key := make([]byte, chacha20poly1305.KeySize)
	r := hkdf.New(sha256.New, []byte(token), salt, []byte("mds-nodes/"+typ))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}
