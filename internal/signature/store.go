// Package signature persists hand-drawn signature images submitted as base64 payloads.
package signature

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrDecode is returned when a payload is not valid base64 or not a decodable image
var ErrDecode = errors.New("invalid signature image")

// MaxDimension bounds width and height. Signature pads are 400x150.
const MaxDimension = 4000

// Tags used as file name prefixes.
const (
	TagRecipient = "recipient"
	TagEmployee  = "employee"
	TagSenior    = "senior"
)

// Store writes signature images as PNG files under a root directory
type Store struct {
	root string
}

// NewStore creates the root directory if needed and returns a Store
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create signature directory: %w", err)
	}
	return &Store{root: root}, nil
}

// Save decodes payload, re-encodes it as PNG and returns the stored file name.
// An existing file is never overwritten.
func (s *Store) Save(payload, tag string) (string, error) {
	raw, err := decodePayload(payload)
	if err != nil {
		return "", err
	}

	// Check the header before decoding so a huge canvas is never allocated.
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > MaxDimension || cfg.Height > MaxDimension {
		return "", fmt.Errorf("%w: image is %dx%d, limit is %dx%d", ErrDecode, cfg.Width, cfg.Height, MaxDimension, MaxDimension)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, toNRGBA(img)); err != nil {
		return "", fmt.Errorf("failed to encode signature: %w", err)
	}

	name := fmt.Sprintf("%s_%s.png", tag, strings.ReplaceAll(uuid.NewString(), "-", ""))
	f, err := os.OpenFile(filepath.Join(s.root, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create signature file: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write signature file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close signature file: %w", err)
	}
	return name, nil
}

// Path resolves a stored reference to a file path. References containing path separators are rejected.
func (s *Store) Path(ref string) (string, error) {
	if ref == "" || ref != filepath.Base(ref) || ref == "." || ref == ".." {
		return "", fmt.Errorf("invalid signature reference %q", ref)
	}
	return filepath.Join(s.root, ref), nil
}

// Exists reports whether the referenced file is present
func (s *Store) Exists(ref string) bool {
	p, err := s.Path(ref)
	if err != nil {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

func decodePayload(payload string) ([]byte, error) {
	if i := strings.IndexByte(payload, ','); i >= 0 {
		payload = payload[i+1:]
	}
	payload = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, payload)
	if payload == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrDecode)
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
	}
	return raw, nil
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
