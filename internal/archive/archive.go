// Package archive detects archive formats and unpacks them into fresh
// staging directories.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/conn-castle/modlayer/internal/fsutil"
	"github.com/conn-castle/modlayer/internal/logging"
	"github.com/conn-castle/modlayer/internal/messages"
)

// Kind is a recognised archive format.
type Kind string

// Archive kinds. KindBinary is a single uncompressed file installed as-is.
const (
	KindUnknown  Kind = ""
	KindZip      Kind = "zip"
	KindSevenZip Kind = "7z"
	KindBinary   Kind = "binary"
)

var (
	zipMagic      = []byte("PK\x03\x04")
	zipEmptyMagic = []byte("PK\x05\x06")
	sevenZipMagic = []byte{'7', 'z', 0xBC, 0xAF, 0x27, 0x1C}
)

// BinaryExtensions are the file suffixes passed through without decoding.
var BinaryExtensions = []string{".dll"}

// ErrNoDecoder is wrapped by ExtractionError when no decoder is registered
// for a detected kind.
var ErrNoDecoder = errors.New("no decoder")

// UnsupportedFormatError reports a file that is not a recognised archive.
type UnsupportedFormatError struct {
	Path string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf(messages.ArchiveUnsupportedFmt, e.Path)
}

// ExtractionError reports a failure while unpacking a recognised archive.
type ExtractionError struct {
	Path string
	Kind Kind
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf(messages.ArchiveExtractFmt, e.Path, e.Kind, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Detect classifies path by extension and confirms the choice against the
// file's magic bytes. A file whose contents disagree with its extension is
// classified by content.
func Detect(path string) (Kind, error) {
	header, err := readHeader(path, len(sevenZipMagic))
	if err != nil {
		return KindUnknown, err
	}
	byContent := sniff(header)
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".zip":
		if byContent == KindZip {
			return KindZip, nil
		}
	case ".7z":
		if byContent == KindSevenZip {
			return KindSevenZip, nil
		}
	default:
		for _, bin := range BinaryExtensions {
			if ext == bin && byContent == KindUnknown {
				return KindBinary, nil
			}
		}
	}
	return byContent, nil
}

func sniff(header []byte) Kind {
	switch {
	case bytes.HasPrefix(header, zipMagic), bytes.HasPrefix(header, zipEmptyMagic):
		return KindZip
	case bytes.HasPrefix(header, sevenZipMagic):
		return KindSevenZip
	default:
		return KindUnknown
	}
}

func readHeader(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf(messages.ArchiveOpenFmt, path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf(messages.ArchiveSniffFmt, path, err)
	}
	return buf[:read], nil
}

// Decoder unpacks one archive kind from src into the directory dst.
type Decoder interface {
	Decode(ctx context.Context, src string, dst string, limits Limits) error
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(ctx context.Context, src string, dst string, limits Limits) error

// Decode calls f.
func (f DecoderFunc) Decode(ctx context.Context, src string, dst string, limits Limits) error {
	return f(ctx, src, dst, limits)
}

// Limits bounds what a decoder may write.
type Limits struct {
	// MaxBytes caps the total uncompressed size.
	MaxBytes int64
}

// DefaultMaxBytes caps the uncompressed size of one archive.
const DefaultMaxBytes int64 = 8 << 30

// DefaultDecoders returns the built-in decoder registry.
func DefaultDecoders() map[Kind]Decoder {
	return map[Kind]Decoder{
		KindZip:      DecoderFunc(decodeZip),
		KindSevenZip: DecoderFunc(decodeSevenZip),
		KindBinary:   DecoderFunc(decodeBinary),
	}
}

// Staging is an extracted archive awaiting installation.
type Staging struct {
	// Root is the staging directory holding the extracted tree.
	Root string
	// Archive is the source archive path.
	Archive string
	// Base is the archive file name without its extension.
	Base string
	Kind Kind
}

// Cleanup removes the staging tree.
func (s *Staging) Cleanup() error {
	if s == nil || s.Root == "" {
		return nil
	}
	return fsutil.RemoveTree(s.Root)
}

// Extractor unpacks archives into uniquely named staging directories.
type Extractor struct {
	stagingRoot string
	decoders    map[Kind]Decoder
	limits      Limits
	logger      *log.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithDecoder registers or replaces the decoder for kind.
func WithDecoder(kind Kind, d Decoder) Option {
	return func(e *Extractor) { e.decoders[kind] = d }
}

// WithoutDecoder removes the decoder for kind.
func WithoutDecoder(kind Kind) Option {
	return func(e *Extractor) { delete(e.decoders, kind) }
}

// WithMaxBytes caps the uncompressed size of one archive.
func WithMaxBytes(n int64) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.limits.MaxBytes = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(e *Extractor) { e.logger = logger }
}

// NewExtractor returns an extractor staging under stagingRoot with the
// default decoders.
func NewExtractor(stagingRoot string, opts ...Option) *Extractor {
	e := &Extractor{
		stagingRoot: stagingRoot,
		decoders:    DefaultDecoders(),
		limits:      Limits{MaxBytes: DefaultMaxBytes},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.OrDiscard(e.logger)
	return e
}

// Supports reports whether a decoder is registered for kind.
func (e *Extractor) Supports(kind Kind) bool {
	_, ok := e.decoders[kind]
	return ok
}

// Extract unpacks archivePath into a new staging directory. On failure the
// staging directory is removed and the error is an UnsupportedFormatError
// or an ExtractionError.
func (e *Extractor) Extract(ctx context.Context, archivePath string) (*Staging, error) {
	kind, err := Detect(archivePath)
	if err != nil {
		return nil, &ExtractionError{Path: archivePath, Kind: KindUnknown, Err: err}
	}
	if kind == KindUnknown {
		return nil, &UnsupportedFormatError{Path: archivePath}
	}
	decoder, ok := e.decoders[kind]
	if !ok {
		return nil, &ExtractionError{Path: archivePath, Kind: kind, Err: fmt.Errorf("%w: "+messages.ArchiveNoDecoderFmt, ErrNoDecoder, kind)}
	}

	root := filepath.Join(e.stagingRoot, uuid.NewString())
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, &ExtractionError{Path: archivePath, Kind: kind, Err: fmt.Errorf(messages.ArchiveStagingFmt, root, err)}
	}
	if err := decoder.Decode(ctx, archivePath, root, e.limits); err != nil {
		_ = fsutil.RemoveTree(root)
		return nil, &ExtractionError{Path: archivePath, Kind: kind, Err: err}
	}
	e.logger.Debug("archive extracted", "archive", archivePath, "kind", kind, "staging", root)
	return &Staging{
		Root:    root,
		Archive: archivePath,
		Base:    baseName(archivePath),
		Kind:    kind,
	}, nil
}

func baseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
