package annotation

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/kailas-cloud/phenodex/internal/domain"
)

// ErrEmptySource signals an annotation file without content.
var ErrEmptySource = errors.New("annotation source is empty")

var gzipMagic = []byte{0x1f, 0x8b}

// Source is an opened annotation file, transparently gunzipped.
type Source struct {
	path string
	file *os.File
	gz   *gzip.Reader
	r    *countingReader
}

// Open opens an annotation file. Gzip input is detected by its magic bytes.
func Open(path string) (*Source, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open annotations %s: %w", path, err)
	}

	br := bufio.NewReader(f)
	src := &Source{path: path, file: f}

	head, err := br.Peek(len(gzipMagic))
	if err == nil && bytes.Equal(head, gzipMagic) {
		gz, err := gzip.NewReader(br)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("gunzip annotations %s: %w", path, err)
		}
		src.gz = gz
		src.r = &countingReader{r: gz}
		return src, nil
	}

	src.r = &countingReader{r: br}
	return src, nil
}

// Read implements io.Reader.
func (s *Source) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

// Empty reports whether nothing was read from the source. Valid after the source is drained.
func (s *Source) Empty() bool {
	return s.r.n == 0
}

// Close releases the file.
func (s *Source) Close() error {
	var gzErr error
	if s.gz != nil {
		gzErr = s.gz.Close()
	}
	return errors.Join(gzErr, s.file.Close())
}

// LoadFile parses the plain annotation table from path.
func LoadFile(path string, p *Parser) (*domain.Annotations, error) {
	src, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = src.Close() }()

	ann, err := p.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if src.Empty() {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptySource)
	}
	return ann, nil
}

// LoadWeightedFile parses the weighted annotation table from path.
func LoadWeightedFile(path string, p *Parser) (*domain.WeightedAnnotations, error) {
	src, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = src.Close() }()

	ann, err := p.ParseWeighted(src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if src.Empty() {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptySource)
	}
	return ann, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err //nolint:wrapcheck // io.Reader contract
}
