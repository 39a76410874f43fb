// Package mapconf contains the file source of the labeled networks.
package mapconf

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/AdguardTeam/NetMapper/internal/mapper"
	"github.com/AdguardTeam/NetMapper/internal/snapshot"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/ioutil"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/c2h5oh/datasize"
	"github.com/google/renameio/v2"
)

// FileConfig is the configuration structure for a [File].
type FileConfig struct {
	// Logger is used for logging the operation of the source.  It must not be
	// nil.
	Logger *slog.Logger

	// Path is the path to the JSON data file.  It must not be empty.
	Path string

	// CachePath is the path to the copy of the last successfully parsed data
	// file.  The copy is used if the data file can't be read before the first
	// successful load.  If CachePath is empty, there is no copy.
	CachePath string

	// MaxSize is the maximum size of the data file.  It must be positive.
	MaxSize datasize.ByteSize
}

// File is a [mapper.Source] that reads the labeled networks from a JSON file.
type File struct {
	logger    *slog.Logger
	path      string
	cachePath string
	maxSize   datasize.ByteSize

	// loaded is true if the data file has been successfully read and parsed
	// at least once.
	loaded atomic.Bool
}

// NewFile returns a new properly initialized *File.  c must not be nil and
// must be valid.
func NewFile(c *FileConfig) (f *File) {
	return &File{
		logger:    c.Logger,
		path:      c.Path,
		cachePath: c.CachePath,
		maxSize:   c.MaxSize,
	}
}

// type check
var _ mapper.Source = (*File)(nil)

// Fingerprint implements the [mapper.Source] interface for *File.  If the data
// file is unavailable before the first load, the fingerprint of the cache is
// returned.
func (f *File) Fingerprint(ctx context.Context) (fp mapper.Fingerprint, err error) {
	fp, err = fingerprint(f.path)
	if err == nil {
		return fp, nil
	} else if !f.useCache() {
		return mapper.Fingerprint{}, &SourceError{Err: err, Path: f.path}
	}

	fp, cacheErr := fingerprint(f.cachePath)
	if cacheErr != nil {
		return mapper.Fingerprint{}, &SourceError{
			Err:  errors.Join(err, fmt.Errorf("cache: %w", cacheErr)),
			Path: f.path,
		}
	}

	return fp, nil
}

// Entries implements the [mapper.Source] interface for *File.  If the data
// file is unavailable before the first load, the entries are read from the
// cache.
func (f *File) Entries(ctx context.Context) (entries []snapshot.Entry, err error) {
	data, err := ReadFile(f.path, f.maxSize)
	if err != nil {
		if !f.useCache() {
			return nil, err
		}

		return f.cachedEntries(ctx, err)
	}

	entries, err = Parse(data)
	if err != nil {
		return nil, &SourceError{Err: err, Path: f.path}
	}

	f.loaded.Store(true)
	f.storeCache(ctx, data)

	f.logger.InfoContext(ctx, "loaded data file", "path", f.path, "entries", len(entries))

	return entries, nil
}

// useCache returns true if the cache should be used when the data file is
// unavailable.
func (f *File) useCache() (ok bool) {
	return f.cachePath != "" && !f.loaded.Load()
}

// cachedEntries returns the entries from the cache.  readErr is the error of
// reading the data file.
func (f *File) cachedEntries(
	ctx context.Context,
	readErr error,
) (entries []snapshot.Entry, err error) {
	entries, err = LoadFile(f.cachePath, f.maxSize)
	if err != nil {
		return nil, &SourceError{
			Err:  errors.Join(readErr, fmt.Errorf("cache: %w", err)),
			Path: f.path,
		}
	}

	f.logger.WarnContext(
		ctx,
		"data file unavailable; using cache",
		"cache_path", f.cachePath,
		slogutil.KeyError, readErr,
	)

	return entries, nil
}

// storeCache atomically writes data to the cache file, if there is one.
func (f *File) storeCache(ctx context.Context, data []byte) {
	if f.cachePath == "" {
		return
	}

	err := renameio.WriteFile(f.cachePath, data, 0o600)
	if err != nil {
		f.logger.ErrorContext(ctx, "writing cache", slogutil.KeyError, err)

		return
	}

	f.logger.DebugContext(ctx, "wrote cache", "cache_path", f.cachePath, "size", len(data))
}

// ReadFile reads the data file at path.  err is a *SourceError if the file
// can't be read or is larger than maxSize.  A file of exactly maxSize bytes is
// accepted.
func ReadFile(path string, maxSize datasize.ByteSize) (data []byte, err error) {
	defer func() {
		if err != nil {
			err = &SourceError{Err: err, Path: path}
		}
	}()

	file, err := os.Open(path)
	if err != nil {
		// Don't wrap the error, because it's informative enough as is.
		return nil, err
	}
	defer func() { err = errors.WithDeferred(err, file.Close()) }()

	// The limit reader fails on the read that follows reaching the limit, even
	// if it would return io.EOF, so allow one more byte.
	data, err = io.ReadAll(ioutil.LimitReader(file, maxSize.Bytes()+1))
	if limErr := (&ioutil.LimitError{}); errors.As(err, &limErr) {
		return nil, fmt.Errorf("reading: file is larger than %s", maxSize)
	} else if err != nil {
		return nil, fmt.Errorf("reading: %w", err)
	}

	return data, nil
}

// LoadFile reads and parses the data file at path.  err is a *SourceError if
// the file can't be read or parsed.
func LoadFile(path string, maxSize datasize.ByteSize) (entries []snapshot.Entry, err error) {
	data, err := ReadFile(path, maxSize)
	if err != nil {
		// Don't wrap the error, because it's informative enough as is.
		return nil, err
	}

	entries, err = Parse(data)
	if err != nil {
		return nil, &SourceError{Err: err, Path: path}
	}

	return entries, nil
}
