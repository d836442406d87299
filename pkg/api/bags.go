package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ssargent/unbag/pkg/bag"
	"github.com/ssargent/unbag/pkg/msgs"
	"github.com/ssargent/unbag/pkg/unbag"
)

const bagExt = ".bag"

var (
	ErrInvalidBagName = errors.New("invalid bag name")
	ErrBagNotFound    = errors.New("bag not found")
)

// BagDirectory serves the bags found directly under one directory.
type BagDirectory struct {
	dir     string
	catalog *msgs.Catalog
	logger  *slog.Logger
	metrics *unbag.Metrics
}

// NewBagDirectory creates a bag source rooted at dir. A nil catalog means
// the default catalog.
func NewBagDirectory(dir string, catalog *msgs.Catalog, logger *slog.Logger, metrics *unbag.Metrics) *BagDirectory {
	if catalog == nil {
		catalog = msgs.DefaultCatalog()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BagDirectory{dir: dir, catalog: catalog, logger: logger, metrics: metrics}
}

// resolve maps a bag name to its path. Names are plain file names; anything
// that could step outside the directory is rejected.
func (d *BagDirectory) resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") ||
		strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidBagName, name)
	}

	path := filepath.Join(d.dir, name)
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && !info.Mode().IsRegular()) {
		return "", fmt.Errorf("%w: %s", ErrBagNotFound, name)
	}
	if err != nil {
		return "", err
	}
	return path, nil
}

// List summarizes the *.bag files in the directory. Files that do not open
// as bags are logged and left out.
func (d *BagDirectory) List() ([]BagSummary, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read bag directory: %w", err)
	}

	summaries := []BagSummary{}
	for _, e := range entries {
		if !e.Type().IsRegular() || filepath.Ext(e.Name()) != bagExt {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}

		b, err := bag.Open(filepath.Join(d.dir, e.Name()))
		if err != nil {
			d.logger.Warn("skipping unreadable bag", "name", e.Name(), "error", err)
			continue
		}
		summaries = append(summaries, BagSummary{
			Name:        e.Name(),
			Size:        info.Size(),
			Connections: len(b.Connections()),
			Chunks:      len(b.ChunkInfos()),
			Messages:    b.MessageCount(),
		})
		_ = b.Close()
	}
	return summaries, nil
}

// Connections returns the named bag's connections ordered by id.
func (d *BagDirectory) Connections(name string) ([]bag.Connection, error) {
	path, err := d.resolve(name)
	if err != nil {
		return nil, err
	}

	b, err := bag.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", unbag.ErrContainer, err)
	}
	defer b.Close()

	return b.Connections().Sorted(), nil
}

// Messages decodes up to limit records from the start of the named bag.
// Records that fail to decode are returned with their error rather than
// ending the page.
func (d *BagDirectory) Messages(ctx context.Context, name string, topics []string, limit int) (*MessagesResponse, error) {
	path, err := d.resolve(name)
	if err != nil {
		return nil, err
	}

	it, err := unbag.Open(path, unbag.Options{
		Topics:  topics,
		Catalog: d.catalog,
		Logger:  d.logger,
		Metrics: d.metrics,
	})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	resp := &MessagesResponse{Bag: name, Messages: []MessageRecord{}}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		msg, err := it.Next()
		if err == io.EOF {
			return resp, nil
		}
		var rerr *unbag.RecordError
		if err != nil && !errors.As(err, &rerr) {
			return nil, err
		}

		if len(resp.Messages) == limit {
			resp.Truncated = true
			return resp, nil
		}

		rec := MessageRecord{Conn: msg.Conn, Topic: msg.Topic, Schema: msg.Schema, Time: msg.Time, Data: msg.Data}
		if rerr != nil {
			rec.Error = rerr.Err.Error()
		}
		resp.Messages = append(resp.Messages, rec)
	}
}
