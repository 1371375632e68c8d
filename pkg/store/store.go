// Package store persists CFG artifacts of translation units under a base URL. Any
// scheme supported by afs works (local paths, file://, mem://).
//
// Layout, one directory per translation unit:
//
//	<base>/<unit>/functions.json
//	<base>/<unit>/<n>.txt   edge list of function n
//	<base>/<unit>/<n>.json  structured artifact of function n
//
// Builds may add <n>.contracted.json and <n>.paths.json through WriteJSON.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/url"

	"github.com/l3aro/go-prime-paths/internal/log"
	"github.com/l3aro/go-prime-paths/pkg/cfg"
	"github.com/l3aro/go-prime-paths/pkg/edgelist"
)

const (
	// IndexFile is the name of the per-unit function index.
	IndexFile = "functions.json"

	filePerm = 0644
)

// Store reads and writes artifacts below a base URL.
type Store struct {
	fs      afs.Service
	baseURL string
	logger  log.Logger
}

// New creates a store rooted at baseURL.
func New(baseURL string) *Store {
	return &Store{
		fs:      afs.New(),
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  log.Default(),
	}
}

// SetLogger sets the logger.
func (s *Store) SetLogger(logger log.Logger) {
	s.logger = logger
}

// BaseURL returns the root URL of the store.
func (s *Store) BaseURL() string {
	return s.baseURL
}

// UnitDir maps the path of a source file to its artifact directory name, e.g.
// "src/widget.cpp" becomes "src/widget_cpp".
func UnitDir(sourcePath string) string {
	dir := strings.TrimLeft(strings.ReplaceAll(sourcePath, "\\", "/"), "./")
	return strings.ReplaceAll(dir, ".", "_")
}

// URL returns the URL of an artifact of unit.
func (s *Store) URL(unit, name string) string {
	return url.Join(s.baseURL, unit, name)
}

// WriteUnit writes the function index and the artifacts of every function of u below
// the unit directory. Functions are numbered from 1 in unit order.
func (s *Store) WriteUnit(ctx context.Context, unit string, u *cfg.Unit) error {
	var buf bytes.Buffer
	if err := cfg.EncodeIndex(&buf, u.Index()); err != nil {
		return err
	}
	if err := s.upload(ctx, s.URL(unit, IndexFile), buf.Bytes()); err != nil {
		return err
	}

	for i, fn := range u.Functions {
		n := strconv.Itoa(i + 1)

		buf.Reset()
		if err := edgelist.Encode(&buf, fn); err != nil {
			return fmt.Errorf("encoding edge list of %s: %w", fn.Name, err)
		}
		if err := s.upload(ctx, s.URL(unit, n+".txt"), buf.Bytes()); err != nil {
			return err
		}

		buf.Reset()
		if err := cfg.EncodeArtifact(&buf, fn); err != nil {
			return fmt.Errorf("encoding artifact of %s: %w", fn.Name, err)
		}
		if err := s.upload(ctx, s.URL(unit, n+".json"), buf.Bytes()); err != nil {
			return err
		}
	}

	s.logger.Debug("unit written", "unit", unit, "functions", len(u.Functions), "url", s.URL(unit, ""))
	return nil
}

// WriteJSON writes v as indented JSON to the artifact name of unit. It carries the
// optional outputs of a build, such as contracted graphs and prime path reports.
func (s *Store) WriteJSON(ctx context.Context, unit, name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	return s.upload(ctx, s.URL(unit, name), append(data, '\n'))
}

// ReadJSON decodes the artifact name of unit into v.
func (s *Store) ReadJSON(ctx context.Context, unit, name string, v interface{}) error {
	data, err := s.download(ctx, s.URL(unit, name))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", name, err)
	}
	return nil
}

// ReadIndex reads the function index of unit.
func (s *Store) ReadIndex(ctx context.Context, unit string) (cfg.FunctionIndex, error) {
	data, err := s.download(ctx, s.URL(unit, IndexFile))
	if err != nil {
		return nil, err
	}
	return cfg.DecodeIndex(bytes.NewReader(data))
}

// ReadArtifact reads the structured artifact of function n of unit.
func (s *Store) ReadArtifact(ctx context.Context, unit string, n int) (*cfg.FunctionCFG, error) {
	data, err := s.download(ctx, s.URL(unit, strconv.Itoa(n)+".json"))
	if err != nil {
		return nil, err
	}
	return cfg.DecodeArtifact(bytes.NewReader(data))
}

// ReadEdgeList reads the edge list of function n of unit.
func (s *Store) ReadEdgeList(ctx context.Context, unit string, n int) (*edgelist.Graph, error) {
	return ReadEdgeList(ctx, s.fs, s.URL(unit, strconv.Itoa(n)+".txt"))
}

// ReadEdgeList downloads and decodes the edge list at URL.
func ReadEdgeList(ctx context.Context, fs afs.Service, URL string) (*edgelist.Graph, error) {
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", URL, err)
	}
	g, err := edgelist.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", URL, err)
	}
	return g, nil
}

func (s *Store) upload(ctx context.Context, URL string, data []byte) error {
	if err := s.fs.Upload(ctx, URL, filePerm, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("uploading %s: %w", URL, err)
	}
	return nil
}

func (s *Store) download(ctx context.Context, URL string) ([]byte, error) {
	data, err := s.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", URL, err)
	}
	return data, nil
}
