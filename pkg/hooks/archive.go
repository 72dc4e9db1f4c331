package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"

	"github.com/geodov/godov/pkg/doverr"
)

const manifestName = "metadata.json"

// Entry kinds stored in an archive.
const (
	KindMeta = "meta"
	KindWFS  = "wfs"
	KindXML  = "xml"
)

// Manifest is the metadata.json of a recorded session.
type Manifest struct {
	SessionID string            `json:"session_id"`
	Versions  map[string]string `json:"versions"`
	Started   time.Time         `json:"started"`
	Finished  time.Time         `json:"finished"`
	Searches  []SearchTiming    `json:"searches"`
	Entries   []Entry           `json:"entries"`
}

type SearchTiming struct {
	Typename string  `json:"typename"`
	Count    int     `json:"count"`
	Seconds  float64 `json:"seconds"`
}

// Entry maps a request key to the file holding its response.
type Entry struct {
	Kind string `json:"kind"`
	Key  string `json:"key"`
	File string `json:"file"`
}

func entryFile(kind, key string) string {
	return fmt.Sprintf("%s/%016x.xml", kind, xxhash.Sum64String(key))
}

// Recorder captures every metadata, WFS and XML response of a session and
// writes them as a zip archive on Close.
type Recorder struct {
	Base

	path     string
	manifest Manifest
	now      func() time.Time

	mu      sync.Mutex
	data    map[string][]byte
	started map[string]time.Time
	closed  bool
}

func NewRecorder(path, version string) *Recorder {
	r := &Recorder{
		path:    path,
		now:     time.Now,
		data:    map[string][]byte{},
		started: map[string]time.Time{},
	}
	r.manifest = Manifest{
		SessionID: uuid.NewString(),
		Versions:  map[string]string{"godov": version, "go": runtime.Version()},
		Started:   r.now().UTC(),
	}
	return r
}

func (r *Recorder) SessionID() string { return r.manifest.SessionID }

func (r *Recorder) add(kind, key string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	file := entryFile(kind, key)
	if _, ok := r.data[file]; ok {
		return
	}
	r.data[file] = bytes.Clone(data)
	r.manifest.Entries = append(r.manifest.Entries, Entry{Kind: kind, Key: key, File: file})
}

func (r *Recorder) WFSSearchInit(_ context.Context, typename string) {
	r.mu.Lock()
	r.started[typename] = r.now()
	r.mu.Unlock()
}

func (r *Recorder) WFSSearchResult(_ context.Context, typename string, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := SearchTiming{Typename: typename, Count: count}
	if s, ok := r.started[typename]; ok {
		t.Seconds = r.now().Sub(s).Seconds()
		delete(r.started, typename)
	}
	r.manifest.Searches = append(r.manifest.Searches, t)
}

func (r *Recorder) WFSSearchResultReceived(_ context.Context, query, response []byte) {
	r.add(KindWFS, BodyKey(query), response)
}

func (r *Recorder) XMLReceived(_ context.Context, pkey string, data []byte) {
	r.add(KindXML, pkey, data)
}

func (r *Recorder) MetaReceived(_ context.Context, key string, data []byte) {
	r.add(KindMeta, key, data)
}

// Close writes the archive. Later calls are no-ops.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.manifest.Finished = r.now().UTC()

	f, err := os.Create(r.path)
	if err != nil {
		return fmt.Errorf("recorder: create %s: %w", r.path, err)
	}
	if err := r.write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("recorder: write %s: %w", r.path, err)
	}
	return f.Close()
}

func (r *Recorder) write(w io.Writer) error {
	zw := zip.NewWriter(w)
	m := r.manifest
	sort.Slice(m.Entries, func(i, j int) bool { return m.Entries[i].File < m.Entries[j].File })
	hdr, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := writeEntry(zw, manifestName, hdr); err != nil {
		return err
	}
	for _, e := range m.Entries {
		if err := writeEntry(zw, e.File, r.data[e.File]); err != nil {
			return err
		}
	}
	return zw.Close()
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Replayer answers every inject callback from a recorded archive. A
// request missing from the archive fails with doverr.ErrLogReplay.
type Replayer struct {
	Base

	Manifest Manifest
	data     map[string][]byte // by kind/key
}

// OpenReplayer loads the archive at path into memory.
func OpenReplayer(path string) (*Replayer, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, doverr.Wrap(doverr.ErrLogReplay, path, err, "open replay archive")
	}
	defer func() { _ = zr.Close() }()

	files := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, doverr.Wrap(doverr.ErrLogReplay, path, err, "read %s", f.Name)
		}
		b, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, doverr.Wrap(doverr.ErrLogReplay, path, err, "read %s", f.Name)
		}
		files[f.Name] = b
	}

	hdr, ok := files[manifestName]
	if !ok {
		return nil, doverr.New(doverr.ErrLogReplay, path, "archive has no %s", manifestName)
	}
	rp := &Replayer{data: map[string][]byte{}}
	if err := json.Unmarshal(hdr, &rp.Manifest); err != nil {
		return nil, doverr.Wrap(doverr.ErrLogReplay, path, err, "decode %s", manifestName)
	}
	for _, e := range rp.Manifest.Entries {
		b, ok := files[e.File]
		if !ok {
			return nil, doverr.New(doverr.ErrLogReplay, path, "archive entry %s missing", e.File)
		}
		rp.data[e.Kind+"/"+e.Key] = b
	}
	return rp, nil
}

func (rp *Replayer) lookup(kind, key string) ([]byte, error) {
	if b, ok := rp.data[kind+"/"+key]; ok {
		return b, nil
	}
	return nil, doverr.New(doverr.ErrLogReplay, key, "%s request %s not in replay archive", kind, key)
}

func (rp *Replayer) InjectMetaResponse(_ context.Context, key string) ([]byte, error) {
	return rp.lookup(KindMeta, key)
}

func (rp *Replayer) InjectWFSGetFeatureResponse(_ context.Context, query []byte) ([]byte, error) {
	return rp.lookup(KindWFS, BodyKey(query))
}

func (rp *Replayer) InjectXMLResponse(_ context.Context, pkey string) ([]byte, error) {
	return rp.lookup(KindXML, pkey)
}
