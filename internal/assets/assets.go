// Package assets loads the aircraft model. Loading never fails: when
// neither the primary nor the fallback file can be read, a placeholder box
// is used instead.
package assets

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrNotGLB is returned for files that are not binary glTF 2.0.
var ErrNotGLB = errors.New("not a glTF binary")

const (
	glbMagic      = 0x46546C67 // "glTF"
	glbVersion    = 2
	glbHeaderSize = 12
	chunkJSON     = 0x4E4F534A // "JSON"
)

// Model describes the loaded aircraft.
type Model struct {
	Name        string
	Path        string
	Placeholder bool

	// Size is the placeholder box extent (width, height, length).
	Size [3]float64

	Bytes      int
	Meshes     int
	Animations int
}

// Placeholder is the box used when no model file loads.
func Placeholder() Model {
	return Model{Name: "placeholder", Placeholder: true, Size: [3]float64{0.5, 0.2, 1}}
}

// Source resolves a path into a model.
type Source interface {
	Load(ctx context.Context, path string) (Model, error)
}

// FileSource reads glTF binaries from disk, relative to Root when set.
type FileSource struct {
	Root string
}

func (s FileSource) Load(ctx context.Context, path string) (Model, error) {
	if err := ctx.Err(); err != nil {
		return Model{}, err
	}
	full := path
	if s.Root != "" && !filepath.IsAbs(path) {
		full = filepath.Join(s.Root, path)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return Model{}, fmt.Errorf("read model: %w", err)
	}
	m, err := ParseGLB(bytes.NewReader(data))
	if err != nil {
		return Model{}, fmt.Errorf("parse %s: %w", full, err)
	}
	m.Path = full
	m.Name = filepath.Base(full)
	return m, nil
}

type gltfDocument struct {
	Asset struct {
		Version string `json:"version"`
	} `json:"asset"`
	Meshes     []json.RawMessage `json:"meshes"`
	Animations []json.RawMessage `json:"animations"`
}

// ParseGLB validates a glTF binary header and reads the mesh and animation
// counts from its JSON chunk.
func ParseGLB(r io.Reader) (Model, error) {
	var hdr [glbHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Model{}, fmt.Errorf("%w: short header", ErrNotGLB)
	}
	if binary.LittleEndian.Uint32(hdr[0:4]) != glbMagic {
		return Model{}, fmt.Errorf("%w: bad magic", ErrNotGLB)
	}
	if v := binary.LittleEndian.Uint32(hdr[4:8]); v != glbVersion {
		return Model{}, fmt.Errorf("%w: version %d", ErrNotGLB, v)
	}
	total := binary.LittleEndian.Uint32(hdr[8:12])
	if total < glbHeaderSize+8 {
		return Model{}, fmt.Errorf("%w: length %d", ErrNotGLB, total)
	}

	var chunk [8]byte
	if _, err := io.ReadFull(r, chunk[:]); err != nil {
		return Model{}, fmt.Errorf("%w: missing JSON chunk", ErrNotGLB)
	}
	n := binary.LittleEndian.Uint32(chunk[0:4])
	if binary.LittleEndian.Uint32(chunk[4:8]) != chunkJSON || n > total-glbHeaderSize-8 {
		return Model{}, fmt.Errorf("%w: first chunk is not JSON", ErrNotGLB)
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(r, raw); err != nil {
		return Model{}, fmt.Errorf("%w: truncated JSON chunk", ErrNotGLB)
	}
	var doc gltfDocument
	if err := json.Unmarshal(bytes.TrimRight(raw, " \x00"), &doc); err != nil {
		return Model{}, fmt.Errorf("%w: %v", ErrNotGLB, err)
	}
	if doc.Asset.Version != "2.0" {
		return Model{}, fmt.Errorf("%w: asset version %q", ErrNotGLB, doc.Asset.Version)
	}
	return Model{
		Bytes:      int(total),
		Meshes:     len(doc.Meshes),
		Animations: len(doc.Animations),
	}, nil
}
