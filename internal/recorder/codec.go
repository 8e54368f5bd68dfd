package recorder

import (
	"bufio"
	"bytes"
	"compress/flate"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"
)

const formatVersion = 1

var magic = []byte("RFLT")

// ErrCorruptRecording is returned when a stream is not a recording this
// package can read.
var ErrCorruptRecording = errors.New("corrupt recording")

// Encode writes rec as the magic bytes followed by a flate-compressed
// msgpack stream: header, entry count, entries.
func Encode(w io.Writer, rec Recording) error {
	if _, err := w.Write(magic); err != nil {
		return fmt.Errorf("recorder: write magic: %w", err)
	}
	fw, err := flate.NewWriter(w, flate.BestSpeed)
	if err != nil {
		return fmt.Errorf("recorder: flate: %w", err)
	}
	enc := msgpack.NewEncoder(fw)
	if err := enc.Encode(rec.Header); err != nil {
		return fmt.Errorf("recorder: msgpack encode header: %w", err)
	}
	if err := enc.EncodeArrayLen(len(rec.Entries)); err != nil {
		return fmt.Errorf("recorder: msgpack encode: %w", err)
	}
	for i := range rec.Entries {
		if err := enc.Encode(&rec.Entries[i]); err != nil {
			return fmt.Errorf("recorder: msgpack encode entry %d: %w", i, err)
		}
	}
	return fw.Close()
}

// Decode reads a recording written by Encode.
func Decode(r io.Reader) (Recording, error) {
	var rec Recording

	br := bufio.NewReader(r)
	head := make([]byte, len(magic))
	if _, err := io.ReadFull(br, head); err != nil {
		return rec, fmt.Errorf("%w: %v", ErrCorruptRecording, err)
	}
	if !bytes.Equal(head, magic) {
		return rec, fmt.Errorf("%w: bad magic %q", ErrCorruptRecording, head)
	}

	fr := flate.NewReader(br)
	defer fr.Close()
	dec := msgpack.NewDecoder(fr)

	if err := dec.Decode(&rec.Header); err != nil {
		return rec, fmt.Errorf("%w: header: %v", ErrCorruptRecording, err)
	}
	if rec.Header.Version != formatVersion {
		return rec, fmt.Errorf("%w: unsupported version %d", ErrCorruptRecording, rec.Header.Version)
	}
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return rec, fmt.Errorf("%w: entry count: %v", ErrCorruptRecording, err)
	}
	if n < 0 {
		return rec, nil
	}
	rec.Entries = make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		var e Entry
		if err := dec.Decode(&e); err != nil {
			return rec, fmt.Errorf("%w: entry %d: %v", ErrCorruptRecording, i, err)
		}
		rec.Entries = append(rec.Entries, e)
	}
	return rec, nil
}

// Save writes rec to path.
func Save(path string, rec Recording) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, rec); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load reads a recording from path.
func Load(path string) (Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return Recording{}, err
	}
	defer f.Close()
	return Decode(f)
}
