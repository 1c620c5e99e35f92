package service

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestChunks_FixedSizeSpans(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		size      int
		wantSizes []int
	}{
		{"empty", "", 4, nil},
		{"exact multiple", "abcdefgh", 4, []int{4, 4}},
		{"short tail", "abcdefghij", 4, []int{4, 4, 2}},
		{"smaller than chunk", "abc", 4, []int{3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got bytes.Buffer
			var sizes []int
			for chunk, err := range Chunks(strings.NewReader(tt.input), tt.size) {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				sizes = append(sizes, len(chunk))
				got.Write(chunk)
			}
			if got.String() != tt.input {
				t.Errorf("reassembled = %q, want %q", got.String(), tt.input)
			}
			if len(sizes) != len(tt.wantSizes) {
				t.Fatalf("chunk sizes = %v, want %v", sizes, tt.wantSizes)
			}
			for i := range sizes {
				if sizes[i] != tt.wantSizes[i] {
					t.Errorf("chunk sizes = %v, want %v", sizes, tt.wantSizes)
					break
				}
			}
		})
	}
}

func TestChunks_DefaultSize(t *testing.T) {
	input := bytes.Repeat([]byte{1}, DefaultChunkSize+1)
	var sizes []int
	for chunk, err := range Chunks(bytes.NewReader(input), 0) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		sizes = append(sizes, len(chunk))
	}
	if len(sizes) != 2 || sizes[0] != DefaultChunkSize || sizes[1] != 1 {
		t.Errorf("chunk sizes = %v, want [%d 1]", sizes, DefaultChunkSize)
	}
}

// failingReader returns data once, then err.
type failingReader struct {
	data []byte
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestChunks_ReadErrorEndsSequence(t *testing.T) {
	boom := errors.New("connection reset")
	r := &failingReader{data: []byte("abcdef"), err: boom}

	var chunks []string
	var gotErr error
	for chunk, err := range Chunks(r, 4) {
		if err != nil {
			gotErr = err
			continue
		}
		chunks = append(chunks, string(chunk))
	}

	if !errors.Is(gotErr, boom) {
		t.Errorf("error = %v, want %v", gotErr, boom)
	}
	if strings.Join(chunks, "") != "abcdef" {
		t.Errorf("chunks = %v, want data before the error", chunks)
	}
}

// countingReader counts Read calls.
type countingReader struct {
	r     io.Reader
	reads int
}

func (c *countingReader) Read(p []byte) (int, error) {
	c.reads++
	return c.r.Read(p)
}

func TestChunks_StopsReadingWhenConsumerStops(t *testing.T) {
	cr := &countingReader{r: strings.NewReader(strings.Repeat("z", 1000))}

	for range Chunks(cr, 10) {
		break
	}

	if cr.reads != 1 {
		t.Errorf("reads = %d, want 1 after consumer stopped", cr.reads)
	}
}
