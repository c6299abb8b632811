package exporter

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack"

	"agmipx/internal/dataset"
)

const blobVersion = 1

// blob is the serialized form of a Frame; missing numbers are nil
type blob struct {
	Version int          `msgpack:"version"`
	Title   string       `msgpack:"title"`
	Columns []blobColumn `msgpack:"columns"`
}

type blobColumn struct {
	Name    string     `msgpack:"name"`
	Kind    Kind       `msgpack:"kind"`
	Strings []string   `msgpack:"strings,omitempty"`
	Ints    []int64    `msgpack:"ints,omitempty"`
	Numbers []*float64 `msgpack:"numbers,omitempty"`
}

// WriteMsgpack writes the frame as a MessagePack blob
func WriteMsgpack(w io.Writer, f *Frame) error {
	out := blob{Version: blobVersion, Title: f.Title, Columns: make([]blobColumn, len(f.Columns))}
	for j, c := range f.Columns {
		bc := blobColumn{Name: c.Name, Kind: c.Kind, Strings: c.Strings, Ints: c.Ints}
		if c.Kind == KindNumber {
			bc.Numbers = make([]*float64, len(c.Numbers))
			for i, v := range c.Numbers {
				if x, ok := v.Get(); ok {
					bc.Numbers[i] = &x
				}
			}
		}
		out.Columns[j] = bc
	}
	if err := msgpack.NewEncoder(w).Encode(&out); err != nil {
		return fmt.Errorf("failed to encode msgpack: %w", err)
	}
	return nil
}

// ReadMsgpack decodes a blob written by WriteMsgpack
func ReadMsgpack(r io.Reader) (*Frame, error) {
	var in blob
	if err := msgpack.NewDecoder(r).Decode(&in); err != nil {
		return nil, fmt.Errorf("failed to decode msgpack: %w", err)
	}
	if in.Version != blobVersion {
		return nil, fmt.Errorf("unsupported blob version %d", in.Version)
	}

	f := &Frame{Title: in.Title, Columns: make([]Column, len(in.Columns))}
	for j, bc := range in.Columns {
		c := Column{Name: bc.Name, Kind: bc.Kind, Strings: bc.Strings, Ints: bc.Ints}
		if bc.Kind == KindNumber {
			c.Numbers = make([]dataset.Value, len(bc.Numbers))
			for i, p := range bc.Numbers {
				if p != nil {
					c.Numbers[i] = dataset.Some(*p)
				}
			}
		}
		f.Columns[j] = c
	}
	return f, nil
}
