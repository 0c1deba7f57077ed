package wasm

import (
	"fmt"
	"sort"

	"github.com/wippyai/godot-wasm-bindgen/wasm/internal/binary"
)

// Name section subsection IDs.
const (
	nameSubModule   byte = 0
	nameSubFunction byte = 1
)

// Names is the decoded content of the "name" custom section. Only the
// module and function subsections are kept; local, label and other
// subsections are discarded.
type Names struct {
	Module    string
	Functions map[uint32]string
}

// ParseNames decodes the payload of a "name" custom section.
func ParseNames(data []byte) (*Names, error) {
	n := &Names{Functions: make(map[uint32]string)}
	r := binary.NewReader(data)
	for r.Len() > 0 {
		id, _ := r.ReadByte()
		size, err := r.ReadU32()
		if err != nil {
			return nil, r.WrapError("name subsection", err)
		}
		sr, err := r.Sub(int(size))
		if err != nil {
			return nil, r.WrapError("name subsection", err)
		}
		switch id {
		case nameSubModule:
			if n.Module, err = sr.ReadName(); err != nil {
				return nil, fmt.Errorf("module name: %w", err)
			}
		case nameSubFunction:
			err = readVec(sr, func(sr *binary.Reader) error {
				idx, err := sr.ReadU32()
				if err != nil {
					return err
				}
				name, err := sr.ReadName()
				if err != nil {
					return err
				}
				n.Functions[idx] = name
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("function names: %w", err)
			}
		}
	}
	return n, nil
}

// Encode serializes the names. Function entries are written in ascending
// index order.
func (n *Names) Encode() []byte {
	w := binary.NewWriter()
	if n.Module != "" {
		s := binary.NewWriter()
		s.WriteName(n.Module)
		w.Byte(nameSubModule)
		w.WriteSized(s.Bytes())
	}
	if len(n.Functions) > 0 {
		idxs := make([]uint32, 0, len(n.Functions))
		for idx := range n.Functions {
			idxs = append(idxs, idx)
		}
		sort.Slice(idxs, func(i, j int) bool { return idxs[i] < idxs[j] })

		s := binary.NewWriter()
		s.WriteU32(uint32(len(idxs)))
		for _, idx := range idxs {
			s.WriteU32(idx)
			s.WriteName(n.Functions[idx])
		}
		w.Byte(nameSubFunction)
		w.WriteSized(s.Bytes())
	}
	return w.Bytes()
}
