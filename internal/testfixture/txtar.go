// Package testfixture renders an ir.Module to and from a txtar archive:
// a single human-readable text file a golden test (or the patchtool CLI)
// can diff, grounded on how golang.org/x/tools/txtar is used throughout
// the toolchain for exactly this "one file, many named sections"
// fixture shape (spec.md §4.H).
//
// The format is deliberately simple, one byte interval per section: a
// module.txt header, one file per section holding that section's raw
// bytes, and CSV tables for blocks, symbols, and CFG edges. It is meant
// for tests and the CLI demo, not as a faithful GTIRB container format.
package testfixture

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/arc-language/rewriteir/ir"
	"golang.org/x/tools/txtar"
)

const moduleHeaderFile = "module.txt"
const blocksFile = "blocks.csv"
const symbolsFile = "symbols.csv"
const cfgFile = "cfg.csv"

// Encode renders m as a txtar archive.
func Encode(m *ir.Module) []byte {
	a := &txtar.Archive{}

	var header strings.Builder
	fmt.Fprintf(&header, "name: %s\n", m.Name)
	fmt.Fprintf(&header, "format: %s\n", fileFormatName(m.FileFormat))
	fmt.Fprintf(&header, "isa: %s\n", isaName(m.ISA))
	a.Files = append(a.Files, txtar.File{Name: moduleHeaderFile, Data: []byte(header.String())})

	blockID := make(map[ir.CfgNode]string)
	var blocksCSV bytes.Buffer
	bw := csv.NewWriter(&blocksCSV)
	bw.Write([]string{"id", "section", "offset", "size"})
	for _, sec := range m.Sections {
		var content []byte
		for _, bi := range sec.ByteIntervals {
			base := len(content)
			content = append(content, bi.Contents...)
			for _, block := range bi.Blocks() {
				id := fmt.Sprintf("b%d", len(blockID))
				blockID[block] = id
				bw.Write([]string{id, sec.Name, strconv.FormatInt(int64(base)+block.Offset, 10), strconv.FormatInt(block.Size, 10)})
			}
		}
		a.Files = append(a.Files, txtar.File{Name: "sections/" + sec.Name, Data: content})
	}
	for _, p := range m.Proxies {
		id := fmt.Sprintf("p%d", len(blockID))
		blockID[p] = id
	}
	bw.Flush()
	a.Files = append(a.Files, txtar.File{Name: blocksFile, Data: blocksCSV.Bytes()})

	var symbolsCSV bytes.Buffer
	sw := csv.NewWriter(&symbolsCSV)
	sw.Write([]string{"name", "referent"})
	for _, sym := range m.Symbols {
		referent := ""
		if sym.Referent != nil {
			referent = blockID[sym.Referent]
		}
		sw.Write([]string{sym.Name, referent})
	}
	sw.Flush()
	a.Files = append(a.Files, txtar.File{Name: symbolsFile, Data: symbolsCSV.Bytes()})

	var cfgCSV bytes.Buffer
	cw := csv.NewWriter(&cfgCSV)
	cw.Write([]string{"source", "target", "label"})
	if m.CFG != nil {
		for _, sec := range m.Sections {
			for _, bi := range sec.ByteIntervals {
				for _, block := range bi.Blocks() {
					for e := range edgeSet(m.CFG.OutEdges(block)) {
						cw.Write([]string{blockID[e.Source], blockID[e.Target], e.Label.String()})
					}
				}
			}
		}
	}
	cw.Flush()
	a.Files = append(a.Files, txtar.File{Name: cfgFile, Data: cfgCSV.Bytes()})

	return txtar.Format(a)
}

func edgeSet(edges []ir.Edge) map[ir.Edge]struct{} {
	out := make(map[ir.Edge]struct{}, len(edges))
	for _, e := range edges {
		out[e] = struct{}{}
	}
	return out
}

// Decode parses a txtar archive produced by Encode back into a module.
func Decode(data []byte) (*ir.Module, error) {
	a := txtar.Parse(data)
	files := make(map[string][]byte, len(a.Files))
	for _, f := range a.Files {
		files[f.Name] = f.Data
	}

	header, ok := files[moduleHeaderFile]
	if !ok {
		return nil, fmt.Errorf("testfixture: archive has no %s", moduleHeaderFile)
	}
	name, format, isa := "", ir.FormatUnknown, ir.ISAUnknown
	for _, line := range strings.Split(string(header), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		k, v, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		v = strings.TrimSpace(v)
		switch strings.TrimSpace(k) {
		case "name":
			name = v
		case "format":
			format = parseFileFormat(v)
		case "isa":
			isa = parseISA(v)
		}
	}

	m := ir.NewModule(name, format, isa)

	sections := make(map[string]*ir.Section)
	sectionContent := make(map[string][]byte)
	for fname, data := range files {
		secName, ok := strings.CutPrefix(fname, "sections/")
		if !ok {
			continue
		}
		sec := m.AddSection(secName)
		sections[secName] = sec
		sectionContent[secName] = data
	}

	blocks := make(map[string]*ir.CodeBlock)
	sectionBI := make(map[string]*ir.ByteInterval)
	if raw, ok := files[blocksFile]; ok {
		rows, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
		if err != nil {
			return nil, fmt.Errorf("testfixture: parse %s: %w", blocksFile, err)
		}
		for i, row := range rows {
			if i == 0 || len(row) != 4 {
				continue
			}
			id, secName, offsetStr, sizeStr := row[0], row[1], row[2], row[3]
			offset, err := strconv.ParseInt(offsetStr, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("testfixture: block %s offset: %w", id, err)
			}
			size, err := strconv.ParseInt(sizeStr, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("testfixture: block %s size: %w", id, err)
			}
			bi, ok := sectionBI[secName]
			if !ok {
				bi = ir.NewByteInterval(sectionContent[secName])
				sectionBI[secName] = bi
				if sec, ok := sections[secName]; ok {
					sec.AddByteInterval(bi)
				}
			}
			block := ir.NewCodeBlock(offset, size)
			bi.AddBlock(block)
			blocks[id] = block
		}
	}

	nodes := make(map[string]ir.CfgNode, len(blocks))
	for id, b := range blocks {
		nodes[id] = b
	}

	if raw, ok := files[symbolsFile]; ok {
		rows, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
		if err != nil {
			return nil, fmt.Errorf("testfixture: parse %s: %w", symbolsFile, err)
		}
		for i, row := range rows {
			if i == 0 || len(row) != 2 {
				continue
			}
			name, refID := row[0], row[1]
			var referent ir.CfgNode
			if refID != "" {
				referent = nodes[refID]
			}
			m.AddSymbol(ir.NewSymbol(name, referent))
		}
	}

	if raw, ok := files[cfgFile]; ok {
		rows, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
		if err != nil {
			return nil, fmt.Errorf("testfixture: parse %s: %w", cfgFile, err)
		}
		for i, row := range rows {
			if i == 0 || len(row) != 3 {
				continue
			}
			src, ok := nodes[row[0]]
			if !ok {
				continue
			}
			dst, ok := nodes[row[1]]
			if !ok {
				continue
			}
			m.CFG.AddEdge(ir.Edge{Source: src, Target: dst, Label: parseEdgeLabel(row[2])})
		}
	}

	return m, nil
}

func fileFormatName(f ir.FileFormat) string {
	switch f {
	case ir.FormatELF:
		return "ELF"
	case ir.FormatPE:
		return "PE"
	default:
		return "unknown"
	}
}

func parseFileFormat(s string) ir.FileFormat {
	switch s {
	case "ELF":
		return ir.FormatELF
	case "PE":
		return ir.FormatPE
	default:
		return ir.FormatUnknown
	}
}

func isaName(isa ir.ISA) string {
	switch isa {
	case ir.ISAX64:
		return "X64"
	case ir.ISAIA32:
		return "IA32"
	case ir.ISAARM:
		return "ARM"
	case ir.ISAARM64:
		return "ARM64"
	default:
		return "unknown"
	}
}

func parseISA(s string) ir.ISA {
	switch s {
	case "X64":
		return ir.ISAX64
	case "IA32":
		return ir.ISAIA32
	case "ARM":
		return ir.ISAARM
	case "ARM64":
		return ir.ISAARM64
	default:
		return ir.ISAUnknown
	}
}

func parseEdgeLabel(s string) ir.EdgeLabel {
	switch s {
	case "fallthrough":
		return ir.Fallthrough
	case "branch":
		return ir.Branch
	case "call":
		return ir.Call
	case "return":
		return ir.Return
	case "syscall-return":
		return ir.SyscallReturn
	default:
		return ir.Fallthrough
	}
}
