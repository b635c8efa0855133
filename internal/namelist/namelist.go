// Package namelist parses batch query lists: one "name<TAB>rank" per line,
// optionally preceded by a YAML header.
package namelist

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/taxonid/internal/apperr"
	"github.com/starford/taxonid/internal/models"
)

// Header holds list-wide settings from the YAML block between leading ---
// delimiters.
type Header struct {
	// DefaultRank applies to lines that carry only a name.
	DefaultRank string `yaml:"default_rank"`
}

// Parse reads queries from a list. Blank lines and lines starting with # are
// skipped. A line without a rank takes the header's default_rank; with no
// default it is an apperr.ErrInvalidInput naming the line.
func Parse(data []byte) ([]models.Query, error) {
	hdr, body, offset, err := splitHeader(data)
	if err != nil {
		return nil, err
	}

	var out []models.Query
	sc := bufio.NewScanner(bytes.NewReader(body))
	lineNo := offset
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}

		name, rank, _ := strings.Cut(line, "\t")
		name = strings.TrimSpace(name)
		rank = strings.TrimSpace(rank)
		if name == "" {
			return nil, fmt.Errorf("namelist: line %d: empty name: %w", lineNo, apperr.ErrInvalidInput)
		}
		if rank == "" {
			rank = hdr.DefaultRank
		}
		if rank == "" {
			return nil, fmt.Errorf("namelist: line %d: no rank for %q: %w", lineNo, name, apperr.ErrInvalidInput)
		}
		out = append(out, models.Query{Name: name, Rank: rank})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("namelist: %w", err)
	}
	return out, nil
}

// splitHeader separates the YAML header from the query lines. offset is the
// number of lines consumed by the header.
func splitHeader(data []byte) (Header, []byte, int, error) {
	const delim = "---"
	var hdr Header

	if !bytes.HasPrefix(data, []byte(delim+"\n")) && !bytes.HasPrefix(data, []byte(delim+"\r\n")) {
		return hdr, data, 0, nil
	}
	rest := data[bytes.IndexByte(data, '\n')+1:]
	idx := bytes.Index(rest, []byte("\n"+delim))
	var block []byte
	switch {
	case bytes.HasPrefix(rest, []byte(delim)):
		idx = -1
	case idx < 0:
		return hdr, nil, 0, fmt.Errorf("namelist: unterminated header: %w", apperr.ErrInvalidInput)
	default:
		block = rest[:idx+1]
	}

	if err := yaml.Unmarshal(block, &hdr); err != nil {
		return hdr, nil, 0, fmt.Errorf("namelist: header: %v: %w", err, apperr.ErrInvalidInput)
	}

	after := rest[idx+1:]
	if nl := bytes.IndexByte(after, '\n'); nl >= 0 {
		after = after[nl+1:]
	} else {
		after = nil
	}
	offset := bytes.Count(data[:len(data)-len(after)], []byte("\n"))
	return hdr, after, offset, nil
}
