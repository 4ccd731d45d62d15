package external

import (
	"strings"
)

// Resolved pairs a declaration with what was fetched for it.
type Resolved struct {
	Dependency Dependency
	Payload    Payload
}

// Block is one dependency rendered for inclusion in the output.
type Block struct {
	Name string
	Text string
}

// Sequence renders resolved dependencies in declaration order. Vendored
// content is included as fetched; it is never sanitized.
func Sequence(resolved []Resolved) []Block {
	blocks := make([]Block, 0, len(resolved))
	for _, r := range resolved {
		blocks = append(blocks, Block{Name: r.Dependency.Name, Text: formatBlock(r)})
	}
	return blocks
}

// Pair zips declarations with payloads fetched in the same order.
func Pair(deps []Dependency, payloads []Payload) []Resolved {
	out := make([]Resolved, 0, len(deps))
	for i, d := range deps {
		var p Payload
		if i < len(payloads) {
			p = payloads[i]
		}
		out = append(out, Resolved{Dependency: d, Payload: p})
	}
	return out
}

func formatBlock(r Resolved) string {
	d := r.Dependency
	lines := []string{"\n-- External Dependency: " + d.Name}
	if d.Description != "" {
		lines = append(lines, "-- Description: "+d.Description)
	}
	lines = append(lines, "-- Source: "+d.Source)
	if d.Type == KindGitHubRelease {
		lines = append(lines, "-- File: "+d.File)
	}
	if r.Payload.Tag != "" && r.Payload.Tag != tagOf(d.Source) {
		lines = append(lines, "-- Version: "+r.Payload.Tag)
	}
	if license := strings.TrimSpace(r.Payload.License); license != "" {
		lines = append(lines, "-- License:")
		for _, l := range strings.Split(strings.ReplaceAll(license, "\r\n", "\n"), "\n") {
			if l == "" {
				lines = append(lines, "--")
				continue
			}
			lines = append(lines, "-- "+l)
		}
	}
	lines = append(lines, "", r.Payload.Content)
	return strings.Join(lines, "\n")
}

// tagOf returns the tag written in a release source, "" otherwise.
func tagOf(source string) string {
	if i := strings.LastIndexByte(source, '@'); i >= 0 {
		return source[i+1:]
	}
	return ""
}
