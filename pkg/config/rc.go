package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
)

// RC is a .composerrc read for export to a CI workflow.
type RC struct {
	Path string
	// Values holds only known keys.
	Values  map[string]interface{}
	Unknown []string
}

// ReadRC reads dir/.composerrc. A missing file returns (nil, nil).
func ReadRC(dir string) (*RC, error) {
	path := filepath.Join(dir, RCFileName)
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- fixed name under the workspace
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &Error{Key: path, Message: "error reading configuration file", Err: err}
	}
	unknown, err := ValidateRC(data)
	if err != nil {
		return nil, &Error{Key: path, Message: "invalid configuration file", Err: err}
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &Error{Key: path, Message: "invalid JSON", Err: err}
	}
	rc := &RC{Path: path, Values: make(map[string]interface{}), Unknown: unknown}
	for k, v := range doc {
		if slices.Contains(KnownKeys, k) {
			rc.Values[k] = v
		}
	}
	return rc, nil
}

// Outputs renders each value as the string a workflow step receives:
// booleans as true/false, lists and objects as compact JSON.
func (rc *RC) Outputs() (map[string]string, error) {
	out := make(map[string]string, len(rc.Values))
	for k, v := range rc.Values {
		switch val := v.(type) {
		case string:
			out[k] = val
		case bool:
			out[k] = fmt.Sprintf("%t", val)
		case float64:
			out[k] = fmt.Sprintf("%g", val)
		default:
			data, err := json.Marshal(val)
			if err != nil {
				return nil, fmt.Errorf("failed to encode %s: %w", k, err)
			}
			out[k] = string(data)
		}
	}
	return out, nil
}

// WriteOutputs appends rc_<key>=<value> lines to the GITHUB_OUTPUT file at
// outputPath, or prints legacy ::set-output commands to w when outputPath is
// empty. Keys are written in sorted order.
func (rc *RC) WriteOutputs(outputPath string, w io.Writer) error {
	values, err := rc.Outputs()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if outputPath == "" {
		for _, k := range keys {
			if _, err := fmt.Fprintf(w, "::set-output name=rc_%s::%s\n", k, values[k]); err != nil {
				return err
			}
		}
		return nil
	}

	var b strings.Builder
	for _, k := range keys {
		v := values[k]
		if strings.Contains(v, "\n") {
			delim := "EOF_RC_" + strings.ToUpper(k)
			fmt.Fprintf(&b, "rc_%s<<%s\n%s\n%s\n", k, delim, v, delim)
			continue
		}
		fmt.Fprintf(&b, "rc_%s=%s\n", k, v)
	}
	f, err := os.OpenFile(filepath.Clean(outputPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) // #nosec G304 -- path provided by the runner
	if err != nil {
		return fmt.Errorf("failed to open GITHUB_OUTPUT: %w", err)
	}
	if _, err := f.WriteString(b.String()); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write GITHUB_OUTPUT: %w", err)
	}
	return f.Close()
}
