package bootstrap

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/artpar/modforge/config"
	"github.com/artpar/modforge/core/compiler"
	"github.com/artpar/modforge/core/formatter"
)

// ResultFile is the base name of the combined result written next to the
// per-module artifacts.
const ResultFile = "_result"

// WriteArtifacts renders a compile result. With an empty output directory
// the combined result goes to w; otherwise one file per module plus the
// combined result are written to the directory. It returns the written paths.
func WriteArtifacts(result *compiler.Result, out config.OutputConfig, w io.Writer) ([]string, error) {
	f, ok := formatter.Get(out.Format)
	if !ok {
		return nil, fmt.Errorf("unknown output format %q", out.Format)
	}
	opts := out.FormatOptions()

	if out.Dir == "" {
		return nil, f.FormatResult(w, result, opts)
	}

	if err := os.MkdirAll(out.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var written []string
	write := func(name string, render func(io.Writer) error) error {
		var buf bytes.Buffer
		if err := render(&buf); err != nil {
			return fmt.Errorf("render %s: %w", name, err)
		}
		path := filepath.Join(out.Dir, name+"."+f.Extension())
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
		return nil
	}

	for _, m := range result.Modules {
		if err := write(m.Name, func(w io.Writer) error { return f.FormatModule(w, m, opts) }); err != nil {
			return written, err
		}
	}
	if err := write(ResultFile, func(w io.Writer) error { return f.FormatResult(w, result, opts) }); err != nil {
		return written, err
	}
	return written, nil
}
