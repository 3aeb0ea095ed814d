package config

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	yamlv "github.com/goccy/go-yaml"

	"logremap/pkg/logger"
)

// Vector-compatible config subset accepted by the convert command. YAML and
// JSON documents both parse; JSON is a YAML subset.
type VectorConfig struct {
	DataDir    string                     `yaml:"data_dir"`
	Sources    map[string]VectorSource    `yaml:"sources"`
	Transforms map[string]VectorTransform `yaml:"transforms"`
	Sinks      map[string]VectorSink      `yaml:"sinks"`
}

type VectorSource struct {
	Type    string   `yaml:"type"`
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

type VectorTransform struct {
	Type   string   `yaml:"type"`
	Inputs []string `yaml:"inputs"`
	Source string   `yaml:"source"`
	File   string   `yaml:"file"`
}

type VectorSink struct {
	Type     string         `yaml:"type"`
	Inputs   []string       `yaml:"inputs"`
	Path     string         `yaml:"path"`
	Encoding VectorEncoding `yaml:"encoding"`
}

type VectorEncoding struct {
	Codec string `yaml:"codec"`
}

// ConvertVector maps a Vector-style config onto a Config plus any inline
// transform scripts keyed by transform name. Callers write the scripts out
// and run Validate on the returned config.
func ConvertVector(data []byte) (*Config, map[string]string, error) {
	var vc VectorConfig
	if err := yamlv.Unmarshal(data, &vc); err != nil {
		return nil, nil, fmt.Errorf("parse vector config: %w", err)
	}

	srcName, src, err := pickFileSource(vc)
	if err != nil {
		return nil, nil, err
	}
	tfName, tf, err := pickRemapTransform(vc, srcName)
	if err != nil {
		return nil, nil, err
	}

	cfg := &Config{}
	cfg.Watch.Enabled = true
	cfg.Watch.DataDir = vc.DataDir

	if err := applySourceIncludes(cfg, src); err != nil {
		return nil, nil, err
	}

	scripts := map[string]string{}
	if tf.File != "" {
		cfg.Script = tf.File
	} else if strings.TrimSpace(tf.Source) != "" {
		scripts[tfName] = tf.Source
		cfg.Script = tfName + ".remap"
	} else {
		return nil, nil, fmt.Errorf("transform %q has neither source nor file", tfName)
	}
	// carry any other inline transforms so nothing is lost on conversion
	for name, other := range vc.Transforms {
		if name == tfName || other.Type != "remap" {
			continue
		}
		if strings.TrimSpace(other.Source) != "" {
			scripts[name] = other.Source
		}
	}

	if name, sink, ok := pickFileSink(vc, tfName); ok {
		cfg.Output = sink.Path
		cfg.Format = codecToFormat(sink.Encoding.Codec)
		if cfg.Output == "" {
			return nil, nil, fmt.Errorf("sink %q has no path", name)
		}
	}

	return cfg, scripts, nil
}

func pickFileSource(vc VectorConfig) (string, VectorSource, error) {
	for _, name := range slices.Sorted(maps.Keys(vc.Sources)) {
		if s := vc.Sources[name]; s.Type == "file" {
			return name, s, nil
		}
	}
	return "", VectorSource{}, fmt.Errorf("no file source found")
}

func pickRemapTransform(vc VectorConfig, srcName string) (string, VectorTransform, error) {
	// prefer a transform wired to the chosen source
	for _, name := range slices.Sorted(maps.Keys(vc.Transforms)) {
		t := vc.Transforms[name]
		if t.Type == "remap" && slices.Contains(t.Inputs, srcName) {
			return name, t, nil
		}
	}
	for _, name := range slices.Sorted(maps.Keys(vc.Transforms)) {
		if t := vc.Transforms[name]; t.Type == "remap" {
			return name, t, nil
		}
	}
	return "", VectorTransform{}, fmt.Errorf("no remap transform found")
}

func pickFileSink(vc VectorConfig, tfName string) (string, VectorSink, bool) {
	for _, name := range slices.Sorted(maps.Keys(vc.Sinks)) {
		s := vc.Sinks[name]
		if s.Type == "file" && slices.Contains(s.Inputs, tfName) {
			return name, s, true
		}
	}
	for _, name := range slices.Sorted(maps.Keys(vc.Sinks)) {
		if s := vc.Sinks[name]; s.Type == "file" {
			return name, s, true
		}
	}
	return "", VectorSink{}, false
}

// applySourceIncludes maps include globs onto an input directory plus
// base-name patterns. Entries under other directories are dropped with a
// warning; one watcher covers one directory.
func applySourceIncludes(cfg *Config, src VectorSource) error {
	if len(src.Include) == 0 {
		return fmt.Errorf("file source has no include entries")
	}
	first := src.Include[0]
	dir := filepath.Dir(first)

	if len(src.Include) == 1 && !strings.ContainsAny(filepath.Base(first), "*?[") {
		cfg.Input = first
	} else {
		cfg.Input = dir
		for _, inc := range src.Include {
			if filepath.Dir(inc) != dir {
				logger.Warn("convert_include_dropped", "include", inc, "dir", dir)
				continue
			}
			cfg.Watch.Include = append(cfg.Watch.Include, filepath.Base(inc))
		}
	}
	for _, exc := range src.Exclude {
		cfg.Watch.Exclude = append(cfg.Watch.Exclude, filepath.Base(exc))
	}
	return nil
}

func codecToFormat(codec string) string {
	switch strings.ToLower(strings.TrimSpace(codec)) {
	case "", "json", "ndjson":
		// vector's json codec emits one object per event line
		return "ndjson"
	case "yaml":
		return "yaml"
	default:
		logger.Warn("convert_codec_unmapped", "codec", codec)
		return "ndjson"
	}
}
