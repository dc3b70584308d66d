package voltdb

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cove9988/voltdb/stream/tuple"
)

// ColumnConfig is one user column of the exported table's schema, as it
// appears in an ExportManagerConfig file.
type ColumnConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// toColumn converts c to a tuple.Column, failing if Type names a column
// type this build doesn't know about.
func (c ColumnConfig) toColumn() (tuple.Column, error) {
	var t tuple.ColumnType
	switch c.Type {
	case "int64":
		t = tuple.ColumnTypeInt64
	case "float64":
		t = tuple.ColumnTypeFloat64
	case "timestamp":
		t = tuple.ColumnTypeTimestamp
	case "string":
		t = tuple.ColumnTypeString
	default:
		return tuple.Column{}, fmt.Errorf("voltdb: column %q has unknown type %q", c.Name, c.Type)
	}
	return tuple.Column{Name: c.Name, Type: t}, nil
}

// PartitionConfig declares one partition an ExportManager should serve
// on construction, the config-file equivalent of the catalog load that
// hands a partition its site ID in the row-export core this generalizes.
type PartitionConfig struct {
	ID     int32 `yaml:"id"`
	SiteID int64 `yaml:"site_id"`

	// Signature is the logical stream identifier new rows are tagged
	// with. If empty, NewExportManager generates a random one: a
	// deployment that doesn't care to pin a stable signature across
	// restarts shouldn't have to invent one by hand.
	Signature string `yaml:"signature"`
}

// TopEndConfig describes the TopEnd an ExportManager pushes sealed
// blocks to. LoadConfig parses it, but NewExportManager does not read it:
// the caller builds the stream.TopEnd and passes it in.
type TopEndConfig struct {
	// Kind is "memory" or "file". LoadConfig applies no default.
	Kind string `yaml:"kind"`

	// Dir is the directory a "file" TopEnd writes its queue files under.
	// Required when Kind is "file".
	Dir string `yaml:"dir"`
}

// ExportManagerConfig is the on-disk, YAML-loadable configuration for an
// ExportManager: its schema, the TopEnd it pushes to, the partitions it
// serves on startup, and the default block capacity new StreamBuffers
// are given.
type ExportManagerConfig struct {
	DefaultCapacityBytes int               `yaml:"default_capacity_bytes"`
	Columns              []ColumnConfig    `yaml:"columns"`
	TopEnd               TopEndConfig      `yaml:"topend"`
	Partitions           []PartitionConfig `yaml:"partitions"`
}

// LoadConfig reads and parses an ExportManagerConfig from path.
func LoadConfig(path string) (*ExportManagerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("voltdb: read config %s: %w", path, err)
	}

	var cfg ExportManagerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("voltdb: parse config %s: %w", path, err)
	}
	if cfg.DefaultCapacityBytes == 0 {
		cfg.DefaultCapacityBytes = 2 * 1024 * 1024
	}
	return &cfg, nil
}

// Schema builds the tuple.Schema described by cfg.Columns.
func (cfg *ExportManagerConfig) Schema() (tuple.Schema, error) {
	columns := make([]tuple.Column, 0, len(cfg.Columns))
	for _, cc := range cfg.Columns {
		col, err := cc.toColumn()
		if err != nil {
			return tuple.Schema{}, err
		}
		columns = append(columns, col)
	}
	return tuple.NewSchema(columns...), nil
}
