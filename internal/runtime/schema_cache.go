package runtime

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// schemaCacheFile is the fixed filename spec.md §6.4 names relative to a
// server's token cache directory.
const schemaCacheFile = "schema.json"

// SaveSchemaCache persists a server's tool list (including input schemas)
// to <dir>/schema.json via the write-temp-then-rename pattern the teacher's
// config loader uses for its own on-disk artifacts, so a reader never
// observes a partially written file.
func SaveSchemaCache(dir string, tools []*mcp.Tool) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	b, err := json.Marshal(tools)
	if err != nil {
		return err
	}

	dest := filepath.Join(dir, schemaCacheFile)
	tmp, err := os.CreateTemp(dir, ".schema-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, dest)
}

// LoadSchemaCache reads back a previously saved tool list. A missing file
// is not an error: callers treat a nil, nil result as "no cache yet".
func LoadSchemaCache(dir string) ([]*mcp.Tool, error) {
	if dir == "" {
		return nil, nil
	}
	b, err := os.ReadFile(filepath.Join(dir, schemaCacheFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var tools []*mcp.Tool
	if err := json.Unmarshal(b, &tools); err != nil {
		return nil, err
	}
	return tools, nil
}
