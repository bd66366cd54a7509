package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SaveManifestDirs rewrites the manifest_dirs list in the config file.
// The file is edited at the yaml.Node level so comments and formatting
// in other sections survive the write.
func SaveManifestDirs(configPath string, dirs []string) error {
	doc, err := loadDocument(configPath)
	if err != nil {
		return err
	}

	root, err := rootMapping(doc)
	if err != nil {
		return err
	}
	setMappingValue(root, "manifest_dirs", stringListNode(dirs))

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_ = enc.Close()

	return writeFileAtomic(configPath, buf.Bytes())
}

// AddManifestDir appends a directory to the config's manifest_dirs and
// saves. Adding a directory that is already listed is a no-op.
func AddManifestDir(configPath, dir string, existing []string) error {
	if dir == "" {
		return fmt.Errorf("manifest directory must not be empty")
	}
	for _, d := range existing {
		if d == dir {
			return nil
		}
	}
	return SaveManifestDirs(configPath, append(existing, dir))
}

// loadDocument parses the config file into a yaml.Node document. A
// missing or empty file yields a document holding an empty mapping.
func loadDocument(path string) (*yaml.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	doc := &yaml.Node{}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, doc); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}
	if doc.Kind == 0 {
		doc.Kind = yaml.DocumentNode
		doc.Content = []*yaml.Node{{Kind: yaml.MappingNode}}
	}
	return doc, nil
}

// rootMapping returns the document's top-level mapping node.
func rootMapping(doc *yaml.Node) (*yaml.Node, error) {
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("config is not a YAML document")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("config root is not a mapping")
	}
	return root, nil
}

// setMappingValue replaces the value under key, or appends the pair
// when the key is absent.
func setMappingValue(m *yaml.Node, key string, value *yaml.Node) {
	for i := 1; i < len(m.Content); i += 2 {
		if m.Content[i-1].Value == key {
			m.Content[i] = value
			return
		}
	}
	m.Content = append(m.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: key},
		value,
	)
}

func stringListNode(items []string) *yaml.Node {
	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, item := range items {
		seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: item})
	}
	return seq
}

// writeFileAtomic writes data through a temp file in the target
// directory and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, ".switchboard.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tempPath)
		}
	}()

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	committed = true
	return nil
}
