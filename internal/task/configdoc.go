package task

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"
)

// ConfigFile is the assistant's config document, relative to its install
// directory. Keys it does not find there keep the assistant's defaults.
const ConfigFile = "config.yaml"

type materialDoc struct {
	InstanceType  string            `yaml:"instance_type"`
	InstanceNames map[string]string `yaml:"instance_names"`
}

type universeDoc struct {
	PythonExePath         string `yaml:"python_exe_path"`
	UniverseOperationMode string `yaml:"universe_operation_mode"`
	UniverseCategory      string `yaml:"universe_category"`
	UniverseBonusEnable   bool   `yaml:"universe_bonus_enable"`
	UniverseCount         int    `yaml:"universe_count"`
	UniversePath          string `yaml:"universe_path"`
	UniverseRequirements  bool   `yaml:"universe_requirements"`
	UniverseDifficulty    int    `yaml:"universe_difficulty"`
}

func newMaterialDoc(m *MaterialConfig) materialDoc {
	return materialDoc{
		InstanceType:  m.Category,
		InstanceNames: map[string]string{m.Category: m.ID},
	}
}

func newUniverseDoc(u *UniverseConfig, universeDir, universePython string) universeDoc {
	category := "universe"
	if u.Type == UniverseDivergent {
		category = "divergent"
	}
	return universeDoc{
		PythonExePath:         universePython,
		UniverseOperationMode: "source",
		UniverseCategory:      category,
		UniverseBonusEnable:   true,
		UniverseCount:         1,
		UniversePath:          universeDir,
		UniverseRequirements:  true,
		UniverseDifficulty:    u.DifficultyOrDefault(),
	}
}

// writeConfigDoc replaces path with doc encoded as YAML. The rename happens
// under path+".lock" so a concurrent reader never sees a partial file.
func writeConfigDoc(path string, doc any) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
