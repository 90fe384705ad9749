package config

import (
	"os"

	"github.com/ragstore/engine/internal/ragerr"
	"gopkg.in/yaml.v3"
)

// LoadPreprocessing reads the optional preprocessing override block
// from a standalone YAML file (grounded on the teacher's transitive
// gopkg.in/yaml.v3 dependency, also used directly by manifold for
// exactly this kind of override block). Absence of the file is not an
// error; it simply leaves Preprocessing at its zero value.
func LoadPreprocessing(path string) (Preprocessing, error) {
	var p Preprocessing
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return p, nil
	}
	if err != nil {
		return p, ragerr.WrapItem("load_preprocessing", path, ragerr.KindConfiguration, err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, ragerr.WrapItem("load_preprocessing", path, ragerr.KindConfiguration, err)
	}
	return p, nil
}
