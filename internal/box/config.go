package box

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"text/template"
)

//go:embed assets/lxc-config.tmpl
var configTemplateText string

var configTemplate = template.Must(template.New("lxc-config").Parse(configTemplateText))

type configValues struct {
	Family   string
	Revision string
	Arch     string
	Systemd  bool
}

// runtimeConfig returns the lxc config for slug: the file from confsDir when
// present, otherwise the built-in template.
func runtimeConfig(confsDir, slug string, values configValues) ([]byte, string, error) {
	if confsDir != "" {
		path := filepath.Join(confsDir, slug)
		data, err := os.ReadFile(path)
		if err == nil {
			return data, path, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("read lxc config %s: %w", path, err)
		}
	}
	var buf bytes.Buffer
	if err := configTemplate.Execute(&buf, values); err != nil {
		return nil, "", fmt.Errorf("render lxc config: %w", err)
	}
	return buf.Bytes(), "", nil
}
