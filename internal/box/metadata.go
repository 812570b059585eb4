package box

import (
	"encoding/json"
	"time"
)

const (
	Provider      = "lxc"
	FormatVersion = "1.0.0"
)

// Metadata is the box descriptor vagrant reads from metadata.json.
type Metadata struct {
	Provider string `json:"provider"`
	Version  string `json:"version"`
	BuiltOn  string `json:"built-on"`
}

// NewMetadata stamps the descriptor with now in the C locale's %c layout.
func NewMetadata(now time.Time) Metadata {
	return Metadata{
		Provider: Provider,
		Version:  FormatVersion,
		BuiltOn:  now.Format(time.ANSIC),
	}
}

func (m Metadata) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
