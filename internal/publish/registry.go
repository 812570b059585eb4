// Package publish uploads boxes to a vagrant box registry.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const DefaultRegistryURL = "https://app.vagrantup.com/api/v1/box/"

// BoxInfo is the part of the registry's box document we read.
type BoxInfo struct {
	Versions []Version `json:"versions"`
}

type Version struct {
	Number    Number     `json:"number"`
	Providers []Provider `json:"providers"`
}

type Provider struct {
	Name string `json:"name"`
}

// Number accepts version numbers encoded as JSON strings or numbers.
type Number string

func (n *Number) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*n = Number(s)
		return nil
	}
	var f json.Number
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("version number: %w", err)
	}
	*n = Number(f.String())
	return nil
}

// Registry looks up published versions of a box.
type Registry struct {
	BaseURL string // Defaults to DefaultRegistryURL.
	Client  *http.Client
	Logger  *slog.Logger
}

func (r *Registry) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Box fetches the registry document of box ("org/name").
func (r *Registry) Box(ctx context.Context, box string) (*BoxInfo, error) {
	base := r.BaseURL
	if base == "" {
		base = DefaultRegistryURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	client := r.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+box, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry returned %s for %s", resp.Status, box)
	}

	var info BoxInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode registry response: %w", err)
	}
	return &info, nil
}

// LatestVersion returns the highest integer version of box that has a
// provider named provider. Lookup failures count as no versions.
func (r *Registry) LatestVersion(ctx context.Context, box, provider string) int {
	info, err := r.Box(ctx, box)
	if err != nil {
		r.logger().Warn("registry lookup failed, assuming no prior versions", "box", box, "error", err)
		return 0
	}
	return Latest(info, provider)
}

// Latest is LatestVersion on an already fetched document.
func Latest(info *BoxInfo, provider string) int {
	if info == nil {
		return 0
	}
	latest := 0
	for _, version := range info.Versions {
		if !hasProvider(version, provider) {
			continue
		}
		n, err := strconv.Atoi(string(version.Number))
		if err != nil {
			continue
		}
		latest = max(latest, n)
	}
	return latest
}

func hasProvider(version Version, name string) bool {
	for _, p := range version.Providers {
		if p.Name == name {
			return true
		}
	}
	return false
}
