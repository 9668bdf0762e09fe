// Package settings supplies the process-wide maintenance flag.
package settings

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"gopkg.in/yaml.v3"
)

// AppSettings is the site-wide configuration document.
type AppSettings struct {
	MaintenanceMode    bool   `firestore:"maintenanceMode" yaml:"maintenanceMode"`
	MaintenanceMessage string `firestore:"maintenanceMessage" yaml:"maintenanceMessage"`
}

// Provider loads the current settings.
type Provider interface {
	AppSettings(ctx context.Context) (AppSettings, error)
}

// Watchable providers push every change until ctx ends.
type Watchable interface {
	Watch(ctx context.Context, fn func(AppSettings, error)) error
}

// Static always returns the same settings.
type Static AppSettings

func (s Static) AppSettings(context.Context) (AppSettings, error) {
	return AppSettings(s), nil
}

// FileProvider reads settings from a YAML file on every call.
type FileProvider struct {
	Path string
}

func (f FileProvider) AppSettings(context.Context) (AppSettings, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return AppSettings{}, fmt.Errorf("settings: open %s: %w", f.Path, err)
	}
	defer file.Close()
	return Decode(file)
}

// Decode parses a YAML settings document.
func Decode(r io.Reader) (AppSettings, error) {
	var s AppSettings
	if err := yaml.NewDecoder(r).Decode(&s); err != nil && err != io.EOF {
		return AppSettings{}, fmt.Errorf("settings: decode: %w", err)
	}
	return s, nil
}

var (
	markdown      = goldmark.New()
	policyOnce    sync.Once
	messagePolicy *bluemonday.Policy
)

func policy() *bluemonday.Policy {
	policyOnce.Do(func() {
		messagePolicy = bluemonday.UGCPolicy()
		messagePolicy.RequireNoFollowOnLinks(true)
	})
	return messagePolicy
}

// RenderMessage converts an operator-authored markdown message into
// sanitized HTML. An empty message renders as "".
func RenderMessage(message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(message), &buf); err != nil {
		return "", fmt.Errorf("settings: render message: %w", err)
	}
	return strings.TrimSpace(policy().Sanitize(buf.String())), nil
}
