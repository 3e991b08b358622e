// Package config loads the optional JSON configuration file and
// builds a configured application from it. Unknown keys are ignored;
// a missing required section fails startup naming the path.
package config

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"

	volt "github.com/voltframework/volt"
	"github.com/voltframework/volt/logstream"
)

// File mirrors the recognized top-level schema. Extra keys in the
// document are ignored by decoding into these shapes only.
type File struct {
	Server        ServerSection     `json:"server"`
	ListeningHost HostSection       `json:"listeningHost"`
	Parameters    map[string]string `json:"parameters"`
}

// ServerSection is the "server" object.
type ServerSection struct {
	MaximumContentLength   int64  `json:"maximumContentLength"`
	IncludeRequestIdHeader bool   `json:"includeRequestIdHeader"`
	ThrowExceptions        bool   `json:"throwExceptions"`
	AccessLogsStream       string `json:"accessLogsStream"`
	ErrorsLogsStream       string `json:"errorsLogsStream"`
}

// HostSection is the "listeningHost" object.
type HostSection struct {
	Label string   `json:"label"`
	Ports []string `json:"ports"`
	Cors  *CorsSection `json:"crossOriginResourceSharingPolicy"`
}

// CorsSection mirrors the CORS policy fields.
type CorsSection struct {
	AllowOrigin      string   `json:"allowOrigin"`
	AllowOrigins     []string `json:"allowOrigins"`
	AllowMethods     []string `json:"allowMethods"`
	AllowHeaders     []string `json:"allowHeaders"`
	ExposeHeaders    []string `json:"exposeHeaders"`
	AllowCredentials bool     `json:"allowCredentials"`
	MaxAge           int      `json:"maxAge"`
}

// Load reads and decodes the configuration file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a configuration document.
func Parse(data []byte) (*File, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: invalid JSON: %w", err)
	}
	return &f, nil
}

// Validate checks the required sections, naming the missing path.
func (f *File) Validate() error {
	if len(f.ListeningHost.Ports) == 0 {
		return fmt.Errorf("config: missing required section %q", "listeningHost.ports")
	}
	return nil
}

// Build constructs a configured application: server limits, the
// listening host with its CORS policy, and the log streams ("console"
// selects stdout for either stream, any other value is a file path).
func (f *File) Build() (*volt.App, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	cfg := volt.DefaultConfig()
	if f.Server.MaximumContentLength > 0 {
		cfg.MaxContentLength = f.Server.MaximumContentLength
	}
	cfg.IncludeRequestIdHeader = f.Server.IncludeRequestIdHeader
	cfg.ThrowExceptions = f.Server.ThrowExceptions
	cfg.Parameters = f.Parameters

	app := volt.NewWithConfig(cfg)

	label := f.ListeningHost.Label
	if label == "" {
		label = "default"
	}
	host, err := volt.NewListeningHost(label, f.ListeningHost.Ports...)
	if err != nil {
		return nil, err
	}
	if c := f.ListeningHost.Cors; c != nil {
		host.Cors = &volt.CorsPolicy{
			AllowOrigin:      c.AllowOrigin,
			AllowOrigins:     c.AllowOrigins,
			AllowMethods:     c.AllowMethods,
			AllowHeaders:     c.AllowHeaders,
			ExposeHeaders:    c.ExposeHeaders,
			AllowCredentials: c.AllowCredentials,
			MaxAge:           c.MaxAge,
		}
	}
	if err := app.AddHost(host); err != nil {
		return nil, err
	}

	if f.Server.AccessLogsStream != "" {
		stream, err := openStream(f.Server.AccessLogsStream)
		if err != nil {
			return nil, err
		}
		app.SetAccessLog(stream)
	}
	if f.Server.ErrorsLogsStream != "" {
		stream, err := openStream(f.Server.ErrorsLogsStream)
		if err != nil {
			return nil, err
		}
		app.SetErrorLog(stream)
	}

	return app, nil
}

func openStream(target string) (*logstream.LogStream, error) {
	if target == "console" {
		return logstream.NewWriter(os.Stdout), nil
	}
	return logstream.NewFile(target)
}
