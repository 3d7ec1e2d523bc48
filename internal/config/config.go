package config

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/cookbridge/internal/ctxlog"
	"github.com/specialistvlad/cookbridge/internal/engine/remote"
	"github.com/specialistvlad/cookbridge/internal/geometry"
	"github.com/specialistvlad/cookbridge/internal/session"
)

const (
	TransportInProcess = "inprocess"
	TransportRemote    = "remote"

	BackendMemory = "memory"
	BackendBadger = "badger"
)

// Config is the resolved bridge configuration.
type Config struct {
	Session    Session
	Translator Translator
	Store      Store
}

// Session configures the engine connection.
type Session struct {
	Transport          string
	URL                string
	Namespace          string
	InsecureSkipVerify bool
	MaxAttempts        int
	InitialBackoff     time.Duration
	MaxBackoff         time.Duration
	PollInterval       time.Duration
	InterruptGrace     time.Duration
	ConnectTimeout     time.Duration
	CallTimeout        time.Duration
}

// Translator configures geometry translation.
type Translator struct {
	Scale  float64
	SwapYZ bool
	// Attributes overrides or extends the default attribute mapping.
	Attributes map[string]geometry.Channel
}

// Store configures the result store.
type Store struct {
	Backend    string
	Path       string
	SyncWrites bool
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	ch := session.DefaultConfig()
	return &Config{
		Session: Session{
			Transport:      TransportInProcess,
			Namespace:      "/",
			MaxAttempts:    ch.MaxAttempts,
			InitialBackoff: ch.InitialBackoff,
			MaxBackoff:     ch.MaxBackoff,
			PollInterval:   ch.PollInterval,
			InterruptGrace: ch.InterruptGrace,
			ConnectTimeout: 15 * time.Second,
			CallTimeout:    30 * time.Second,
		},
		Translator: Translator{Scale: 1},
		Store:      Store{Backend: BackendMemory},
	}
}

// ChannelConfig returns the session channel settings.
func (s Session) ChannelConfig() session.Config {
	return session.Config{
		Transport:      s.Transport,
		MaxAttempts:    s.MaxAttempts,
		InitialBackoff: s.InitialBackoff,
		MaxBackoff:     s.MaxBackoff,
		PollInterval:   s.PollInterval,
		InterruptGrace: s.InterruptGrace,
	}
}

// RemoteConfig returns the socket.io client settings.
func (s Session) RemoteConfig() remote.Config {
	return remote.Config{
		URL:                s.URL,
		Namespace:          s.Namespace,
		InsecureSkipVerify: s.InsecureSkipVerify,
		ConnectTimeout:     s.ConnectTimeout,
		CallTimeout:        s.CallTimeout,
	}
}

// Options returns the translator options with the mapping overrides applied.
func (t Translator) Options() geometry.Options {
	m := geometry.DefaultMapping()
	for name, ch := range t.Attributes {
		m = m.With(name, ch)
	}
	return geometry.Options{Mapping: m, Scale: t.Scale, SwapYZ: t.SwapYZ}
}

// fileRoot decodes the top-level blocks of a configuration file.
type fileRoot struct {
	Session    *sessionBlock    `hcl:"session,block"`
	Translator *translatorBlock `hcl:"translator,block"`
	Store      *storeBlock      `hcl:"store,block"`
	Remain     hcl.Body         `hcl:",remain"`
}

type sessionBlock struct {
	Transport          *string `hcl:"transport,optional"`
	URL                *string `hcl:"url,optional"`
	Namespace          *string `hcl:"namespace,optional"`
	InsecureSkipVerify *bool   `hcl:"insecure_skip_verify,optional"`
	MaxAttempts        *int    `hcl:"max_attempts,optional"`
	InitialBackoff     *string `hcl:"initial_backoff,optional"`
	MaxBackoff         *string `hcl:"max_backoff,optional"`
	PollInterval       *string `hcl:"poll_interval,optional"`
	InterruptGrace     *string `hcl:"interrupt_grace,optional"`
	ConnectTimeout     *string `hcl:"connect_timeout,optional"`
	CallTimeout        *string `hcl:"call_timeout,optional"`
}

type translatorBlock struct {
	Scale      *float64          `hcl:"scale,optional"`
	SwapYZ     *bool             `hcl:"swap_yz,optional"`
	Attributes []*attributeBlock `hcl:"attribute,block"`
}

type attributeBlock struct {
	Name    string `hcl:"name,label"`
	Channel string `hcl:"channel"`
}

type storeBlock struct {
	Backend    *string `hcl:"backend,optional"`
	Path       *string `hcl:"path,optional"`
	SyncWrites *bool   `hcl:"sync_writes,optional"`
}

// Load reads the configuration file at path over the defaults. An empty path
// returns the defaults.
func Load(ctx context.Context, path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	logger := ctxlog.FromContext(ctx).With("path", path)

	file, diags := hclparse.NewParser().ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}
	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
	}

	if err := root.Session.apply(&cfg.Session); err != nil {
		return nil, fmt.Errorf("in %s, session block: %w", path, err)
	}
	if err := root.Translator.apply(&cfg.Translator); err != nil {
		return nil, fmt.Errorf("in %s, translator block: %w", path, err)
	}
	if err := root.Store.apply(&cfg.Store); err != nil {
		return nil, fmt.Errorf("in %s, store block: %w", path, err)
	}
	logger.Debug("Configuration loaded.", "transport", cfg.Session.Transport, "store", cfg.Store.Backend)
	return cfg, nil
}

func (b *sessionBlock) apply(s *Session) error {
	if b == nil {
		return nil
	}
	setString(&s.Transport, b.Transport)
	setString(&s.URL, b.URL)
	setString(&s.Namespace, b.Namespace)
	if b.InsecureSkipVerify != nil {
		s.InsecureSkipVerify = *b.InsecureSkipVerify
	}
	if b.MaxAttempts != nil {
		if *b.MaxAttempts < 1 {
			return fmt.Errorf("max_attempts must be at least 1, got %d", *b.MaxAttempts)
		}
		s.MaxAttempts = *b.MaxAttempts
	}
	for _, d := range []struct {
		name string
		src  *string
		dst  *time.Duration
	}{
		{"initial_backoff", b.InitialBackoff, &s.InitialBackoff},
		{"max_backoff", b.MaxBackoff, &s.MaxBackoff},
		{"poll_interval", b.PollInterval, &s.PollInterval},
		{"interrupt_grace", b.InterruptGrace, &s.InterruptGrace},
		{"connect_timeout", b.ConnectTimeout, &s.ConnectTimeout},
		{"call_timeout", b.CallTimeout, &s.CallTimeout},
	} {
		if err := setDuration(d.name, d.dst, d.src); err != nil {
			return err
		}
	}

	switch s.Transport {
	case TransportInProcess:
	case TransportRemote:
		if s.URL == "" {
			return fmt.Errorf("url is required for the %s transport", TransportRemote)
		}
	default:
		return fmt.Errorf("unknown transport %q", s.Transport)
	}
	return nil
}

func (b *translatorBlock) apply(t *Translator) error {
	if b == nil {
		return nil
	}
	if b.Scale != nil {
		if *b.Scale <= 0 {
			return fmt.Errorf("scale must be positive, got %v", *b.Scale)
		}
		t.Scale = *b.Scale
	}
	if b.SwapYZ != nil {
		t.SwapYZ = *b.SwapYZ
	}
	for _, a := range b.Attributes {
		ch, err := geometry.ParseChannel(a.Channel)
		if err != nil {
			return fmt.Errorf("attribute %q: %w", a.Name, err)
		}
		if t.Attributes == nil {
			t.Attributes = make(map[string]geometry.Channel)
		}
		t.Attributes[a.Name] = ch
	}
	return nil
}

func (b *storeBlock) apply(s *Store) error {
	if b == nil {
		return nil
	}
	setString(&s.Backend, b.Backend)
	setString(&s.Path, b.Path)
	if b.SyncWrites != nil {
		s.SyncWrites = *b.SyncWrites
	}
	switch s.Backend {
	case BackendMemory:
	case BackendBadger:
		if s.Path == "" {
			return fmt.Errorf("path is required for the %s backend", BackendBadger)
		}
	default:
		return fmt.Errorf("unknown backend %q", s.Backend)
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(name string, dst *time.Duration, src *string) error {
	if src == nil {
		return nil
	}
	d, err := time.ParseDuration(*src)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", name, d)
	}
	*dst = d
	return nil
}
