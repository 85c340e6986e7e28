// Package commands assembles the placectl command tree. Every subcommand
// shares one Runtime, which resolves configuration and opens the placement
// session lazily so commands that never touch the service work without an
// endpoint.
package commands

import (
	"context"
	"sync"

	"github.com/spf13/cobra"

	"github.com/danmuck/placectl/internal/config"
	logs "github.com/danmuck/placectl/internal/logging"
	"github.com/danmuck/placectl/internal/placement"
)

// Runtime carries the persistent flag values and the shared placement
// session. The session is built on first use and reused by every subcommand
// of one invocation.
type Runtime struct {
	ConfigPath string
	Endpoint   string
	APIVersion string

	// Config, when set, bypasses file and environment resolution. Flag
	// overrides still apply on top.
	Config *config.Config

	once      sync.Once
	client    *placement.Client
	clientErr error
}

// Client returns the placement session, resolving config and negotiating the
// microversion on the first call.
func (rt *Runtime) Client(ctx context.Context) (*placement.Client, error) {
	rt.once.Do(func() {
		rt.client, rt.clientErr = rt.buildClient(ctx)
	})
	return rt.client, rt.clientErr
}

func (rt *Runtime) resolveConfig() (config.Config, error) {
	var cfg config.Config
	if rt.Config != nil {
		cfg = *rt.Config
	} else {
		loaded, err := config.Resolve(rt.ConfigPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if rt.Endpoint != "" {
		cfg.Endpoint = rt.Endpoint
	}
	if rt.APIVersion != "" {
		cfg.APIVersion = rt.APIVersion
	}
	if err := config.Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (rt *Runtime) buildClient(ctx context.Context) (*placement.Client, error) {
	cfg, err := rt.resolveConfig()
	if err != nil {
		return nil, err
	}
	httpClient, err := placement.NewTransport(placement.TransportConfig{
		CACert:   cfg.CACert,
		Insecure: cfg.Insecure,
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	client, err := placement.NewClient(ctx, placement.ClientConfig{
		Endpoint:    cfg.Endpoint,
		APIVersion:  cfg.APIVersion,
		ServiceType: cfg.ServiceType,
		Token:       cfg.Token,
		HTTP:        httpClient,
	})
	if err != nil {
		return nil, err
	}
	logs.Debugf("commands.session endpoint=%q api_version=%s", cfg.Endpoint, client.APIVersion())
	return client, nil
}

// NewRootCommand builds the placectl root with every subcommand attached.
func NewRootCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "placectl",
		Short: "Command line client for the placement service",
		Long: `placectl manages resource providers, inventories, traits, resource
classes, allocations and allocation candidates through the placement
HTTP API. The API microversion is negotiated once per invocation and
every argument that needs a newer microversion is rejected up front.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&rt.ConfigPath, "config", "", "Path to the placectl TOML config file")
	pf.StringVar(&rt.Endpoint, "endpoint", "", "Placement service root URL, overrides config and env")
	pf.StringVar(&rt.APIVersion, "api-version", "",
		"Microversion to pin, or 1 / 1.0 to negotiate the newest one")

	cmd.AddCommand(
		NewProviderCommand(rt),
		NewTraitCommand(rt),
		NewClassCommand(rt),
		NewAllocationCommand(rt),
		NewCandidateCommand(rt),
		NewConfigCommand(),
		NewVersionCommand(),
		NewDocsCommand(),
	)
	return cmd
}

// Execute runs the tree with a fresh runtime.
func Execute(ctx context.Context) error {
	rt := &Runtime{}
	return NewRootCommand(rt).ExecuteContext(ctx)
}
