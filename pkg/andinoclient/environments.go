/**
 * @description
 * This file provides the EnvironmentDirectory, which owns one Andino client
 * per configured environment (production, development, sandbox, ...). The
 * directory is built once from configuration and consulted on every remote
 * call, so the target environment is an explicit per-session value instead
 * of process-wide mutable state.
 *
 * @dependencies
 * - fmt, sort: Standard Go libraries.
 */
package andinoclient

import (
	"fmt"
	"sort"
)

// EnvironmentDirectory resolves environment names to Andino clients and
// answers whether an environment runs in demo mode (no real SMS dispatch).
type EnvironmentDirectory struct {
	defaultName string
	clients     map[string]*Client
	demo        map[string]bool
}

// NewEnvironmentDirectory builds one client per configured endpoint. The
// default environment must be one of the configured names.
func NewEnvironmentDirectory(defaultName string, endpoints map[string]string, demoNames []string) (*EnvironmentDirectory, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("no andino environments configured")
	}
	if _, ok := endpoints[defaultName]; !ok {
		return nil, fmt.Errorf("default environment %q has no configured endpoint", defaultName)
	}

	clients := make(map[string]*Client, len(endpoints))
	for name, baseURL := range endpoints {
		clients[name] = NewClient(name, baseURL)
	}

	demo := make(map[string]bool, len(demoNames))
	for _, name := range demoNames {
		demo[name] = true
	}

	return &EnvironmentDirectory{
		defaultName: defaultName,
		clients:     clients,
		demo:        demo,
	}, nil
}

// DefaultEnvironment returns the environment used when a caller supplies none.
func (d *EnvironmentDirectory) DefaultEnvironment() string {
	return d.defaultName
}

// ClientFor returns the client for the named environment, or false when the
// environment is not configured.
func (d *EnvironmentDirectory) ClientFor(name string) (*Client, bool) {
	client, ok := d.clients[name]
	return client, ok
}

// IsDemo reports whether the named environment is a demo environment. Demo
// environments never dispatch real SMS codes.
func (d *EnvironmentDirectory) IsDemo(name string) bool {
	return d.demo[name]
}

// Environments lists the configured environment names in stable order.
func (d *EnvironmentDirectory) Environments() []string {
	names := make([]string, 0, len(d.clients))
	for name := range d.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
