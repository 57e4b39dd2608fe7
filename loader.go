// SPDX-License-Identifier: GPL-3.0-or-later

package flowmesh

import (
	"fmt"
	"os/exec"
	"sync"

	goplugin "github.com/hashicorp/go-plugin"
)

// Loader dynamically loads a node's user component from a shared library.
// The core only depends on the lifecycle contract: a successful
// [Loader.Load] returns a [LoadedComponent] whose [LoadedComponent.Close]
// must run before the hosting library is unmapped.
type Loader interface {
	Load(path string, symbol string) (LoadedComponent, error)
}

// LoadedComponent is the handle a [Loader] hands back. Close must release
// the user component and any state it owns, then unload the backing
// library — in that order ("the component and its state must be
// dropped before the library handle").
//
// Go has no field-declaration-drop-order guarantee the way the original
// implementation's struct layout did; every runner that holds a
// LoadedComponent instead sequences this explicitly in its own Clean
// method, calling Close only after discarding its user state, and keeps the
// LoadedComponent as the runner struct's last field purely as a readability
// convention (see SourceRunner, OperatorRunner, SinkRunner).
type LoadedComponent interface {
	// Component returns the loaded user value (a [Source], [Operator], or
	// [Sink]), already type-asserted by the caller of [Loader.Load].
	Component() any
	// Close releases the component, then the library. Idempotent.
	Close() error
}

// pluginLoader is a [Loader] backed by github.com/hashicorp/go-plugin:
// every user component ships as a separate plugin subprocess, so the
// "shared library" of the original design maps onto a plugin client
// process, and "dropping the library" maps onto killing that client.
type pluginLoader struct {
	handshake goplugin.HandshakeConfig
	plugins   map[string]goplugin.Plugin
}

// NewPluginLoader returns a [Loader] that dispatches to go-plugin,
// dispensing components under the given plugin name -> implementation map.
func NewPluginLoader(handshake goplugin.HandshakeConfig, plugins map[string]goplugin.Plugin) Loader {
	return &pluginLoader{handshake: handshake, plugins: plugins}
}

// Load launches path as a go-plugin client process and dispenses symbol
// from its plugin map.
func (l *pluginLoader) Load(path string, symbol string) (LoadedComponent, error) {
	client := goplugin.NewClient(&goplugin.ClientConfig{
		HandshakeConfig: l.handshake,
		Plugins:         l.plugins,
		Cmd:             newPluginCommand(path),
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("%w: %v", ErrLoadingError, err)
	}

	raw, err := rpcClient.Dispense(symbol)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("%w: %v", ErrLoadingError, err)
	}

	return &pluginComponent{client: client, component: raw}, nil
}

type pluginComponent struct {
	mu        sync.Mutex
	client    *goplugin.Client
	component any
	closed    bool
}

func (c *pluginComponent) Component() any { return c.component }

// Close releases the dispensed component reference, then kills the plugin
// client process — state and component released before the library — and
// is safe to call more than once.
func (c *pluginComponent) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.component = nil
	c.client.Kill()
	c.closed = true
	return nil
}

func newPluginCommand(path string) *exec.Cmd {
	return exec.Command(path)
}

var _ Loader = (*pluginLoader)(nil)
var _ LoadedComponent = (*pluginComponent)(nil)
