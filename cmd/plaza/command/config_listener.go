package command

import (
	"fmt"
	"net"
	"strings"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-plaza/internal/listener"
)

type ListenerConfig struct {
	Address        string   `json:"address" jsonschema:"description=host:port to bind; e.g. :8080"`
	Path           string   `json:"path,omitempty" jsonschema:"description=Websocket upgrade path; default /ws"`
	AllowedOrigins []string `json:"allowed_origins,omitempty"`
}

func (cl *ListenerConfig) validate() error {
	el := errors.NewErrorList()

	if cl.Address == "" {
		el.Add(fmt.Errorf("address is required"))
	} else if _, _, err := net.SplitHostPort(cl.Address); err != nil {
		el.Add(fmt.Errorf("invalid address %q: %w", cl.Address, err))
	}
	if cl.Path != "" && !strings.HasPrefix(cl.Path, "/") {
		el.Add(fmt.Errorf("path must start with /"))
	}

	return el.Err()
}

func (cl *ListenerConfig) BuildListener(cm *listener.ConnectionManager, opts ...listener.WebsocketListenerOpt) *listener.WebsocketListener {
	opts = append(opts, listener.WithPath(cl.Path), listener.WithAllowedOrigins(cl.AllowedOrigins...))
	return listener.NewWebsocketListener(cl.Address, cm, opts...)
}
