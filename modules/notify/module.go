package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"

	"github.com/conveyorci/conveyor/internal/ctxlog"
	"github.com/conveyorci/conveyor/internal/registry"
	"github.com/conveyorci/conveyor/modules/http_client"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the notify template.
type Input struct {
	URL     string `cv:"url"`
	Message string `cv:"message"`
}

// Deps declares the services this template uses.
type Deps struct {
	Client http_client.Doer `cv:"client"`
}

// Output reports the status code of the webhook delivery.
type Output struct {
	Status int `cty:"status"`
}

// OnRunNotify is the handler for the 'notify' template's on_run lifecycle
// event. It posts a JSON payload to a webhook through the shared HTTP client.
func OnRunNotify(ctx context.Context, deps *Deps, input *Input) (*Output, error) {
	logger := ctxlog.FromContext(ctx)

	payload, err := json.Marshal(map[string]string{"message": input.Message})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, input.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := deps.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook delivery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &Output{Status: resp.StatusCode}, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	logger.Debug("Notification delivered.", "url", input.URL, "status", resp.StatusCode)
	return &Output{Status: resp.StatusCode}, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTemplate("OnRunNotify", &registry.RegisteredTemplate{
		NewInput:  func() any { return new(Input) },
		InputType: reflect.TypeOf(Input{}),
		NewDeps:   func() any { return new(Deps) },
		Fn:        OnRunNotify,
	})
}
