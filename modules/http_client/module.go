package http_client

import (
	"context"
	"crypto/tls"
	"net/http"
	"reflect"
	"time"

	"github.com/conveyorci/conveyor/internal/ctxlog"
	"github.com/conveyorci/conveyor/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Doer is the contract this service type offers to templates. Templates that
// declare `uses { service_type = "http_client" }` receive an implementation
// of this interface.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Input defines the arguments for creating an http_client service.
type Input struct {
	Timeout  string `cv:"timeout"`
	Insecure bool   `cv:"insecure"`
}

// CreateClient is the 'create' handler for the service. It returns a live
// *http.Client that is shared across job instances.
func CreateClient(ctx context.Context, input *Input) (*http.Client, error) {
	logger := ctxlog.FromContext(ctx)

	timeout, err := time.ParseDuration(input.Timeout)
	if err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if input.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	logger.Debug("Creating shared HTTP client.", "timeout", timeout, "insecure", input.Insecure)
	return &http.Client{Timeout: timeout, Transport: transport}, nil
}

// DestroyClient is the 'destroy' handler for the service.
func DestroyClient(client *http.Client) error {
	client.CloseIdleConnections()
	return nil
}

// Register registers the service lifecycle handlers with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterServiceHandler("CreateHttpClient", &registry.RegisteredService{
		NewInput: func() any { return new(Input) },
		CreateFn: CreateClient,
	})
	r.RegisterServiceHandler("DestroyHttpClient", &registry.RegisteredService{
		DestroyFn: DestroyClient,
	})
	r.RegisterServiceInterface("http_client", reflect.TypeOf((*Doer)(nil)).Elem())
}
