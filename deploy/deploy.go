// Package deploy defines the deployment contract shared by the hosting
// backends: the orchestrator capability, the event-sink observability
// surface, the error taxonomy, and the batched-retry upload primitive both
// backends run their transfers through.
package deploy

import (
	"context"
	"errors"

	"github.com/maktabahmedia/ZipToRepo/analysis"
	"github.com/maktabahmedia/ZipToRepo/patch"
)

// Orchestrator drives a backend-specific publish protocol over the final
// file manifest. Implementations own their in-memory state exclusively; run
// one instance per concurrent deployment.
type Orchestrator interface {
	// Deploy publishes the analyzed files plus patches and returns the
	// final public URL. Every failure path emits exactly one terminal
	// Error event on the sink before the error is returned.
	Deploy(ctx context.Context, a analysis.ProjectAnalysis, patches []patch.Patch, opts Options) (string, error)
}

// Options carries the caller-supplied deployment inputs. Credential and
// Target are required; the rest are optional.
type Options struct {
	// Credential authenticates against the hosting backend.
	Credential string

	// Target is the deployment target identifier: the repository name for
	// the Git backend, the site identifier for the content-addressed one.
	Target string

	// Description is free text attached to the deployment where the
	// backend supports it.
	Description string

	// Private requests a non-public target where the backend supports it.
	Private bool

	// CustomDomain, when set, is published alongside the files as the
	// domain the site should be served from.
	CustomDomain string

	// Sink receives progress events. May be nil.
	Sink Sink
}

// Validate checks the inputs that must be present before any network call
// is attempted.
func (o Options) Validate() error {
	if o.Credential == "" {
		return ErrNoCredential
	}
	if o.Target == "" {
		return ErrNoTarget
	}
	return nil
}

// Configuration errors: missing required input, failed fast with no network
// call attempted.
var (
	ErrNoCredential = errors.New("deploy: credential is required")
	ErrNoTarget     = errors.New("deploy: target name is required")
)
