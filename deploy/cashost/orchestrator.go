package cashost

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/maktabahmedia/ZipToRepo/analysis"
	"github.com/maktabahmedia/ZipToRepo/deploy"
	"github.com/maktabahmedia/ZipToRepo/internal/stage"
	"github.com/maktabahmedia/ZipToRepo/patch"
)

// Step names emitted on the event sink, in protocol order.
const (
	StepVersion  = "Creating version"
	StepHashes   = "Computing file hashes"
	StepRegister = "Registering files"
	StepUpload   = "Uploading files"
	StepFinalize = "Finalizing version"
	StepRelease  = "Releasing"
	StepDone     = "Done"
)

// Orchestrator publishes to the content-addressed backend. Each deployment
// owns its own in-memory state; create one orchestrator per deployment when
// running deployments concurrently.
type Orchestrator struct {
	baseURL      string
	cacheControl string
	clientOpts   []ClientOption
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithCacheControl overrides the cache policy applied to served paths.
func WithCacheControl(policy string) Option {
	return func(o *Orchestrator) { o.cacheControl = policy }
}

// WithClientOptions forwards options to the API client constructed per
// deployment.
func WithClientOptions(opts ...ClientOption) Option {
	return func(o *Orchestrator) { o.clientOpts = opts }
}

// New creates a content-addressed-backend orchestrator for the given API
// endpoint.
func New(baseURL string, opts ...Option) *Orchestrator {
	o := &Orchestrator{baseURL: baseURL, cacheControl: DefaultCacheControl}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// hashIndex holds the two content-addressing views of the upload set.
type hashIndex struct {
	byPath map[string]string // path → content hash
	byHash map[string][]byte // content hash → bytes
	// pathForHash remembers one path per hash for content-type detection.
	pathForHash map[string]string
}

// Deploy runs the publish state machine:
// VersionCreated → HashesComputed → FilesRegistered →
// RequiredFilesUploaded → Finalized → Released → Done.
// It returns the released URL, or an error after emitting a terminal error
// event.
func (o *Orchestrator) Deploy(
	ctx context.Context,
	a analysis.ProjectAnalysis,
	patches []patch.Patch,
	opts deploy.Options,
) (string, error) {
	sink := opts.Sink
	if err := opts.Validate(); err != nil {
		return "", sink.Fail(StepVersion, err)
	}
	client := NewClient(o.baseURL, opts.Credential, o.clientOpts...)

	// VersionCreated.
	sink.Info(StepVersion, opts.Target)
	versionID, err := client.CreateVersion(ctx, opts.Target, o.cacheControl)
	if err != nil {
		return "", sink.Fail(StepVersion, err)
	}
	sink.Success(StepVersion, versionID)

	// HashesComputed.
	sink.Info(StepHashes, "")
	files, err := stage.Prepare(a, patches, opts.CustomDomain)
	if err != nil {
		return "", sink.Fail(StepHashes, err)
	}
	index := buildIndex(files)
	sink.Success(StepHashes, fmt.Sprintf("%d files hashed", len(files)))

	// FilesRegistered: the host answers with the hashes it does not
	// already hold.
	sink.Info(StepRegister, "")
	reg, err := client.RegisterFiles(ctx, versionID, index.byPath)
	if err != nil {
		return "", sink.Fail(StepRegister, err)
	}
	sink.Success(StepRegister, fmt.Sprintf("%d of %d objects required", len(reg.Required), len(index.byHash)))

	// RequiredFilesUploaded.
	if len(reg.Required) == 0 {
		sink.Info(StepUpload, "all files already exist on the host; nothing to upload")
	} else {
		sink.Info(StepUpload, "")
		if err := o.uploadRequired(ctx, client, index, reg, sink); err != nil {
			return "", sink.Fail(StepUpload, err)
		}
		sink.Success(StepUpload, fmt.Sprintf("%d objects uploaded", len(reg.Required)))
	}

	// Finalized, strictly before release.
	sink.Info(StepFinalize, "")
	if err := client.FinalizeVersion(ctx, versionID); err != nil {
		return "", sink.Fail(StepFinalize, err)
	}
	sink.Success(StepFinalize, "")

	// Released: the version becomes the live deployment.
	sink.Info(StepRelease, "")
	url, err := client.CreateRelease(ctx, opts.Target, versionID)
	if err != nil {
		return "", sink.Fail(StepRelease, err)
	}
	sink.Success(StepRelease, url)

	sink.Success(StepDone, url)
	return url, nil
}

// buildIndex computes the content hash of every file and builds the
// path→hash and hash→bytes indexes used for deduplication.
func buildIndex(files []stage.File) hashIndex {
	idx := hashIndex{
		byPath:      make(map[string]string, len(files)),
		byHash:      make(map[string][]byte, len(files)),
		pathForHash: make(map[string]string, len(files)),
	}
	for _, f := range files {
		sum := sha256.Sum256(f.Data)
		h := hex.EncodeToString(sum[:])
		idx.byPath["/"+f.Path] = h
		if _, ok := idx.byHash[h]; !ok {
			idx.byHash[h] = f.Data
			idx.pathForHash[h] = f.Path
		}
	}
	return idx
}

// uploadRequired pushes only the host-required objects, in fixed-width
// concurrent batches with per-object retry, emitting a progress event after
// each batch.
func (o *Orchestrator) uploadRequired(
	ctx context.Context,
	client *Client,
	index hashIndex,
	reg RegisterResult,
	sink deploy.Sink,
) error {
	cfg := deploy.BatchConfig{
		AfterBatch: func(done, total int) {
			percent := done * 100 / total
			sink.Progress(StepUpload, fmt.Sprintf("%d/%d objects", done, total), percent)
		},
	}

	return deploy.RunBatches(ctx, reg.Required, cfg, func(ctx context.Context, hash string) error {
		data, ok := index.byHash[hash]
		if !ok {
			return fmt.Errorf("cashost: host requires unknown hash %s", hash)
		}
		uploadURL, ok := reg.UploadURLs[hash]
		if !ok {
			return fmt.Errorf("cashost: no upload URL for required hash %s", hash)
		}
		return client.UploadObject(ctx, uploadURL, index.pathForHash[hash], data)
	})
}
