package ghpages

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/maktabahmedia/ZipToRepo/analysis"
	"github.com/maktabahmedia/ZipToRepo/deploy"
	"github.com/maktabahmedia/ZipToRepo/internal/stage"
	"github.com/maktabahmedia/ZipToRepo/patch"
)

// Step names emitted on the event sink, in protocol order.
const (
	StepAuthenticating = "Authenticating"
	StepRepository     = "Preparing repository"
	StepFiles          = "Preparing files"
	StepBlobs          = "Uploading files"
	StepTree           = "Building file tree"
	StepCommit         = "Creating commit"
	StepRef            = "Updating branch"
	StepPages          = "Enabling Pages"
	StepDone           = "Done"
)

// Orchestrator publishes to the Git-object backend. Each deployment owns
// its own in-memory state; create one orchestrator per deployment when
// running deployments concurrently.
type Orchestrator struct {
	clientOpts []ClientOption
}

// New creates a Git-backend orchestrator. The options are applied to the
// API client constructed for each deployment from the caller's credential.
func New(opts ...ClientOption) *Orchestrator {
	return &Orchestrator{clientOpts: opts}
}

// Deploy runs the publish state machine:
// Authenticating → RepositoryReady → FilesPrepared → BlobsUploaded →
// TreeBuilt → CommitCreated → RefUpdated → PagesEnabled → Done.
// It returns the final public URL, or an error after emitting a terminal
// error event.
func (o *Orchestrator) Deploy(
	ctx context.Context,
	a analysis.ProjectAnalysis,
	patches []patch.Patch,
	opts deploy.Options,
) (string, error) {
	sink := opts.Sink
	if err := opts.Validate(); err != nil {
		return "", sink.Fail(StepAuthenticating, err)
	}
	client := NewClient(opts.Credential, o.clientOpts...)

	// Authenticating.
	sink.Info(StepAuthenticating, "")
	owner, err := client.AuthenticatedUser(ctx)
	if err != nil {
		return "", sink.Fail(StepAuthenticating, err)
	}
	sink.Success(StepAuthenticating, "authenticated as "+owner)

	// RepositoryReady: a name conflict means the repository already
	// exists, which is a success path.
	sink.Info(StepRepository, opts.Target)
	repo, err := client.CreateRepo(ctx, opts.Target, opts.Description, opts.Private)
	if deploy.IsConflict(err) {
		repo, err = client.GetRepo(ctx, owner, opts.Target)
		if err == nil {
			sink.Info(StepRepository, "repository already exists, reusing it")
		}
	}
	if err != nil {
		return "", sink.Fail(StepRepository, err)
	}

	// Prior state is part of repository preparation: it decides between an
	// incremental tree and a fresh one.
	parentSHA, baseTree, err := o.priorState(ctx, client, owner, repo)
	if err != nil {
		return "", sink.Fail(StepRepository, err)
	}
	sink.Success(StepRepository, fmt.Sprintf("repository %s/%s on branch %s", owner, repo.Name, repo.DefaultBranch))

	// FilesPrepared.
	sink.Info(StepFiles, "")
	files, err := stage.Prepare(a, patches, opts.CustomDomain)
	if err != nil {
		return "", sink.Fail(StepFiles, err)
	}
	sink.Success(StepFiles, fmt.Sprintf("%d files to publish", len(files)))

	// BlobsUploaded.
	sink.Info(StepBlobs, "")
	entries, err := o.uploadBlobs(ctx, client, owner, repo.Name, files, sink)
	if err != nil {
		return "", sink.Fail(StepBlobs, err)
	}
	sink.Success(StepBlobs, fmt.Sprintf("%d blobs uploaded", len(entries)))

	// TreeBuilt.
	sink.Info(StepTree, "")
	treeSHA, err := client.CreateTree(ctx, owner, repo.Name, entries, baseTree)
	if err != nil {
		return "", sink.Fail(StepTree, err)
	}
	sink.Success(StepTree, "")

	// CommitCreated.
	message := opts.Description
	if message == "" {
		message = "Deploy " + opts.Target
	}
	sink.Info(StepCommit, "")
	commitSHA, err := client.CreateCommit(ctx, owner, repo.Name, message, treeSHA, parentSHA)
	if err != nil {
		return "", sink.Fail(StepCommit, err)
	}
	sink.Success(StepCommit, commitSHA)

	// RefUpdated: history is intentionally overwritten; this is a
	// full-replace publish model.
	sink.Info(StepRef, "")
	if err := client.UpdateRef(ctx, owner, repo.Name, repo.DefaultBranch, commitSHA, parentSHA == ""); err != nil {
		return "", sink.Fail(StepRef, err)
	}
	sink.Success(StepRef, repo.DefaultBranch)

	// PagesEnabled: an already-enabled conflict is a success; the URL
	// read-back is best-effort and its failure is swallowed.
	sink.Info(StepPages, "")
	url, err := o.enablePages(ctx, client, owner, repo, opts, sink)
	if err != nil {
		return "", sink.Fail(StepPages, err)
	}
	sink.Success(StepPages, url)

	sink.Success(StepDone, url)
	return url, nil
}

// priorState reads the branch ref to decide whether the publish builds on
// an existing commit. A missing ref is the empty-repository path, not an
// error.
func (o *Orchestrator) priorState(ctx context.Context, client *Client, owner string, repo Repo) (parentSHA, baseTree string, err error) {
	sha, err := client.GetRefSHA(ctx, owner, repo.Name, repo.DefaultBranch)
	if deploy.IsNotFound(err) {
		return "", "", nil
	}
	if err != nil {
		return "", "", err
	}
	tree, err := client.GetCommitTree(ctx, owner, repo.Name, sha)
	if err != nil {
		return "", "", err
	}
	return sha, tree, nil
}

// uploadBlobs pushes every file's content object in fixed-width concurrent
// batches with per-file retry, emitting a progress event after each batch.
// The blob SHA for each tree entry is computed locally with git object
// hashing and verified against the SHA the server reports.
func (o *Orchestrator) uploadBlobs(
	ctx context.Context,
	client *Client,
	owner, repo string,
	files []stage.File,
	sink deploy.Sink,
) ([]TreeEntry, error) {
	entries := make([]TreeEntry, len(files))
	var mu sync.Mutex

	cfg := deploy.BatchConfig{
		AfterBatch: func(done, total int) {
			percent := done * 100 / total
			sink.Progress(StepBlobs, fmt.Sprintf("%d/%d files", done, total), percent)
		},
	}

	indexed := make([]int, len(files))
	for i := range indexed {
		indexed[i] = i
	}

	err := deploy.RunBatches(ctx, indexed, cfg, func(ctx context.Context, i int) error {
		f := files[i]
		localSHA := plumbing.ComputeHash(plumbing.BlobObject, f.Data).String()

		sha, err := client.CreateBlob(ctx, owner, repo, f.Data)
		if err != nil {
			return err
		}
		if sha != localSHA {
			return fmt.Errorf("ghpages: blob %s: server hash %s does not match local %s", f.Path, sha, localSHA)
		}

		mu.Lock()
		entries[i] = TreeEntry{Path: f.Path, Mode: "100644", Type: "blob", SHA: sha}
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// enablePages turns hosting on and resolves the public URL. Conflicts mean
// hosting was already enabled; the read-back failure falls through to the
// derived URL.
func (o *Orchestrator) enablePages(ctx context.Context, client *Client, owner string, repo Repo, opts deploy.Options, sink deploy.Sink) (string, error) {
	err := client.EnablePages(ctx, owner, repo.Name, repo.DefaultBranch)
	if deploy.IsConflict(err) {
		sink.Info(StepPages, "Pages already enabled")
		err = nil
	}
	if err != nil {
		return "", err
	}

	if url, readErr := client.PagesURL(ctx, owner, repo.Name); readErr == nil && url != "" {
		return url, nil
	}
	if opts.CustomDomain != "" {
		return "https://" + opts.CustomDomain + "/", nil
	}
	return fmt.Sprintf("https://%s.github.io/%s/", owner, repo.Name), nil
}
