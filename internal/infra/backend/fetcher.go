package backend

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"mcprelay/internal/domain"
)

// Fetcher performs startup discovery against the backend. It never mutates
// what it fetches; definitions are read-only for the process lifetime.
type Fetcher struct {
	client *Client
	logger *zap.Logger
}

func NewFetcher(client *Client, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		client: client,
		logger: logger.Named("fetcher"),
	}
}

// Discovery is the result of the primary definitions fetch. Scoped reports
// whether the target-server restriction survived; it flips to false when the
// configured target was not found and the fetcher fell back to all servers.
type Discovery struct {
	Servers []domain.ServerDefinition
	Scoped  bool
}

// FetchDefinitions returns the set of server definitions to expose. With a
// target id it fetches only that server; when the backend has no match it
// falls back to the unscoped fetch of all accessible servers. Transport and
// auth failures are fatal FETCH_FAILURE errors.
func (f *Fetcher) FetchDefinitions(ctx context.Context, targetServerID string) (Discovery, error) {
	const op = "backend.FetchDefinitions"

	if targetServerID != "" {
		servers, err := f.client.ListServers(ctx, targetServerID)
		switch {
		case err != nil:
			f.logger.Warn("scoped definitions fetch failed, falling back to all servers",
				zap.String("targetServerId", targetServerID),
				zap.Error(targetNotFound(op, targetServerID, err)),
			)
		case len(servers) == 0:
			f.logger.Warn("target server not found, falling back to all servers",
				zap.String("targetServerId", targetServerID),
			)
		default:
			return Discovery{Servers: servers, Scoped: true}, nil
		}
	}

	servers, err := f.client.ListServers(ctx, "")
	if err != nil {
		return Discovery{}, fetchFailure(op, err)
	}
	return Discovery{Servers: servers, Scoped: false}, nil
}

// FetchResources fetches the resource definitions for one server. Failures
// degrade to an empty list; the resources category simply stays empty.
func (f *Fetcher) FetchResources(ctx context.Context, serverID string) []domain.ResourceDefinition {
	resources, err := f.client.ListResources(ctx, serverID)
	if err != nil {
		f.logger.Warn("resources fetch failed, continuing without resources",
			zap.String("serverId", serverID),
			zap.Error(err),
		)
		return nil
	}
	return resources
}

// FetchPrompts fetches the prompt definitions for one server. Failures
// degrade to an empty list.
func (f *Fetcher) FetchPrompts(ctx context.Context, serverID string) []domain.PromptDefinition {
	prompts, err := f.client.ListPrompts(ctx, serverID)
	if err != nil {
		f.logger.Warn("prompts fetch failed, continuing without prompts",
			zap.String("serverId", serverID),
			zap.Error(err),
		)
		return nil
	}
	return prompts
}

func targetNotFound(op, targetServerID string, cause error) error {
	return domain.E(domain.CodeTargetNotFound, op,
		fmt.Sprintf("target server %q not available", targetServerID), cause)
}

func fetchFailure(op string, cause error) error {
	if callErr, ok := cause.(*CallError); ok && callErr.Kind == ErrHTTPStatus {
		return domain.E(domain.CodeFetchFailure, op,
			fmt.Sprintf("discovery request rejected with HTTP %d: %s", callErr.Status, callErr.Detail), cause)
	}
	return domain.Wrap(domain.CodeFetchFailure, op, cause)
}
