package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/loupelabs/loupe/pkg/api"
	"github.com/loupelabs/loupe/pkg/catalog"
)

// resolveCollections decides which collections a query searches: the
// explicit collection when the request names one, the router's selection
// when routing is enabled, otherwise every collection in the catalog. An
// empty catalog falls back to the default collection. Routing failures
// fail open to searching everything.
func (e *Engine) resolveCollections(ctx context.Context, question, explicit string, useRouting bool) ([]string, api.Usage, error) {
	if explicit != "" {
		return []string{explicit}, api.Usage{}, nil
	}

	cols, err := e.catalog.List(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, api.Usage{}, ctx.Err()
		}
		slog.Warn("collection listing failed, using the default collection", "error", err)
		return []string{e.cfg.defaultCollection()}, api.Usage{}, nil
	}
	if len(cols) == 0 {
		return []string{e.cfg.defaultCollection()}, api.Usage{}, nil
	}

	names := collectionNames(cols)
	if !useRouting || len(cols) == 1 {
		return names, api.Usage{}, nil
	}

	selected, usage, err := e.routeCollections(ctx, question, cols)
	if err != nil {
		if ctx.Err() != nil {
			return nil, usage, ctx.Err()
		}
		slog.Warn("collection routing failed, searching all collections", "error", err)
		return names, usage, nil
	}
	return selected, usage, nil
}

// routeCollections asks the model which collections relate to the
// question. Collections without a description and the default collection
// are always searched regardless of the model's selection; an empty or
// unparseable selection falls open to all collections.
func (e *Engine) routeCollections(ctx context.Context, question string, cols []catalog.Collection) ([]string, api.Usage, error) {
	type collectionInfo struct {
		CollectionName        string `json:"collection_name"`
		CollectionDescription string `json:"collection_description"`
	}
	infos := make([]collectionInfo, len(cols))
	for i, c := range cols {
		infos[i] = collectionInfo{CollectionName: c.Name, CollectionDescription: c.Description}
	}
	infoJSON, err := json.Marshal(infos)
	if err != nil {
		return nil, api.Usage{}, err
	}

	resp, err := e.complete(ctx, e.completionRequest(routePrompt(question, string(infoJSON)), false))
	if err != nil {
		return nil, api.Usage{}, err
	}

	selected := make(map[string]bool)
	names, parseErr := parseStringArray(resp.Content)
	if parseErr != nil {
		slog.Warn("collection routing output unparseable, searching all collections", "error", parseErr)
		return collectionNames(cols), resp.Usage, nil
	}
	for _, n := range names {
		selected[routeKey(n)] = true
	}

	var out []string
	for _, c := range cols {
		if selected[routeKey(c.Name)] || c.Description == "" || c.Name == e.cfg.defaultCollection() {
			out = append(out, c.Name)
		}
	}
	if len(out) == 0 {
		return collectionNames(cols), resp.Usage, nil
	}
	return out, resp.Usage, nil
}

// routeKey canonicalizes a collection name for matching the model's
// selection against the catalog, tolerating case drift in model output.
func routeKey(name string) string {
	return strings.ToLower(api.NormalizeCollectionName(name))
}

func collectionNames(cols []catalog.Collection) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}
