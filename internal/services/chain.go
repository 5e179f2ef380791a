package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/errgroup"

	"github.com/clumsystudios/rarity-tracker/internal/metrics"
)

const (
	chainDefaultTimeout = 30 * time.Second
	assetPageSize       = 2500

	// Bounded fan-out for page fetches; the public GraphQL endpoint throttles
	// beyond a handful of simultaneous queries.
	maxConcurrentPages = 4

	chainMaxAttempts = 3
	chainRetryDelay  = 2 * time.Second

	// Asset counts go stale as soon as the policy mints again.
	chainCountTTL = 15 * time.Minute
)

const metadataQuery = `
query metadataByPolicy($policy_id: Hash28Hex, $offset: Int) {
  transactions(where: {mint: {asset: {policyId: {_eq: $policy_id}}}},
  limit: 2500,
  offset: $offset) {
    metadata {
      value
    }
  }
}`

const assetCountQuery = `
query assetCount($policy_id: Hash28Hex) {
  assets_aggregate(where: { policyId: { _eq: $policy_id } }) {
    aggregate {
      count
    }
  }
}`

// RawAsset is one on-chain asset record as minted: a name and its metadata
// document.
type RawAsset struct {
	Name     string
	Metadata map[string]any
}

// ChainService reads mint metadata for a policy from a Cardano GraphQL
// endpoint.
type ChainService struct {
	client     *http.Client
	endpoint   string
	countCache *expirable.LRU[string, int]
}

func NewChainService(endpoint string) *ChainService {
	return &ChainService{
		client: &http.Client{
			Timeout: chainDefaultTimeout,
		},
		endpoint:   endpoint,
		countCache: expirable.NewLRU[string, int](64, nil, chainCountTTL),
	}
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type gqlMetadataResponse struct {
	Data struct {
		Transactions []struct {
			Metadata []struct {
				Value map[string]any `json:"value"`
			} `json:"metadata"`
		} `json:"transactions"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type gqlCountResponse struct {
	Data struct {
		AssetsAggregate struct {
			Aggregate struct {
				Count string `json:"count"`
			} `json:"aggregate"`
		} `json:"assets_aggregate"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// AssetCount returns the number of assets minted under a policy. Counts are
// cached per policy with a short TTL; a collection that mints more assets is
// picked up once the entry expires.
func (s *ChainService) AssetCount(ctx context.Context, policyID string) (int, error) {
	if count, ok := s.countCache.Get(policyID); ok {
		return count, nil
	}

	var resp gqlCountResponse
	err := s.post(ctx, assetCountQuery, map[string]any{"policy_id": policyID}, &resp)
	if err != nil {
		return 0, fmt.Errorf("fetching asset count for policy %s: %w", policyID, err)
	}
	if len(resp.Errors) > 0 {
		return 0, fmt.Errorf("asset count query failed: %s", resp.Errors[0].Message)
	}

	var count int
	fmt.Sscanf(resp.Data.AssetsAggregate.Aggregate.Count, "%d", &count)
	s.countCache.Add(policyID, count)
	return count, nil
}

// FetchAssets pulls every asset minted under a policy. Pages of 2500 mint
// transactions are fetched with bounded concurrency and merged in page order
// so the corpus keeps a stable first-seen ordering; duplicate names within
// the results are dropped, keeping the earliest.
func (s *ChainService) FetchAssets(ctx context.Context, policyID string) ([]RawAsset, error) {
	count, err := s.AssetCount(ctx, policyID)
	if err != nil {
		return nil, err
	}

	pages := (count + assetPageSize - 1) / assetPageSize
	pageResults := make([][]RawAsset, pages)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentPages)
	for page := 0; page < pages; page++ {
		g.Go(func() error {
			assets, _, err := s.fetchPage(gctx, policyID, page*assetPageSize)
			if err != nil {
				return err
			}
			pageResults[page] = assets
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// The count only estimates how far the mint transactions extend: it can
	// be stale, and burned-and-reminted policies have more mint transactions
	// than live assets. Keep paging past the estimate until a page comes
	// back with no transactions.
	for offset := pages * assetPageSize; ; offset += assetPageSize {
		assets, txCount, err := s.fetchPage(ctx, policyID, offset)
		if err != nil {
			return nil, err
		}
		if txCount == 0 {
			break
		}
		pageResults = append(pageResults, assets)
	}

	seen := make(map[string]bool)
	var assets []RawAsset
	for _, page := range pageResults {
		for _, asset := range page {
			if seen[asset.Name] {
				continue
			}
			seen[asset.Name] = true
			assets = append(assets, asset)
		}
	}
	log.Printf("Chain service: fetched %d assets for policy %s", len(assets), policyID)
	return assets, nil
}

// fetchPage returns the assets on one page plus the raw transaction count,
// which tells the caller whether there are further pages.
func (s *ChainService) fetchPage(ctx context.Context, policyID string, offset int) ([]RawAsset, int, error) {
	var resp gqlMetadataResponse
	err := s.post(ctx, metadataQuery, map[string]any{"policy_id": policyID, "offset": offset}, &resp)
	if err != nil {
		return nil, 0, fmt.Errorf("fetching metadata page at offset %d: %w", offset, err)
	}
	if len(resp.Errors) > 0 {
		return nil, 0, fmt.Errorf("metadata query failed: %s", resp.Errors[0].Message)
	}

	var assets []RawAsset
	for _, tx := range resp.Data.Transactions {
		if len(tx.Metadata) == 0 {
			continue
		}
		hits, ok := tx.Metadata[0].Value[policyID]
		if !ok {
			continue
		}
		switch v := hits.(type) {
		case []any:
			for _, hit := range v {
				if m, ok := hit.(map[string]any); ok {
					assets = append(assets, splitAssetRecord(m)...)
				}
			}
		case map[string]any:
			assets = append(assets, splitAssetRecord(v)...)
		}
	}
	return assets, len(resp.Data.Transactions), nil
}

// splitAssetRecord unpacks a mint record: each key is an asset name, each
// value that asset's metadata document.
func splitAssetRecord(record map[string]any) []RawAsset {
	var assets []RawAsset
	for name, metadata := range record {
		doc, ok := metadata.(map[string]any)
		if !ok {
			continue
		}
		assets = append(assets, RawAsset{Name: name, Metadata: doc})
	}
	return assets
}

// post sends a GraphQL request, retrying transient failures a fixed number
// of times before surfacing a terminal error.
func (s *ChainService) post(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(gqlRequest{Query: query, Variables: variables})
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= chainMaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(chainRetryDelay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, "POST", s.endpoint, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		metrics.ChainRequestsTotal.Inc()
		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("graphql endpoint returned status %d", resp.StatusCode)
			continue
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("decoding graphql response: %w", err)
			continue
		}
		return nil
	}
	return fmt.Errorf("graphql request failed after %d attempts: %w", chainMaxAttempts, lastErr)
}
