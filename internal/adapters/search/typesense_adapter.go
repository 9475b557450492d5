package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/repositories"
	tsclient "github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/clients/typesense"
)

const collectionName = tsclient.RequestsCollection

// TypesenseAdapter implements request search using Typesense
type TypesenseAdapter struct {
	client *tsclient.Client
}

// Ensure TypesenseAdapter implements RequestSearchRepository
var _ repositories.RequestSearchRepository = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// Index indexes a maintenance request
func (a *TypesenseAdapter) Index(ctx context.Context, req *entities.MaintenanceRequest) error {
	_, err := a.client.Client().Collection(collectionName).Documents().Upsert(ctx, buildRequestDocument(req))
	if err != nil {
		return fmt.Errorf("failed to index request: %w", err)
	}
	return nil
}

// Delete removes a request from the index
func (a *TypesenseAdapter) Delete(ctx context.Context, id string) error {
	_, err := a.client.Client().Collection(collectionName).Document(id).Delete(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete request from index: %w", err)
	}
	return nil
}

// Search returns matching request IDs in relevance order
func (a *TypesenseAdapter) Search(ctx context.Context, params repositories.RequestSearchParams) ([]string, error) {
	limit := params.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := strings.TrimSpace(params.Query)
	if query == "" {
		query = "*"
	}

	searchParams := &api.SearchCollectionParams{
		Q:       pointer.String(query),
		QueryBy: pointer.String("title,description,location_building,location_room,supporting_reasons"),
		SortBy:  pointer.String("_text_match:desc,created_at:desc"),
		PerPage: pointer.Int(limit),
	}
	if filter := buildFilter(params); filter != "" {
		searchParams.FilterBy = pointer.String(filter)
	}

	result, err := a.client.Client().Collection(collectionName).Documents().Search(ctx, searchParams)
	if err != nil {
		return nil, fmt.Errorf("failed to search requests: %w", err)
	}

	ids := []string{}
	if result.Hits == nil {
		return ids, nil
	}
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		if id, ok := (*hit.Document)["id"].(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func buildRequestDocument(req *entities.MaintenanceRequest) map[string]interface{} {
	doc := map[string]interface{}{
		"id":                req.ID,
		"title":             req.Title,
		"description":       req.Description,
		"category":          string(req.Category),
		"urgency":           string(req.Urgency),
		"status":            string(req.Status),
		"location_building": req.LocationBuilding,
		"requester_id":      req.RequesterID,
		"created_at":        req.CreatedAt.Unix(),
	}
	if req.SupportingReasons != nil {
		doc["supporting_reasons"] = *req.SupportingReasons
	}
	if req.LocationRoom != nil {
		doc["location_room"] = *req.LocationRoom
	}
	return doc
}

// buildFilter quotes values with backticks so multi-word enums like
// "In Progress" survive Typesense filter parsing.
func buildFilter(params repositories.RequestSearchParams) string {
	var clauses []string
	if params.Status != "" {
		clauses = append(clauses, fmt.Sprintf("status:=`%s`", params.Status))
	}
	if params.Category != "" {
		clauses = append(clauses, fmt.Sprintf("category:=`%s`", params.Category))
	}
	return strings.Join(clauses, " && ")
}
