package http

import (
	"context"
	"net/http"

	"gitlab.com/timkado/api/site-freshness-service/internal/application"
	"gitlab.com/timkado/api/site-freshness-service/internal/domain"
	"gitlab.com/timkado/api/site-freshness-service/pkg/contextkeys"
)

// ListContentHandler serves GET /api/content/{collection}.
func ListContentHandler(svc *application.ContentService, logger domain.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		collection := r.PathValue("collection")
		items, err := svc.List(r.Context(), collection)
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

// GetContentHandler serves GET /api/content/{collection}/{id}.
func GetContentHandler(svc *application.ContentService, logger domain.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		item, err := svc.Get(r.Context(), r.PathValue("collection"), id)
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

// ContentRequest is the admin payload for creating or replacing an item.
type ContentRequest struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	Published *bool  `json:"published,omitempty"`
	SortOrder int    `json:"sort_order"`
}

func (req ContentRequest) item(collection string) domain.ContentItem {
	published := true
	if req.Published != nil {
		published = *req.Published
	}
	return domain.ContentItem{
		Collection: collection,
		Title:      req.Title,
		Body:       req.Body,
		Published:  published,
		SortOrder:  req.SortOrder,
	}
}

// CreateContentHandler serves POST /admin/content/{collection}.
func CreateContentHandler(svc *application.ContentService, logger domain.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ContentRequest
		if !decodeBody(w, r, logger, &req) {
			return
		}
		collection := r.PathValue("collection")
		created, err := svc.Create(context.WithValue(r.Context(), contextkeys.CollectionKey, collection), req.item(collection))
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

// UpdateContentHandler serves PUT /admin/content/{collection}/{id}.
func UpdateContentHandler(svc *application.ContentService, logger domain.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var req ContentRequest
		if !decodeBody(w, r, logger, &req) {
			return
		}
		collection := r.PathValue("collection")
		item := req.item(collection)
		item.ID = id
		updated, err := svc.Update(context.WithValue(r.Context(), contextkeys.CollectionKey, collection), item)
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

// DeleteContentHandler serves DELETE /admin/content/{collection}/{id}.
func DeleteContentHandler(svc *application.ContentService, logger domain.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		collection := r.PathValue("collection")
		if err := svc.Delete(context.WithValue(r.Context(), contextkeys.CollectionKey, collection), collection, id); err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// SubmissionRequest is the public form payload.
type SubmissionRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// SubmitHandler serves POST /api/submissions/{section}.
func SubmitHandler(svc *application.SubmissionService, logger domain.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SubmissionRequest
		if !decodeBody(w, r, logger, &req) {
			return
		}
		sub, err := svc.Submit(r.Context(), domain.Submission{
			Section: domain.Section(r.PathValue("section")),
			Name:    req.Name,
			Email:   req.Email,
			Phone:   req.Phone,
			Subject: req.Subject,
			Body:    req.Body,
		})
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	}
}
