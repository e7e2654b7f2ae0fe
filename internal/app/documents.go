package app

import (
	"context"
	"fmt"
	"net/http"

	"thea/api/internal/docpath"
	"thea/api/internal/files"
	"thea/api/internal/util"
	"thea/api/internal/workflow"
)

type RequestDocumentInput struct {
	CustomerID  string     `json:"customerId"`
	ProjectID   string     `json:"projectId"`
	Name        string     `json:"name"`
	DueDate     string     `json:"dueDate"`
	Description string     `json:"description"`
	RequestedBy TeamMember `json:"requestedBy"`
	RequestedOf TeamMember `json:"requestedOf"`
}

func documentPath(docReqID string) string {
	return docpath.Join("dataroom", docReqID)
}

func (s *Service) filesConfigured() error {
	if s.files == nil {
		return domainError(http.StatusServiceUnavailable, "FILES_UNAVAILABLE", "Object storage is not configured", nil)
	}
	return nil
}

// RequestDocument records a new dataroom document request. Returns the new
// request's ID.
func (s *Service) RequestDocument(ctx context.Context, token string, in RequestDocumentInput) (string, error) {
	if in.Name == "" {
		return "", validationFailed("name is required")
	}
	if err := s.ensureProject(ctx, in.CustomerID, in.ProjectID); err != nil {
		return "", err
	}

	docReqID := util.NewID()
	request := map[string]any{
		"status":      "requested",
		"requestedOf": in.RequestedOf.doc(),
		"requestedBy": in.RequestedBy.doc(),
		"docReqId":    docReqID,
		"name":        in.Name,
		"dueDate":     in.DueDate,
		"description": in.Description,
	}

	set := map[string]any{documentPath(docReqID): request}
	if err := s.store.Update(ctx, s.projectsTable(in.CustomerID), projectKey(in.CustomerID, in.ProjectID), set, nil); err != nil {
		return "", storeError(err)
	}

	s.audit(ctx, token, in.CustomerID, workflow.ActionCreate, docReqID, in.ProjectID,
		[]string{fmt.Sprintf("Created document request %s", docReqID)})
	return docReqID, nil
}

// DocumentDetails reads one document request.
func (s *Service) DocumentDetails(ctx context.Context, customerID, projectID, docReqID string) (map[string]any, error) {
	path := documentPath(docReqID)
	doc, err := s.store.Get(ctx, s.projectsTable(customerID), projectKey(customerID, projectID), []string{path})
	if err != nil {
		return nil, storeError(err)
	}
	request, ok := docpath.GetMap(doc, path)
	if !ok {
		return nil, notFound("Invalid document request ID")
	}
	return request, nil
}

// DocumentsOverview lists the project's document requests.
func (s *Service) DocumentsOverview(ctx context.Context, customerID, projectID string) ([]map[string]any, error) {
	doc, err := s.store.Get(ctx, s.projectsTable(customerID), projectKey(customerID, projectID), []string{"dataroom"})
	if err != nil {
		return nil, storeError(err)
	}
	return mapValues(doc["dataroom"]), nil
}

// DocumentUpdate is one entry of a document request bulk update.
type DocumentUpdate struct {
	DocReqID string         `json:"docReqId"`
	Fields   map[string]any `json:"fields"`
}

// UpdateDocumentRequests applies independent partial updates and classifies
// the batch outcome.
func (s *Service) UpdateDocumentRequests(ctx context.Context, token, customerID, projectID string, updates []DocumentUpdate) (map[string]any, int, error) {
	items := make([]batchItem, 0, len(updates))
	for _, update := range updates {
		if update.DocReqID == "" {
			return nil, 0, validationFailed("docReqId is required")
		}
		items = append(items, batchItem{
			id:     update.DocReqID,
			path:   documentPath(update.DocReqID),
			fields: update.Fields,
		})
	}
	outcome, err := s.batchUpdate(ctx, token, customerID, projectID, items, "lastUpdate")
	if err != nil {
		return nil, 0, err
	}
	return outcome.Response(), outcome.Status(), nil
}

// DocumentDownloadURL signs a time-limited download link for one stored
// object version. The customer ID doubles as the bucket name.
func (s *Service) DocumentDownloadURL(ctx context.Context, customerID, projectID, itemID, filename, versionID string) (string, error) {
	if err := s.filesConfigured(); err != nil {
		return "", err
	}
	if filename == "" {
		return "", validationFailed("filename is required")
	}
	url, err := s.files.DownloadURL(ctx, customerID, projectID, itemID, filename, versionID)
	if err != nil {
		return "", domainError(http.StatusInternalServerError, "FILES_FAILURE", "Could not sign download URL", nil)
	}
	return url, nil
}

// DocumentUploadURLs signs upload links for each accepted filename and audits
// one Add per accepted file. Rejected extensions come back without a URL.
func (s *Service) DocumentUploadURLs(ctx context.Context, token, customerID, projectID, itemID string, filenames []string) ([]files.UploadGrant, error) {
	if err := s.filesConfigured(); err != nil {
		return nil, err
	}
	if len(filenames) == 0 {
		return nil, validationFailed("no filenames given")
	}

	grants, err := s.files.UploadURLs(ctx, customerID, projectID, itemID, filenames)
	if err != nil {
		return nil, domainError(http.StatusInternalServerError, "FILES_FAILURE", "Could not sign upload URLs", nil)
	}

	for _, grant := range grants {
		if !grant.AcceptedFileFormat {
			continue
		}
		s.audit(ctx, token, customerID, workflow.ActionAdd, grant.SecuredName, projectID,
			[]string{fmt.Sprintf("Uploaded document %s to %s", grant.OriginalName, customerID)})
	}
	return grants, nil
}

// DataroomContents lists the stored object versions under one dataroom item.
func (s *Service) DataroomContents(ctx context.Context, customerID, projectID, itemID string) ([]files.Object, error) {
	if err := s.filesConfigured(); err != nil {
		return nil, err
	}
	objects, err := s.files.DataroomContents(ctx, customerID, projectID, itemID)
	if err != nil {
		return nil, domainError(http.StatusInternalServerError, "FILES_FAILURE", "Could not list dataroom contents", nil)
	}
	return objects, nil
}
