package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/listenupapp/catalog-server/internal/errors"
	"github.com/listenupapp/catalog-server/internal/http/response"
	"github.com/listenupapp/catalog-server/internal/importer"
	"github.com/listenupapp/catalog-server/internal/service"
)

// multipartMemory is how much of a multipart form is held in memory before
// spilling to disk.
const multipartMemory = 8 << 20

func (s *Server) registerImportRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listImports",
		Method:      http.MethodGet,
		Path:        "/api/v1/imports",
		Summary:     "List imports",
		Description: "Returns archived import reports, newest first",
		Tags:        []string{"Imports"},
	}, s.handleListImports)

	huma.Register(s.api, huma.Operation{
		OperationID: "getImport",
		Method:      http.MethodGet,
		Path:        "/api/v1/imports/{id}",
		Summary:     "Get import",
		Description: "Returns one archived import report with its details",
		Tags:        []string{"Imports"},
	}, s.handleGetImport)
}

// ListImportsInput contains pagination parameters.
type ListImportsInput struct {
	Limit  int `query:"limit" default:"20" minimum:"1" maximum:"200" doc:"Reports per page"`
	Offset int `query:"offset" minimum:"0" doc:"Reports to skip"`
}

// ListImportsOutput wraps the report list for Huma.
type ListImportsOutput struct {
	Body *service.ReportList
}

// ImportIDInput identifies an import by path.
type ImportIDInput struct {
	ID string `path:"id" doc:"Import ID"`
}

// ImportOutput wraps a report for Huma.
type ImportOutput struct {
	Body *importer.Report
}

func (s *Server) handleListImports(ctx context.Context, input *ListImportsInput) (*ListImportsOutput, error) {
	list, err := s.services.Imports.ListReports(ctx, input.Limit, input.Offset)
	if err != nil {
		return nil, err
	}
	return &ListImportsOutput{Body: list}, nil
}

func (s *Server) handleGetImport(ctx context.Context, input *ImportIDInput) (*ImportOutput, error) {
	report, err := s.services.Imports.GetReport(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &ImportOutput{Body: report}, nil
}

// handleValidateUpload analyzes the header row of an uploaded spreadsheet.
func (s *Server) handleValidateUpload(w http.ResponseWriter, r *http.Request) {
	path, _, ok := s.receiveUpload(w, r)
	if !ok {
		return
	}
	defer os.Remove(path)

	analysis, err := s.services.Imports.ValidateHeaders(r.Context(), path)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, analysis, s.logger)
}

// handleImportUpload imports every row of an uploaded spreadsheet.
func (s *Server) handleImportUpload(w http.ResponseWriter, r *http.Request) {
	path, fileName, ok := s.receiveUpload(w, r)
	if !ok {
		return
	}
	defer os.Remove(path)

	req, err := s.importRequest(r, path, fileName)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	report, err := s.services.Imports.ImportFile(r.Context(), req)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	s.logger.Info("import finished",
		"import_id", report.ID,
		"file", fileName,
		"total", report.Stats.Total,
		"errors", report.Stats.Errors,
	)
	response.Success(w, report, s.logger)
}

// receiveUpload stores the multipart "file" field on disk. On failure the
// response has been written and ok is false.
func (s *Server) receiveUpload(w http.ResponseWriter, r *http.Request) (path, fileName string, ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(w, http.StatusRequestEntityTooLarge, domainerrors.CodeValidation,
				fmt.Sprintf("file exceeds %d bytes", s.opts.MaxUploadBytes), nil, s.logger)
			return "", "", false
		}
		response.BadRequest(w, "expected a multipart form", s.logger)
		return "", "", false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "file is required", s.logger)
		return "", "", false
	}
	defer file.Close()

	fileName = filepath.Base(header.Filename)
	ext := strings.ToLower(filepath.Ext(fileName))

	dir := s.opts.UploadDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		response.HandleError(w, fmt.Errorf("create upload dir: %w", err), s.logger)
		return "", "", false
	}

	tmp, err := os.CreateTemp(dir, "upload-*"+ext)
	if err != nil {
		response.HandleError(w, fmt.Errorf("create upload file: %w", err), s.logger)
		return "", "", false
	}
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		response.HandleError(w, fmt.Errorf("save upload: %w", err), s.logger)
		return "", "", false
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		response.HandleError(w, fmt.Errorf("save upload: %w", err), s.logger)
		return "", "", false
	}
	return tmp.Name(), fileName, true
}

// importRequest reads the optional form fields of an import upload.
func (s *Server) importRequest(r *http.Request, path, fileName string) (service.ImportRequest, error) {
	req := service.ImportRequest{
		Path:     path,
		FileName: fileName,
		Source:   r.FormValue("source"),
	}

	if raw := strings.TrimSpace(r.FormValue("mapping")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Mapping); err != nil {
			return req, domainerrors.Validationf("mapping must be a JSON object of header to field: %v", err)
		}
	}

	policy := s.services.Imports.DefaultPolicy()
	flags := []struct {
		name string
		dst  *bool
	}{
		{"skip_duplicates", &policy.SkipDuplicates},
		{"skip_conflicts", &policy.SkipConflicts},
		{"update_existing", &policy.UpdateExisting},
	}
	for _, f := range flags {
		raw := r.FormValue(f.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return req, domainerrors.Validationf("%s must be true or false", f.name)
		}
		*f.dst = v
	}
	req.Policy = &policy
	return req, nil
}
