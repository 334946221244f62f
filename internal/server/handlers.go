package server

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"fragmenter/internal/conversion"
	"fragmenter/internal/discovery"
	"fragmenter/internal/logging"
	"fragmenter/internal/services"
	"fragmenter/internal/sink"
	"fragmenter/internal/textutil"
)

const (
	bytesPerMB        = 1024 * 1024
	multipartMemory   = 32 << 20
	defaultStoreLimit = 100
	maxStoreLimit     = 1000
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Service:   serviceName,
		Timestamp: time.Now(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	inputs, _ := discovery.ListInputs(s.cfg.Paths.SourceDir, s.cfg.Conversion.Extensions)
	fragments, _ := s.fragments()
	s.writeJSON(w, http.StatusOK, StatusResponse{
		Status:             "running",
		IFCFiles:           len(inputs),
		FragmentFiles:      len(fragments),
		ConversionComplete: len(fragments) > 0,
		PrimarySink:        s.store != nil,
		Paths:              s.pathInfo(),
		UptimeSeconds:      math.Round(time.Since(s.started).Seconds()),
		Timestamp:          time.Now(),
	})
}

func (s *Server) pathInfo() PathInfo {
	wd, _ := os.Getwd()
	return PathInfo{
		SourceDir:    s.cfg.Paths.SourceDir,
		SourceExists: isDir(s.cfg.Paths.SourceDir),
		TargetDir:    s.cfg.Paths.TargetDir,
		TargetExists: isDir(s.cfg.Paths.TargetDir),
		UploadDir:    s.cfg.Paths.UploadDir,
		ReportDir:    s.cfg.Paths.ReportDir,
		WorkingDir:   wd,
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (s *Server) handleListIFC(w http.ResponseWriter, _ *http.Request) {
	items, err := discovery.ListInputs(s.cfg.Paths.SourceDir, s.cfg.Conversion.Extensions)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := IFCListResponse{Files: make([]IFCFile, 0, len(items))}
	for _, item := range items {
		entry := IFCFile{Filename: item.Name, SizeMB: megabytes(item.Size)}
		if info, err := os.Stat(item.SourcePath); err == nil {
			entry.Modified = info.ModTime()
		}
		fragName := textutil.FragmentName(item.Name, s.cfg.Conversion.OutputExt)
		if info, err := os.Stat(filepath.Join(s.cfg.Paths.TargetDir, fragName)); err == nil && info.Mode().IsRegular() {
			size := megabytes(info.Size())
			entry.HasFragments = true
			entry.FragmentFile = &fragName
			entry.FragmentSizeMB = &size
		}
		resp.Files = append(resp.Files, entry)
		resp.TotalSizeMB += entry.SizeMB
	}
	resp.Count = len(resp.Files)
	resp.TotalSizeMB = round2(resp.TotalSizeMB)
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListFragments(w http.ResponseWriter, _ *http.Request) {
	fragments, err := s.fragments()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := FragmentListResponse{Fragments: fragments, Count: len(fragments)}
	for _, f := range fragments {
		resp.TotalSizeMB += f.SizeMB
	}
	resp.TotalSizeMB = round2(resp.TotalSizeMB)
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFragment(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if clean := textutil.SanitizeFileName(name); clean == "" || clean != name {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("Fragment file not found: %s", name))
		return
	}
	path := filepath.Join(s.cfg.Paths.TargetDir, name)
	f, err := os.Open(path)
	if err != nil {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("Fragment file not found: %s", name))
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("Fragment file not found: %s", name))
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (s *Server) handleStoreFragments(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "primary sink not configured")
		return
	}
	limit, err := queryInt(r, "limit", defaultStoreLimit)
	if err != nil || limit <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	limit = min(limit, maxStoreLimit)
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		s.writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	records, err := s.store.List(r.Context(), sink.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	resp := StoreListResponse{
		Fragments:    StoredFragments(records),
		Count:        len(records),
		TotalRecords: stats.Records,
		TotalBytes:   stats.TotalBytes,
	}
	if !stats.LastCreatedAt.IsZero() {
		last := stats.LastCreatedAt
		resp.LastCreatedAt = &last
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	if limit := s.cfg.API.MaxUploadMB; limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, int64(limit)*bytesPerMB)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Upload exceeds %d MB", s.cfg.API.MaxUploadMB))
			return
		}
		s.writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()
	if strings.TrimSpace(header.Filename) == "" {
		s.writeError(w, http.StatusBadRequest, "No file selected")
		return
	}
	if !discovery.Matches(header.Filename, s.cfg.Conversion.Extensions) {
		s.writeError(w, http.StatusBadRequest, "File must be an IFC file")
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("read upload: %v", err))
		return
	}

	// Conversions can outlast any fixed write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	logger := logging.WithContext(r.Context(), s.logger)
	logger.Info("conversion upload received",
		logging.String(logging.FieldEventType, "upload_received"),
		logging.String(logging.FieldItem, header.Filename),
		logging.Int("size_bytes", len(data)),
	)

	res, err := s.conv.ConvertOne(r.Context(), data, header.Filename)
	switch {
	case errors.Is(err, conversion.ErrInvalidInput):
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.writeJSON(w, http.StatusInternalServerError, ConvertResponse{
			Success: false,
			Error:   fmt.Sprintf("Server error: %v", err),
			Status:  conversion.StatusFailed,
		})
		return
	}

	item := res.Item
	resp := ConvertResponse{
		Success:        item.Status == conversion.StatusStored || item.Status == conversion.StatusPartiallyStored,
		ConversionTime: round2(item.ConversionSeconds),
		Status:         item.Status,
		Producer:       string(item.Producer),
		Degraded:       item.Degraded,
		Tier:           item.Tier,
		FileHash:       item.Hash,
		Sinks:          item.Sinks,
		Stored:         StoredFragments(res.Records),
	}
	if !resp.Success {
		resp.Error = fmt.Sprintf("Conversion failed: %s", failureDetail(item))
		s.writeJSON(w, http.StatusInternalServerError, resp)
		return
	}
	resp.Message = fmt.Sprintf("Successfully converted %s", header.Filename)
	resp.OutputFile = filepath.Base(item.OutputPath)
	resp.SizeMB = megabytes(item.OutputBytes)
	s.writeJSON(w, http.StatusOK, resp)
}

// fragments lists fragment files in the target directory by name.
func (s *Server) fragments() ([]FragmentFile, error) {
	entries, err := os.ReadDir(s.cfg.Paths.TargetDir)
	if errors.Is(err, os.ErrNotExist) {
		return []FragmentFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read fragments dir: %w", err)
	}
	ext := s.cfg.Conversion.OutputExt
	out := make([]FragmentFile, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.EqualFold(filepath.Ext(name), ext) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		out = append(out, FragmentFile{
			Filename: name,
			SizeMB:   megabytes(info.Size()),
			Modified: info.ModTime(),
			URL:      "/api/fragments/" + name,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out, nil
}

// StoredFragments strips payloads from sink records for listing.
func StoredFragments(records []sink.Record) []StoredFragment {
	out := make([]StoredFragment, 0, len(records))
	for _, rec := range records {
		out = append(out, StoredFragment{
			ID:         rec.ID,
			Filename:   rec.Filename,
			FileHash:   rec.Hash.String(),
			SizeBytes:  rec.SizeBytes,
			SourceFile: rec.SourceName,
			Metadata:   rec.Metadata,
			CreatedAt:  rec.CreatedAt,
		})
	}
	return out
}

func failureDetail(item conversion.ItemResult) string {
	switch {
	case item.Message != "":
		return item.Message
	case item.Reason != "":
		return item.Reason
	default:
		return services.ReasonUnknown
	}
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return fallback, nil
	}
	return strconv.Atoi(value)
}

func megabytes(size int64) float64 {
	return round2(float64(size) / bytesPerMB)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
