// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/wamlink/pkg/validation"
	"github.com/AleutianAI/wamlink/services/wam/codegen"
	"github.com/AleutianAI/wamlink/services/wam/engine"
	"github.com/AleutianAI/wamlink/services/wam/image"
	"github.com/AleutianAI/wamlink/services/wam/machine"
	"github.com/AleutianAI/wamlink/services/wam/ops"
	"github.com/AleutianAI/wamlink/services/wam/reader"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Handlers serves the /v1/wam API over one shared engine.
type Handlers struct {
	shared *engine.Shared
	store  *image.Store
	logger *slog.Logger
}

// NewHandlers creates handlers for shared.
func NewHandlers(shared *engine.Shared, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{shared: shared, logger: logger}
}

// WithImageStore enables POST /v1/wam/image.
func (h *Handlers) WithImageStore(s *image.Store) *Handlers {
	h.store = s
	return h
}

func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

// errorStatus maps compiler errors to an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case reader.IsIncomplete(err):
		return http.StatusBadRequest, "INCOMPLETE_INPUT"
	case errors.Is(err, machine.ErrModuleNotFound):
		return http.StatusNotFound, "MODULE_NOT_FOUND"
	case errors.Is(err, reader.ErrSyntax):
		return http.StatusBadRequest, "SYNTAX_ERROR"
	case errors.Is(err, reader.ErrInvalidModuleDecl), errors.Is(err, reader.ErrInvalidDirective):
		return http.StatusBadRequest, "INVALID_DIRECTIVE"
	case errors.Is(err, ops.ErrPriority), errors.Is(err, ops.ErrSpecifier),
		errors.Is(err, ops.ErrModifyComma), errors.Is(err, ops.ErrOpClash):
		return http.StatusBadRequest, "INVALID_OPERATOR"
	case errors.Is(err, machine.ErrNamelessEntry), errors.Is(err, machine.ErrImpermissibleEntry):
		return http.StatusUnprocessableEntity, "INVALID_ENTRY"
	case errors.Is(err, codegen.ErrInvalidGoal), errors.Is(err, codegen.ErrNotEvaluable),
		errors.Is(err, codegen.ErrUnsupported):
		return http.StatusUnprocessableEntity, "COMPILE_FAILED"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func (h *Handlers) fail(c *gin.Context, logger *slog.Logger, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
	} else {
		logger.Info("request rejected", "error", err, "code", code)
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

// HandleConsult handles POST /v1/wam/consult.
//
// Response:
//
//	200 OK: ConsultResponse
//	400 Bad Request: malformed body or listing
//	404 Not Found: imported module is not loaded
//	422 Unprocessable Entity: the listing does not compile
func (h *Handlers) HandleConsult(c *gin.Context) {
	logger := h.logger.With("request_id", getOrCreateRequestID(c), "handler", "HandleConsult")

	var req ConsultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
		return
	}
	name, err := validation.SanitizeListingName(req.Name)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_NAME"})
		return
	}

	var resp ConsultResponse
	err = h.shared.Do(func(e *engine.Engine) error {
		before := e.Machine().CodeSize()
		if _, err := e.Consult(c.Request.Context(), strings.NewReader(req.Source)); err != nil {
			return err
		}
		resp.CodeSize = e.Machine().CodeSize()
		resp.Instructions = resp.CodeSize - before
		return nil
	})
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	logger.Info("listing consulted", "name", name, "instructions", resp.Instructions)
	c.JSON(http.StatusOK, resp)
}

// HandleQuery handles POST /v1/wam/query. The text may be a clause, a
// directive or a query; queries are compiled and returned.
func (h *Handlers) HandleQuery(c *gin.Context) {
	logger := h.logger.With("request_id", getOrCreateRequestID(c), "handler", "HandleQuery")

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	var sess machine.Session
	err := h.shared.Do(func(e *engine.Engine) error {
		var err error
		sess, err = e.Eval(c.Request.Context(), req.Text)
		return err
	})
	if err != nil {
		h.fail(c, logger, err)
		return
	}

	resp := QueryResponse{Kind: "success"}
	if sess.Kind == machine.QueryReady {
		resp.Kind = "query"
		resp.QueryID = sess.Query.ID.String()
		resp.Code = make([]string, len(sess.Query.Code))
		for i, l := range sess.Query.Code {
			resp.Code[i] = l.String()
		}
		resp.Bindings = make(map[string]string, len(sess.Query.Bindings))
		for name, reg := range sess.Query.Bindings {
			resp.Bindings[name] = reg.String()
		}
	}
	c.JSON(http.StatusOK, resp)
}

// HandlePredicates handles GET /v1/wam/predicates.
func (h *Handlers) HandlePredicates(c *gin.Context) {
	var preds []engine.PredicateInfo
	_ = h.shared.Do(func(e *engine.Engine) error {
		preds = e.Predicates()
		return nil
	})
	c.JSON(http.StatusOK, preds)
}

// HandleModules handles GET /v1/wam/modules.
func (h *Handlers) HandleModules(c *gin.Context) {
	var mods []engine.ModuleInfo
	_ = h.shared.Do(func(e *engine.Engine) error {
		mods = e.Modules()
		return nil
	})
	c.JSON(http.StatusOK, mods)
}

// HandleCode handles GET /v1/wam/code with a text listing of the code
// segment.
func (h *Handlers) HandleCode(c *gin.Context) {
	var buf bytes.Buffer
	err := h.shared.Do(func(e *engine.Engine) error {
		return e.Dump(&buf)
	})
	if err != nil {
		h.fail(c, h.logger, err)
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", buf.Bytes())
}

// HandleSaveImage handles POST /v1/wam/image.
func (h *Handlers) HandleSaveImage(c *gin.Context) {
	logger := h.logger.With("request_id", getOrCreateRequestID(c), "handler", "HandleSaveImage")
	if h.store == nil {
		c.JSON(http.StatusNotImplemented, ErrorResponse{Error: "no image store configured", Code: "NO_IMAGE_STORE"})
		return
	}

	var resp SaveResponse
	err := h.shared.Do(func(e *engine.Engine) error {
		resp.Instructions = e.Machine().CodeSize()
		return h.store.Save(c.Request.Context(), e.Machine())
	})
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleHealth handles GET /v1/wam/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	resp := HealthResponse{Status: "healthy", Version: Version}
	_ = h.shared.Do(func(e *engine.Engine) error {
		resp.CodeSize = e.Machine().CodeSize()
		resp.Modules = len(e.Machine().ModuleNames())
		return nil
	})
	c.JSON(http.StatusOK, resp)
}
