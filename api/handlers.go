package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/yaswanthhh/ev-charge-optimizer/core/logger"
	"github.com/yaswanthhh/ev-charge-optimizer/core/model"
	"github.com/yaswanthhh/ev-charge-optimizer/core/optimizer"
)

type handlers struct {
	svc Service
	log logger.Logger
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *handlers) optimize(w http.ResponseWriter, r *http.Request) {
	var req model.OptimizationRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	out, err := h.svc.Optimize(req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) profile(w http.ResponseWriter, r *http.Request) {
	var req optimizer.ProfileRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	msg, err := h.svc.EncodeProfile(req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (h *handlers) dispatch(w http.ResponseWriter, r *http.Request) {
	var req optimizer.DispatchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	out, err := h.svc.DispatchProfile(r.Context(), req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type createRunRequest struct {
	Input  json.RawMessage `json:"input"`
	Output json.RawMessage `json:"output"`
}

func (h *handlers) createRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	saved, err := h.svc.SaveRun(r.Context(), req.Input, req.Output)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (h *handlers) getRun(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid id"})
		return
	}
	rec, err := h.svc.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handlers) runAndDispatch(w http.ResponseWriter, r *http.Request) {
	var req model.OptimizationRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	res, err := h.svc.RunAndDispatch(r.Context(), req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
