package server

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/itohio/adcscope/pkg/acquire"
	"github.com/itohio/adcscope/pkg/store"
)

type updateFiltersResponse struct {
	Status         string  `json:"status"`
	UpdateInterval float64 `json:"update_interval"`
}

type settingsResponse struct {
	LowPassCutoff  float64 `json:"lp_cutoff"`
	HighPassCutoff float64 `json:"hp_cutoff"`
	LowPassActive  bool    `json:"lp_active"`
	HighPassActive bool    `json:"hp_active"`
	UpdateInterval float64 `json:"update_interval"`
	SampleRate     float64 `json:"sample_rate"`
	Port           string  `json:"port"`
	Running        bool    `json:"running"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if err := renderDashboard(w, dashboardData{
		SampleRate: s.opts.SampleRate,
		Settings:   s.opts.Settings.Snapshot(),
	}); err != nil {
		s.logger.Error("failed to render dashboard", zap.Error(err))
		http.Error(w, "Error rendering dashboard: "+err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleListPorts(w http.ResponseWriter, r *http.Request) {
	ports := []string{}
	if s.opts.Ports != nil {
		names, err := s.opts.Ports()
		if err != nil {
			s.logger.Error("failed to list ports", zap.Error(err))
			writeError(w, err, http.StatusInternalServerError)
			return
		}
		if names != nil {
			ports = names
		}
	}
	writeJSON(w, http.StatusOK, ports)
}

func (s *Server) handleUpdateFilters(w http.ResponseWriter, r *http.Request) {
	p, perr := parseUpdateFilters(r)
	if perr != nil {
		s.logger.Debug("rejected filter update", zap.String("error", perr.String()))
		writeError(w, perr.Error(), perr.Code())
		return
	}

	settings := p.settings()
	s.opts.Settings.Update(settings)
	s.logger.Info("filters updated",
		zap.Float64("lp_cutoff", settings.LowPassCutoff),
		zap.Float64("hp_cutoff", settings.HighPassCutoff),
		zap.Bool("lp_active", settings.LowPassActive),
		zap.Bool("hp_active", settings.HighPassActive),
		zap.Duration("update_interval", settings.UpdateInterval))

	writeJSON(w, http.StatusOK, updateFiltersResponse{
		Status:         statusOK,
		UpdateInterval: p.UpdateInterval,
	})
}

func (s *Server) handleSelectPort(w http.ResponseWriter, r *http.Request) {
	var req selectPortRequest
	if perr := decodeBody(r, &req); perr != nil {
		writeError(w, perr.Error(), perr.Code())
		return
	}
	if s.opts.Acquirer == nil {
		writeError(w, errors.New("acquisition is not available"), http.StatusServiceUnavailable)
		return
	}

	// Connecting happens on the loop goroutine, so a missing device is only logged.
	if err := s.opts.Acquirer.Select(req.Port); err != nil {
		code := http.StatusInternalServerError
		switch {
		case errors.Is(err, acquire.ErrEmptyPort):
			code = http.StatusBadRequest
		case errors.Is(err, acquire.ErrManagerClosed):
			code = http.StatusServiceUnavailable
		}
		writeError(w, err, code)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Status: fmt.Sprintf("Connected to port %s", req.Port)})
}

func (s *Server) handleSaveData(w http.ResponseWriter, r *http.Request) {
	values, perr := parseSaveData(r)
	if perr != nil {
		writeError(w, perr.Error(), perr.Code())
		return
	}
	if s.opts.Store == nil {
		writeError(w, errors.New("persistence is not available"), http.StatusServiceUnavailable)
		return
	}

	if err := s.opts.Store.Append(values); err != nil {
		if errors.Is(err, store.ErrEmpty) {
			writeError(w, err, http.StatusBadRequest)
			return
		}
		s.logger.Error("failed to save data", zap.Error(err))
		writeError(w, err, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Status:  statusSuccess,
		Message: fmt.Sprintf("saved %d values", len(values)),
	})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	cur := s.opts.Settings.Snapshot()
	resp := settingsResponse{
		LowPassCutoff:  cur.LowPassCutoff,
		HighPassCutoff: cur.HighPassCutoff,
		LowPassActive:  cur.LowPassActive,
		HighPassActive: cur.HighPassActive,
		UpdateInterval: cur.UpdateInterval.Seconds(),
		SampleRate:     s.opts.SampleRate,
	}
	if s.opts.Acquirer != nil {
		resp.Port = s.opts.Acquirer.Port()
		resp.Running = s.opts.Acquirer.Running()
	}
	writeJSON(w, http.StatusOK, resp)
}
