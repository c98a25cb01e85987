package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	validator "gopkg.in/validator.v2"

	"github.com/itohio/adcscope/pkg/acquire"
)

var errEmptyBody = errors.New("empty request body")

// flexFloat accepts a JSON number or a string holding one.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := string(bytes.TrimSpace(b))
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		s = strings.TrimSpace(str)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("invalid number %s", b)
	}
	*f = flexFloat(v)
	return nil
}

// flexBool accepts a JSON boolean or the strings "true" and "false" in any case.
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	s := string(bytes.TrimSpace(b))
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		s = strings.ToLower(strings.TrimSpace(str))
	}
	switch s {
	case "true":
		*f = true
	case "false":
		*f = false
	default:
		return fmt.Errorf("invalid boolean %s", b)
	}
	return nil
}

// updateFiltersRequest is the body of POST /update_filters. Absent or null
// fields take their defaults.
type updateFiltersRequest struct {
	LowPassCutoff  *flexFloat `json:"lp_cutoff"`
	HighPassCutoff *flexFloat `json:"hp_cutoff"`
	LowPassActive  *flexBool  `json:"lp_active"`
	HighPassActive *flexBool  `json:"hp_active"`
	UpdateInterval *flexFloat `json:"update_interval"` // seconds
}

// filterParams is an update with defaults applied.
type filterParams struct {
	LowPassCutoff  float64 `validate:"nonzero,min=0"`
	HighPassCutoff float64 `validate:"nonzero,min=0"`
	LowPassActive  bool
	HighPassActive bool
	UpdateInterval float64 `validate:"nonzero,min=0"`
}

func (req *updateFiltersRequest) params() filterParams {
	p := filterParams{
		LowPassCutoff:  acquire.DefaultLowPassCutoff,
		HighPassCutoff: acquire.DefaultHighPassCutoff,
		UpdateInterval: acquire.DefaultUpdateInterval.Seconds(),
	}
	if req.LowPassCutoff != nil {
		p.LowPassCutoff = float64(*req.LowPassCutoff)
	}
	if req.HighPassCutoff != nil {
		p.HighPassCutoff = float64(*req.HighPassCutoff)
	}
	if req.LowPassActive != nil {
		p.LowPassActive = bool(*req.LowPassActive)
	}
	if req.HighPassActive != nil {
		p.HighPassActive = bool(*req.HighPassActive)
	}
	if req.UpdateInterval != nil {
		p.UpdateInterval = float64(*req.UpdateInterval)
	}
	return p
}

func (p filterParams) settings() acquire.Settings {
	return acquire.Settings{
		LowPassCutoff:  p.LowPassCutoff,
		HighPassCutoff: p.HighPassCutoff,
		LowPassActive:  p.LowPassActive,
		HighPassActive: p.HighPassActive,
		UpdateInterval: time.Duration(p.UpdateInterval * float64(time.Second)),
	}
}

func parseUpdateFilters(r *http.Request) (filterParams, *parseError) {
	var req updateFiltersRequest
	if err := decodeBody(r, &req); err != nil {
		return filterParams{}, err
	}

	p := req.params()
	if err := validator.Validate(p); err != nil {
		return filterParams{}, newParseError(err, http.StatusBadRequest)
	}
	// Sub-nanosecond intervals would round to zero.
	if p.settings().UpdateInterval <= 0 {
		return filterParams{}, newParseError(fmt.Errorf("update_interval %v too small", p.UpdateInterval), http.StatusBadRequest)
	}
	return p, nil
}

type selectPortRequest struct {
	Port string `json:"port"`
}

type saveDataRequest struct {
	Data interface{} `json:"data"`
}

func parseSaveData(r *http.Request) ([]interface{}, *parseError) {
	var req saveDataRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}

	switch data := req.Data.(type) {
	case nil:
		return nil, nil
	case []interface{}:
		return data, nil
	default:
		return nil, newParseError(fmt.Errorf("data must be an array, got %T", data), http.StatusBadRequest)
	}
}

func decodeBody(r *http.Request, v interface{}) *parseError {
	if r.Body == nil {
		return newParseError(errEmptyBody, http.StatusBadRequest)
	}
	defer r.Body.Close()

	if err := decoder.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return newParseError(errEmptyBody, http.StatusBadRequest)
		}
		return newParseError(err, http.StatusBadRequest)
	}
	return nil
}
