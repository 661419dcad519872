package http

import (
	"errors"
	"fmt"
	"net/http"

	"expenselog/internal/core"
	"expenselog/internal/log"
)

// handleAddData creates or replaces the record for a date.
func (s *Server) handleAddData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, allowAddData)
		return
	}

	body, err := decodeJSONObject(w, r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	req, err := ParseSubmitRequest(body)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	res, err := s.records.Submit(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	status, msg := http.StatusOK, msgRecordUpdated
	if res.Created {
		status, msg = http.StatusCreated, msgRecordCreated
	}
	NewJSONResponse().Status(status).Message(msg, res.Record).Write(w)
}

// handleGetData lists every record on GET and looks up one date on POST.
func (s *Server) handleGetData(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		records, err := s.records.FetchAll(r.Context())
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		NewJSONResponse().Body(records).Write(w)

	case http.MethodPost:
		body, err := decodeJSONObject(w, r)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		req, err := ParseFetchRequest(body)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		rec, err := s.records.FetchByDate(r.Context(), req)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		NewJSONResponse().Body(rec).Write(w)

	default:
		methodNotAllowed(w, allowGetData)
	}
}

// writeServiceError maps the core error taxonomy onto HTTP responses.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *core.ValidationError
		nf *core.NotFoundError
	)
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, validationMessage(ve))

	case errors.As(err, &nf):
		msg := fmt.Sprintf(msgNoDataForDate, nf.Date)
		if nf.All {
			msg = msgNoData
		}
		writeError(w, http.StatusNotFound, msg)

	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldError, err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
	}
}

func validationMessage(ve *core.ValidationError) string {
	switch ve {
	case core.ErrInvalidBody:
		return msgInvalidBody
	case core.ErrInvalidDate:
		return msgInvalidDate
	case core.ErrInvalidItem:
		return msgInvalidItems
	}
	return ve.Reason
}
