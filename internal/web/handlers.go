package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"treno/internal/model"

	"github.com/starfederation/datastar-go/datastar"
)

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	sess := s.session()
	s.writeHTMLTemplate(w, "page", newPageVM(sess.View(), sess.DrainAlerts()))
}

func (s *Server) handleSelectDate(w http.ResponseWriter, r *http.Request) {
	d, err := model.ParseDateKey(r.FormValue("date"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.session().SelectDate(d)
	redirectHome(w, r)
}

func (s *Server) handleChangeMonth(w http.ResponseWriter, r *http.Request) {
	delta, err := strconv.Atoi(strings.TrimSpace(r.FormValue("delta")))
	if err != nil {
		http.Error(w, "invalid delta", http.StatusBadRequest)
		return
	}
	s.session().ChangeMonth(delta)
	redirectHome(w, r)
}

func (s *Server) handleTapOutside(w http.ResponseWriter, r *http.Request) {
	s.session().TapOutside()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRecordNew(w http.ResponseWriter, r *http.Request) {
	s.session().StartAdd()
	redirectHome(w, r)
}

func (s *Server) handleRecordEdit(w http.ResponseWriter, r *http.Request) {
	idx, ok := pathIndex(w, r)
	if !ok {
		return
	}
	if err := s.session().StartEdit(idx); err != nil {
		s.log.Debug("edit of missing record", "index", idx, "err", err)
	}
	redirectHome(w, r)
}

func (s *Server) handleFormBack(w http.ResponseWriter, r *http.Request) {
	s.session().Back()
	redirectHome(w, r)
}

func (s *Server) handleFormSave(w http.ResponseWriter, r *http.Request) {
	// Validation errors are queued as alerts and shown on the next render.
	if err := s.session().Save(r.Context()); err != nil {
		s.log.Debug("save rejected", "err", err)
	}
	redirectHome(w, r)
}

// fieldsPayload is what the page script posts while the form is edited.
type fieldsPayload struct {
	Part   *string `json:"part"`
	Event  string  `json:"event"`
	HTML   string  `json:"html"`
	Text   string  `json:"text"`
	Around string  `json:"around"`
}

func (s *Server) handleFormFields(w http.ResponseWriter, r *http.Request) {
	var p fieldsPayload
	if err := datastar.ReadSignals(r, &p); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	sess := s.session()
	ctx := r.Context()
	if p.Part != nil {
		sess.SetPart(ctx, *p.Part)
	}
	switch p.Event {
	case "":
	case "input":
		sess.InputNote(ctx, p.HTML)
	case "compositionstart":
		sess.CompositionStart()
	case "compositionend":
		sess.CompositionEnd(ctx, p.HTML)
	case "paste":
		sess.PasteNote(ctx, p.HTML, p.Text, p.Around)
	default:
		http.Error(w, "unknown event", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFormColor(w http.ResponseWriter, r *http.Request) {
	if err := s.session().SetColor(r.Context(), r.FormValue("color")); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	redirectHome(w, r)
}

func (s *Server) handleImageUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfgSnapshot().MaxUploadBytes)
	f, _, err := r.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "missing image", http.StatusBadRequest)
		return
	}
	defer f.Close()

	// Processing failures and the image cap surface as alerts.
	if err := s.session().AddImage(r.Context(), f); err != nil {
		s.log.Debug("image rejected", "err", err)
	}
	redirectHome(w, r)
}

func (s *Server) handleImageRemove(w http.ResponseWriter, r *http.Request) {
	idx, ok := pathIndex(w, r)
	if !ok {
		return
	}
	s.session().RemoveImage(idx)
	redirectHome(w, r)
}

func (s *Server) handleDeleteRequest(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(strings.TrimSpace(r.FormValue("index")))
	if err != nil {
		http.Error(w, "invalid index", http.StatusBadRequest)
		return
	}
	if err := s.session().RequestDelete(idx); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	redirectHome(w, r)
}

func (s *Server) handleDeleteConfirm(w http.ResponseWriter, r *http.Request) {
	if err := s.session().ConfirmDelete(r.Context()); err != nil {
		s.log.Warn("delete failed", "err", err)
	}
	redirectHome(w, r)
}

func (s *Server) handleDeleteCancel(w http.ResponseWriter, r *http.Request) {
	s.session().CancelDelete()
	redirectHome(w, r)
}

func pathIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	idx, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || idx < 0 {
		http.Error(w, "invalid index", http.StatusBadRequest)
		return 0, false
	}
	return idx, true
}
