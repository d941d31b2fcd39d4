package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-display/internal/bridges/display"
)

// joinMapResponse is the body of GET /displays/{key}/joinmap.
type joinMapResponse struct {
	Device    string         `json:"device"`
	Bus       string         `json:"bus"`
	JoinStart uint32         `json:"join_start"`
	Joins     []display.Join `json:"joins"`
}

func (s *Server) handleListDisplays(w http.ResponseWriter, _ *http.Request) {
	devs := s.displays.Devices()
	states := make([]display.State, 0, len(devs))
	for _, d := range devs {
		states = append(states, d.State())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"displays": states,
		"count":    len(states),
	})
}

func (s *Server) handleGetDisplay(w http.ResponseWriter, r *http.Request) {
	if d, ok := s.lookupDisplay(w, r); ok {
		writeJSON(w, http.StatusOK, d.State())
	}
}

func (s *Server) handleDisplayInfo(w http.ResponseWriter, r *http.Request) {
	if d, ok := s.lookupDisplay(w, r); ok {
		writeJSON(w, http.StatusOK, d.Info())
	}
}

func (s *Server) handleDisplayInputs(w http.ResponseWriter, r *http.Request) {
	if d, ok := s.lookupDisplay(w, r); ok {
		writeJSON(w, http.StatusOK, d.Inputs())
	}
}

func (s *Server) handleDisplayRoutingPorts(w http.ResponseWriter, r *http.Request) {
	if d, ok := s.lookupDisplay(w, r); ok {
		writeJSON(w, http.StatusOK, map[string]any{
			"routing_ports": d.RoutingPorts(),
		})
	}
}

func (s *Server) handleDisplayJoinMap(w http.ResponseWriter, r *http.Request) {
	d, ok := s.lookupDisplay(w, r)
	if !ok {
		return
	}

	b := d.Binding()
	if b == nil {
		writeNotFound(w, "display is not linked to a bus")
		return
	}

	m := b.JoinMap()
	writeJSON(w, http.StatusOK, joinMapResponse{
		Device:    d.Key(),
		Bus:       b.Bus().ID(),
		JoinStart: m.JoinStart(),
		Joins:     m.Joins(),
	})
}

// lookupDisplay resolves {key} or writes a 404.
func (s *Server) lookupDisplay(w http.ResponseWriter, r *http.Request) (*display.Device, bool) {
	key := chi.URLParam(r, "key")
	d, ok := s.displays.Lookup(key)
	if !ok {
		writeNotFound(w, "display not found: "+key)
		return nil, false
	}
	return d, true
}
