package api

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/deptree/pkg/buildinfo"
	"github.com/matzehuels/deptree/pkg/deps"
	apperr "github.com/matzehuels/deptree/pkg/errors"
	"github.com/matzehuels/deptree/pkg/graph"
	"github.com/matzehuels/deptree/pkg/render/nodelink"
)

func (s *Server) handleDeps(w http.ResponseWriter, r *http.Request) {
	ref, err := refFromPath(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.resolver.ResolveDirect(r.Context(), ref.Name, ref.Version)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.warmer.schedule(ref)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAllDeps(w http.ResponseWriter, r *http.Request) {
	ref, err := refFromPath(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.resolver.ResolveTransitive(r.Context(), ref.Name, ref.Version)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	ref, err := refFromPath(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	format := r.URL.Query().Get("format")
	if format != "" && format != "json" && format != "dot" {
		s.writeError(w, r, apperr.New(apperr.ErrCodeInvalidInput, "unsupported graph format %q", format))
		return
	}

	g, err := s.resolver.ResolveGraph(r.Context(), ref.Name, ref.Version)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if format == "dot" {
		w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(nodelink.ToDOT(g, nodelink.Options{})))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = graph.Write(g, w)
}

type healthResponse struct {
	Status string `json:"status"`
	buildinfo.Info
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Info: buildinfo.Get()})
}

// refFromPath reads {pkg} and {ver}. chi matches on the escaped path only
// when the request carries one (scoped names such as "@babel%2Fcore"); those
// parameters are unescaped here, others arrive decoded already.
func refFromPath(r *http.Request) (deps.PackageRef, error) {
	name, version := chi.URLParam(r, "pkg"), chi.URLParam(r, "ver")
	if r.URL.RawPath != "" {
		var err error
		if name, err = url.PathUnescape(name); err != nil {
			return deps.PackageRef{}, apperr.Wrap(apperr.ErrCodeInvalidPackage, err, "malformed package name")
		}
		if version, err = url.PathUnescape(version); err != nil {
			return deps.PackageRef{}, apperr.Wrap(apperr.ErrCodeInvalidVersion, err, "malformed version")
		}
	}
	return deps.NewRef(name, version)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
