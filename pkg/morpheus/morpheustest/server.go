// Package morpheustest provides an in-memory fake of the remote entity
// service for tests: per-collection counters, name and phrase filtering,
// and an operation log for ordering assertions.
package morpheustest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"

	"github.com/openmorph/morphctl/pkg/directive"
)

// nestedIDEntities lists the collections whose create responses wrap the
// id one object deep, mirroring the real API's inconsistency.
var nestedIDEntities = map[string]bool{
	"job":       true,
	"blueprint": true,
}

var numericSegment = regexp.MustCompile(`^[0-9]+$`)

type collection struct {
	counter int
	entity  string
	order   []int
	data    map[int]map[string]interface{}
}

// Server is a fake entity API backed by httptest.
type Server struct {
	mu          sync.Mutex
	httpServer  *httptest.Server
	collections map[string]*collection
	ops         []string
}

// New starts a fake API server. Callers must Close it.
func New() *Server {
	s := &Server{collections: make(map[string]*collection)}
	s.httpServer = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// URL returns the server's base URL, usable as the client Host.
func (s *Server) URL() string { return s.httpServer.URL }

// Close shuts the server down.
func (s *Server) Close() { s.httpServer.Close() }

// Ops returns the mutating operations performed so far, in order, as
// "METHOD /api/path [id]" strings.
func (s *Server) Ops() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ops...)
}

// Entity returns a stored entity by collection path alias and name, or
// nil when absent.
func (s *Server) Entity(path, name string) map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	col := s.collections[directive.APIPath(path)]
	if col == nil {
		return nil
	}
	for _, id := range col.order {
		if col.data[id]["name"] == name {
			return col.data[id]
		}
	}
	return nil
}

// Names returns the stored entity names of a collection in creation
// order.
func (s *Server) Names(path string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	col := s.collections[directive.APIPath(path)]
	if col == nil {
		return nil
	}
	var names []string
	for _, id := range col.order {
		if name, ok := col.data[id]["name"].(string); ok {
			names = append(names, name)
		}
	}
	return names
}

// Seed creates an entity directly, bypassing HTTP, for test setup.
func (s *Server) Seed(path, name string, fields map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	col := s.ensureCollection(directive.APIPath(path), "")
	col.counter++
	entity := map[string]interface{}{"name": name}
	for k, v := range fields {
		entity[k] = v
	}
	entity["id"] = col.counter
	col.data[col.counter] = entity
	col.order = append(col.order, col.counter)
}

func (s *Server) ensureCollection(path, entity string) *collection {
	col, ok := s.collections[path]
	if !ok {
		if entity == "" {
			entity = directive.EntityFromPath(path, "", true)
		}
		col = &collection{entity: entity, data: make(map[int]map[string]interface{})}
		s.collections[path] = col
	}
	return col
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := r.URL.Path
	parts := strings.Split(path, "/")
	entityPath := path
	id := 0
	if numericSegment.MatchString(parts[len(parts)-1]) {
		entityPath = strings.Join(parts[:len(parts)-1], "/")
		fmt.Sscanf(parts[len(parts)-1], "%d", &id) //nolint:errcheck
	}

	var body map[string]interface{}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	switch {
	case id != 0:
		s.handleEntity(w, r, entityPath, id, body)
	case r.Method == http.MethodPost:
		// Collapse nested create paths like
		// /api/library/instance-types/1/layouts to /api/library/layouts.
		if len(parts) == 6 {
			entityPath = strings.Join(append(parts[:3:3], parts[len(parts)-1]), "/")
		}
		s.handleCreate(w, entityPath, body)
	case r.Method == http.MethodGet:
		s.handleList(w, r, entityPath)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"msg": "bad request"})
	}
}

func (s *Server) handleEntity(w http.ResponseWriter, r *http.Request, entityPath string, id int, body map[string]interface{}) {
	col := s.collections[entityPath]
	var entity map[string]interface{}
	if col != nil {
		entity = col.data[id]
	}
	if entity == nil {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"msg": "not found"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]interface{}{col.entity: entity})
	case http.MethodDelete:
		delete(col.data, id)
		for i, existing := range col.order {
			if existing == id {
				col.order = append(col.order[:i], col.order[i+1:]...)
				break
			}
		}
		s.ops = append(s.ops, fmt.Sprintf("DELETE %s [%d]", entityPath, id))
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
	case http.MethodPut:
		updated := unwrapBody(body, col.entity)
		updated["id"] = id
		col.data[id] = updated
		s.ops = append(s.ops, fmt.Sprintf("PUT %s [%d]", entityPath, id))
		writeJSON(w, http.StatusOK, map[string]interface{}{"id": id})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"msg": "bad request"})
	}
}

func (s *Server) handleCreate(w http.ResponseWriter, entityPath string, body map[string]interface{}) {
	entity := ""
	if len(body) == 1 {
		for k, v := range body {
			if _, ok := v.(map[string]interface{}); ok {
				entity = strings.TrimSuffix(k, "s")
			}
		}
	}
	col := s.ensureCollection(entityPath, entity)
	col.counter++
	id := col.counter
	data := unwrapBody(body, col.entity)
	data["id"] = id
	col.data[id] = data
	col.order = append(col.order, id)
	s.ops = append(s.ops, fmt.Sprintf("POST %s [%d]", entityPath, id))

	if nestedIDEntities[col.entity] {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":  true,
			col.entity: map[string]interface{}{"id": id},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request, entityPath string) {
	col := s.collections[entityPath]
	plural := directive.EntityFromPath(entityPath, "", false)
	items := []interface{}{}
	if col != nil {
		plural = col.entity + "s"
		name := r.URL.Query().Get("name")
		phrase := r.URL.Query().Get("phrase")
		for _, id := range col.order {
			entity := col.data[id]
			entityName, _ := entity["name"].(string)
			if name != "" && entityName != name {
				continue
			}
			if phrase != "" && !strings.HasPrefix(entityName, phrase) {
				continue
			}
			items = append(items, entity)
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{plural: items})
}

// unwrapBody extracts the entity fields from a payload that may wrap
// them under the entity key.
func unwrapBody(body map[string]interface{}, entity string) map[string]interface{} {
	if body == nil {
		return map[string]interface{}{}
	}
	for k, v := range body {
		if nested, ok := v.(map[string]interface{}); ok && (k == entity || len(body) == 1) {
			return nested
		}
	}
	return body
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
