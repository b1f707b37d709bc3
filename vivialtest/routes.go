package vivialtest

import (
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

const defaultPageLimit = 50

// table is an ordered set of rows keyed by id.
type table struct {
	rows []map[string]any
}

func (t *table) find(id string) (int, map[string]any) {
	for i, row := range t.rows {
		if fmt.Sprint(row["id"]) == id {
			return i, row
		}
	}
	return -1, nil
}

func (t *table) snapshot() []map[string]any {
	out := make([]map[string]any, 0, len(t.rows))
	for _, row := range t.rows {
		out = append(out, maps.Clone(row))
	}
	return out
}

// insertLocked stores a copy of row under key, assigning an id when the row
// has none. s.mu must be held.
func (s *Server) insertLocked(key string, row map[string]any) map[string]any {
	stored := maps.Clone(row)
	if stored == nil {
		stored = map[string]any{}
	}
	switch id := stored["id"].(type) {
	case int:
		if id >= s.nextID {
			s.nextID = id + 1
		}
	case nil:
		stored["id"] = s.nextID
		s.nextID++
	}
	if _, ok := stored["date_created"]; !ok {
		stored["date_created"] = s.timestamp()
	}
	t := s.tables[key]
	if t == nil {
		t = &table{}
		s.tables[key] = t
	}
	t.rows = append(t.rows, stored)
	return stored
}

// collection describes a resource table served with the standard list,
// count, show, create, update and destroy routes.
type collection struct {
	singular string
	plural   string

	// envelope wraps request and response bodies, e.g. {"user": {...}}.
	envelope string

	// parent names the owning table; the owner's id is the {id} param and
	// the row's own id is {sub}.
	parent string

	// idParam overrides the route param of the row id.
	idParam string

	// created runs under the lock after a row is inserted. An error removes
	// the row and answers 400.
	created func(s *Server, row map[string]any) error
}

func (c *collection) param() string {
	switch {
	case c.idParam != "":
		return c.idParam
	case c.parent != "":
		return "sub"
	default:
		return "id"
	}
}

func (c *collection) key(r *http.Request) string {
	if c.parent == "" {
		return c.plural
	}
	return c.parent + "/" + chi.URLParam(r, "id") + "/" + c.plural
}

func (c *collection) wrap(v map[string]any) map[string]any {
	if c.envelope == "" {
		return v
	}
	return map[string]any{c.envelope: v}
}

// attrs extracts {envelope: {singular: {...}}} from a request body.
func (c *collection) attrs(body map[string]any) (map[string]any, bool) {
	if c.envelope != "" {
		inner, ok := body[c.envelope].(map[string]any)
		if !ok {
			return nil, false
		}
		body = inner
	}
	attrs, ok := body[c.singular].(map[string]any)
	return attrs, ok
}

// ownerExists reports whether the parent row of a subordinate request
// exists. s.mu must be held.
func (s *Server) ownerExistsLocked(c *collection, r *http.Request) bool {
	if c.parent == "" {
		return true
	}
	t := s.tables[c.parent]
	if t == nil {
		return false
	}
	_, row := t.find(chi.URLParam(r, "id"))
	return row != nil
}

func (s *Server) mount(r chi.Router, base string, c *collection) {
	element := base + "/{" + c.param() + "}.json"
	r.Get(base+".json", s.list(c))
	r.Post(base+".json", s.create(c))
	r.Get(base+"/count.json", s.count(c))
	r.Get(element, s.show(c))
	r.Put(element, s.update(c))
	r.Delete(element, s.destroy(c))
}

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(s.record)
	r.Use(s.verify)
	r.Use(s.inject)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	messages := &collection{singular: "message", plural: "messages", created: messageCreated}
	attachments := &collection{singular: "attachment", plural: "attachments", parent: "messages"}
	numbers := &collection{singular: "phone_number", plural: "numbers", created: numberCreated}
	credentials := &collection{
		singular: "credential",
		plural:   "credentials",
		envelope: "user",
		parent:   "users",
		created:  credentialCreated,
	}

	r.Route(APIPrefix, func(r chi.Router) {
		s.mount(r, "/accounts", &collection{singular: "account", plural: "accounts", idParam: "account"})
		r.With(s.scoped).Get("/accounts/{account}/status.json", s.billingStatus)

		a := r.With(s.scoped)
		const base = "/accounts/{account}"

		a.Post(base+"/messages/bulk.json", s.sendBulk)
		a.Get(base+"/messages/bulk.json", s.listBulks)
		a.Get(base+"/messages/bulk/{bulk}.json", s.bulkMessages)
		s.mount(a, base+"/messages", messages)
		s.mount(a, base+"/messages/{id}/attachments", attachments)

		a.Get(base+"/numbers/available/{country}/{type}.json", s.availableNumbers)
		a.Get(base+"/numbers/lookup.json", s.lookupNumber)
		a.Get(base+"/numbers/tags.json", s.taggedNumbers)
		a.Delete(base+"/numbers/{id}/tags.json", s.removeTags)
		s.mount(a, base+"/numbers", numbers)

		s.mount(a, base+"/connectors", &collection{singular: "connector", plural: "connectors"})
		s.mount(a, base+"/configurations", &collection{singular: "configuration", plural: "configurations"})
		s.mount(a, base+"/transactions", &collection{singular: "transaction", plural: "transactions"})
		s.mount(a, base+"/users", &collection{singular: "user", plural: "users"})
		s.mount(a, base+"/users/{id}/profile/credentials", credentials)

		a.Get(base+"/logs.json", s.listLogs)
		a.Get(base+"/logs/aggregate.json", s.aggregateLogs)
	})
	return r
}

func accountID(s string) any {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return s
}

// ============================================================================
// Generic handlers
// ============================================================================

func (s *Server) list(c *collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		if !s.ownerExistsLocked(c, r) {
			s.mu.Unlock()
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		var rows []map[string]any
		if t := s.tables[c.key(r)]; t != nil {
			rows = t.snapshot()
		}
		s.mu.Unlock()

		q := r.URL.Query()
		if strings.EqualFold(q.Get("order"), "id desc") {
			slices.Reverse(rows)
		}
		rows = paginate(rows, q.Get("page"), q.Get("limit"))
		writeJSON(w, http.StatusOK, c.wrap(map[string]any{c.plural: rows}))
	}
}

func paginate(rows []map[string]any, pageParam, limitParam string) []map[string]any {
	page, err := strconv.Atoi(pageParam)
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(limitParam)
	if err != nil || limit < 1 {
		limit = defaultPageLimit
	}
	start := (page - 1) * limit
	if start >= len(rows) {
		return []map[string]any{}
	}
	return rows[start:min(start+limit, len(rows))]
}

func (s *Server) count(c *collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.ownerExistsLocked(c, r) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		n := 0
		if t := s.tables[c.key(r)]; t != nil {
			n = len(t.rows)
		}
		writeJSON(w, http.StatusOK, map[string]any{"count": n})
	}
}

func (s *Server) show(c *collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		row := s.rowLocked(c, r)
		if row == nil {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeJSON(w, http.StatusOK, c.wrap(map[string]any{c.singular: maps.Clone(row)}))
	}
}

func (s *Server) rowLocked(c *collection, r *http.Request) map[string]any {
	if !s.ownerExistsLocked(c, r) {
		return nil
	}
	t := s.tables[c.key(r)]
	if t == nil {
		return nil
	}
	_, row := t.find(chi.URLParam(r, c.param()))
	return row
}

func (s *Server) create(c *collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := decodeBody(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		attrs, ok := c.attrs(body)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("missing %q object", c.singular))
			return
		}
		delete(attrs, "id")

		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.ownerExistsLocked(c, r) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		key := c.key(r)
		row := s.insertLocked(key, attrs)
		if c.created != nil {
			if err := c.created(s, row); err != nil {
				t := s.tables[key]
				t.rows = t.rows[:len(t.rows)-1]
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
		writeJSON(w, http.StatusOK, c.wrap(map[string]any{c.singular: maps.Clone(row)}))
	}
}

func (s *Server) update(c *collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := decodeBody(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		attrs, ok := c.attrs(body)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("missing %q object", c.singular))
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		row := s.rowLocked(c, r)
		if row == nil {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		for k, v := range attrs {
			if k == "id" {
				continue
			}
			row[k] = v
		}
		row["date_modified"] = s.timestamp()
		writeJSON(w, http.StatusOK, c.wrap(map[string]any{c.singular: maps.Clone(row)}))
	}
}

func (s *Server) destroy(c *collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.ownerExistsLocked(c, r) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		t := s.tables[c.key(r)]
		if t == nil {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		i, row := t.find(chi.URLParam(r, c.param()))
		if row == nil {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		t.rows = slices.Delete(t.rows, i, i+1)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ============================================================================
// Creation hooks
// ============================================================================

func messageCreated(s *Server, row map[string]any) error {
	if str, _ := row["to_number"].(string); str == "" {
		return fmt.Errorf("to_number is required")
	}
	media, _ := row["media_urls"].([]any)
	if body, _ := row["body"].(string); body == "" && len(media) == 0 {
		return fmt.Errorf("body or media_urls is required")
	}
	row["account_id"] = accountID(s.AccountID)
	row["status"] = "accepted"
	row["direction"] = "outbound-api"
	row["num_media"] = len(media)
	row["message_type"] = "local_sms"
	if len(media) > 0 {
		row["message_type"] = "local_mms"
	}
	s.logs = append(s.logs, map[string]any{
		"log_type":     "message.queued",
		"item_id":      fmt.Sprint(row["id"]),
		"operator_id":  s.AccountID,
		"date_created": row["date_created"],
	})
	return nil
}

func numberCreated(s *Server, row map[string]any) error {
	if str, _ := row["phone_number"].(string); str == "" {
		return fmt.Errorf("phone_number is required")
	}
	if _, ok := row["phone_number_type"]; !ok {
		row["phone_number_type"] = "local"
	}
	if _, ok := row["capabilities"]; !ok {
		row["capabilities"] = map[string]any{"sms": true, "mms": true, "voice": false}
	}
	if _, ok := row["tags"]; !ok {
		row["tags"] = map[string]any{}
	}
	row["account_id"] = accountID(s.AccountID)
	row["active"] = true
	return nil
}

func credentialCreated(s *Server, row map[string]any) error {
	row["api_key"] = fmt.Sprintf("key-%v", row["id"])
	row["api_secret"] = fmt.Sprintf("secret-%v", row["id"])
	row["active"] = true
	if _, ok := row["name"]; !ok {
		row["name"] = fmt.Sprintf("credential %v", row["id"])
	}
	return nil
}
