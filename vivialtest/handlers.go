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

const bulkDateFormat = "2006-01-02T15:04:05"

// billingStatus handles GET /accounts/{account}/status.json.
func (s *Server) billingStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"account_id":  accountID(s.AccountID),
		"free_trial":  false,
		"status":      "active",
		"balance":     "25.00",
		"currency":    "USD",
		"billing_day": 1,
	})
}

// ============================================================================
// Bulk messages
// ============================================================================

// sendBulk handles POST /accounts/{account}/messages/bulk.json.
func (s *Server) sendBulk(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	attrs, _ := body["message"].(map[string]any)
	numbers, _ := attrs["to_numbers"].([]any)
	if len(numbers) == 0 {
		writeError(w, http.StatusBadRequest, "to_numbers is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	bulkID := fmt.Sprintf("bulk-%d", s.nextID)
	s.nextID++

	failed := 0
	for _, n := range numbers {
		row := maps.Clone(attrs)
		delete(row, "to_numbers")
		delete(row, "id")
		row["to_number"] = fmt.Sprint(n)
		row["bulk_id"] = bulkID
		stored := s.insertLocked("messages", row)
		if err := messageCreated(s, stored); err != nil {
			t := s.tables["messages"]
			t.rows = t.rows[:len(t.rows)-1]
			failed++
		}
	}
	s.bulks = append(s.bulks, map[string]any{
		"bulk_id":        bulkID,
		"total_messages": len(numbers),
		"processed":      len(numbers) - failed,
		"errors":         failed,
		"date_created":   s.now().UTC().Format(bulkDateFormat),
	})
	writeJSON(w, http.StatusOK, map[string]any{"bulk_id": bulkID})
}

// listBulks handles GET /accounts/{account}/messages/bulk.json.
func (s *Server) listBulks(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bulks := make([]map[string]any, 0, len(s.bulks))
	for _, b := range s.bulks {
		bulks = append(bulks, maps.Clone(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"bulks": bulks})
}

// bulkMessages handles GET /accounts/{account}/messages/bulk/{bulk}.json.
func (s *Server) bulkMessages(w http.ResponseWriter, r *http.Request) {
	bulkID := chi.URLParam(r, "bulk")

	s.mu.Lock()
	defer s.mu.Unlock()
	known := slices.ContainsFunc(s.bulks, func(b map[string]any) bool { return b["bulk_id"] == bulkID })
	if !known {
		writeError(w, http.StatusNotFound, "bulk not found")
		return
	}
	out := []map[string]any{}
	if t := s.tables["messages"]; t != nil {
		for _, row := range t.rows {
			if row["bulk_id"] == bulkID {
				out = append(out, maps.Clone(row))
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": out})
}

// ============================================================================
// Numbers
// ============================================================================

// availableNumbers handles
// GET /accounts/{account}/numbers/available/{country}/{type}.json.
func (s *Server) availableNumbers(w http.ResponseWriter, r *http.Request) {
	country := chi.URLParam(r, "country")
	numberType := chi.URLParam(r, "type")
	if country != "US" && country != "CA" {
		writeError(w, http.StatusBadRequest, "unsupported country "+country)
		return
	}
	areaCode := "302"
	switch numberType {
	case "local":
	case "tollfree":
		areaCode = "800"
	default:
		writeError(w, http.StatusBadRequest, "unsupported number type "+numberType)
		return
	}

	q := r.URL.Query()
	if v := q.Get("area_code"); v != "" {
		areaCode = v
	}
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit < 1 || limit > 10 {
		limit = 3
	}
	contains := q.Get("contains")

	out := []map[string]any{}
	for i := 0; len(out) < limit && i < 100; i++ {
		number := fmt.Sprintf("+1%s555%04d", areaCode, 100+i)
		if contains != "" && !strings.Contains(number, contains) {
			continue
		}
		out = append(out, map[string]any{
			"phone_number":      number,
			"phone_number_type": numberType,
			"region":            q.Get("in_region"),
			"capabilities":      map[string]any{"sms": true, "mms": true, "voice": false},
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"phone_numbers": out})
}

// lookupNumber handles GET /accounts/{account}/numbers/lookup.json.
func (s *Server) lookupNumber(w http.ResponseWriter, r *http.Request) {
	number := r.URL.Query().Get("phone_number")
	if number == "" {
		writeError(w, http.StatusBadRequest, "phone_number is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"number_info": map[string]any{
			"phone_number": number,
			"device_type":  "mobile",
			"carrier": map[string]any{
				"name":    "Fake Wireless",
				"country": "US",
			},
		},
	})
}

// taggedNumbers handles GET /accounts/{account}/numbers/tags.json.
func (s *Server) taggedNumbers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	contains := parseTagFilter(q.Get("contains"))
	notContains := parseTagFilter(q.Get("notcontains"))

	s.mu.Lock()
	var rows []map[string]any
	if t := s.tables["numbers"]; t != nil {
		rows = t.snapshot()
	}
	s.mu.Unlock()

	items := []map[string]any{}
	for _, row := range rows {
		tags := tagMap(row["tags"])
		if matchesAll(tags, contains) && !matchesAny(tags, notContains) {
			items = append(items, row)
		}
	}
	items = paginate(items, q.Get("page"), q.Get("limit"))
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

// removeTags handles DELETE /accounts/{account}/numbers/{id}/tags.json.
func (s *Server) removeTags(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	remove, ok := body["tags"].(map[string]any)
	if !ok {
		writeError(w, http.StatusBadRequest, "tags is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tables["numbers"]
	if t == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	_, row := t.find(chi.URLParam(r, "id"))
	if row == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	tags := tagMap(row["tags"])
	for k := range remove {
		delete(tags, k)
	}
	row["tags"] = tags
	writeJSON(w, http.StatusOK, map[string]any{"phone_number": maps.Clone(row)})
}

func parseTagFilter(s string) map[string]string {
	if s == "" {
		return nil
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		k, v, _ := strings.Cut(pair, ":")
		out[k] = v
	}
	return out
}

func tagMap(v any) map[string]any {
	out := map[string]any{}
	switch t := v.(type) {
	case map[string]any:
		maps.Copy(out, t)
	case map[string]string:
		for k, s := range t {
			out[k] = s
		}
	}
	return out
}

func matchesAll(tags map[string]any, filter map[string]string) bool {
	for k, v := range filter {
		if fmt.Sprint(tags[k]) != v {
			return false
		}
	}
	return true
}

func matchesAny(tags map[string]any, filter map[string]string) bool {
	for k, v := range filter {
		if got, ok := tags[k]; ok && fmt.Sprint(got) == v {
			return true
		}
	}
	return false
}

// ============================================================================
// Logs
// ============================================================================

const defaultLogLimit = 100

// listLogs handles GET /accounts/{account}/logs.json. start_key is the index
// of the first entry to return.
func (s *Server) listLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("start_time") == "" || q.Get("end_time") == "" {
		writeError(w, http.StatusBadRequest, "start_time and end_time are required")
		return
	}
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit < 1 {
		limit = defaultLogLimit
	}
	start := 0
	if key := q.Get("start_key"); key != "" {
		if start, err = strconv.Atoi(key); err != nil || start < 0 {
			writeError(w, http.StatusBadRequest, "invalid start_key")
			return
		}
	}

	matched := s.filterLogs(q.Get("log_type"), q.Get("item_id"), q.Get("operator_id"))
	items := []map[string]any{}
	if start < len(matched) {
		items = matched[start:min(start+limit, len(matched))]
	}
	lastKey := ""
	if start+limit < len(matched) {
		lastKey = strconv.Itoa(start + limit)
	}
	writeJSON(w, http.StatusOK, map[string]any{"log_items": items, "last_key": lastKey})
}

// aggregateLogs handles GET /accounts/{account}/logs/aggregate.json.
func (s *Server) aggregateLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	aggregator := q.Get("aggregator_type")
	switch aggregator {
	case "minutes", "hours", "days", "months", "years":
	default:
		writeError(w, http.StatusBadRequest, "invalid aggregator_type "+aggregator)
		return
	}

	counts := make(map[string]int)
	for _, entry := range s.filterLogs(q.Get("log_type"), "", q.Get("operator_id")) {
		counts[fmt.Sprint(entry["log_type"])]++
	}
	items := make([]map[string]any, 0, len(counts))
	for _, logType := range slices.Sorted(maps.Keys(counts)) {
		items = append(items, map[string]any{"log_type": logType, "count": counts[logType]})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"aggregator_type": aggregator,
		"log_items":       items,
		"last_key":        "",
	})
}

func (s *Server) filterLogs(logType, itemID, operatorID string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []map[string]any{}
	for _, entry := range s.logs {
		if logType != "" && fmt.Sprint(entry["log_type"]) != logType {
			continue
		}
		if itemID != "" && fmt.Sprint(entry["item_id"]) != itemID {
			continue
		}
		if operatorID != "" && fmt.Sprint(entry["operator_id"]) != operatorID {
			continue
		}
		out = append(out, maps.Clone(entry))
	}
	return out
}
