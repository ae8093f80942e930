package client

import (
	"net/url"
	"strconv"
	"strings"
)

// Query is an ordered set of query parameters. Unlike url.Values it keeps
// insertion order and encodes spaces as %20.
type Query struct {
	keys   []string
	values map[string]string
}

func NewQuery() *Query {
	return &Query{values: make(map[string]string)}
}

// Set adds or replaces a parameter, keeping its original position on replace.
func (q *Query) Set(key, value string) *Query {
	if _, ok := q.values[key]; !ok {
		q.keys = append(q.keys, key)
	}
	q.values[key] = value
	return q
}

func (q *Query) SetInt(key string, value int) *Query {
	return q.Set(key, strconv.Itoa(value))
}

// SetNonEmpty adds the parameter only when value is not empty.
func (q *Query) SetNonEmpty(key, value string) *Query {
	if value == "" {
		return q
	}
	return q.Set(key, value)
}

func (q *Query) Get(key string) string {
	return q.values[key]
}

func (q *Query) Len() int {
	return len(q.keys)
}

func (q *Query) Encode() string {
	var sb strings.Builder
	for i, k := range q.keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(escape(k))
		sb.WriteByte('=')
		sb.WriteString(escape(q.values[k]))
	}
	return sb.String()
}

func escape(s string) string {
	s = url.QueryEscape(s)
	s = strings.ReplaceAll(s, "+", "%20")
	return strings.ReplaceAll(s, "%3A", ":")
}
