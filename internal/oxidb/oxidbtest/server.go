// Package oxidbtest runs an in-process stand-in for oxidb-server that
// speaks the framed JSON protocol. It supports the commands the oxidb
// client exposes, with equality queries, $set updates and single-field
// sorts.
package oxidbtest

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"reflect"
	"sort"
	"sync"
)

type object struct {
	Data        []byte
	ContentType string
	Metadata    map[string]any
}

type state struct {
	Collections map[string][]map[string]any
	Unique      map[string][]string
	Buckets     map[string]map[string]object
	Seq         float64
}

// Server is a fake oxidb-server listening on 127.0.0.1.
type Server struct {
	ln net.Listener
	wg sync.WaitGroup

	mu    sync.Mutex
	st    state
	conns map[net.Conn]struct{}
	// FailNext makes the next command named by the key fail with the value.
	failNext map[string]string
}

// Start listens on a random port.
func Start() (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s := &Server{
		ln: ln,
		st: state{
			Collections: map[string][]map[string]any{},
			Unique:      map[string][]string{},
			Buckets:     map[string]map[string]object{},
		},
		conns:    map[net.Conn]struct{}{},
		failNext: map[string]string{},
	}
	s.wg.Add(1)
	go s.accept()
	return s, nil
}

// Addr is host:port.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// FailNext makes the next cmd fail with msg.
func (s *Server) FailNext(cmd, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[cmd] = msg
}

// Docs returns a copy of a collection.
func (s *Server) Docs(collection string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []map[string]any
	for _, d := range s.st.Collections[collection] {
		out = append(out, copyDoc(d))
	}
	return out
}

// Close stops the listener and every connection.
func (s *Server) Close() {
	s.ln.Close()
	s.mu.Lock()
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) accept() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	var tx *state
	for {
		lenBuf := make([]byte, 4)
		if _, err := io.ReadFull(conn, lenBuf); err != nil {
			return
		}
		payload := make([]byte, binary.LittleEndian.Uint32(lenBuf))
		if _, err := io.ReadFull(conn, payload); err != nil {
			return
		}
		var req map[string]any
		resp := map[string]any{"ok": true}
		if err := json.Unmarshal(payload, &req); err != nil {
			resp = map[string]any{"ok": false, "error": err.Error()}
		} else if data, err := s.handle(req, &tx); err != nil {
			resp = map[string]any{"ok": false, "error": err.Error()}
		} else {
			resp["data"] = data
		}
		out, _ := json.Marshal(resp)
		buf := make([]byte, 4+len(out))
		binary.LittleEndian.PutUint32(buf, uint32(len(out)))
		copy(buf[4:], out)
		if _, err := conn.Write(buf); err != nil {
			return
		}
	}
}

func (s *Server) handle(req map[string]any, tx **state) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cmd, _ := req["cmd"].(string)
	if msg, ok := s.failNext[cmd]; ok {
		delete(s.failNext, cmd)
		return nil, fmt.Errorf("%s", msg)
	}
	coll, _ := req["collection"].(string)
	query, _ := req["query"].(map[string]any)

	switch cmd {
	case "ping":
		return "pong", nil

	case "begin_tx":
		snap := s.st.clone()
		*tx = &snap
		return map[string]any{"tx_id": 1}, nil
	case "commit_tx":
		*tx = nil
		return "committed", nil
	case "rollback_tx":
		if *tx != nil {
			s.st = **tx
		}
		*tx = nil
		return "rolled_back", nil

	case "create_index":
		return "ok", nil
	case "create_unique_index":
		field, _ := req["field"].(string)
		s.st.Unique[coll] = append(s.st.Unique[coll], field)
		return "ok", nil

	case "insert":
		doc, _ := req["doc"].(map[string]any)
		for _, f := range s.st.Unique[coll] {
			for _, d := range s.st.Collections[coll] {
				if v, ok := doc[f]; ok && reflect.DeepEqual(d[f], v) {
					return nil, fmt.Errorf("duplicate key on %s", f)
				}
			}
		}
		s.st.Seq++
		doc = copyDoc(doc)
		doc["_id"] = s.st.Seq
		s.st.Collections[coll] = append(s.st.Collections[coll], doc)
		return map[string]any{"id": s.st.Seq}, nil

	case "find":
		docs := s.match(coll, query)
		if spec, ok := req["sort"].(map[string]any); ok {
			sortDocs(docs, spec)
		}
		if skip, ok := req["skip"].(float64); ok {
			docs = docs[min(int(skip), len(docs)):]
		}
		if limit, ok := req["limit"].(float64); ok && int(limit) < len(docs) {
			docs = docs[:int(limit)]
		}
		out := make([]any, len(docs))
		for i, d := range docs {
			out[i] = copyDoc(d)
		}
		return out, nil

	case "find_one":
		docs := s.match(coll, query)
		if len(docs) == 0 {
			return nil, nil
		}
		return copyDoc(docs[0]), nil

	case "count":
		return map[string]any{"count": len(s.match(coll, query))}, nil

	case "update_one":
		update, _ := req["update"].(map[string]any)
		set, _ := update["$set"].(map[string]any)
		docs := s.match(coll, query)
		if len(docs) == 0 {
			return map[string]any{"modified": 0}, nil
		}
		for k, v := range set {
			docs[0][k] = v
		}
		return map[string]any{"modified": 1}, nil

	case "create_bucket":
		b, _ := req["bucket"].(string)
		if _, ok := s.st.Buckets[b]; ok {
			return nil, fmt.Errorf("bucket %s already exists", b)
		}
		s.st.Buckets[b] = map[string]object{}
		return "ok", nil
	case "put_object":
		b, _ := req["bucket"].(string)
		key, _ := req["key"].(string)
		bucket, ok := s.st.Buckets[b]
		if !ok {
			return nil, fmt.Errorf("bucket %s not found", b)
		}
		raw, _ := req["data"].(string)
		data, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, err
		}
		ct, _ := req["content_type"].(string)
		meta, _ := req["metadata"].(map[string]any)
		bucket[key] = object{Data: data, ContentType: ct, Metadata: meta}
		return map[string]any{"key": key, "size": len(data)}, nil
	case "get_object":
		b, _ := req["bucket"].(string)
		key, _ := req["key"].(string)
		obj, ok := s.st.Buckets[b][key]
		if !ok {
			return nil, fmt.Errorf("object %s/%s not found", b, key)
		}
		return map[string]any{
			"content":  base64.StdEncoding.EncodeToString(obj.Data),
			"metadata": obj.Metadata,
		}, nil
	}
	return nil, fmt.Errorf("unknown command %q", cmd)
}

// match returns the live documents equal to every query field.
func (s *Server) match(coll string, query map[string]any) []map[string]any {
	var out []map[string]any
	for _, d := range s.st.Collections[coll] {
		ok := true
		for k, v := range query {
			if !reflect.DeepEqual(d[k], v) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, d)
		}
	}
	return out
}

func sortDocs(docs []map[string]any, spec map[string]any) {
	for field, dir := range spec {
		desc := dir == float64(-1)
		sort.SliceStable(docs, func(i, j int) bool {
			less := lessValue(docs[i][field], docs[j][field])
			if desc {
				return lessValue(docs[j][field], docs[i][field])
			}
			return less
		})
		return
	}
}

func lessValue(a, b any) bool {
	switch av := a.(type) {
	case float64:
		bv, _ := b.(float64)
		return av < bv
	case string:
		bv, _ := b.(string)
		return av < bv
	}
	return false
}

func copyDoc(d map[string]any) map[string]any {
	b, _ := json.Marshal(d)
	var out map[string]any
	_ = json.Unmarshal(b, &out)
	return out
}

func (st state) clone() state {
	b, _ := json.Marshal(st)
	var out state
	_ = json.Unmarshal(b, &out)
	if out.Collections == nil {
		out.Collections = map[string][]map[string]any{}
	}
	if out.Unique == nil {
		out.Unique = map[string][]string{}
	}
	if out.Buckets == nil {
		out.Buckets = map[string]map[string]object{}
	}
	for name, b := range out.Buckets {
		if b == nil {
			out.Buckets[name] = map[string]object{}
		}
	}
	return out
}
